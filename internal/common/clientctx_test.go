package common

import (
	"context"
	"testing"
)

func TestClientContext_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// Absent by default
	if cc := ClientFromContext(ctx); cc != nil {
		t.Error("Expected nil ClientContext from empty context")
	}

	// Store and retrieve
	cc := &ClientContext{
		ClientID: "blink-cron",
		Name:     "Nightly rescore batch",
	}
	ctx = WithClientContext(ctx, cc)

	got := ClientFromContext(ctx)
	if got == nil {
		t.Fatal("Expected non-nil ClientContext")
	}
	if got.ClientID != "blink-cron" {
		t.Errorf("Expected blink-cron, got %s", got.ClientID)
	}
	if got.Name != "Nightly rescore batch" {
		t.Errorf("Expected name, got %s", got.Name)
	}
}

func TestResolveClientID(t *testing.T) {
	ctx := context.Background()

	// No ClientContext: anonymous
	if id := ResolveClientID(ctx); id != "anonymous" {
		t.Errorf("Expected anonymous default, got %s", id)
	}

	// With ClientContext
	ctx = WithClientContext(ctx, &ClientContext{ClientID: "portal-api"})
	if id := ResolveClientID(ctx); id != "portal-api" {
		t.Errorf("Expected portal-api, got %s", id)
	}
}

func TestResolveClientID_EmptyID(t *testing.T) {
	ctx := WithClientContext(context.Background(), &ClientContext{})

	if id := ResolveClientID(ctx); id != "anonymous" {
		t.Errorf("Expected anonymous for empty client id, got %s", id)
	}
}
