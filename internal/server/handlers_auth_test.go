package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/models"
)

// --- JWT helpers ---

func TestSignAndValidateClientToken_RoundTrip(t *testing.T) {
	cfg := &common.AuthConfig{
		JWTSecret:   "test-secret-key",
		TokenExpiry: "1h",
	}
	client := &models.ServiceClient{
		ClientID: "blink-cron",
		Name:     "nightly batch",
	}

	token, err := signClientToken(client, cfg)
	if err != nil {
		t.Fatalf("signClientToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	parsed, claims, err := validateJWT(token, []byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("validateJWT failed: %v", err)
	}
	if !parsed.Valid {
		t.Error("expected token to be valid")
	}
	if claims["sub"] != "blink-cron" {
		t.Errorf("expected sub=blink-cron, got %v", claims["sub"])
	}
	if claims["name"] != "nightly batch" {
		t.Errorf("expected name claim, got %v", claims["name"])
	}
	if claims["iss"] != "blink-server" {
		t.Errorf("expected iss=blink-server, got %v", claims["iss"])
	}
}

func TestValidateJWT_ExpiredToken(t *testing.T) {
	cfg := &common.AuthConfig{
		JWTSecret:   "test-secret-key",
		TokenExpiry: "-1h", // negative duration = already expired
	}
	client := &models.ServiceClient{ClientID: "blink-cron"}

	token, err := signClientToken(client, cfg)
	if err != nil {
		t.Fatalf("signClientToken failed: %v", err)
	}

	_, _, err = validateJWT(token, []byte(cfg.JWTSecret))
	if err == nil {
		t.Error("expected error for expired token")
	}
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	cfg := &common.AuthConfig{
		JWTSecret:   "correct-secret",
		TokenExpiry: "1h",
	}
	client := &models.ServiceClient{ClientID: "blink-cron"}

	token, err := signClientToken(client, cfg)
	if err != nil {
		t.Fatalf("signClientToken failed: %v", err)
	}

	_, _, err = validateJWT(token, []byte("wrong-secret"))
	if err == nil {
		t.Error("expected error for wrong secret")
	}
}

// --- Token endpoint ---

// seedClient registers a service client with a bcrypt-hashed secret.
func seedClient(t *testing.T, storage *mockStorage, clientID, secret string, disabled bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt hash failed: %v", err)
	}
	storage.internal.clients[clientID] = &models.ServiceClient{
		ClientID:   clientID,
		SecretHash: string(hash),
		Name:       "test client",
		Disabled:   disabled,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestHandleAuthToken_IssuesToken(t *testing.T) {
	srv, storage := newTestServer(nil)
	seedClient(t, storage, "blink-cron", "s3cret", false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", jsonBody(t, map[string]interface{}{
		"client_id":     "blink-cron",
		"client_secret": "s3cret",
	}))
	rec := httptest.NewRecorder()
	srv.handleAuthToken(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected Cache-Control: no-store, got %q", cc)
	}

	var got struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.AccessToken == "" {
		t.Fatal("expected non-empty access_token")
	}
	if got.TokenType != "Bearer" {
		t.Errorf("expected token_type Bearer, got %q", got.TokenType)
	}
	if got.ExpiresIn != 3600 {
		t.Errorf("expected expires_in 3600, got %d", got.ExpiresIn)
	}

	_, claims, err := validateJWT(got.AccessToken, []byte(srv.app.Config.Auth.JWTSecret))
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if claims["sub"] != "blink-cron" {
		t.Errorf("expected sub=blink-cron, got %v", claims["sub"])
	}
}

func TestHandleAuthToken_WrongSecret(t *testing.T) {
	srv, storage := newTestServer(nil)
	seedClient(t, storage, "blink-cron", "s3cret", false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", jsonBody(t, map[string]interface{}{
		"client_id":     "blink-cron",
		"client_secret": "wrong",
	}))
	rec := httptest.NewRecorder()
	srv.handleAuthToken(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong secret, got %d", rec.Code)
	}
}

func TestHandleAuthToken_UnknownClient(t *testing.T) {
	srv, _ := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", jsonBody(t, map[string]interface{}{
		"client_id":     "nobody",
		"client_secret": "whatever",
	}))
	rec := httptest.NewRecorder()
	srv.handleAuthToken(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown client, got %d", rec.Code)
	}
}

func TestHandleAuthToken_DisabledClient(t *testing.T) {
	srv, storage := newTestServer(nil)
	seedClient(t, storage, "blink-cron", "s3cret", true)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", jsonBody(t, map[string]interface{}{
		"client_id":     "blink-cron",
		"client_secret": "s3cret",
	}))
	rec := httptest.NewRecorder()
	srv.handleAuthToken(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for disabled client, got %d", rec.Code)
	}
}

func TestHandleAuthToken_MissingCredentials(t *testing.T) {
	srv, _ := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", jsonBody(t, map[string]interface{}{
		"client_id": "blink-cron",
	}))
	rec := httptest.NewRecorder()
	srv.handleAuthToken(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing client_secret, got %d", rec.Code)
	}
}
