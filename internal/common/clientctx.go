package common

import "context"

// ClientContext identifies the authenticated API client for a request.
// Nil means the request arrived on a route that does not require
// credentials.
type ClientContext struct {
	ClientID string
	Name     string
}

type contextKey int

const clientContextKey contextKey = iota

// WithClientContext stores a ClientContext in the request context.
func WithClientContext(ctx context.Context, cc *ClientContext) context.Context {
	return context.WithValue(ctx, clientContextKey, cc)
}

// ClientFromContext retrieves the ClientContext from context, or nil if absent.
func ClientFromContext(ctx context.Context) *ClientContext {
	cc, _ := ctx.Value(clientContextKey).(*ClientContext)
	return cc
}

// ResolveClientID returns the authenticated client id, or "anonymous"
// when the request carried no credentials.
func ResolveClientID(ctx context.Context) string {
	if cc := ClientFromContext(ctx); cc != nil && cc.ClientID != "" {
		return cc.ClientID
	}
	return "anonymous"
}
