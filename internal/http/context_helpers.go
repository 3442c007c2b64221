package httpx

import (
	"context"
)

// clientKey is an unexported context key type to avoid collisions across packages.
type clientKey struct{}

// clientScope is what ClientScope attaches to the request context.
type clientScope struct {
	id       string
	services *ClientServices
}

// SetClientInContext returns a child context that carries the client's services.
// If services is nil, the original ctx is returned unchanged.
func SetClientInContext(ctx context.Context, clientID string, services *ClientServices) context.Context {
	if services == nil {
		return ctx
	}
	return context.WithValue(ctx, clientKey{}, clientScope{id: clientID, services: services})
}

// ClientFromContext returns the client's services and a boolean indicating presence.
func ClientFromContext(ctx context.Context) (*ClientServices, bool) {
	if s, ok := ctx.Value(clientKey{}).(clientScope); ok && s.services != nil {
		return s.services, true
	}
	return nil, false
}

// ClientIDFromContext returns the client id attached by ClientScope, or "".
func ClientIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(clientKey{}).(clientScope); ok {
		return s.id
	}
	return ""
}
