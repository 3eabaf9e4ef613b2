package portalAuth

import (
	"context"

	"github.com/MrEthical07/portalAuth/session"
	"github.com/google/uuid"
)

type requestIDContextKey struct{}
type stateContextKey struct{}

// WithRequestID attaches a request id to ctx. The HTTP collaborator sends it
// as X-Request-ID and audit events record it.
//
//	Docs: docs/authclient.md
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// EnsureRequestID returns ctx carrying a request id, generating one when
// absent, together with the id.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

// RequestIDFromContext returns the request id attached to ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// WithState attaches a session snapshot to ctx so that everything serving
// one request decides against the same state.
func WithState(ctx context.Context, state session.State) context.Context {
	return context.WithValue(ctx, stateContextKey{}, state)
}

// StateFromContext returns the snapshot attached by [WithState].
func StateFromContext(ctx context.Context) (session.State, bool) {
	if ctx == nil {
		return nil, false
	}
	state, ok := ctx.Value(stateContextKey{}).(session.State)
	return state, ok && state != nil
}
