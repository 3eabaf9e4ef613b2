package middleware

import (
	"errors"
	"net/http"

	portalAuth "github.com/MrEthical07/portalAuth"
)

var errNoManager = errors.New("middleware: bearer transport without manager")

// BearerTransport authenticates outgoing requests with the session token.
// The token comes from the snapshot on the request context when present,
// so one inbound request uses one token throughout. A 401 answer is passed
// to Manager.HandleUnauthorized with the token that was sent.
type BearerTransport struct {
	Manager *portalAuth.Manager
	// Base performs the request; http.DefaultTransport when nil.
	Base http.RoundTripper
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Manager == nil {
		return nil, errNoManager
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	state, ok := portalAuth.StateFromContext(req.Context())
	if !ok {
		state = t.Manager.Snapshot()
	}
	token := ""
	if active, ok := state.Active(); ok {
		token = active.Token()
	}

	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	if id := portalAuth.RequestIDFromContext(req.Context()); id != "" {
		out.Header.Set(requestIDHeader, id)
	}

	resp, err := base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		_ = t.Manager.HandleUnauthorized(req.Context(), token)
	}
	return resp, nil
}
