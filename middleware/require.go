package middleware

import (
	"encoding/json"
	"net/http"

	portalAuth "github.com/MrEthical07/portalAuth"
)

// RequireSession answers 401 with a {"detail": ...} body when no session
// exists, and otherwise attaches the snapshot to the request context.
func RequireSession(manager *portalAuth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := manager.Snapshot()
			if !state.IsAuthenticated() {
				writeDetail(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			next.ServeHTTP(w, r.WithContext(portalAuth.WithState(r.Context(), state)))
		})
	}
}

// RequestID attaches the inbound X-Request-ID, or a fresh one, to the
// request context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(requestIDHeader); id != "" {
			ctx = portalAuth.WithRequestID(ctx, id)
		}
		ctx, id := portalAuth.EnsureRequestID(ctx)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

const requestIDHeader = "X-Request-ID"

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
