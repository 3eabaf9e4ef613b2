package middleware

import (
	"context"
	"net/http"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/MrEthical07/portalAuth/guard"
)

type outcomeContextKey struct{}

// OutcomeFromContext returns the guard outcome [Navigation] recorded for
// the request.
func OutcomeFromContext(ctx context.Context) (guard.Outcome, bool) {
	out, ok := ctx.Value(outcomeContextKey{}).(guard.Outcome)
	return out, ok
}

// Navigation guards page requests against table. The session is read once
// per request; the snapshot and the outcome are attached to the request
// context for the handler. Redirect outcomes answer 302 Found.
func Navigation(manager *portalAuth.Manager, table *guard.Table) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil || table == nil {
				http.Error(w, "console not ready", http.StatusServiceUnavailable)
				return
			}

			state := manager.Snapshot()
			out, err := table.Navigate(r.URL.RequestURI(), state)
			if err != nil {
				manager.Logger().Error(err, "navigation failed", "path", r.URL.Path)
				http.Error(w, "navigation failed", http.StatusInternalServerError)
				return
			}
			manager.ObserveNavigation(out.Action)

			if out.Location != "" {
				http.Redirect(w, r, out.Location, http.StatusFound)
				return
			}

			ctx := portalAuth.WithState(r.Context(), state)
			ctx = context.WithValue(ctx, outcomeContextKey{}, out)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
