package guard

import "github.com/MrEthical07/portalAuth/session"

// Decide returns the navigation action for route under state. It reads only
// its arguments. Rules apply in order and the first match wins:
//
//  1. public route: Allow
//  2. gated route, unauthenticated: RedirectLogin(route.FullPath)
//  3. roles declared, none held: RedirectForbidden
//  4. permissions declared, none held: RedirectForbidden
//  5. login view, authenticated: RedirectDashboard
//  6. Allow
//
// A route is gated when it requires auth or declares roles or permissions,
// so omitting RequiresAuth next to a role list does not open the route.
func Decide(route Route, state session.State) Action {
	req := route.Requirement
	if req.Public {
		return Allow()
	}

	if state == nil {
		state = session.Anonymous{}
	}
	authenticated := state.IsAuthenticated()

	if req.Gated() && !authenticated {
		return RedirectLogin(route.FullPath)
	}
	if len(req.Roles) > 0 && !state.HasAnyRole(req.Roles...) {
		return RedirectForbidden()
	}
	if len(req.Permissions) > 0 && !state.HasAnyPermission(req.Permissions...) {
		return RedirectForbidden()
	}
	if req.LoginView && authenticated {
		return RedirectDashboard()
	}
	return Allow()
}
