package guard

import (
	"fmt"

	"github.com/MrEthical07/portalAuth/permission"
)

// Requirement is the access metadata a view declares.
type Requirement struct {
	Public       bool
	RequiresAuth bool
	// LoginView marks the login page; authenticated sessions are sent to
	// the dashboard instead.
	LoginView   bool
	Roles       []permission.Role
	Permissions []string
}

// Gated reports whether the requirement can only be met by an
// authenticated session.
func (r Requirement) Gated() bool {
	return !r.Public && (r.RequiresAuth || len(r.Roles) > 0 || len(r.Permissions) > 0)
}

// Route is a resolved navigation target.
type Route struct {
	Name  string
	Title string
	// Path is the declared pattern, e.g. /admin/user/edit/:id.
	Path string
	// FullPath is the requested location including the query string.
	FullPath    string
	Params      map[string]string
	Requirement Requirement
}

// ActionKind enumerates navigation outcomes.
type ActionKind uint8

const (
	ActionAllow ActionKind = iota
	ActionRedirectLogin
	ActionRedirectForbidden
	ActionRedirectDashboard
)

func (k ActionKind) String() string {
	switch k {
	case ActionAllow:
		return "allow"
	case ActionRedirectLogin:
		return "redirect_login"
	case ActionRedirectForbidden:
		return "redirect_forbidden"
	case ActionRedirectDashboard:
		return "redirect_dashboard"
	default:
		return fmt.Sprintf("ActionKind(%d)", uint8(k))
	}
}

// Action is the guard's instruction to the navigation stack. Target is set
// only for RedirectLogin and holds the originally requested full path.
type Action struct {
	Kind   ActionKind
	Target string
}

// Allow lets the navigation proceed.
func Allow() Action { return Action{Kind: ActionAllow} }

// RedirectLogin sends the user to log in, remembering target.
func RedirectLogin(target string) Action {
	return Action{Kind: ActionRedirectLogin, Target: target}
}

// RedirectForbidden sends the user to the forbidden page.
func RedirectForbidden() Action { return Action{Kind: ActionRedirectForbidden} }

// RedirectDashboard sends the user to the dashboard.
func RedirectDashboard() Action { return Action{Kind: ActionRedirectDashboard} }

func (a Action) String() string {
	if a.Kind == ActionRedirectLogin {
		return a.Kind.String() + "(" + a.Target + ")"
	}
	return a.Kind.String()
}
