package portalAuth

import (
	"context"

	"github.com/MrEthical07/portalAuth/permission"
	"github.com/MrEthical07/portalAuth/session"
)

// Credentials is a username/password login attempt.
type Credentials struct {
	Username string
	Password string
}

// LoginResponse carries the logical fields of a successful login answer.
type LoginResponse struct {
	Token        string
	RefreshToken string
	User         session.User
	Permissions  []string
	Roles        []session.RoleRecord
}

// RefreshResult carries a refreshed token pair. An empty RefreshToken keeps
// the previous one.
type RefreshResult struct {
	Token        string
	RefreshToken string
}

// Authenticator is the primary API's authentication endpoint collaborator.
//
// Implementations classify failures by wrapping [ErrInvalidCredentials],
// [ErrUnauthorized], [ErrMalformedResponse] or [ErrNetworkFailure].
//
//	Docs: docs/authclient.md
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (LoginResponse, error)
	Logout(ctx context.Context, token string) error
	Refresh(ctx context.Context, token, refreshToken string) (RefreshResult, error)
	Profile(ctx context.Context, token string) (session.User, error)
}

// Whoami is a display summary of the current session.
type Whoami struct {
	Authenticated bool                 `json:"authenticated"`
	UserID        string               `json:"user_id,omitempty"`
	Username      string               `json:"username,omitempty"`
	FullName      string               `json:"full_name,omitempty"`
	Role          permission.Role      `json:"role,omitempty"`
	Roles         []session.RoleRecord `json:"roles,omitempty"`
	Permissions   []string             `json:"permissions,omitempty"`
	Admin         bool                 `json:"admin"`
}

// Describe summarises state without exposing tokens.
func Describe(state session.State) Whoami {
	active, ok := state.Active()
	if !ok {
		return Whoami{}
	}
	user := active.User()
	return Whoami{
		Authenticated: true,
		UserID:        string(user.ID),
		Username:      user.Username,
		FullName:      user.FullName,
		Role:          user.Role,
		Roles:         active.Roles(),
		Permissions:   active.Permissions().Sorted(),
		Admin:         active.IsAdmin(),
	}
}
