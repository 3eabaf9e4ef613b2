package session

import (
	"errors"
	"strings"

	"github.com/MrEthical07/portalAuth/permission"
)

// ErrMissingToken is returned when an authenticated session would be built
// without an access token.
var ErrMissingToken = errors.New("missing access token")

// State is the session as seen by callers: either [Anonymous] or an
// [*Active] session. Every predicate is total and returns false for
// Anonymous, so callers never branch on nil fields.
//
//	Docs: docs/session.md
type State interface {
	IsAuthenticated() bool
	HasRole(role permission.Role) bool
	HasAnyRole(roles ...permission.Role) bool
	HasPermission(tag string) bool
	HasAnyPermission(tags ...string) bool
	IsAdmin() bool
	// Active returns the authenticated variant, if any.
	Active() (*Active, bool)

	sealed()
}

// Anonymous is the unauthenticated session.
type Anonymous struct{}

func (Anonymous) IsAuthenticated() bool { return false }
func (Anonymous) HasRole(permission.Role) bool { return false }
func (Anonymous) HasAnyRole(...permission.Role) bool { return false }
func (Anonymous) HasPermission(string) bool { return false }
func (Anonymous) HasAnyPermission(...string) bool { return false }
func (Anonymous) IsAdmin() bool { return false }
func (Anonymous) Active() (*Active, bool) { return nil, false }
func (Anonymous) sealed() {}

// Active is an authenticated session. It is immutable; the With* methods
// return modified copies.
type Active struct {
	token        string
	refreshToken string
	user         User
	permissions  permission.Set
	roles        []RoleRecord
}

// NewActive builds an authenticated session. token must be non-empty and
// user must pass [User.Validate].
func NewActive(token, refreshToken string, user User, permissions permission.Set, roles []RoleRecord) (*Active, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	for _, r := range roles {
		if !r.Name.Valid() {
			return nil, permission.ErrUnknownRole
		}
	}
	return &Active{
		token:        token,
		refreshToken: refreshToken,
		user:         user.clone(),
		permissions:  permissions,
		roles:        append([]RoleRecord(nil), roles...),
	}, nil
}

// Token returns the bearer access token.
func (a *Active) Token() string { return a.token }

// RefreshToken returns the refresh token, which may be empty.
func (a *Active) RefreshToken() string { return a.refreshToken }

// User returns a copy of the user record.
func (a *Active) User() User { return a.user.clone() }

// Permissions returns the permission set.
func (a *Active) Permissions() permission.Set { return a.permissions }

// Roles returns a copy of the session-level role records.
func (a *Active) Roles() []RoleRecord { return append([]RoleRecord(nil), a.roles...) }

// WithToken returns a copy carrying a new access token. An empty
// refreshToken keeps the current one.
func (a *Active) WithToken(token, refreshToken string) (*Active, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	next := *a
	next.token = token
	if refreshToken != "" {
		next.refreshToken = refreshToken
	}
	return &next, nil
}

// WithUser returns a copy carrying a new user record.
func (a *Active) WithUser(user User) (*Active, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	next := *a
	next.user = user.clone()
	return &next, nil
}

func (a *Active) IsAuthenticated() bool {
	return a != nil && a.token != "" && a.user.Validate() == nil
}

func (a *Active) HasRole(role permission.Role) bool {
	if !a.IsAuthenticated() || !role.Valid() {
		return false
	}
	if a.user.Role == role {
		return true
	}
	for _, r := range a.user.Roles {
		if r.Name == role {
			return true
		}
	}
	for _, r := range a.roles {
		if r.Name == role {
			return true
		}
	}
	return false
}

func (a *Active) HasAnyRole(roles ...permission.Role) bool {
	for _, r := range roles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

func (a *Active) HasPermission(tag string) bool {
	return a.IsAuthenticated() && a.permissions.Has(tag)
}

func (a *Active) HasAnyPermission(tags ...string) bool {
	return a.IsAuthenticated() && a.permissions.HasAny(tags...)
}

// IsAdmin reports superuser status or the admin role.
func (a *Active) IsAdmin() bool {
	if !a.IsAuthenticated() {
		return false
	}
	return a.user.IsSuperuser || a.HasRole(permission.RoleAdmin)
}

func (a *Active) Active() (*Active, bool) {
	if !a.IsAuthenticated() {
		return nil, false
	}
	return a, true
}

func (*Active) sealed() {}
