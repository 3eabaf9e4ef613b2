package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/portalAuth/permission"
)

// Storage keys. The first three match the names the browser console used,
// so a session written by either client restores in the other.
const (
	KeyAccessToken  = "dvss_access_token"
	KeyRefreshToken = "dvss_refresh_token"
	KeyUser         = "dvss_user_info"
	KeyPermissions  = "dvss_permissions"
	KeyRoles        = "dvss_roles"
	KeyVersion      = "dvss_session_version"
)

// CurrentSchemaVersion is written with every persisted session. Records
// without a version predate versioning and carry only token and user.
const CurrentSchemaVersion = "1"

// Keys lists every key a persisted session may occupy.
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyPermissions, KeyRoles, KeyVersion}

var (
	// ErrNoSession is returned by Decode when nothing is persisted.
	ErrNoSession = errors.New("no persisted session")
	// ErrMalformed is returned by Decode for persisted data that cannot back a session.
	ErrMalformed = errors.New("malformed persisted session")
)

// Encode renders a into a single storage batch. Keys a does not use are
// deleted in the same batch so no stale refresh token survives.
func Encode(a *Active) (Batch, error) {
	if a == nil || !a.IsAuthenticated() {
		return Batch{}, ErrMissingToken
	}

	userJSON, err := json.Marshal(a.user)
	if err != nil {
		return Batch{}, fmt.Errorf("encode user: %w", err)
	}
	permJSON, err := json.Marshal(a.permissions)
	if err != nil {
		return Batch{}, fmt.Errorf("encode permissions: %w", err)
	}
	roles := a.roles
	if roles == nil {
		roles = []RoleRecord{}
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return Batch{}, fmt.Errorf("encode roles: %w", err)
	}

	b := Batch{
		Set: map[string]string{
			KeyAccessToken: a.token,
			KeyUser:        string(userJSON),
			KeyPermissions: string(permJSON),
			KeyRoles:       string(rolesJSON),
			KeyVersion:     CurrentSchemaVersion,
		},
	}
	if a.refreshToken != "" {
		b.Set[KeyRefreshToken] = a.refreshToken
	} else {
		b.Delete = []string{KeyRefreshToken}
	}
	return b, nil
}

// ClearBatch removes every session key.
func ClearBatch() Batch {
	return Batch{Delete: append([]string(nil), Keys...)}
}

// Decode rebuilds a session from persisted values. It returns ErrNoSession
// when no key is present and an error wrapping ErrMalformed for partial
// sessions, undecodable JSON, unknown roles and unsupported versions.
func Decode(values map[string]string) (*Active, error) {
	if len(values) == 0 {
		return nil, ErrNoSession
	}

	if v, ok := values[KeyVersion]; ok && v != CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %q", ErrMalformed, v)
	}

	token := values[KeyAccessToken]
	rawUser, hasUser := values[KeyUser]
	if token == "" || !hasUser || rawUser == "" {
		return nil, fmt.Errorf("%w: partial session", ErrMalformed)
	}

	var user User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrMalformed, err)
	}

	var perms permission.Set
	if raw, ok := values[KeyPermissions]; ok {
		if err := json.Unmarshal([]byte(raw), &perms); err != nil {
			return nil, fmt.Errorf("%w: permissions: %v", ErrMalformed, err)
		}
	}

	var roles []RoleRecord
	if raw, ok := values[KeyRoles]; ok {
		if err := json.Unmarshal([]byte(raw), &roles); err != nil {
			return nil, fmt.Errorf("%w: roles: %v", ErrMalformed, err)
		}
	}

	a, err := NewActive(token, values[KeyRefreshToken], user, perms, roles)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return a, nil
}
