package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/portalAuth/permission"
)

// ErrInvalidUser is returned when a user record lacks an id, a username or a role.
var ErrInvalidUser = errors.New("invalid user record")

// ID is a server-assigned identifier. The primary API emits numeric ids,
// older endpoints emit strings; both decode into ID.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// RoleRecord is one entry of a multi-role assignment.
type RoleRecord struct {
	ID   ID              `json:"id,omitempty"`
	Name permission.Role `json:"name"`
}

// User is the operator profile returned by the primary API.
type User struct {
	ID          ID
	Username    string
	Email       string
	FullName    string
	Role        permission.Role
	Roles       []RoleRecord
	IsSuperuser bool
}

type userWire struct {
	ID          ID           `json:"id"`
	Username    string       `json:"username"`
	Email       string       `json:"email,omitempty"`
	FullName    string       `json:"full_name,omitempty"`
	Role        string       `json:"role,omitempty"`
	Roles       []RoleRecord `json:"roles,omitempty"`
	IsSuperuser bool         `json:"is_superuser,omitempty"`
}

// MarshalJSON encodes the user in the primary API's field naming.
func (u User) MarshalJSON() ([]byte, error) {
	w := userWire{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		Roles:       u.Roles,
		IsSuperuser: u.IsSuperuser,
	}
	if u.Role.Valid() {
		w.Role = u.Role.String()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a user record. When "role" is absent the first
// entry of "roles" becomes the primary role. Unknown role tags fail.
func (u *User) UnmarshalJSON(data []byte) error {
	var w userWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := User{
		ID:          w.ID,
		Username:    w.Username,
		Email:       w.Email,
		FullName:    w.FullName,
		Roles:       w.Roles,
		IsSuperuser: w.IsSuperuser,
	}
	switch {
	case strings.TrimSpace(w.Role) != "":
		r, err := permission.ParseRole(w.Role)
		if err != nil {
			return err
		}
		out.Role = r
	case len(w.Roles) > 0:
		out.Role = w.Roles[0].Name
	}

	*u = out
	return nil
}

// Validate reports whether u can back an authenticated session.
func (u User) Validate() error {
	if strings.TrimSpace(string(u.ID)) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidUser)
	}
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: missing username", ErrInvalidUser)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: missing role", ErrInvalidUser)
	}
	return nil
}

func (u User) clone() User {
	if len(u.Roles) > 0 {
		u.Roles = append([]RoleRecord(nil), u.Roles...)
	}
	return u
}
