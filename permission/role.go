package permission

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when a role tag is not one of the console's roles.
var ErrUnknownRole = errors.New("unknown role")

// Role is the closed set of operator roles recognised by the console.
// The zero value is not a valid role.
//
//	Docs: docs/permission.md
type Role uint8

const (
	roleInvalid Role = iota
	// RoleAdmin has unrestricted console access.
	RoleAdmin
	// RoleManager administers users and data but is not a superuser.
	RoleManager
	// RoleAnalyst reads non-identifying order data.
	RoleAnalyst
	// RoleViewer reads a minimal order projection.
	RoleViewer
	// RoleFinance reads monetary order data.
	RoleFinance
	// RolePlatform is the marketplace operator.
	RolePlatform
	// RoleAuditor reads everything and owns the audit trail.
	RoleAuditor
	// RoleSeller sees orders and customers of its own shop.
	RoleSeller
	// RolePaymentProvider sees payment data.
	RolePaymentProvider
	// RoleLogistics sees shipping data.
	RoleLogistics
	roleCount
)

var roleNames = [roleCount]string{
	roleInvalid:         "",
	RoleAdmin:           "admin",
	RoleManager:         "manager",
	RoleAnalyst:         "analyst",
	RoleViewer:          "viewer",
	RoleFinance:         "finance",
	RolePlatform:        "platform",
	RoleAuditor:         "auditor",
	RoleSeller:          "seller",
	RolePaymentProvider: "payment_provider",
	RoleLogistics:       "logistics",
}

// ParseRole maps a role tag to its [Role]. Tags are matched case-insensitively
// after trimming; anything outside the closed set fails with [ErrUnknownRole].
func ParseRole(tag string) (Role, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return roleInvalid, fmt.Errorf("%w: empty tag", ErrUnknownRole)
	}
	for r := RoleAdmin; r < roleCount; r++ {
		if roleNames[r] == tag {
			return r, nil
		}
	}
	return roleInvalid, fmt.Errorf("%w: %q", ErrUnknownRole, tag)
}

// MustParseRole is ParseRole for static tables; it panics on unknown tags.
func MustParseRole(tag string) Role {
	r, err := ParseRole(tag)
	if err != nil {
		panic(err)
	}
	return r
}

// Roles returns every valid role in declaration order.
func Roles() []Role {
	out := make([]Role, 0, int(roleCount)-1)
	for r := RoleAdmin; r < roleCount; r++ {
		out = append(out, r)
	}
	return out
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r > roleInvalid && r < roleCount
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
	return roleNames[r]
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(roleNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. JSON and YAML decoding
// of a Role therefore fail on tags outside the closed set.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRoles parses a list of tags, failing on the first unknown one.
func ParseRoles(tags []string) ([]Role, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	out := make([]Role, 0, len(tags))
	for _, tag := range tags {
		r, err := ParseRole(tag)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
