package fields

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MrEthical07/portalAuth/permission"
	"gopkg.in/yaml.v3"
)

// Wildcard grants a role every field.
const Wildcard = "*"

var (
	// ErrInvalidPolicy is returned for field policies that cannot be loaded.
	ErrInvalidPolicy = errors.New("invalid field policy")
	// ErrNotRecord is returned by FilterJSON for documents that are neither
	// an object nor an array of objects.
	ErrNotRecord = errors.New("document is not a record or a list of records")
)

type visibility struct {
	all    bool
	fields []string
	index  map[string]struct{}
}

// Policy maps each role to the ordered set of field names it may see.
// Roles absent from the policy see nothing. Policy values are immutable.
//
//	Docs: docs/fields.md
type Policy struct {
	rules map[permission.Role]visibility
}

// NewPolicy builds a Policy. A field list containing [Wildcard] grants
// every field; duplicates and blank names are dropped.
func NewPolicy(rules map[permission.Role][]string) (*Policy, error) {
	p := &Policy{rules: make(map[permission.Role]visibility, len(rules))}
	for role, names := range rules {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, permission.ErrUnknownRole)
		}
		v := visibility{index: make(map[string]struct{}, len(names))}
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if name == Wildcard {
				v.all = true
				continue
			}
			if _, dup := v.index[name]; dup {
				continue
			}
			v.index[name] = struct{}{}
			v.fields = append(v.fields, name)
		}
		p.rules[role] = v
	}
	return p, nil
}

// LoadPolicy reads a YAML document mapping role tags to field lists:
//
//	analyst: [order_id, total_amount]
//	admin: ["*"]
func LoadPolicy(r io.Reader) (*Policy, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc map[permission.Role][]string
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return NewPolicy(doc)
}

// AllowsAll reports whether role holds the wildcard.
func (p *Policy) AllowsAll(role permission.Role) bool {
	if p == nil {
		return false
	}
	return p.rules[role].all
}

// Allows reports whether role may see field.
func (p *Policy) Allows(role permission.Role, field string) bool {
	if p == nil {
		return false
	}
	v, ok := p.rules[role]
	if !ok {
		return false
	}
	if v.all {
		return true
	}
	_, ok = v.index[field]
	return ok
}

// Fields returns the declared fields for role in declaration order, and
// whether the role holds the wildcard.
func (p *Policy) Fields(role permission.Role) ([]string, bool) {
	if p == nil {
		return nil, false
	}
	v := p.rules[role]
	return append([]string(nil), v.fields...), v.all
}

// Role returns the first role of roles that the policy knows, preferring
// one that holds the wildcard. It lets multi-role sessions pick the
// broadest declared view.
func (p *Policy) Role(roles ...permission.Role) (permission.Role, bool) {
	if p == nil {
		return 0, false
	}
	var first permission.Role
	found := false
	for _, r := range roles {
		v, ok := p.rules[r]
		if !ok {
			continue
		}
		if v.all {
			return r, true
		}
		if !found {
			first, found = r, true
		}
	}
	return first, found
}

var defaultRules = map[permission.Role][]string{
	permission.RoleAdmin:    {Wildcard},
	permission.RolePlatform: {Wildcard},
	permission.RoleAuditor:  {Wildcard},
	permission.RoleManager: {
		"order_id", "customer_name", "item_list", "total_amount", "tax_amount",
		"shipping_cost", "discount", "timestamp", "data_source", "status", "sensitivity_score",
	},
	permission.RoleAnalyst: {
		"order_id", "item_list", "total_amount", "tax_amount",
		"shipping_cost", "discount", "timestamp", "data_source", "sensitivity_score",
	},
	permission.RoleViewer: {
		"order_id", "item_list", "timestamp", "data_source",
	},
	permission.RoleFinance: {
		"order_id", "total_amount", "tax_amount", "shipping_cost",
		"discount", "timestamp", "data_source", "payment_info",
	},
	permission.RoleSeller: {
		"order_id", "item_list", "total_amount", "timestamp", "status",
	},
	permission.RolePaymentProvider: {
		"order_id", "total_amount", "payment_info", "timestamp",
	},
	permission.RoleLogistics: {
		"order_id", "customer_name", "phone", "shipping_address", "status",
	},
}

// DefaultPolicy returns the order-record visibility used by the console.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(defaultRules)
	if err != nil {
		panic(err)
	}
	return p
}
