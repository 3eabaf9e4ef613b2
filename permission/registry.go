package permission

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrCatalogFrozen is returned by Register after Freeze.
	ErrCatalogFrozen = errors.New("permission catalog frozen")
	// ErrUnknownPermission is returned by Check for tags never registered.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrInvalidPermission is returned for tags that are not "resource:action".
	ErrInvalidPermission = errors.New("invalid permission tag")
)

// Catalog is the registry of permission tags the console knows about.
// Route tables are checked against it so that a misspelled tag is caught
// when the table loads.
//
//	Docs: docs/permission.md
type Catalog struct {
	mu     sync.RWMutex
	tags   map[string]struct{}
	frozen bool
}

// NewCatalog creates a Catalog and registers tags.
func NewCatalog(tags ...string) (*Catalog, error) {
	c := &Catalog{tags: make(map[string]struct{}, len(tags))}
	for _, tag := range tags {
		if err := c.Register(tag); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a tag. Tags take the form "resource:action" and must be
// registered before [Catalog.Freeze]. Registering an existing tag is a no-op.
func (c *Catalog) Register(tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrCatalogFrozen
	}
	if err := validateTag(tag); err != nil {
		return err
	}
	c.tags[tag] = struct{}{}
	return nil
}

// Known reports whether tag was registered.
func (c *Catalog) Known(tag string) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tags[tag]
	return ok
}

// Check returns an error naming the first tag that is not registered.
// A nil Catalog accepts everything.
func (c *Catalog) Check(tags ...string) error {
	if c == nil {
		return nil
	}
	for _, tag := range tags {
		if !c.Known(tag) {
			return fmt.Errorf("%w: %q", ErrUnknownPermission, tag)
		}
	}
	return nil
}

// Freeze prevents further registrations.
func (c *Catalog) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

// Count returns the number of registered tags.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tags)
}

// Tags returns the registered tags in lexical order.
func (c *Catalog) Tags() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tags))
	for tag := range c.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func validateTag(tag string) error {
	resource, action, ok := strings.Cut(tag, ":")
	if !ok || resource == "" || action == "" || strings.TrimSpace(tag) != tag || strings.Contains(action, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidPermission, tag)
	}
	return nil
}

// DefaultCatalog returns a frozen catalog with the console's permission
// tags, grouped by resource.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		"user:read", "user:create", "user:update", "user:delete",
		"role:read", "role:create", "role:update", "role:delete", "role:permission",
		"field:read", "field:create", "field:update", "field:delete", "field:config",
		"order:read", "order:list", "order:create", "order:update", "order:encrypt", "order:decrypt",
		"shard:read", "shard:manage", "shard:reconstruct",
		"log:read", "log:audit",
		"dashboard:read",
	)
	if err != nil {
		panic(err)
	}
	c.Freeze()
	return c
}
