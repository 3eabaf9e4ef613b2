package permission

import (
	"encoding/json"
	"sort"
	"strings"
)

// Set is an immutable set of permission tags such as "user:read".
// The zero value is an empty set and is ready to use.
type Set struct {
	tags map[string]struct{}
}

// NewSet builds a Set from tags. Surrounding whitespace is trimmed, blank
// tags are dropped and duplicates collapse.
func NewSet(tags ...string) Set {
	if len(tags) == 0 {
		return Set{}
	}
	m := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		m[tag] = struct{}{}
	}
	return Set{tags: m}
}

// Has reports whether tag is in the set.
func (s Set) Has(tag string) bool {
	_, ok := s.tags[tag]
	return ok
}

// HasAny reports whether at least one of tags is in the set. An empty
// argument list never matches.
func (s Set) HasAny(tags ...string) bool {
	for _, tag := range tags {
		if s.Has(tag) {
			return true
		}
	}
	return false
}

// Len returns the number of tags.
func (s Set) Len() int {
	return len(s.tags)
}

// Sorted returns the tags in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s.tags))
	for tag := range s.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted JSON array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a JSON array of tags.
func (s *Set) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*s = NewSet(tags...)
	return nil
}
