package fields

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/portalAuth/permission"
)

// Record is a single decoded row.
type Record = map[string]any

// Filter returns the projection of rec visible to role. With the wildcard
// the input is returned unchanged; an unknown role yields an empty record.
func (p *Policy) Filter(rec Record, role permission.Role) Record {
	if rec == nil {
		return nil
	}
	if p.AllowsAll(role) {
		return rec
	}
	out := Record{}
	if p == nil {
		return out
	}
	for _, name := range p.rules[role].fields {
		if v, ok := rec[name]; ok {
			out[name] = v
		}
	}
	return out
}

// FilterAll applies [Policy.Filter] to each record, preserving order.
func (p *Policy) FilterAll(recs []Record, role permission.Role) []Record {
	if recs == nil {
		return nil
	}
	if p.AllowsAll(role) {
		return recs
	}
	out := make([]Record, len(recs))
	for i, rec := range recs {
		out[i] = p.Filter(rec, role)
	}
	return out
}

// FilterJSON projects a JSON object or array of objects. Kept keys appear
// in the order of the input document. A wildcard role gets any valid JSON
// document back unchanged; for other roles a document or array element
// that is not an object is [ErrNotRecord].
func (p *Policy) FilterJSON(doc []byte, role permission.Role) ([]byte, error) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 {
		return nil, ErrNotRecord
	}
	if p.AllowsAll(role) {
		if !json.Valid(trimmed) {
			return nil, ErrNotRecord
		}
		return trimmed, nil
	}
	switch trimmed[0] {
	case '{':
		return p.filterObject(trimmed, role)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotRecord, err)
		}
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			out, err := p.filterObject(bytes.TrimSpace(item), role)
			if err != nil {
				return nil, err
			}
			buf.Write(out)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return nil, ErrNotRecord
	}
}

func (p *Policy) filterObject(obj []byte, role permission.Role) ([]byte, error) {
	if len(obj) == 0 || obj[0] != '{' {
		return nil, ErrNotRecord
	}

	dec := json.NewDecoder(bytes.NewReader(obj))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRecord, err)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotRecord, err)
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotRecord, err)
		}
		if !p.Allows(role, key) {
			continue
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
		n++
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRecord, err)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
