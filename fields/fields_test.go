package fields

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/MrEthical07/portalAuth/permission"
)

func logisticsPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy(map[permission.Role][]string{
		permission.RoleLogistics: {"order_id", "customer_name"},
		permission.RoleAdmin:     {Wildcard},
	})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	return p
}

func TestFilterRecord(t *testing.T) {
	p := logisticsPolicy(t)
	rec := Record{"order_id": 1, "customer_name": "A", "salary": 9999}

	got := p.Filter(rec, permission.RoleLogistics)
	want := Record{"order_id": 1, "customer_name": "A"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Filter = %v, want %v", got, want)
	}
	if len(rec) != 3 {
		t.Fatal("input record must not be modified")
	}

	if got := p.Filter(rec, permission.RoleAdmin); !reflect.DeepEqual(got, rec) {
		t.Fatalf("wildcard must return input unchanged, got %v", got)
	}
	if got := p.Filter(rec, permission.RoleSeller); len(got) != 0 {
		t.Fatalf("unknown role must see nothing, got %v", got)
	}
	if got := p.Filter(nil, permission.RoleLogistics); got != nil {
		t.Fatalf("nil record must stay nil, got %v", got)
	}
}

func TestFilterAllPreservesOrder(t *testing.T) {
	p := logisticsPolicy(t)
	recs := []Record{
		{"order_id": 3, "phone": "x"},
		{"order_id": 1, "customer_name": "B"},
		{"order_id": 2},
	}
	got := p.FilterAll(recs, permission.RoleLogistics)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, id := range []int{3, 1, 2} {
		if got[i]["order_id"] != id {
			t.Fatalf("record %d: order_id = %v, want %d", i, got[i]["order_id"], id)
		}
	}
	if _, ok := got[0]["phone"]; ok {
		t.Fatal("phone must be filtered")
	}
}

func TestFilterJSON(t *testing.T) {
	p := logisticsPolicy(t)

	out, err := p.FilterJSON([]byte(`{"salary":9999,"customer_name":"A","order_id":1}`), permission.RoleLogistics)
	if err != nil {
		t.Fatalf("filter object: %v", err)
	}
	if string(out) != `{"customer_name":"A","order_id":1}` {
		t.Fatalf("unexpected object %s", out)
	}

	out, err = p.FilterJSON([]byte(` [{"order_id":1,"x":{"nested":[1,2]}},{"customer_name":"B"}] `), permission.RoleLogistics)
	if err != nil {
		t.Fatalf("filter array: %v", err)
	}
	if string(out) != `[{"order_id":1},{"customer_name":"B"}]` {
		t.Fatalf("unexpected array %s", out)
	}

	out, err = p.FilterJSON([]byte(`{"a":1}`), permission.RoleViewer)
	if err != nil {
		t.Fatalf("unknown role: %v", err)
	}
	if string(out) != `{}` {
		t.Fatalf("unknown role must see empty record, got %s", out)
	}

	for _, bad := range []string{``, `42`, `"x"`, `[1]`, `{"a":`} {
		if _, err := p.FilterJSON([]byte(bad), permission.RoleLogistics); !errors.Is(err, ErrNotRecord) {
			t.Fatalf("%q: expected ErrNotRecord, got %v", bad, err)
		}
	}
}

func TestFilterJSONWildcardPassesAnyDocument(t *testing.T) {
	p := logisticsPolicy(t)

	tests := []struct {
		name string
		doc  string
	}{
		{name: "scalar array", doc: `["a","b"]`},
		{name: "mixed array", doc: `[{"order_id":1},2]`},
		{name: "string", doc: `"ok"`},
		{name: "number", doc: `42`},
		{name: "null", doc: `null`},
		{name: "object", doc: `{"salary":9999,"order_id":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.FilterJSON([]byte(" "+tt.doc+"\n"), permission.RoleAdmin)
			if err != nil {
				t.Fatalf("FilterJSON: %v", err)
			}
			if string(out) != tt.doc {
				t.Fatalf("expected %s unchanged, got %s", tt.doc, out)
			}
		})
	}

	if _, err := p.FilterJSON([]byte(`[1,`), permission.RoleAdmin); !errors.Is(err, ErrNotRecord) {
		t.Fatalf("malformed document must still fail, got %v", err)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	for _, r := range []permission.Role{permission.RoleAdmin, permission.RolePlatform, permission.RoleAuditor} {
		if !p.AllowsAll(r) {
			t.Fatalf("%s must see all fields", r)
		}
	}
	if p.Allows(permission.RoleAnalyst, "customer_name") {
		t.Fatal("analyst must not see customer_name")
	}
	if !p.Allows(permission.RoleFinance, "payment_info") {
		t.Fatal("finance must see payment_info")
	}
	fields, all := p.Fields(permission.RoleViewer)
	if all || !reflect.DeepEqual(fields, []string{"order_id", "item_list", "timestamp", "data_source"}) {
		t.Fatalf("unexpected viewer fields %v", fields)
	}

	role, ok := p.Role(permission.RoleViewer, permission.RoleAuditor)
	if !ok || role != permission.RoleAuditor {
		t.Fatalf("expected wildcard role to be preferred, got %v", role)
	}
}

func TestLoadPolicy(t *testing.T) {
	doc := "logistics: [order_id, customer_name, order_id, '']\nadmin: ['*']\n"
	p, err := LoadPolicy(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	fields, _ := p.Fields(permission.RoleLogistics)
	if !reflect.DeepEqual(fields, []string{"order_id", "customer_name"}) {
		t.Fatalf("unexpected fields %v", fields)
	}
	if !p.AllowsAll(permission.RoleAdmin) {
		t.Fatal("admin must hold wildcard")
	}

	if _, err := LoadPolicy(strings.NewReader("janitor: [a]\n")); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}
