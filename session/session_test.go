package session

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/MrEthical07/portalAuth/permission"
)

func testActive(tb testing.TB) *Active {
	tb.Helper()
	user := User{
		ID:       "42",
		Username: "alice",
		Role:     permission.RoleSeller,
		Roles:    []RoleRecord{{ID: "7", Name: permission.RoleLogistics}},
	}
	a, err := NewActive("access-1", "refresh-1", user, permission.NewSet("order:read", "order:list"), []RoleRecord{{ID: "9", Name: permission.RoleAuditor}})
	if err != nil {
		tb.Fatalf("new active: %v", err)
	}
	return a
}

func TestAuthenticatedRequiresTokenAndUser(t *testing.T) {
	valid := User{ID: "1", Username: "bob", Role: permission.RoleAdmin}

	if _, err := NewActive("", "", valid, permission.Set{}, nil); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	for _, u := range []User{
		{Username: "bob", Role: permission.RoleAdmin},
		{ID: "1", Role: permission.RoleAdmin},
		{ID: "1", Username: "bob"},
	} {
		if _, err := NewActive("tok", "", u, permission.Set{}, nil); !errors.Is(err, ErrInvalidUser) {
			t.Fatalf("expected ErrInvalidUser for %+v, got %v", u, err)
		}
	}

	a, err := NewActive("tok", "", valid, permission.Set{}, nil)
	if err != nil {
		t.Fatalf("new active: %v", err)
	}
	if !a.IsAuthenticated() {
		t.Fatal("expected authenticated")
	}

	var anon State = Anonymous{}
	if anon.IsAuthenticated() {
		t.Fatal("anonymous must not be authenticated")
	}
	var nilActive *Active
	if nilActive.IsAuthenticated() || nilActive.HasPermission("x:y") || nilActive.IsAdmin() {
		t.Fatal("nil active must behave as unauthenticated")
	}
}

func TestPredicates(t *testing.T) {
	a := testActive(t)

	for _, r := range []permission.Role{permission.RoleSeller, permission.RoleLogistics, permission.RoleAuditor} {
		if !a.HasRole(r) {
			t.Fatalf("expected role %v", r)
		}
	}
	if a.HasRole(permission.RoleAdmin) || a.IsAdmin() {
		t.Fatal("seller must not be admin")
	}
	if !a.HasAnyRole(permission.RoleAdmin, permission.RoleSeller) {
		t.Fatal("expected any-role match")
	}
	if !a.HasPermission("order:read") || a.HasPermission("user:read") {
		t.Fatal("unexpected permission result")
	}
	if !a.HasAnyPermission("user:read", "order:list") {
		t.Fatal("expected any-permission match")
	}

	super, err := a.WithUser(User{ID: "1", Username: "root", Role: permission.RoleViewer, IsSuperuser: true})
	if err != nil {
		t.Fatalf("with user: %v", err)
	}
	if !super.IsAdmin() {
		t.Fatal("superuser must be admin")
	}

	anon := Anonymous{}
	if anon.HasRole(permission.RoleAdmin) || anon.HasPermission("order:read") || anon.IsAdmin() {
		t.Fatal("anonymous predicates must be false")
	}
	if _, ok := anon.Active(); ok {
		t.Fatal("anonymous has no active variant")
	}
}

func TestWithTokenKeepsEverythingElse(t *testing.T) {
	a := testActive(t)

	next, err := a.WithToken("access-2", "")
	if err != nil {
		t.Fatalf("with token: %v", err)
	}
	if next.Token() != "access-2" || next.RefreshToken() != "refresh-1" {
		t.Fatalf("unexpected tokens %q %q", next.Token(), next.RefreshToken())
	}
	if next.User().Username != "alice" || !next.HasPermission("order:list") {
		t.Fatal("refresh must keep user and permissions")
	}
	if a.Token() != "access-1" {
		t.Fatal("original session must not change")
	}
	if _, err := a.WithToken(" ", "x"); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestUserJSONAcceptsNumericIDAndRoleFallback(t *testing.T) {
	var u User
	if err := json.Unmarshal([]byte(`{"id":17,"username":"carol","roles":[{"id":3,"name":"finance"}],"is_superuser":false}`), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.ID != "17" || u.Role != permission.RoleFinance || u.Roles[0].ID != "3" {
		t.Fatalf("unexpected user %+v", u)
	}

	if err := json.Unmarshal([]byte(`{"id":"u1","username":"dave","role":"wizard"}`), &u); !errors.Is(err, permission.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestEncodeDecodeRestoresSession(t *testing.T) {
	a := testActive(t)
	b, err := Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if b.Set[KeyVersion] != CurrentSchemaVersion {
		t.Fatalf("expected schema version %q", CurrentSchemaVersion)
	}

	got, err := Decode(b.Set)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Token() != a.Token() || got.RefreshToken() != a.RefreshToken() {
		t.Fatal("tokens differ after restore")
	}
	if !got.HasRole(permission.RoleAuditor) || !got.HasRole(permission.RoleLogistics) {
		t.Fatal("roles lost after restore")
	}
	if got.Permissions().Len() != 2 {
		t.Fatalf("expected 2 permissions, got %d", got.Permissions().Len())
	}
}

func TestEncodeWithoutRefreshTokenDeletesStaleKey(t *testing.T) {
	a, err := NewActive("tok", "", User{ID: "1", Username: "x", Role: permission.RoleViewer}, permission.Set{}, nil)
	if err != nil {
		t.Fatalf("new active: %v", err)
	}
	b, err := Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, ok := b.Set[KeyRefreshToken]; ok {
		t.Fatal("refresh token must not be written when empty")
	}
	if len(b.Delete) != 1 || b.Delete[0] != KeyRefreshToken {
		t.Fatalf("expected refresh key deletion, got %v", b.Delete)
	}
}

func TestDecodeRejectsUnusableData(t *testing.T) {
	validUser := `{"id":1,"username":"a","role":"admin"}`

	if _, err := Decode(nil); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	cases := map[string]map[string]string{
		"token only":       {KeyAccessToken: "t"},
		"user only":        {KeyUser: validUser},
		"invalid user":     {KeyAccessToken: "t", KeyUser: "{not json"},
		"unknown role":     {KeyAccessToken: "t", KeyUser: `{"id":1,"username":"a","role":"root"}`},
		"bad permissions":  {KeyAccessToken: "t", KeyUser: validUser, KeyPermissions: "{"},
		"bad roles":        {KeyAccessToken: "t", KeyUser: validUser, KeyRoles: `[{"name":"ghost"}]`},
		"future version":   {KeyAccessToken: "t", KeyUser: validUser, KeyVersion: "9"},
		"missing username": {KeyAccessToken: "t", KeyUser: `{"id":1,"role":"admin"}`},
	}
	for name, values := range cases {
		if _, err := Decode(values); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}

	legacy, err := Decode(map[string]string{KeyAccessToken: "t", KeyUser: validUser})
	if err != nil {
		t.Fatalf("unversioned token+user must restore: %v", err)
	}
	if legacy.Permissions().Len() != 0 {
		t.Fatal("legacy record has no permissions")
	}
}
