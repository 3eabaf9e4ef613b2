package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"net/url"
	"testing"
	"time"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/MrEthical07/portalAuth/authclient"
	"github.com/MrEthical07/portalAuth/fields"
	"github.com/MrEthical07/portalAuth/guard"
	"github.com/MrEthical07/portalAuth/internal/authtest"
	"github.com/MrEthical07/portalAuth/permission"
	"github.com/MrEthical07/portalAuth/session"
)

func newManager(t *testing.T) (*portalAuth.Manager, *authtest.Server) {
	t.Helper()
	api := authtest.New(t, time.Minute)
	api.AddAccount("seller1", authtest.Account{
		Password: "pw",
		User:     session.User{ID: "9", Username: "seller1", Role: permission.RoleSeller},
	})
	api.AddAccount("admin", authtest.Account{
		Password:    "pw",
		User:        session.User{ID: "1", Username: "admin", Role: permission.RoleAdmin},
		Permissions: []string{"user:read", "log:read"},
	})

	client, err := authclient.New(api.PrimaryURL())
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	cfg := portalAuth.DefaultConfig()
	cfg.Storage.Backend = portalAuth.StorageMemory
	m, err := portalAuth.New().WithConfig(cfg).WithAuthenticator(authclient.NewAuth(client)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, api
}

func login(t *testing.T, m *portalAuth.Manager, username string) {
	t.Helper()
	if _, err := m.Login(context.Background(), portalAuth.Credentials{Username: username, Password: "pw"}); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
}

func TestNavigationRedirects(t *testing.T) {
	m, _ := newManager(t)
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out, ok := OutcomeFromContext(r.Context())
		if !ok {
			t.Error("expected outcome on context")
		}
		if _, ok := portalAuth.StateFromContext(r.Context()); !ok {
			t.Error("expected state on context")
		}
		_, _ = io.WriteString(w, out.Title())
	})
	h := Navigation(m, guard.DefaultTable())(page)

	serve := func(target string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		return rr
	}

	rr := serve("/admin/user/list?page=2")
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/login?redirect=%2Fadmin%2Fuser%2Flist%3Fpage%3D2" {
		t.Fatalf("unexpected anonymous answer %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = serve("/")
	if rr.Code != http.StatusOK || rr.Body.String() != "Home - DVSS-PPA" {
		t.Fatalf("unexpected public answer %d %q", rr.Code, rr.Body.String())
	}

	login(t, m, "seller1")
	if rr = serve("/admin/dashboard"); rr.Header().Get("Location") != "/403" {
		t.Fatalf("expected forbidden redirect, got %q", rr.Header().Get("Location"))
	}
	if rr = serve("/login"); rr.Header().Get("Location") != "/admin/dashboard" {
		t.Fatalf("expected dashboard redirect, got %q", rr.Header().Get("Location"))
	}
	if rr = serve("/nowhere"); rr.Header().Get("Location") != "/404" {
		t.Fatalf("expected not-found redirect, got %q", rr.Header().Get("Location"))
	}

	m.Logout(context.Background())
	login(t, m, "admin")
	if rr = serve("/admin"); rr.Header().Get("Location") != "/admin/dashboard" {
		t.Fatalf("expected declared redirect, got %q", rr.Header().Get("Location"))
	}
	if rr = serve("/admin/dashboard"); rr.Code != http.StatusOK {
		t.Fatalf("expected admin to reach the dashboard, got %d", rr.Code)
	}

	counters := m.MetricsSnapshot().Counters
	if counters[portalAuth.MetricNavigationForbidden] != 1 || counters[portalAuth.MetricNavigationRedirectLogin] != 1 {
		t.Fatalf("unexpected navigation counters %v", counters)
	}
}

func TestRequireSession(t *testing.T) {
	m, _ := newManager(t)
	h := RequireSession(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body["detail"] == "" {
		t.Fatalf("expected detail body, got %q", rr.Body.String())
	}

	login(t, m, "seller1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", rr.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = portalAuth.RequestIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(rr, req)
	if seen != "req-42" || rr.Header().Get("X-Request-ID") != "req-42" {
		t.Fatalf("inbound id not kept: %q", seen)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rr.Header().Get("X-Request-ID") != seen {
		t.Fatal("expected a generated id")
	}
}

func TestProxyProjectsAndClearsOnRejection(t *testing.T) {
	m, api := newManager(t)
	login(t, m, "seller1")
	api.SetRecords([]map[string]any{{
		"order_id":      "A1",
		"customer_name": "Bob",
		"phone":         "555",
		"status":        "paid",
	}})

	upstream, _ := url.Parse(api.URL)
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.Transport = &BearerTransport{Manager: m}
	h := RequireSession(m)(ProjectFields(fields.DefaultPolicy())(proxy))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	var env struct {
		Success bool             `json:"success"`
		Data    []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || len(env.Data) != 1 {
		t.Fatalf("unexpected envelope %s", rr.Body.String())
	}
	if _, ok := env.Data[0]["phone"]; ok {
		t.Fatal("seller must not see phone")
	}
	if env.Data[0]["order_id"] != "A1" || env.Data[0]["status"] != "paid" {
		t.Fatalf("unexpected projection %v", env.Data[0])
	}

	active, _ := m.Snapshot().Active()
	api.Revoke(active.Token())
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected upstream 401 to pass through, got %d", rr.Code)
	}
	if m.IsAuthenticated() {
		t.Fatal("expected the rejected session to be cleared")
	}
}

func TestProjectFieldsWithoutSession(t *testing.T) {
	h := ProjectFields(fields.DefaultPolicy())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = io.WriteString(w, `{"order_id":"A1","phone":"555"}`)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Body.String() != "{}" {
		t.Fatalf("anonymous projection must be empty, got %s", rr.Body.String())
	}
}

func TestProjectFieldsPassesNonJSON(t *testing.T) {
	h := ProjectFields(fields.DefaultPolicy())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "phone=555")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusAccepted || rr.Body.String() != "phone=555" {
		t.Fatalf("unexpected answer %d %q", rr.Code, rr.Body.String())
	}
}

func TestProjectFieldsShapes(t *testing.T) {
	m, _ := newManager(t)

	tests := []struct {
		name string
		user string
		body string
		want string
	}{
		{
			name: "paged envelope",
			user: "seller1",
			body: `{"success":true,"data":{"items":[{"order_id":"A1","phone":"555","status":"paid"}],"total":1,"page":1}}`,
			want: `{"data":{"items":[{"order_id":"A1","status":"paid"}],"page":1,"total":1},"success":true}`,
		},
		{
			name: "bare page",
			user: "seller1",
			body: `{"items":[{"order_id":"A1","phone":"555"}],"total":1}`,
			want: `{"items":[{"order_id":"A1"}],"total":1}`,
		},
		{
			name: "array data",
			user: "seller1",
			body: `{"success":true,"data":[{"order_id":"A1","phone":"555"}]}`,
			want: `{"data":[{"order_id":"A1"}],"success":true}`,
		},
		{
			name: "scalar data",
			user: "seller1",
			body: `{"success":true,"data":3}`,
			want: `{"data":3,"success":true}`,
		},
		{
			name: "wildcard over scalar array",
			user: "admin",
			body: `{"success":true,"data":["a","b"]}`,
			want: `{"data":["a","b"],"success":true}`,
		},
		{
			name: "wildcard over mixed page",
			user: "admin",
			body: `{"success":true,"data":{"items":[{"phone":"555"},2],"total":2}}`,
			want: `{"data":{"items":[{"phone":"555"},2],"total":2},"success":true}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.Logout(context.Background())
			login(t, m, tt.user)
			h := ProjectFields(fields.DefaultPolicy())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, tt.body)
			}))

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			req = req.WithContext(portalAuth.WithState(req.Context(), m.Snapshot()))
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusOK {
				t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
			}
			if rr.Body.String() != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, rr.Body.String())
			}
		})
	}
}

func TestProjectFieldsRejectsNonRecordForScopedRole(t *testing.T) {
	m, _ := newManager(t)
	login(t, m, "seller1")
	h := ProjectFields(fields.DefaultPolicy())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `["a","b"]`)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req = req.WithContext(portalAuth.WithState(req.Context(), m.Snapshot()))
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}
