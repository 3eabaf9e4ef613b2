package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/MrEthical07/portalAuth/internal/authtest"
	"github.com/MrEthical07/portalAuth/permission"
	"github.com/MrEthical07/portalAuth/session"
)

func writeConfig(t *testing.T, api *authtest.Server) string {
	t.Helper()
	dir := t.TempDir()
	doc := "storage:\n" +
		"  backend: file\n" +
		"  path: " + filepath.Join(dir, "dvss", "default.json") + "\n" +
		"endpoints:\n" +
		"  primaryBaseURL: " + api.PrimaryURL() + "\n" +
		"  ledgerBaseURL: " + api.LedgerURL() + "\n" +
		"  requestsPerSecond: 0\n"
	path := filepath.Join(dir, "dvssctl.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newAPI(t *testing.T) *authtest.Server {
	t.Helper()
	api := authtest.New(t, time.Minute)
	api.AddAccount("mia", authtest.Account{
		Password:    "pw",
		User:        session.User{ID: "7", Username: "mia", Role: permission.RoleManager},
		Permissions: []string{"order:read", "order:list"},
	})
	return api
}

func TestLoginWhoamiLogout(t *testing.T) {
	api := newAPI(t)
	cfg := writeConfig(t, api)

	if _, err := run(t, "wrong\n", "-c", cfg, "login", "-u", "mia", "--password-stdin"); err == nil || !strings.Contains(err.Error(), "Incorrect username or password") {
		t.Fatalf("expected credential error, got %v", err)
	}

	out, err := run(t, "pw\n", "-c", cfg, "login", "-u", "mia", "--password-stdin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Signed in as mia (manager)") {
		t.Fatalf("unexpected login output %q", out)
	}

	out, err = run(t, "", "-c", cfg, "--json", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	var who portalAuth.Whoami
	if err := json.Unmarshal([]byte(out), &who); err != nil {
		t.Fatalf("decode whoami: %v\n%s", err, out)
	}
	if !who.Authenticated || who.Username != "mia" || len(who.Permissions) != 2 {
		t.Fatalf("unexpected whoami %+v", who)
	}

	if _, err := run(t, "", "-c", cfg, "refresh"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if _, err := run(t, "", "-c", cfg, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	out, _ = run(t, "", "-c", cfg, "whoami")
	if !strings.Contains(out, "Not signed in") {
		t.Fatalf("expected signed-out whoami, got %q", out)
	}
	if api.Calls("logout") != 1 {
		t.Fatalf("expected one logout call, got %d", api.Calls("logout"))
	}
}

func TestCheckCommand(t *testing.T) {
	api := newAPI(t)
	cfg := writeConfig(t, api)

	out, err := run(t, "", "-c", cfg, "--json", "check", "/", "/admin/order/list")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	var results []checkResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if results[0].Action != "allow" || results[1].Action != "redirect_login" {
		t.Fatalf("unexpected anonymous results %+v", results)
	}

	if _, err := run(t, "pw\n", "-c", cfg, "login", "-u", "mia", "--password-stdin"); err != nil {
		t.Fatalf("login: %v", err)
	}
	out, _ = run(t, "", "-c", cfg, "--json", "check", "/admin/order/list", "/admin/user/list")
	results = nil
	_ = json.Unmarshal([]byte(out), &results)
	if results[0].Action != "allow" || results[1].Action != "redirect_forbidden" || results[1].Redirect != "/403" {
		t.Fatalf("unexpected signed-in results %+v", results)
	}
}

func TestFilterCommand(t *testing.T) {
	api := newAPI(t)
	cfg := writeConfig(t, api)

	out, err := run(t, `[{"order_id":"A1","phone":"555","payment_info":"visa"}]`, "-c", cfg, "filter", "--role", "payment_provider")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if strings.TrimSpace(out) != `[{"order_id":"A1","payment_info":"visa"}]` {
		t.Fatalf("unexpected projection %q", out)
	}

	out, err = run(t, `{"order_id":"A1"}`, "-c", cfg, "filter")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if strings.TrimSpace(out) != "{}" {
		t.Fatalf("signed-out projection must be empty, got %q", out)
	}

	if _, err := run(t, "{}", "-c", cfg, "filter", "--role", "janitor"); err == nil {
		t.Fatal("expected unknown role to fail")
	}
}

func TestServeRouter(t *testing.T) {
	api := newAPI(t)
	api.SetRecords([]map[string]any{{"order_id": "A1", "customer_name": "Bob", "payment_info": "visa"}})
	cfg := writeConfig(t, api)
	if _, err := run(t, "pw\n", "-c", cfg, "login", "-u", "mia", "--password-stdin"); err != nil {
		t.Fatalf("login: %v", err)
	}

	cmd := newRootCmd()
	cmd.SetArgs([]string{"-c", cfg})
	_ = cmd.ParseFlags([]string{"-c", cfg})
	opts := &rootOptions{configPath: cfg}
	a, err := opts.open(cmd)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.manager.Close()
	h, err := a.router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, err := client.Get(srv.URL + "/admin/user/list")
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/403" {
		t.Fatalf("expected forbidden redirect, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = client.Get(srv.URL + "/api/orders")
	if err != nil {
		t.Fatalf("api: %v", err)
	}
	defer resp.Body.Close()
	var env struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Data) != 1 || env.Data[0]["order_id"] != "A1" {
		t.Fatalf("unexpected data %v", env.Data)
	}
	if _, ok := env.Data[0]["payment_info"]; ok {
		t.Fatal("manager must not see payment_info")
	}

	for _, tt := range []struct {
		path string
		key  string
		want any
	}{
		{path: "/api/auth/profile", key: "username", want: "mia"},
		{path: "/fabric-api/status", key: "channel", want: "dvss"},
	} {
		resp, err := client.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatalf("%s: %v", tt.path, err)
		}
		var env struct {
			Data map[string]any `json:"data"`
		}
		err = json.NewDecoder(resp.Body).Decode(&env)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("%s: decode: %v", tt.path, err)
		}
		if env.Data[tt.key] != tt.want {
			t.Fatalf("%s must not be projected, got %v", tt.path, env.Data)
		}
	}

	resp, err = client.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", resp.StatusCode)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil || !strings.HasPrefix(out, "dvssctl dev") {
		t.Fatalf("unexpected version output %q %v", out, err)
	}
}
