package authtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/portalAuth/jwt"
	"github.com/MrEthical07/portalAuth/session"
)

// Account is one user the fake API can log in.
type Account struct {
	Password    string
	User        session.User
	Permissions []string
	Roles       []session.RoleRecord
}

// Server is an in-process stand-in for the primary API. It issues HS256
// tokens, rotates refresh tokens and answers in the {"code","success",
// "message","data"} envelope.
type Server struct {
	*httptest.Server

	tokens *jwt.Manager

	mu          sync.Mutex
	accounts    map[string]Account
	revoked     map[string]struct{}
	calls       map[string]int
	failRefresh bool
	records     []map[string]any
}

// New starts a Server closed at test cleanup. Tokens live for accessTTL.
func New(tb testing.TB, accessTTL time.Duration) *Server {
	tb.Helper()
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     accessTTL,
		RefreshTTL:    time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("authtest-signing-key-0123456789abcdef"),
		Issuer:        "dvss-authtest",
	})
	if err != nil {
		tb.Fatalf("authtest: token manager: %v", err)
	}

	s := &Server{
		tokens:   tokens,
		accounts: map[string]Account{},
		revoked:  map[string]struct{}{},
		calls:    map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/logout", s.logout)
	mux.HandleFunc("POST /api/auth/refresh", s.refresh)
	mux.HandleFunc("GET /api/auth/profile", s.profile)
	mux.HandleFunc("GET /api/orders", s.orders)
	mux.HandleFunc("GET /fabric-api/status", s.ledgerStatus)

	s.Server = httptest.NewServer(mux)
	tb.Cleanup(s.Close)
	return s
}

// PrimaryURL is the base URL of the primary API.
func (s *Server) PrimaryURL() string { return s.URL + "/api" }

// LedgerURL is the base URL of the ledger API.
func (s *Server) LedgerURL() string { return s.URL + "/fabric-api" }

// AddAccount registers an account under username.
func (s *Server) AddAccount(username string, acct Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = acct
}

// SetRecords sets the rows GET /api/orders returns.
func (s *Server) SetRecords(records []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

// FailRefresh makes subsequent refreshes answer 401.
func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// Revoke makes token unusable.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = struct{}{}
}

// Calls returns how often the handler for route ran, e.g. "logout".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) count(route string) {
	s.mu.Lock()
	s.calls[route]++
	s.mu.Unlock()
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.count("login")
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || acct.Password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	access, refresh, err := s.issuePair(acct.User)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, false, "issue failed", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, true, "ok", map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"user_info":     acct.User,
		"permissions":   acct.Permissions,
		"roles":         acct.Roles,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.count("logout")
	token, _, ok := s.authorize(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	s.Revoke(token)
	writeEnvelope(w, http.StatusOK, true, "ok", nil)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	s.count("refresh")
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	fail := s.failRefresh
	_, revoked := s.revoked[req.RefreshToken]
	s.mu.Unlock()
	if fail || revoked {
		writeDetail(w, http.StatusUnauthorized, "refresh rejected")
		return
	}
	claims, err := s.tokens.Verify(req.RefreshToken, jwt.TypeRefresh)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "refresh rejected")
		return
	}
	acct, ok := s.account(claims.Username)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "unknown user")
		return
	}

	s.Revoke(req.RefreshToken)
	access, refresh, err := s.issuePair(acct.User)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, false, "issue failed", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, true, "ok", map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	s.count("profile")
	_, acct, ok := s.authorize(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeEnvelope(w, http.StatusOK, true, "ok", acct.User)
}

func (s *Server) orders(w http.ResponseWriter, r *http.Request) {
	s.count("orders")
	if _, _, ok := s.authorize(r); !ok {
		writeDetail(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	s.mu.Lock()
	records := s.records
	s.mu.Unlock()
	writeEnvelope(w, http.StatusOK, true, "ok", records)
}

func (s *Server) ledgerStatus(w http.ResponseWriter, r *http.Request) {
	s.count("ledger")
	if _, _, ok := s.authorize(r); !ok {
		writeDetail(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeEnvelope(w, http.StatusOK, true, "ok", map[string]any{"channel": "dvss", "height": 42})
}

func (s *Server) authorize(r *http.Request) (string, Account, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return "", Account{}, false
	}
	s.mu.Lock()
	_, revoked := s.revoked[token]
	s.mu.Unlock()
	if revoked {
		return "", Account{}, false
	}
	claims, err := s.tokens.Verify(token, jwt.TypeAccess)
	if err != nil {
		return "", Account{}, false
	}
	acct, ok := s.account(claims.Username)
	return token, acct, ok
}

func (s *Server) account(username string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[username]
	return acct, ok
}

func (s *Server) issuePair(user session.User) (string, string, error) {
	access, err := s.tokens.Issue(string(user.ID), user.Username, jwt.TypeAccess)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.tokens.Issue(string(user.ID), user.Username, jwt.TypeRefresh)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    status,
		"success": success,
		"message": message,
		"data":    data,
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
