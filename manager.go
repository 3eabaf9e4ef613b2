package portalAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/portalAuth/guard"
	"github.com/MrEthical07/portalAuth/internal/audit"
	"github.com/MrEthical07/portalAuth/internal/limiters"
	"github.com/MrEthical07/portalAuth/jwt"
	"github.com/MrEthical07/portalAuth/permission"
	"github.com/MrEthical07/portalAuth/session"
	"github.com/go-logr/logr"
)

var (
	// ErrNoSession is the cause attached to AuthErrors raised without a session.
	ErrNoSession = errors.New("no active session")
	// ErrSessionChanged is returned when the session was replaced or cleared
	// while a call was in flight; the call's result is discarded.
	ErrSessionChanged = errors.New("session changed during call")
)

// Manager owns the console session: the only place it is created, replaced
// or cleared. Readers take immutable snapshots; every mutation writes the
// persisted copy in one atomic batch before the in-memory swap.
//
// Manager is safe for concurrent use.
//
//	Docs: docs/manager.md
type Manager struct {
	config       Config
	auth         Authenticator
	storage      session.Storage
	closeStorage func() error
	log          logr.Logger
	now          func() time.Time
	metrics      *Metrics
	audit        *audit.Dispatcher
	throttle     *limiters.Lockout

	// mutate serialises storage writes with their in-memory swap.
	mutate sync.Mutex
	// refresh keeps one refresh in flight at a time.
	refresh sync.Mutex

	mu    sync.RWMutex
	state session.State
	epoch uint64

	closed atomic.Bool
}

/*
====================================
SNAPSHOT AND PREDICATES
====================================
*/

// Snapshot returns the current session state. The value never changes;
// later transitions install a new one.
func (m *Manager) Snapshot() session.State {
	state, _ := m.snapshot()
	return state
}

func (m *Manager) snapshot() (session.State, uint64) {
	if m == nil {
		return session.Anonymous{}, 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.epoch
}

// install swaps in next. Callers hold m.mutate.
func (m *Manager) install(next session.State) {
	m.mu.Lock()
	m.state = next
	m.epoch++
	m.mu.Unlock()
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// IsAuthenticated reports whether a token and a user are both present.
func (m *Manager) IsAuthenticated() bool {
	return m.Snapshot().IsAuthenticated()
}

// HasRole reports whether the session holds role.
func (m *Manager) HasRole(role permission.Role) bool {
	return m.Snapshot().HasRole(role)
}

// HasPermission reports whether the session holds tag.
func (m *Manager) HasPermission(tag string) bool {
	return m.Snapshot().HasPermission(tag)
}

// HasAnyPermission reports whether the session holds at least one of tags.
func (m *Manager) HasAnyPermission(tags ...string) bool {
	return m.Snapshot().HasAnyPermission(tags...)
}

// IsAdmin reports superuser status or the admin role.
func (m *Manager) IsAdmin() bool {
	return m.Snapshot().IsAdmin()
}

/*
====================================
LOGIN / LOGOUT
====================================
*/

// Login authenticates creds against the primary API and installs the new
// session. On failure the previous session is left as it was.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*session.Active, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return nil, newAuthError(KindInvalidCredentials, errors.New("username and password are required"))
	}

	if locked, err := m.throttle.Locked(ctx, creds.Username); err != nil {
		m.log.Error(err, "login throttle unavailable", "username", creds.Username)
	} else if locked {
		m.metrics.Inc(MetricLoginThrottled)
		m.emitAudit(ctx, AuditLogin, "", creds.Username, false, ErrInvalidCredentials, map[string]string{
			"reason": "throttled",
		})
		m.log.Info("login refused", "username", creds.Username, "reason", "throttled")
		return nil, &AuthError{
			Kind:    KindInvalidCredentials,
			Message: "Too many failed sign-in attempts, please try again later.",
			Err:     ErrLoginThrottled,
		}
	}

	start := m.now()
	resp, err := m.auth.Login(ctx, creds)
	m.metrics.Observe(MetricLoginLatency, m.now().Sub(start))
	if err != nil {
		kind := KindOf(err)
		if kind.ClearsSession() {
			kind = KindInvalidCredentials
		}
		if kind == KindInvalidCredentials {
			if _, terr := m.throttle.RecordFailure(ctx, creds.Username); terr != nil {
				m.log.Error(terr, "recording failed login", "username", creds.Username)
			}
		}
		m.metrics.Inc(MetricLoginFailure)
		m.emitAudit(ctx, AuditLogin, "", creds.Username, false, err, nil)
		m.log.V(1).Info("login failed", "username", creds.Username, "kind", kind.String())
		return nil, newAuthError(kind, err)
	}

	active, err := session.NewActive(resp.Token, resp.RefreshToken, resp.User, permission.NewSet(resp.Permissions...), resp.Roles)
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		m.emitAudit(ctx, AuditLogin, "", creds.Username, false, ErrMalformedResponse, nil)
		m.log.Info("login response rejected", "username", creds.Username, "reason", err.Error())
		return nil, newAuthError(KindMalformedResponse, err)
	}

	m.mutate.Lock()
	err = m.persistLocked(ctx, active)
	if err == nil {
		m.install(active)
	}
	m.mutate.Unlock()
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		m.emitAudit(ctx, AuditLogin, string(resp.User.ID), resp.User.Username, false, err, nil)
		return nil, err
	}

	if terr := m.throttle.Reset(ctx, creds.Username); terr != nil {
		m.log.Error(terr, "resetting failed logins", "username", creds.Username)
	}
	m.metrics.Inc(MetricLoginSuccess)
	m.emitAudit(ctx, AuditLogin, string(resp.User.ID), resp.User.Username, true, nil, map[string]string{
		"role": resp.User.Role.String(),
	})
	m.log.V(1).Info("session established", "username", resp.User.Username, "role", resp.User.Role.String())
	return active, nil
}

// Logout notifies the primary API when a session exists and then clears
// the session. It always ends unauthenticated; collaborator and storage
// failures are logged.
func (m *Manager) Logout(ctx context.Context) {
	if m == nil {
		return
	}
	state, _ := m.snapshot()
	active, ok := state.Active()
	if ok && m.auth != nil {
		if err := m.auth.Logout(ctx, active.Token()); err != nil {
			m.log.Info("logout notification failed", "error", err.Error())
		}
	}

	m.mutate.Lock()
	m.clearLocked(ctx)
	m.mutate.Unlock()

	m.metrics.Inc(MetricLogout)
	if ok {
		user := active.User()
		m.emitAudit(ctx, AuditLogout, string(user.ID), user.Username, true, nil, nil)
		m.log.V(1).Info("session cleared", "username", user.Username, "reason", "logout")
	}
}

/*
====================================
REFRESH
====================================
*/

// RefreshToken exchanges the current tokens for new ones. Any failure
// clears the session and returns a SessionExpired error. If the session is
// cleared or replaced while the refresh is in flight, the result is
// discarded.
func (m *Manager) RefreshToken(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	_, requested := m.snapshot()

	m.refresh.Lock()
	defer m.refresh.Unlock()

	state, epoch := m.snapshot()
	if epoch != requested && state.IsAuthenticated() {
		// Another caller refreshed or logged in while this one waited.
		return nil
	}
	active, ok := state.Active()
	if !ok {
		m.metrics.Inc(MetricRefreshFailure)
		return newAuthError(KindSessionExpired, ErrNoSession)
	}

	start := m.now()
	res, err := m.auth.Refresh(ctx, active.Token(), active.RefreshToken())
	m.metrics.Observe(MetricRefreshLatency, m.now().Sub(start))
	if err == nil && res.Token == "" {
		err = fmt.Errorf("%w: refresh returned no token", ErrMalformedResponse)
	}
	var next *session.Active
	if err == nil {
		next, err = active.WithToken(res.Token, res.RefreshToken)
	}

	m.mutate.Lock()
	if m.currentEpoch() != epoch {
		m.mutate.Unlock()
		m.metrics.Inc(MetricRefreshDiscarded)
		m.log.V(1).Info("refresh result discarded", "reason", "session changed")
		if m.IsAuthenticated() {
			return nil
		}
		return newAuthError(KindSessionExpired, ErrSessionChanged)
	}
	if err == nil {
		if err = m.persistLocked(ctx, next); err == nil {
			m.install(next)
		}
	}
	if err != nil {
		m.clearLocked(ctx)
	}
	m.mutate.Unlock()

	user := active.User()
	if err != nil {
		m.metrics.Inc(MetricRefreshFailure)
		m.emitAudit(ctx, AuditRefresh, string(user.ID), user.Username, false, err, nil)
		m.log.Info("refresh failed, session cleared", "username", user.Username, "error", err.Error())
		return newAuthError(KindSessionExpired, err)
	}

	m.metrics.Inc(MetricRefreshSuccess)
	m.emitAudit(ctx, AuditRefresh, string(user.ID), user.Username, true, nil, nil)
	m.log.V(1).Info("token refreshed", "username", user.Username)
	return nil
}

// EnsureFresh refreshes the access token when it is a JWT that expires
// within Config.Session.RefreshSkew. Opaque tokens are left alone.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	active, ok := m.Snapshot().Active()
	if !ok {
		return nil
	}
	claims, err := jwt.Inspect(active.Token())
	if err != nil {
		return nil
	}
	if !claims.Expired(m.now(), m.config.Session.RefreshSkew) {
		return nil
	}
	return m.RefreshToken(ctx)
}

/*
====================================
PROFILE
====================================
*/

// FetchProfile reloads the user record and replaces the session's user.
// An Unauthorized answer clears the session; other failures leave it as
// it was.
func (m *Manager) FetchProfile(ctx context.Context) (session.User, error) {
	if err := m.ready(); err != nil {
		return session.User{}, err
	}
	state, epoch := m.snapshot()
	active, ok := state.Active()
	if !ok {
		return session.User{}, newAuthError(KindUnauthorized, ErrNoSession)
	}

	user, err := m.auth.Profile(ctx, active.Token())
	if err != nil {
		m.metrics.Inc(MetricProfileFailure)
		if KindOf(err) == KindUnauthorized {
			return session.User{}, m.handleUnauthorized(ctx, active.Token(), err)
		}
		return session.User{}, newAuthError(KindOf(err), err)
	}

	next, err := active.WithUser(user)
	if err != nil {
		m.metrics.Inc(MetricProfileFailure)
		return session.User{}, newAuthError(KindMalformedResponse, err)
	}

	m.mutate.Lock()
	if m.currentEpoch() != epoch {
		m.mutate.Unlock()
		return session.User{}, ErrSessionChanged
	}
	err = m.persistLocked(ctx, next)
	if err == nil {
		m.install(next)
	}
	m.mutate.Unlock()
	if err != nil {
		m.metrics.Inc(MetricProfileFailure)
		return session.User{}, err
	}

	m.metrics.Inc(MetricProfileSuccess)
	m.emitAudit(ctx, AuditProfile, string(user.ID), user.Username, true, nil, nil)
	return next.User(), nil
}

/*
====================================
RESTORE
====================================
*/

// RestoreFromStorage rehydrates the session from storage and returns the
// resulting state. Malformed data is removed from storage and reported
// only through the logger and the audit stream; it never fails.
func (m *Manager) RestoreFromStorage(ctx context.Context) session.State {
	if m == nil || m.storage == nil {
		return session.Anonymous{}
	}

	m.mutate.Lock()
	defer m.mutate.Unlock()

	values, err := m.storage.Read(ctx, session.Keys...)
	if err != nil && !errors.Is(err, session.ErrCorrupt) {
		m.log.Error(err, "session storage unreadable, starting signed out")
		m.metrics.Inc(MetricStorageFailure)
		m.install(session.Anonymous{})
		return session.Anonymous{}
	}

	var active *session.Active
	if err == nil {
		active, err = session.Decode(values)
	}
	switch {
	case errors.Is(err, session.ErrNoSession):
		m.install(session.Anonymous{})
		return session.Anonymous{}
	case err != nil:
		m.log.Error(err, "discarding persisted session")
		if werr := m.storage.Write(ctx, session.ClearBatch()); werr != nil {
			m.log.Error(werr, "failed to remove discarded session")
			m.metrics.Inc(MetricStorageFailure)
		}
		m.install(session.Anonymous{})
		m.metrics.Inc(MetricSessionRestoreDiscarded)
		m.emitAudit(ctx, AuditSessionRestoreDiscarded, "", "", false, nil, map[string]string{
			"reason": err.Error(),
		})
		return session.Anonymous{}
	}

	m.install(active)
	user := active.User()
	m.metrics.Inc(MetricSessionRestored)
	m.emitAudit(ctx, AuditSessionRestored, string(user.ID), user.Username, true, nil, nil)
	m.log.V(1).Info("session restored", "username", user.Username)
	return active
}

/*
====================================
UNAUTHORIZED
====================================
*/

// HandleUnauthorized is called when an authenticated call made with
// usedToken was rejected. It clears the session when usedToken is the
// current token or empty, and always returns an Unauthorized AuthError.
func (m *Manager) HandleUnauthorized(ctx context.Context, usedToken string) error {
	return m.handleUnauthorized(ctx, usedToken, nil)
}

func (m *Manager) handleUnauthorized(ctx context.Context, usedToken string, cause error) error {
	if m == nil {
		return newAuthError(KindUnauthorized, cause)
	}

	m.mutate.Lock()
	state, _ := m.snapshot()
	active, ok := state.Active()
	cleared := false
	if ok && (usedToken == "" || usedToken == active.Token()) {
		m.clearLocked(ctx)
		cleared = true
	}
	m.mutate.Unlock()

	switch {
	case cleared:
		user := active.User()
		m.metrics.Inc(MetricUnauthorized)
		m.emitAudit(ctx, AuditUnauthorized, string(user.ID), user.Username, false, ErrUnauthorized, nil)
		m.log.Info("session cleared", "username", user.Username, "reason", "unauthorized")
	case ok:
		m.metrics.Inc(MetricUnauthorizedStale)
		m.log.V(1).Info("ignoring rejection of a replaced token")
	}
	return newAuthError(KindUnauthorized, cause)
}

// Call runs fn with the current token, bound to one session snapshot that
// is also attached to the context passed to fn. Errors matching
// ErrUnauthorized clear the session through HandleUnauthorized.
func (m *Manager) Call(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	if err := m.ready(); err != nil {
		return err
	}
	state := m.Snapshot()
	active, ok := state.Active()
	if !ok {
		return newAuthError(KindUnauthorized, ErrNoSession)
	}

	err := fn(WithState(ctx, state), active.Token())
	if err != nil && errors.Is(err, ErrUnauthorized) {
		return m.handleUnauthorized(ctx, active.Token(), err)
	}
	return err
}

/*
====================================
STORAGE
====================================
*/

// persistLocked writes a in one batch. Callers hold m.mutate.
func (m *Manager) persistLocked(ctx context.Context, a *session.Active) error {
	batch, err := session.Encode(a)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := m.storage.Write(ctx, batch); err != nil {
		m.metrics.Inc(MetricStorageFailure)
		m.log.Error(err, "persisting session failed")
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// clearLocked ends the session in memory first so that a storage failure
// cannot leave it authenticated. Callers hold m.mutate.
func (m *Manager) clearLocked(ctx context.Context) {
	m.install(session.Anonymous{})
	if err := m.storage.Write(ctx, session.ClearBatch()); err != nil {
		m.metrics.Inc(MetricStorageFailure)
		m.log.Error(err, "clearing persisted session failed")
	}
}

/*
====================================
NAVIGATION, METRICS, LIFECYCLE
====================================
*/

// ObserveNavigation counts a guard decision.
func (m *Manager) ObserveNavigation(action guard.Action) {
	if m == nil {
		return
	}
	switch action.Kind {
	case guard.ActionAllow:
		m.metrics.Inc(MetricNavigationAllowed)
	case guard.ActionRedirectLogin:
		m.metrics.Inc(MetricNavigationRedirectLogin)
	case guard.ActionRedirectForbidden:
		m.metrics.Inc(MetricNavigationForbidden)
	case guard.ActionRedirectDashboard:
		m.metrics.Inc(MetricNavigationDashboard)
	}
}

// MetricsSnapshot returns a copy of the in-process counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return m.metrics.Snapshot()
}

// Config returns the configuration the Manager was built with.
func (m *Manager) Config() Config {
	return m.config
}

// Logger returns the Manager's logger for components built around it.
func (m *Manager) Logger() logr.Logger {
	if m == nil {
		return logr.Discard()
	}
	return m.log
}

// Close flushes the audit stream and releases storage. The in-memory and
// persisted session are left intact.
func (m *Manager) Close() error {
	if m == nil || !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.audit.Close()
	return m.closeStorage()
}

func (m *Manager) ready() error {
	if m == nil || m.closed.Load() || m.auth == nil || m.storage == nil {
		return ErrManagerNotReady
	}
	return nil
}
