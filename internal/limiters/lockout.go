package limiters

import (
	"context"
	"errors"
	"strings"
	"time"
)

// LockoutConfig holds the failed sign-in threshold and window.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Window    time.Duration
}

// ErrLockoutUnavailable indicates the counter backend could not be used.
var ErrLockoutUnavailable = errors.New("lockout backend unavailable")

// Counter is a per-key counter whose value expires window after the first
// increment.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, key string) error
}

// Lockout tracks failed sign-ins per username.
type Lockout struct {
	counter Counter
	config  LockoutConfig
}

// NewLockout returns nil when cfg is disabled or incomplete.
func NewLockout(counter Counter, cfg LockoutConfig) *Lockout {
	if !cfg.Enabled || counter == nil || cfg.Threshold <= 0 || cfg.Window <= 0 {
		return nil
	}
	return &Lockout{counter: counter, config: cfg}
}

func (l *Lockout) key(username string) string {
	return "dvss_login_failures:" + strings.ToLower(strings.TrimSpace(username))
}

// Locked reports whether username has reached the threshold.
func (l *Lockout) Locked(ctx context.Context, username string) (bool, error) {
	if l == nil || username == "" {
		return false, nil
	}
	n, err := l.counter.Get(ctx, l.key(username))
	if err != nil {
		return false, err
	}
	return n >= int64(l.config.Threshold), nil
}

// RecordFailure counts one failure and reports whether the threshold is now
// reached.
func (l *Lockout) RecordFailure(ctx context.Context, username string) (bool, error) {
	if l == nil || username == "" {
		return false, nil
	}
	n, err := l.counter.Incr(ctx, l.key(username), l.config.Window)
	if err != nil {
		return false, err
	}
	return n >= int64(l.config.Threshold), nil
}

// Reset clears the failures of username after a successful sign-in.
func (l *Lockout) Reset(ctx context.Context, username string) error {
	if l == nil || username == "" {
		return nil
	}
	return l.counter.Del(ctx, l.key(username))
}
