package portalAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/portalAuth/internal/limiters"
	"github.com/MrEthical07/portalAuth/session"
	"github.com/go-logr/logr"
)

// Builder assembles a [Manager]. A Builder may be used once.
//
//	Docs: docs/manager.md
type Builder struct {
	config Config

	authenticator Authenticator
	storage       session.Storage
	logger        logr.Logger
	auditSink     AuditSink
	clock         func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: logr.Discard(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithAuthenticator sets the primary API collaborator. Required.
func (b *Builder) WithAuthenticator(a Authenticator) *Builder {
	b.authenticator = a
	return b
}

// WithStorage overrides the backend selected by Config.Storage.
func (b *Builder) WithStorage(s session.Storage) *Builder {
	b.storage = s
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(l logr.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets where audit events go when Config.Audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides time.Now, used for audit timestamps, latency and
// token expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, opens storage and, when
// Config.Session.RestoreOnBuild is set, rehydrates the persisted session.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.authenticator == nil {
		return nil, errors.New("authenticator required")
	}

	storage := b.storage
	closeStorage := func() error { return nil }
	if storage == nil {
		s, closer, err := OpenStorage(cfg.Storage)
		if err != nil {
			return nil, err
		}
		storage, closeStorage = s, closer
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}
	throttle, err := newLoginThrottle(cfg.Session.LoginThrottle, storage, now)
	if err != nil {
		_ = closeStorage()
		return nil, err
	}

	m := &Manager{
		config:       cfg,
		auth:         b.authenticator,
		storage:      storage,
		closeStorage: closeStorage,
		log:          b.logger.WithName("session"),
		now:          now,
		metrics:      NewMetrics(cfg.Metrics),
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		state:        session.Anonymous{},
		throttle:     throttle,
	}

	b.built = true

	if cfg.Session.RestoreOnBuild {
		m.RestoreFromStorage(context.Background())
	}
	return m, nil
}

// newLoginThrottle keeps failure counts outside the session keys: under a
// "throttle" sub-prefix in Redis, in a sibling ".throttle" file for file
// storage, and in process memory otherwise.
func newLoginThrottle(cfg LoginThrottleConfig, storage session.Storage, now func() time.Time) (*limiters.Lockout, error) {
	var counter limiters.Counter
	switch s := storage.(type) {
	case *session.RedisStorage:
		counter = limiters.NewRedisCounter(s.Client(), throttlePrefix(s.Prefix()))
	case *session.FileStorage:
		fs, err := session.NewFileStorage(s.Path()+".throttle", "")
		if err != nil {
			return nil, err
		}
		counter = limiters.NewStorageCounter(fs, now)
	default:
		counter = limiters.NewStorageCounter(session.NewMemoryStorage(), now)
	}
	return limiters.NewLockout(counter, limiters.LockoutConfig{
		Enabled:   cfg.Enabled,
		Threshold: cfg.MaxAttempts,
		Window:    cfg.Cooldown,
	}), nil
}

func throttlePrefix(prefix string) string {
	if prefix == "" {
		return "throttle"
	}
	return prefix + ":throttle"
}
