package portalAuth

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config groups every tunable of a [Manager] and the components built
// around it.
//
//	Docs: docs/config.md
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Endpoints  EndpointsConfig  `yaml:"endpoints"`
	Session    SessionConfig    `yaml:"session"`
	Navigation NavigationConfig `yaml:"navigation"`
	Audit      AuditConfig      `yaml:"audit"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageBackend selects where the session is persisted.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
)

// StorageConfig selects and parameterises the persisted-session backend.
type StorageConfig struct {
	Backend StorageBackend `yaml:"backend"`
	// Profile names the file under the user config dir when Path is empty.
	Profile string `yaml:"profile"`
	Path    string `yaml:"path"`
	// Passphrase seals the file backend at rest when set.
	Passphrase  string        `yaml:"passphrase"`
	RedisAddr   string        `yaml:"redisAddr"`
	RedisDB     int           `yaml:"redisDB"`
	RedisPrefix string        `yaml:"redisPrefix"`
	RedisTTL    time.Duration `yaml:"redisTTL"`
}

/*
====================================
ENDPOINTS CONFIG
====================================
*/

// EndpointsConfig locates the primary API and the ledger API.
type EndpointsConfig struct {
	PrimaryBaseURL string        `yaml:"primaryBaseURL"`
	LedgerBaseURL  string        `yaml:"ledgerBaseURL"`
	Timeout        time.Duration `yaml:"timeout"`
	// RequestsPerSecond paces outgoing requests; zero disables pacing.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes session lifecycle behaviour.
type SessionConfig struct {
	// RefreshSkew makes EnsureFresh refresh access tokens expiring within it.
	RefreshSkew time.Duration `yaml:"refreshSkew"`
	// RestoreOnBuild rehydrates the session from storage in Build.
	RestoreOnBuild bool `yaml:"restoreOnBuild"`
	// LoginThrottle refuses sign-in for a username after repeated failures.
	LoginThrottle LoginThrottleConfig `yaml:"loginThrottle"`
}

// LoginThrottleConfig locks a username for Cooldown once MaxAttempts
// consecutive sign-ins have been rejected.
type LoginThrottleConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

/*
====================================
NAVIGATION CONFIG
====================================
*/

// NavigationConfig names the guard's redirect locations and optional
// overrides for the route table and field policy.
type NavigationConfig struct {
	LoginPath       string `yaml:"loginPath"`
	ForbiddenPath   string `yaml:"forbiddenPath"`
	DashboardPath   string `yaml:"dashboardPath"`
	NotFoundPath    string `yaml:"notFoundPath"`
	RoutesFile      string `yaml:"routesFile"`
	FieldPolicyFile string `yaml:"fieldPolicyFile"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"bufferSize"`
	DropIfFull bool `yaml:"dropIfFull"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enableLatencyHistograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the console defaults: file storage under the
// "default" profile, a 30s request timeout and the standard console paths.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Backend:     StorageFile,
			Profile:     "default",
			RedisPrefix: "dvss",
		},
		Endpoints: EndpointsConfig{
			PrimaryBaseURL:    "http://localhost:8000/api",
			LedgerBaseURL:     "http://localhost:8001/api",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Session: SessionConfig{
			RefreshSkew:    time.Minute,
			RestoreOnBuild: true,
			LoginThrottle: LoginThrottleConfig{
				Enabled:     true,
				MaxAttempts: 5,
				Cooldown:    30 * time.Minute,
			},
		},
		Navigation: NavigationConfig{
			LoginPath:     "/login",
			ForbiddenPath: "/403",
			DashboardPath: "/admin/dashboard",
			NotFoundPath:  "/404",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// LoadConfig reads a YAML document over [DefaultConfig] and validates the
// result. Unknown keys are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	// Storage
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageFile:
		if c.Storage.Path == "" && c.Storage.Profile == "" {
			return errors.New("Storage file backend requires Path or Profile")
		}
		if strings.ContainsAny(c.Storage.Profile, `/\`) {
			return errors.New("Storage Profile must not contain path separators")
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("Storage redis backend requires RedisAddr")
		}
		if c.Storage.RedisTTL < 0 {
			return errors.New("Storage RedisTTL must be >= 0")
		}
	default:
		return errors.New("Storage Backend must be 'memory', 'file' or 'redis'")
	}

	// Endpoints
	for name, raw := range map[string]string{
		"PrimaryBaseURL": c.Endpoints.PrimaryBaseURL,
		"LedgerBaseURL":  c.Endpoints.LedgerBaseURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("Endpoints " + name + " must be an absolute http(s) URL")
		}
	}
	if c.Endpoints.Timeout <= 0 {
		return errors.New("Endpoints Timeout must be > 0")
	}
	if c.Endpoints.RequestsPerSecond < 0 {
		return errors.New("Endpoints RequestsPerSecond must be >= 0")
	}
	if c.Endpoints.RequestsPerSecond > 0 && c.Endpoints.Burst < 1 {
		return errors.New("Endpoints Burst must be >= 1 when pacing is enabled")
	}

	// Session
	if c.Session.RefreshSkew < 0 {
		return errors.New("Session RefreshSkew must be >= 0")
	}
	if c.Session.LoginThrottle.Enabled {
		if c.Session.LoginThrottle.MaxAttempts < 1 {
			return errors.New("Session LoginThrottle MaxAttempts must be >= 1 when enabled")
		}
		if c.Session.LoginThrottle.Cooldown <= 0 {
			return errors.New("Session LoginThrottle Cooldown must be > 0 when enabled")
		}
	}

	// Navigation
	for _, p := range []string{
		c.Navigation.LoginPath,
		c.Navigation.ForbiddenPath,
		c.Navigation.DashboardPath,
		c.Navigation.NotFoundPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Navigation paths must be absolute")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
