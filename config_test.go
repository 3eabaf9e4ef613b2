package portalAuth

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "memory backend",
			mutate:    func(c *Config) { c.Storage.Backend = StorageMemory },
			wantValid: true,
		},
		{
			name:      "unknown backend",
			mutate:    func(c *Config) { c.Storage.Backend = "sqlite" },
			wantValid: false,
		},
		{
			name: "file backend without path or profile",
			mutate: func(c *Config) {
				c.Storage.Profile = ""
				c.Storage.Path = ""
			},
			wantValid: false,
		},
		{
			name:      "profile with separator",
			mutate:    func(c *Config) { c.Storage.Profile = "../etc" },
			wantValid: false,
		},
		{
			name:      "redis without address",
			mutate:    func(c *Config) { c.Storage.Backend = StorageRedis },
			wantValid: false,
		},
		{
			name: "redis with address",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageRedis
				c.Storage.RedisAddr = "localhost:6379"
			},
			wantValid: true,
		},
		{
			name:      "relative primary url",
			mutate:    func(c *Config) { c.Endpoints.PrimaryBaseURL = "/api" },
			wantValid: false,
		},
		{
			name:      "ftp ledger url",
			mutate:    func(c *Config) { c.Endpoints.LedgerBaseURL = "ftp://ledger" },
			wantValid: false,
		},
		{
			name:      "zero timeout",
			mutate:    func(c *Config) { c.Endpoints.Timeout = 0 },
			wantValid: false,
		},
		{
			name:      "pacing without burst",
			mutate:    func(c *Config) { c.Endpoints.Burst = 0 },
			wantValid: false,
		},
		{
			name: "pacing disabled without burst",
			mutate: func(c *Config) {
				c.Endpoints.RequestsPerSecond = 0
				c.Endpoints.Burst = 0
			},
			wantValid: true,
		},
		{
			name:      "negative skew",
			mutate:    func(c *Config) { c.Session.RefreshSkew = -time.Second },
			wantValid: false,
		},
		{
			name:      "throttle without attempts",
			mutate:    func(c *Config) { c.Session.LoginThrottle.MaxAttempts = 0 },
			wantValid: false,
		},
		{
			name: "disabled throttle without cooldown",
			mutate: func(c *Config) {
				c.Session.LoginThrottle.Enabled = false
				c.Session.LoginThrottle.Cooldown = 0
			},
			wantValid: true,
		},
		{
			name:      "relative login path",
			mutate:    func(c *Config) { c.Navigation.LoginPath = "login" },
			wantValid: false,
		},
		{
			name:      "audit without buffer",
			mutate:    func(c *Config) { c.Audit.BufferSize = 0 },
			wantValid: false,
		},
		{
			name: "disabled audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = false
				c.Audit.BufferSize = 0
			},
			wantValid: true,
		},
		{
			name:      "histograms without metrics",
			mutate:    func(c *Config) { c.Metrics.Enabled = false },
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	doc := `
storage:
  backend: redis
  redisAddr: 127.0.0.1:6379
  redisTTL: 12h
endpoints:
  primaryBaseURL: https://dvss.example/api
  timeout: 5s
session:
  refreshSkew: 30s
`
	cfg, err := LoadConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != StorageRedis || cfg.Storage.RedisTTL != 12*time.Hour {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Endpoints.Timeout != 5*time.Second || cfg.Session.RefreshSkew != 30*time.Second {
		t.Fatal("durations not decoded")
	}
	if cfg.Navigation.DashboardPath != "/admin/dashboard" {
		t.Fatal("unset keys must keep their defaults")
	}

	if _, err := LoadConfig(strings.NewReader("")); err != nil {
		t.Fatalf("empty document must yield defaults: %v", err)
	}
	if _, err := LoadConfig(strings.NewReader("storage:\n  backnd: memory\n")); err == nil {
		t.Fatal("expected unknown key to fail")
	}
	if _, err := LoadConfig(strings.NewReader("endpoints:\n  timeout: 0s\n")); err == nil {
		t.Fatal("expected validation failure")
	}
}
