package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/MrEthical07/portalAuth/authclient"
	"github.com/MrEthical07/portalAuth/fields"
	"github.com/MrEthical07/portalAuth/guard"
	"github.com/MrEthical07/portalAuth/permission"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
)

// Environment overrides, applied over the config file and under flags.
const (
	envConfig     = "DVSS_CONFIG"
	envPrimary    = "DVSS_API"
	envLedger     = "DVSS_LEDGER_API"
	envProfile    = "DVSS_PROFILE"
	envPassphrase = "DVSS_PASSPHRASE"
	envPassword   = "DVSS_PASSWORD"
)

type rootOptions struct {
	configPath string
	primary    string
	ledger     string
	profile    string
	jsonOutput bool
	verbosity  int
}

type app struct {
	cfg     portalAuth.Config
	log     logr.Logger
	manager *portalAuth.Manager
	primary *authclient.Client
	ledger  *authclient.Client
	table   *guard.Table
	policy  *fields.Policy
	out     io.Writer
	json    bool
}

func (o *rootOptions) config(cmd *cobra.Command) (portalAuth.Config, error) {
	cfg := portalAuth.DefaultConfig()

	path := o.configPath
	if path == "" {
		path = os.Getenv(envConfig)
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if cfg, err = portalAuth.LoadConfig(f); err != nil {
			return cfg, err
		}
	}

	if v := os.Getenv(envPrimary); v != "" {
		cfg.Endpoints.PrimaryBaseURL = v
	}
	if v := os.Getenv(envLedger); v != "" {
		cfg.Endpoints.LedgerBaseURL = v
	}
	if v := os.Getenv(envProfile); v != "" {
		cfg.Storage.Profile = v
	}
	if v := os.Getenv(envPassphrase); v != "" {
		cfg.Storage.Passphrase = v
	}

	flags := cmd.Flags()
	if flags.Changed("api") {
		cfg.Endpoints.PrimaryBaseURL = o.primary
	}
	if flags.Changed("ledger-api") {
		cfg.Endpoints.LedgerBaseURL = o.ledger
	}
	if flags.Changed("profile") {
		cfg.Storage.Profile = o.profile
	}
	return cfg, cfg.Validate()
}

func (o *rootOptions) open(cmd *cobra.Command) (*app, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}

	stdr.SetVerbosity(o.verbosity)
	logger := stdr.New(log.New(cmd.ErrOrStderr(), "", log.LstdFlags)).WithName("dvssctl")

	limiter := authclient.NewLimiter(cfg.Endpoints)
	clientOpts := []authclient.Option{
		authclient.WithTimeout(cfg.Endpoints.Timeout),
		authclient.WithLimiter(limiter),
		authclient.WithLogger(logger),
	}
	primary, err := authclient.New(cfg.Endpoints.PrimaryBaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}
	ledger, err := authclient.New(cfg.Endpoints.LedgerBaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}

	table, err := loadTable(cfg.Navigation)
	if err != nil {
		return nil, err
	}
	policy, err := loadPolicy(cfg.Navigation)
	if err != nil {
		return nil, err
	}

	builder := portalAuth.New().
		WithConfig(cfg).
		WithAuthenticator(authclient.NewAuth(primary)).
		WithLogger(logger)
	if cfg.Audit.Enabled && o.verbosity > 0 {
		builder = builder.WithAuditSink(portalAuth.NewJSONWriterSink(cmd.ErrOrStderr()))
	}
	manager, err := builder.Build()
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     logger,
		manager: manager,
		primary: primary,
		ledger:  ledger,
		table:   table,
		policy:  policy,
		out:     cmd.OutOrStdout(),
		json:    o.jsonOutput,
	}, nil
}

// run opens the app for one command and closes it afterwards.
func (o *rootOptions) run(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := o.open(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.manager.Close(); cerr != nil {
				a.log.Error(cerr, "closing session manager")
			}
		}()
		ctx, _ := portalAuth.EnsureRequestID(cmd.Context())
		return fn(ctx, a, args)
	}
}

func loadTable(cfg portalAuth.NavigationConfig) (*guard.Table, error) {
	table := guard.DefaultTable()
	if cfg.RoutesFile != "" {
		f, err := os.Open(cfg.RoutesFile)
		if err != nil {
			return nil, fmt.Errorf("open routes: %w", err)
		}
		defer f.Close()
		if table, err = guard.LoadTable(f, permission.DefaultCatalog()); err != nil {
			return nil, err
		}
	}
	return table.WithPaths(guard.Paths{
		Login:     cfg.LoginPath,
		Forbidden: cfg.ForbiddenPath,
		Dashboard: cfg.DashboardPath,
		NotFound:  cfg.NotFoundPath,
	})
}

func loadPolicy(cfg portalAuth.NavigationConfig) (*fields.Policy, error) {
	if cfg.FieldPolicyFile == "" {
		return fields.DefaultPolicy(), nil
	}
	f, err := os.Open(cfg.FieldPolicyFile)
	if err != nil {
		return nil, fmt.Errorf("open field policy: %w", err)
	}
	defer f.Close()
	return fields.LoadPolicy(f)
}
