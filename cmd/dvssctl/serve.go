package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/MrEthical07/portalAuth/middleware"
	promexport "github.com/MrEthical07/portalAuth/metrics/export/prometheus"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a guarded local front for the console",
		Long: "Serves page routes through the route guard, proxies /api and /fabric-api\n" +
			"with the session token and projects answers to the role's fields.\n" +
			"Prometheus metrics are served on /metrics.",
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8787", "listen address")

	cmd.RunE = opts.run(func(ctx context.Context, a *app, _ []string) error {
		handler, err := a.router()
		if err != nil {
			return err
		}
		srv := &http.Server{
			Addr:              listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("serving console", "addr", listen)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return cmd
}

// recordPaths are the primary API collections whose answers carry order
// records and are projected to the caller's fields.
var recordPaths = []string{"/orders", "/encrypted-orders"}

func (a *app) router() (http.Handler, error) {
	primary, err := a.proxy(a.cfg.Endpoints.PrimaryBaseURL)
	if err != nil {
		return nil, err
	}
	ledger, err := a.proxy(a.cfg.Endpoints.LedgerBaseURL)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)

	if a.cfg.Metrics.Enabled {
		r.Handle("/metrics", promexport.Handler(promexport.NewCollector(a.manager)))
	}
	r.Get("/session", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = printJSON(w, portalAuth.Describe(a.manager.Snapshot()))
	})

	api := func(prefix string, upstream http.Handler, records ...string) {
		r.Route(prefix, func(r chi.Router) {
			r.Use(middleware.RequireSession(a.manager))
			stripped := http.StripPrefix(prefix, upstream)
			project := r.With(middleware.ProjectFields(a.policy))
			for _, p := range records {
				project.Handle(p, stripped)
				project.Handle(p+"/*", stripped)
			}
			r.Handle("/*", stripped)
		})
	}
	api("/api", primary, recordPaths...)
	api("/fabric-api", ledger)

	r.With(middleware.Navigation(a.manager, a.table)).Get("/*", func(w http.ResponseWriter, req *http.Request) {
		out, _ := middleware.OutcomeFromContext(req.Context())
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, out.Title())
	})
	return r, nil
}

// proxy forwards to base, joining the stripped request path onto it.
func (a *app) proxy(base string) (http.Handler, error) {
	target, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse upstream %q: %w", base, err)
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Header.Del("Authorization")
		},
		Transport: &middleware.BearerTransport{Manager: a.manager},
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			a.log.Error(err, "upstream call failed", "path", req.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"detail":"upstream unavailable"}`))
		},
	}, nil
}
