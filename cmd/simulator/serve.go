package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firewall-simulator/internal/api"
	"firewall-simulator/internal/config"
	"firewall-simulator/internal/metrics"
	"firewall-simulator/internal/scan"
	"firewall-simulator/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var (
		addr     string
		provider string
		rules    string
		dsn      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the rule store and simulator over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.API.Addr = addr
			}
			if cmd.Flags().Changed("provider") {
				cfg.Rules.Provider = provider
			}
			if cmd.Flags().Changed("rules") {
				cfg.Rules.File = rules
			}
			if cmd.Flags().Changed("db") {
				cfg.Rules.DSN = dsn
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "HTTP listen address")
	cmd.Flags().StringVar(&provider, "provider", "", "Rule import provider: 'file' or 'mariadb' (default: none)")
	cmd.Flags().StringVar(&rules, "rules", "", "Rule file (YAML or JSON) imported at start-up")
	cmd.Flags().StringVar(&dsn, "db", "", "Database connection string (for 'mariadb' provider)")
	return cmd
}

func newServer(cfg *config.Config, st *store.Store) *http.Server {
	var scanner scan.Scanner = scan.NewTCPScanner(scan.Options{
		Timeout:     cfg.Scan.Timeout,
		Concurrency: cfg.Scan.Concurrency,
	})
	if cfg.Scan.CacheTTL > 0 {
		scanner = scan.NewCachedScanner(scanner, cfg.Scan.CacheTTL)
	}

	opts := &api.Options{
		AccessLog:  cfg.API.AccessLog,
		PathPrefix: cfg.API.PathPrefix,
		Workers:    cfg.Evaluator.Workers,
		Store:      st,
		Scanner:    scanner,
	}
	if cfg.Metrics.Enabled {
		opts.MetricsPath = cfg.Metrics.Path
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	api.Register(r, opts)

	return &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New()
	specs, err := loadRules(cfg.Rules.Provider, cfg.Rules.File, cfg.Rules.DSN)
	if err != nil {
		slog.Error("Failed to load rules", "provider", cfg.Rules.Provider, "error", err)
		return err
	}
	if err := st.Load(specs); err != nil {
		slog.Error("Failed to import rules", "error", err)
		return err
	}
	metrics.SetRules(st.Len())
	slog.Info("Rules imported", "provider", cfg.Rules.Provider, "count", st.Len())

	srv := newServer(cfg, st)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
