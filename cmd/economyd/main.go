package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/capawawa/growmies-economy/internal/api"
	"github.com/capawawa/growmies-economy/internal/compliance"
	"github.com/capawawa/growmies-economy/internal/infra/logging"
	"github.com/capawawa/growmies-economy/internal/persistence"
	"github.com/capawawa/growmies-economy/internal/services/economy"
	"github.com/capawawa/growmies-economy/pkg/envconf"
	"github.com/capawawa/growmies-economy/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running economyd: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(serverConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Persistence ---
	mgr := persistence.NewManager(persistence.Config{
		DSN:                 cfg.Postgres.DSN(),
		MaxConnectAttempts:  cfg.MaxConnectAttempts,
		ConnectBackoff:      cfg.ConnectBackoff,
		ConnectBackoffCap:   cfg.ConnectBackoffCap,
		ConnectTimeout:      cfg.ConnectTimeout,
		HealthInterval:      cfg.HealthInterval,
		MaintenanceInterval: cfg.MaintenanceInterval,
		RetentionAge:        cfg.RetentionAge,
		ReconnectInterval:   cfg.ReconnectInterval,
	}, persistence.NewMetrics(prometheus.DefaultRegisterer))

	// A migration failure is fatal; an unreachable store is not, the
	// manager serves degraded and recovers on its own.
	err = mgr.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("init persistence: %w", err)
	}

	shutdownqueue.Add("persistence", mgr.Shutdown)

	// --- Services ---
	checker := compliance.Checker(compliance.DenyAll)
	if cfg.AllowRestricted {
		slog.Warn("compliance gate disabled, restricted currency open to all users")

		checker = compliance.AllowAll
	}

	svc := economy.New(mgr, checker, nil, economy.DefaultConfig())

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, mgr, svc)

	shutdownqueue.Add("http server", func(c context.Context) error {
		serr := srv.Shutdown(c)
		if serr != nil {
			return fmt.Errorf("shutdown srv: %w", serr)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("economy API started", "port", cfg.Port, "status", mgr.Status().State)

	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
