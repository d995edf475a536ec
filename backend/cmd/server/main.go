package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vault-graph-sync/backend/internal/api"
	"vault-graph-sync/backend/internal/metrics"
	"vault-graph-sync/backend/internal/services"
	"vault-graph-sync/backend/internal/status"
	"vault-graph-sync/backend/internal/vaultsync"
	"vault-graph-sync/backend/pkg/config"
	"vault-graph-sync/backend/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
	log.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log = logger.OrNop(log)
	log.Info("Starting vault graph sync", zap.String("vault", cfg.VaultPath))

	sm := services.NewServiceManager(cfg, log)
	if err := sm.StartAll(ctx); err != nil {
		return err
	}
	defer sm.StopAll(context.Background())

	svc := sm.Service()
	hub := sm.Hub()
	q := sm.Queue()

	router := api.NewRouter(api.Deps{
		Service: svc,
		Hub:     hub,
		Queue:   q,
		Metrics: sm.Tracker().Snapshot,
	}, cfg.IsProduction(), log.Named("api"))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		return metrics.Report(gctx, sm.Tracker(), cfg.MetricsReportInterval, log.Named("metrics"), func(metrics.Snapshot) {
			hub.Publish(gctx)
		})
	})

	g.Go(func() error {
		if err := startSync(gctx, svc, hub, log); err != nil {
			return err
		}
		<-gctx.Done()
		svc.Stop()
		return nil
	})

	return g.Wait()
}

// startSync begins watching before the initial sync, so a file edited after the
// sync has read it still arrives as an event. A failed initial sync is reported
// through the hub; only a failed watch is returned.
func startSync(ctx context.Context, svc *vaultsync.Service, hub *status.Hub, log *zap.Logger) error {
	log = logger.OrNop(log)
	if err := svc.Watch(ctx); err != nil {
		return fmt.Errorf("watch vault: %w", err)
	}

	report, err := svc.InitialSync(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil
	case err != nil:
		hub.SyncFailed(err)
		log.Error("Initial sync failed", zap.Error(err))
	default:
		hub.SyncCompleted(fmt.Sprintf("synced %d notes", report.Notes))
	}
	hub.Publish(ctx)
	return nil
}
