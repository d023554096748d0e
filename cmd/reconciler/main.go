// The reconciler worker closes the two follow-up loops the API leaves
// behind: it drains the history outbox (failed Outcome Recorder writes)
// and periodically sweeps undelivered rows against the provider's report
// endpoint.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mspace-gateway/internal/config"
	"mspace-gateway/internal/history"
	"mspace-gateway/internal/mspace"
	"mspace-gateway/internal/observability"
	"mspace-gateway/internal/persistence"
	"mspace-gateway/internal/reports"

	"go.uber.org/zap"
)

const maxOutboxAttempts = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := observability.GetLoggerFromEnv(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting Mspace Gateway reconciler",
		zap.Duration("interval", cfg.ReconcileInterval))

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := persistence.NewPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	outbox, err := history.NewOutbox(cfg.NATSURL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer outbox.Close()

	provider := mspace.NewClient(cfg.MspaceBaseURL, cfg.MspaceUserID, cfg.MspaceAPIKey, cfg.MspaceTimeout, logger)
	store := history.NewStore(database, logger)
	recorder := history.NewRecorder(store, outbox, logger)
	reconciler := reports.NewReconciler(provider, store, metrics, logger)

	// Outbox drain: retry failed history writes with linear backoff, give
	// up after maxOutboxAttempts.
	sub, err := outbox.Subscribe(func(entry *history.OutboxEntry) error {
		if err := recorder.Apply(ctx, entry.Record); err != nil {
			if entry.Attempt >= maxOutboxAttempts {
				logger.Error("dropping history record after max attempts",
					zap.String("record_id", entry.Record.ID.String()),
					zap.Int("attempts", entry.Attempt))
				return nil
			}
			entry.Attempt++
			delay := time.Duration(entry.Attempt) * 15 * time.Second
			return outbox.PublishWithDelay(ctx, entry, delay)
		}

		logger.Info("outboxed history record landed",
			zap.String("record_id", entry.Record.ID.String()),
			zap.Int("attempt", entry.Attempt))
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to subscribe to outbox: %v", err)
	}
	defer sub.Unsubscribe()

	// Periodic delivery sweep.
	go func() {
		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := reconciler.Sweep(ctx, cfg.ReconcileBatch); err != nil {
					logger.Error("reconciliation sweep failed", zap.Error(err))
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("reconciler stopping")
	cancel()
}
