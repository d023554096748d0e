// Package reports pulls delivery verdicts from the provider and folds them
// back into the stored history. Nothing pushes updates into this system;
// reconciliation runs on demand (get_delivery_reports) or on the worker's
// periodic sweep.
package reports

import (
	"context"
	"time"

	"mspace-gateway/internal/history"
	"mspace-gateway/internal/mspace"
	"mspace-gateway/internal/observability"

	"go.uber.org/zap"
)

type Reconciler struct {
	client  *mspace.Client
	store   *history.Store
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewReconciler(client *mspace.Client, store *history.Store, metrics *observability.Metrics, logger *zap.Logger) *Reconciler {
	return &Reconciler{client: client, store: store, metrics: metrics, logger: logger}
}

// Reconcile polls the provider report endpoint for each id and applies
// delivered/failed transitions. Ids the provider does not know, report
// fetch errors, and pending verdicts leave the stored rows unchanged, so
// re-running with the same ids is a no-op. Returns one report per id the
// provider answered for.
func (r *Reconciler) Reconcile(ctx context.Context, messageIDs []string) []mspace.DeliveryReport {
	reports := make([]mspace.DeliveryReport, 0, len(messageIDs))

	for _, id := range messageIDs {
		report, err := r.client.FetchDeliveryReport(ctx, id)
		if err != nil {
			r.logger.Warn("delivery report fetch failed",
				zap.String("message_id", id), zap.Error(err))
			continue
		}

		now := time.Now().UTC()
		switch report.Status {
		case history.StatusDelivered:
			updated, err := r.store.MarkDelivered(ctx, id, now)
			if err != nil {
				r.logger.Error("failed to mark delivered",
					zap.String("message_id", id), zap.Error(err))
			} else if updated {
				r.count(history.StatusDelivered)
			}
		case history.StatusFailed:
			updated, err := r.store.MarkFailed(ctx, id, report.FailedReason, now)
			if err != nil {
				r.logger.Error("failed to mark failed",
					zap.String("message_id", id), zap.Error(err))
			} else if updated {
				r.count(history.StatusFailed)
			}
		default:
			// pending or unrecognized: leave the row as is
			r.count(history.StatusPending)
		}

		reports = append(reports, *report)
	}

	return reports
}

// Sweep reconciles the oldest rows still awaiting a verdict. The worker
// calls this on an interval.
func (r *Reconciler) Sweep(ctx context.Context, batch int) (int, error) {
	ids, err := r.store.UnreconciledProviderIDs(ctx, batch)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	reports := r.Reconcile(ctx, ids)
	r.logger.Info("reconciliation sweep completed",
		zap.Int("candidates", len(ids)),
		zap.Int("reports", len(reports)))
	return len(reports), nil
}

func (r *Reconciler) count(status string) {
	if r.metrics != nil {
		r.metrics.ReconciledTotal.WithLabelValues(status).Inc()
	}
}
