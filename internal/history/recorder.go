package history

import (
	"context"
	"time"

	"mspace-gateway/internal/dispatch"

	"go.uber.org/zap"
)

// Recorder persists one history row per dispatch result, immediately after
// the result is produced. The provider call already happened and cannot be
// undone, so persistence here is best-effort: a failed write is logged and
// handed to the outbox, never surfaced into the dispatch report.
type Recorder struct {
	store  *Store
	outbox *Outbox
	logger *zap.Logger
}

func NewRecorder(store *Store, outbox *Outbox, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, outbox: outbox, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, req *dispatch.Request, res *dispatch.Result) {
	rec := NewRecord(req, res)

	if err := r.store.Insert(ctx, rec); err != nil {
		r.logger.Error("failed to record dispatch outcome",
			zap.String("recipient", rec.Recipient),
			zap.String("channel", rec.Channel),
			zap.Error(err))
		r.enqueue(ctx, rec)
		return
	}

	if rec.CampaignID != "" {
		at := rec.CreatedAt
		if rec.SentAt != nil {
			at = *rec.SentAt
		}
		if err := r.store.UpsertCampaignRecipient(ctx, rec.CampaignID, rec.Recipient, rec.Status, rec.ProviderMessageID, at); err != nil {
			r.logger.Error("failed to update campaign recipient",
				zap.String("campaign", rec.CampaignID),
				zap.String("recipient", rec.Recipient),
				zap.Error(err))
		}
	}
}

// Apply lands an outboxed record, including its campaign mirror. Used by
// the reconciler worker when retrying.
func (r *Recorder) Apply(ctx context.Context, rec *Record) error {
	if err := r.store.Insert(ctx, rec); err != nil {
		return err
	}
	if rec.CampaignID != "" {
		at := rec.CreatedAt
		if rec.SentAt != nil {
			at = *rec.SentAt
		}
		if err := r.store.UpsertCampaignRecipient(ctx, rec.CampaignID, rec.Recipient, rec.Status, rec.ProviderMessageID, at); err != nil {
			r.logger.Error("failed to update campaign recipient on retry",
				zap.String("campaign", rec.CampaignID), zap.Error(err))
		}
	}
	return nil
}

func (r *Recorder) enqueue(ctx context.Context, rec *Record) {
	if r.outbox == nil {
		return
	}
	if err := r.outbox.Publish(ctx, &OutboxEntry{Record: rec, Attempt: 1, QueuedAt: time.Now().UTC()}); err != nil {
		// Both the write and the outbox failed; the row is lost and only
		// reconciliation against the provider can recover it.
		r.logger.Error("failed to outbox history record",
			zap.String("record_id", rec.ID.String()), zap.Error(err))
	}
}
