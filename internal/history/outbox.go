package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectHistoryOutbox carries history rows whose first write failed. The
// reconciler worker drains it and retries the insert, so the local journal
// eventually catches up with the provider-side truth.
const SubjectHistoryOutbox = "history.outbox"

// OutboxEntry is a self-contained retryable write: the full row plus the
// campaign mirror fields, so the consumer needs no other context.
type OutboxEntry struct {
	Record   *Record   `json:"record"`
	Attempt  int       `json:"attempt"`
	QueuedAt time.Time `json:"queued_at"`
}

type Outbox struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewOutbox(natsURL string, logger *zap.Logger) (*Outbox, error) {
	opts := []nats.Option{
		nats.Name("Mspace Gateway"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(5 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Outbox{conn: conn, logger: logger}, nil
}

func (o *Outbox) Close() error {
	o.conn.Close()
	return nil
}

func (o *Outbox) HealthCheck(ctx context.Context) error {
	if o.conn.Status() != nats.CONNECTED {
		return fmt.Errorf("NATS not connected, status: %v", o.conn.Status())
	}
	return nil
}

// Publish queues a failed history write for retry.
func (o *Outbox) Publish(ctx context.Context, entry *OutboxEntry) error {
	if entry.QueuedAt.IsZero() {
		entry.QueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox entry: %w", err)
	}

	if err := o.conn.Publish(SubjectHistoryOutbox, data); err != nil {
		return fmt.Errorf("failed to publish outbox entry: %w", err)
	}

	o.logger.Warn("history write queued for retry",
		zap.String("record_id", entry.Record.ID.String()),
		zap.Int("attempt", entry.Attempt))
	return nil
}

// PublishWithDelay requeues an entry after a backoff.
func (o *Outbox) PublishWithDelay(ctx context.Context, entry *OutboxEntry, delay time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox entry: %w", err)
	}

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			if err := o.conn.Publish(SubjectHistoryOutbox, data); err != nil {
				o.logger.Error("failed to requeue outbox entry",
					zap.String("record_id", entry.Record.ID.String()), zap.Error(err))
			}
		case <-ctx.Done():
		}
	}()
	return nil
}

// Subscribe drains the outbox. The handler returns an error to signal the
// write still cannot land; the caller decides whether to requeue.
func (o *Outbox) Subscribe(handler func(entry *OutboxEntry) error) (*nats.Subscription, error) {
	return o.conn.Subscribe(SubjectHistoryOutbox, func(msg *nats.Msg) {
		var entry OutboxEntry
		if err := json.Unmarshal(msg.Data, &entry); err != nil {
			o.logger.Error("failed to unmarshal outbox entry", zap.Error(err))
			return
		}

		if err := handler(&entry); err != nil {
			o.logger.Error("outbox entry retry failed",
				zap.String("record_id", entry.Record.ID.String()),
				zap.Int("attempt", entry.Attempt),
				zap.Error(err))
		}
	})
}
