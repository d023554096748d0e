package history

import (
	"context"
	"fmt"
	"time"

	"mspace-gateway/internal/dispatch"
	"mspace-gateway/internal/persistence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const providerName = "mspace"

// Statuses of a history row. sent transitions to delivered or failed via
// reconciliation; delivered and failed are terminal.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusPending   = "pending"
)

// Record is one persisted per-recipient outcome.
type Record struct {
	ID                uuid.UUID  `json:"id"`
	AccountID         uuid.UUID  `json:"account_id"`
	Channel           string     `json:"channel"`
	Sender            string     `json:"sender,omitempty"`
	Recipient         string     `json:"recipient"`
	Content           string     `json:"content"`
	Status            string     `json:"status"`
	Provider          string     `json:"provider"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	CampaignID        string     `json:"campaign_id,omitempty"`
	Error             string     `json:"error,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`
}

type Store struct {
	db     *persistence.PostgresDB
	logger *zap.Logger
}

func NewStore(db *persistence.PostgresDB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) Insert(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_history
		 (id, account_id, channel, sender, recipient, content, status, provider,
		  provider_message_id, campaign_id, error, created_at, sent_at, failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12, $13, $14)`,
		rec.ID, rec.AccountID, rec.Channel, rec.Sender, rec.Recipient, rec.Content,
		rec.Status, rec.Provider, rec.ProviderMessageID, rec.CampaignID, rec.Error,
		rec.CreatedAt, rec.SentAt, rec.FailedAt)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// UpsertCampaignRecipient mirrors the history status onto the campaign's
// per-recipient row, keyed by (campaign_id, recipient).
func (s *Store) UpsertCampaignRecipient(ctx context.Context, campaignID, recipient, status, providerMessageID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaign_recipients (campaign_id, recipient, status, provider_message_id, sent_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		 ON CONFLICT (campaign_id, recipient)
		 DO UPDATE SET status = $3, provider_message_id = NULLIF($4, ''), sent_at = $5`,
		campaignID, recipient, status, providerMessageID, at)
	if err != nil {
		return fmt.Errorf("upsert campaign recipient: %w", err)
	}
	return nil
}

// MarkDelivered transitions a sent/pending row to delivered. Terminal rows
// are left untouched, which makes reconciliation idempotent. Returns true
// when a row actually changed.
func (s *Store) MarkDelivered(ctx context.Context, providerMessageID string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE message_history
		 SET status = $2, delivered_at = $3
		 WHERE provider_message_id = $1 AND status IN ($4, $5)`,
		providerMessageID, StatusDelivered, at, StatusSent, StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark delivered: %w", err)
	}
	rows, _ := result.RowsAffected()

	if rows > 0 {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE campaign_recipients SET status = $2, delivered_at = $3
			 WHERE provider_message_id = $1`,
			providerMessageID, StatusDelivered, at); err != nil {
			s.logger.Error("failed to update campaign recipient",
				zap.String("provider_message_id", providerMessageID), zap.Error(err))
		}
	}
	return rows > 0, nil
}

// MarkFailed transitions a sent/pending row to failed. Same guards as
// MarkDelivered.
func (s *Store) MarkFailed(ctx context.Context, providerMessageID, reason string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE message_history
		 SET status = $2, failed_at = $3, error = NULLIF($4, '')
		 WHERE provider_message_id = $1 AND status IN ($5, $6)`,
		providerMessageID, StatusFailed, at, reason, StatusSent, StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	rows, _ := result.RowsAffected()

	if rows > 0 {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE campaign_recipients SET status = $2, failed_at = $3
			 WHERE provider_message_id = $1`,
			providerMessageID, StatusFailed, at); err != nil {
			s.logger.Error("failed to update campaign recipient",
				zap.String("provider_message_id", providerMessageID), zap.Error(err))
		}
	}
	return rows > 0, nil
}

// UnreconciledProviderIDs lists SMS rows still awaiting a delivery verdict,
// oldest first. The reconciler sweep feeds these back to the provider's
// report endpoint.
func (s *Store) UnreconciledProviderIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider_message_id FROM message_history
		 WHERE channel = 'sms' AND status IN ($1, $2) AND provider_message_id IS NOT NULL
		 ORDER BY created_at ASC LIMIT $3`,
		StatusSent, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list unreconciled: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan provider id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// NewRecord builds the history row for one dispatch result.
func NewRecord(req *dispatch.Request, res *dispatch.Result) *Record {
	now := time.Now().UTC()
	rec := &Record{
		ID:                uuid.New(),
		AccountID:         req.AccountID,
		Channel:           string(req.Channel),
		Sender:            req.SenderID,
		Recipient:         res.Recipient,
		Content:           req.Content(),
		Provider:          providerName,
		ProviderMessageID: res.ProviderID,
		CampaignID:        req.CampaignID,
		CreatedAt:         now,
	}
	if res.Success {
		rec.Status = StatusSent
		rec.SentAt = &now
	} else {
		rec.Status = StatusFailed
		rec.Error = res.Error
		rec.FailedAt = &now
	}
	return rec
}
