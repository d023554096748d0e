// Package credits is the prepaid ledger gate in front of every paid
// dispatch. The estimate is reserved with a single atomic conditional
// decrement before any provider call; settlement refunds whatever the
// batch did not actually spend. Two concurrent batches can therefore
// never drive the balance negative.
package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mspace-gateway/internal/observability"
	"mspace-gateway/internal/persistence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInsufficientCredits rejects a batch whose estimated cost exceeds the
// remaining balance. Nothing is dispatched in that case.
var ErrInsufficientCredits = errors.New("insufficient credits")

type Balance struct {
	Remaining float64 `json:"credits_remaining"`
	Used      float64 `json:"credits_used"`
	Total     float64 `json:"credits_total"`
}

type Ledger struct {
	db      *persistence.PostgresDB
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewLedger(db *persistence.PostgresDB, metrics *observability.Metrics, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, metrics: metrics, logger: logger}
}

// Reserve atomically debits the estimated cost. Zero rows affected means
// the conditional guard failed: the account cannot cover the estimate.
func (l *Ledger) Reserve(ctx context.Context, accountID uuid.UUID, estimate float64) error {
	if estimate <= 0 {
		return nil
	}

	result, err := l.db.ExecContext(ctx,
		`UPDATE user_credits
		 SET credits_remaining = credits_remaining - $1, updated_at = NOW()
		 WHERE account_id = $2 AND credits_remaining >= $1`,
		estimate, accountID)
	if err != nil {
		return fmt.Errorf("reserve credits: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrInsufficientCredits
	}

	l.count("reserve")
	l.logger.Info("credits reserved",
		zap.String("account", accountID.String()), zap.Float64("estimate", estimate))
	return nil
}

// Settle finalizes a reservation after the batch completes: the realized
// cost (successful results only) moves to credits_used, the unspent
// remainder of the estimate returns to credits_remaining.
func (l *Ledger) Settle(ctx context.Context, accountID uuid.UUID, estimate, realized float64) error {
	if realized > estimate {
		realized = estimate
	}
	refund := estimate - realized

	_, err := l.db.ExecContext(ctx,
		`UPDATE user_credits
		 SET credits_remaining = credits_remaining + $1,
		     credits_used = credits_used + $2,
		     updated_at = NOW()
		 WHERE account_id = $3`,
		refund, realized, accountID)
	if err != nil {
		return fmt.Errorf("settle credits: %w", err)
	}

	l.count("settle")
	l.logger.Info("credits settled",
		zap.String("account", accountID.String()),
		zap.Float64("realized", realized),
		zap.Float64("refunded", refund))
	return nil
}

// Release returns the full reservation. Used when the batch never ran.
func (l *Ledger) Release(ctx context.Context, accountID uuid.UUID, estimate float64) error {
	if estimate <= 0 {
		return nil
	}
	if err := l.Settle(ctx, accountID, estimate, 0); err != nil {
		return err
	}
	l.count("release")
	return nil
}

func (l *Ledger) GetBalance(ctx context.Context, accountID uuid.UUID) (*Balance, error) {
	var bal Balance
	err := l.db.QueryRowContext(ctx,
		`SELECT credits_remaining, credits_used, credits_total
		 FROM user_credits WHERE account_id = $1`, accountID).
		Scan(&bal.Remaining, &bal.Used, &bal.Total)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s has no credit record", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &bal, nil
}

// AddCredits tops up an account.
func (l *Ledger) AddCredits(ctx context.Context, accountID uuid.UUID, amount float64) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE user_credits
		 SET credits_remaining = credits_remaining + $1,
		     credits_total = credits_total + $1,
		     updated_at = NOW()
		 WHERE account_id = $2`,
		amount, accountID)
	if err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	l.count("add")
	return nil
}

func (l *Ledger) count(op string) {
	if l.metrics != nil {
		l.metrics.CreditOperationsTotal.WithLabelValues(op).Inc()
	}
}
