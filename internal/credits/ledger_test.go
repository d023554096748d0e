package credits

import (
	"context"
	"testing"

	"mspace-gateway/internal/persistence"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ledger := NewLedger(&persistence.PostgresDB{DB: db}, nil, zap.NewNop())
	return ledger, mock
}

func TestReserveDebitsEstimate(t *testing.T) {
	ledger, mock := newTestLedger(t)
	accountID := uuid.New()

	mock.ExpectExec("UPDATE user_credits").
		WithArgs(2.40, accountID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := ledger.Reserve(context.Background(), accountID, 2.40); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReserveRejectsInsufficientCredits(t *testing.T) {
	ledger, mock := newTestLedger(t)
	accountID := uuid.New()

	// Conditional guard matched no row: balance below estimate.
	mock.ExpectExec("UPDATE user_credits").
		WithArgs(100.0, accountID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := ledger.Reserve(context.Background(), accountID, 100.0)
	if err != ErrInsufficientCredits {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
}

func TestReserveSkipsZeroEstimate(t *testing.T) {
	ledger, mock := newTestLedger(t)

	if err := ledger.Reserve(context.Background(), uuid.New(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSettleRefundsUnspentEstimate(t *testing.T) {
	ledger, mock := newTestLedger(t)
	accountID := uuid.New()

	// Estimate 2.40, realized 1.60: refund 0.80, used grows by 1.60.
	estimate, realized := 2.40, 1.60
	mock.ExpectExec("UPDATE user_credits").
		WithArgs(estimate-realized, realized, accountID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := ledger.Settle(context.Background(), accountID, estimate, realized); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSettleClampsRealizedToEstimate(t *testing.T) {
	ledger, mock := newTestLedger(t)
	accountID := uuid.New()

	// Provider-quoted costs exceeded the estimate; the debit never exceeds
	// what was reserved.
	mock.ExpectExec("UPDATE user_credits").
		WithArgs(0.0, 2.0, accountID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := ledger.Settle(context.Background(), accountID, 2.0, 3.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReleaseRefundsFullEstimate(t *testing.T) {
	ledger, mock := newTestLedger(t)
	accountID := uuid.New()

	mock.ExpectExec("UPDATE user_credits").
		WithArgs(5.0, 0.0, accountID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := ledger.Release(context.Background(), accountID, 5.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetBalance(t *testing.T) {
	ledger, mock := newTestLedger(t)
	accountID := uuid.New()

	mock.ExpectQuery("SELECT credits_remaining, credits_used, credits_total").
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "credits_used", "credits_total"}).
			AddRow(97.60, 2.40, 100.0))

	bal, err := ledger.GetBalance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal.Remaining != 97.60 || bal.Used != 2.40 || bal.Total != 100.0 {
		t.Fatalf("unexpected balance: %+v", bal)
	}
}

func TestGetBalanceUnknownAccount(t *testing.T) {
	ledger, mock := newTestLedger(t)
	accountID := uuid.New()

	mock.ExpectQuery("SELECT credits_remaining, credits_used, credits_total").
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "credits_used", "credits_total"}))

	if _, err := ledger.GetBalance(context.Background(), accountID); err == nil {
		t.Fatal("expected error for unknown account")
	}
}
