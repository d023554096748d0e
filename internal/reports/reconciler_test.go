package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mspace-gateway/internal/history"
	"mspace-gateway/internal/mspace"
	"mspace-gateway/internal/persistence"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
)

// fakeProvider answers /reports/ with a canned verdict per message id.
func fakeProvider(t *testing.T, verdicts map[string]map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		id, _ := body["msgid"].(string)

		data, ok := verdicts[id]
		if !ok {
			json.NewEncoder(w).Encode(map[string]any{"status": 1006, "message": "unknown message"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": mspace.StatusSuccess, "data": data})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestReconciler(t *testing.T, verdicts map[string]map[string]any) (*Reconciler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	server := fakeProvider(t, verdicts)
	client := mspace.NewClient(server.URL, "u", "k", 5*time.Second, zap.NewNop())
	store := history.NewStore(&persistence.PostgresDB{DB: db}, zap.NewNop())
	return NewReconciler(client, store, nil, zap.NewNop()), mock
}

func TestReconcileAppliesDeliveredAndFailed(t *testing.T) {
	rec, mock := newTestReconciler(t, map[string]map[string]any{
		"mspace_1": {"status": "delivered", "delivered_at": "2026-08-28T10:00:00Z"},
		"mspace_2": {"status": "failed", "failed_reason": "absent subscriber"},
	})

	mock.ExpectExec("UPDATE message_history").
		WithArgs("mspace_1", history.StatusDelivered, sqlmock.AnyArg(), history.StatusSent, history.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaign_recipients").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE message_history").
		WithArgs("mspace_2", history.StatusFailed, sqlmock.AnyArg(), "absent subscriber", history.StatusSent, history.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaign_recipients").
		WillReturnResult(sqlmock.NewResult(0, 0))

	reports := rec.Reconcile(context.Background(), []string{"mspace_1", "mspace_2"})
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Status != "delivered" || reports[1].Status != "failed" {
		t.Fatalf("unexpected verdicts: %+v", reports)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReconcileLeavesPendingUntouched(t *testing.T) {
	rec, mock := newTestReconciler(t, map[string]map[string]any{
		"mspace_1": {"status": "pending"},
	})

	// No store expectations: pending must not touch the database.
	reports := rec.Reconcile(context.Background(), []string{"mspace_1"})
	if len(reports) != 1 || reports[0].Status != "pending" {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReconcileSkipsFetchErrors(t *testing.T) {
	// Provider does not know the id, so the fetch errors and the row is
	// left for the next sweep.
	rec, mock := newTestReconciler(t, nil)

	reports := rec.Reconcile(context.Background(), []string{"mspace_unknown"})
	if len(reports) != 0 {
		t.Fatalf("expected no reports, got %+v", reports)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSweepFeedsUnreconciledRows(t *testing.T) {
	rec, mock := newTestReconciler(t, map[string]map[string]any{
		"mspace_1": {"status": "delivered"},
	})

	mock.ExpectQuery("SELECT provider_message_id FROM message_history").
		WithArgs(history.StatusSent, history.StatusPending, 50).
		WillReturnRows(sqlmock.NewRows([]string{"provider_message_id"}).AddRow("mspace_1"))
	mock.ExpectExec("UPDATE message_history").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaign_recipients").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := rec.Sweep(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reconciled report, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSweepEmptyBacklog(t *testing.T) {
	rec, mock := newTestReconciler(t, nil)

	mock.ExpectQuery("SELECT provider_message_id FROM message_history").
		WillReturnRows(sqlmock.NewRows([]string{"provider_message_id"}))

	n, err := rec.Sweep(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}
