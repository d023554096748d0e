package history

import (
	"context"
	"testing"
	"time"

	"mspace-gateway/internal/dispatch"
	"mspace-gateway/internal/persistence"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewStore(&persistence.PostgresDB{DB: db}, zap.NewNop()), mock
}

func TestInsert(t *testing.T) {
	store, mock := newTestStore(t)
	rec := &Record{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Channel:   "sms",
		Recipient: "+254700000001",
		Content:   "hello",
		Status:    StatusSent,
		Provider:  "mspace",
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO message_history").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Insert(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkDeliveredMirrorsCampaignRow(t *testing.T) {
	store, mock := newTestStore(t)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE message_history").
		WithArgs("mspace_42", StatusDelivered, at, StatusSent, StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaign_recipients").
		WithArgs("mspace_42", StatusDelivered, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := store.MarkDelivered(context.Background(), "mspace_42", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected a row transition")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkDeliveredSkipsTerminalRows(t *testing.T) {
	store, mock := newTestStore(t)
	at := time.Now().UTC()

	// Row already delivered or failed: the guard matches nothing and the
	// campaign mirror is not touched.
	mock.ExpectExec("UPDATE message_history").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := store.MarkDelivered(context.Background(), "mspace_42", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatal("terminal row must not transition")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkFailedRecordsReason(t *testing.T) {
	store, mock := newTestStore(t)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE message_history").
		WithArgs("mspace_42", StatusFailed, at, "absent subscriber", StatusSent, StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaign_recipients").
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := store.MarkFailed(context.Background(), "mspace_42", "absent subscriber", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected a row transition")
	}
}

func TestUpsertCampaignRecipient(t *testing.T) {
	store, mock := newTestStore(t)
	at := time.Now().UTC()

	mock.ExpectExec("INSERT INTO campaign_recipients").
		WithArgs("camp_1", "+254700000001", StatusSent, "mspace_42", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertCampaignRecipient(context.Background(), "camp_1", "+254700000001", StatusSent, "mspace_42", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUnreconciledProviderIDs(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT provider_message_id FROM message_history").
		WithArgs(StatusSent, StatusPending, 100).
		WillReturnRows(sqlmock.NewRows([]string{"provider_message_id"}).
			AddRow("mspace_1").
			AddRow("mspace_2"))

	ids, err := store.UnreconciledProviderIDs(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "mspace_1" || ids[1] != "mspace_2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestNewRecordStatusMapping(t *testing.T) {
	req := &dispatch.Request{
		Channel:    dispatch.ChannelSMS,
		AccountID:  uuid.New(),
		Recipients: []string{"+254700000001"},
		Message:    "hello",
		SenderID:   "SENDER",
		CampaignID: "camp_1",
	}

	sent := NewRecord(req, &dispatch.Result{Recipient: "+254700000001", Success: true, ProviderID: "mspace_1"})
	if sent.Status != StatusSent || sent.SentAt == nil || sent.FailedAt != nil {
		t.Fatalf("unexpected sent record: %+v", sent)
	}
	if sent.ProviderMessageID != "mspace_1" || sent.CampaignID != "camp_1" {
		t.Fatalf("provider/campaign ids not carried: %+v", sent)
	}

	failed := NewRecord(req, &dispatch.Result{Recipient: "+254700000002", Success: false, Error: "unreachable"})
	if failed.Status != StatusFailed || failed.Error != "unreachable" || failed.FailedAt == nil {
		t.Fatalf("unexpected failed record: %+v", failed)
	}
	if failed.SentAt != nil {
		t.Fatal("failed record must not carry sent_at")
	}
}
