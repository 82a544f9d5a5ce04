package seed

import (
	"context"
	"fraud_monitor/internal/auth"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"fraud_monitor/internal/repository/memory"
	"io"
	"log/slog"
	"testing"
)

func newSeeder(store *memory.Store) *Seeder {
	return NewSeeder(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSeeder_Run(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	result, err := newSeeder(store).Run(ctx, "demo-password")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *result != (Result{Users: 2, Transactions: 5, Reports: 2, Alerts: 4}) {
		t.Errorf("unexpected result %+v", result)
	}

	officer, err := store.Users().GetByEmail(ctx, OfficerEmail)
	if err != nil {
		t.Fatalf("expected officer account: %v", err)
	}
	if officer.Role != domain.RoleCompliance || auth.CheckPassword(officer.PasswordHash, "demo-password") != nil {
		t.Errorf("unexpected officer %+v", officer)
	}
	manager, _ := store.Users().GetByEmail(ctx, ManagerEmail)
	if manager == nil || manager.Role != domain.RoleManager {
		t.Errorf("expected manager account, got %+v", manager)
	}

	txs, _ := store.Transactions().ListByUser(ctx, officer.ID, 0)
	fraud, _ := store.Transactions().Count(ctx, repository.TransactionFilter{UserID: officer.ID, FraudulentOnly: true})
	if len(txs) != 5 || fraud != 2 {
		t.Errorf("expected 5 transactions with 2 fraudulent, got %d and %d", len(txs), fraud)
	}
	for _, tx := range txs {
		if len(tx.Embedding) == 0 {
			t.Errorf("expected embedding on %s", tx.Description)
		}
	}

	reports, _ := store.Reports().ListByUser(ctx, officer.ID)
	for _, r := range reports {
		tx, err := store.Transactions().GetByID(ctx, r.TransactionID)
		if err != nil || !tx.IsFraudulent {
			t.Errorf("report %q should reference a flagged transaction", r.Title)
		}
	}

	alerts, _ := store.Alerts().ListByUser(ctx, officer.ID)
	for _, a := range alerts {
		if a.Status != domain.AlertDelivered || a.SentAt == nil || a.ReportID == "" {
			t.Errorf("unexpected alert %+v", a)
		}
	}
}

func TestSeeder_RunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s := newSeeder(store)
	_, _ = s.Run(ctx, "demo-password")

	result, err := s.Run(ctx, "demo-password")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Skipped {
		t.Error("expected second run to be skipped")
	}
	if n := len(store.TransactionRepo.Snapshot()); n != 5 {
		t.Errorf("expected 5 transactions after rerun, got %d", n)
	}
}
