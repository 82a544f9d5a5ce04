package memory

import (
	"context"
	"errors"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"testing"
	"time"
)

func TestUserRepository_CreateAndGetByEmail(t *testing.T) {
	repo := NewUserRepository()
	user := domain.NewUser("Alice", "Alice@Example.com", domain.RoleCompliance)

	err := repo.Create(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error on Create: %v", err)
	}
	got, err := repo.GetByEmail(context.Background(), " alice@example.com")

	if err != nil {
		t.Fatalf("unexpected error on GetByEmail: %v", err)
	}
	if got.ID != user.ID || got.Name != "Alice" {
		t.Errorf("expected user %+v, got %+v", user, got)
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := NewUserRepository()
	_ = repo.Create(context.Background(), domain.NewUser("A", "a@example.com", domain.RoleCompliance))

	err := repo.Create(context.Background(), domain.NewUser("B", "A@example.com", domain.RoleManager))

	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if len(repo.Snapshot()) != 1 {
		t.Errorf("expected exactly one stored user")
	}
}

func TestTransactionRepository_SaveAndGetByID(t *testing.T) {
	repo := NewTransactionRepository()
	tx := domain.NewTransaction("u1", 100, "groceries")
	tx.ApplyRisk(domain.RiskHigh)

	_ = repo.Save(context.Background(), tx)
	got, err := repo.GetByID(context.Background(), tx.ID)

	if err != nil {
		t.Fatalf("unexpected error on GetByID: %v", err)
	}
	if got.Amount != 100 || !got.IsFraudulent {
		t.Errorf("expected transaction %+v, got %+v", tx, got)
	}
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionRepository_ListByUserNewestFirst(t *testing.T) {
	repo := NewTransactionRepository()
	now := time.Now()
	for i, offset := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		tx := domain.NewTransaction("u1", float64(i), "t")
		tx.CreatedAt = now.Add(-offset)
		_ = repo.Save(context.Background(), tx)
	}
	_ = repo.Save(context.Background(), domain.NewTransaction("u2", 9, "other"))

	got, err := repo.ListByUser(context.Background(), "u1", 2)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Amount != 1 || got[1].Amount != 2 {
		t.Errorf("expected amounts [1 2], got %+v", got)
	}
}

func TestTransactionRepository_ListRecentExcludesUserAndOldRows(t *testing.T) {
	repo := NewTransactionRepository()
	now := time.Now()
	old := domain.NewTransaction("u2", 1, "old")
	old.CreatedAt = now.AddDate(0, 0, -40)
	_ = repo.Save(context.Background(), old)
	_ = repo.Save(context.Background(), domain.NewTransaction("u1", 2, "mine"))
	fresh := domain.NewTransaction("u2", 3, "fresh")
	_ = repo.Save(context.Background(), fresh)

	got, _ := repo.ListRecent(context.Background(), now.AddDate(0, 0, -30), "u1", 100)

	if len(got) != 1 || got[0].ID != fresh.ID {
		t.Errorf("expected only the fresh transaction, got %+v", got)
	}
}

func TestTransactionRepository_Aggregates(t *testing.T) {
	repo := NewTransactionRepository()
	levels := []domain.RiskLevel{domain.RiskLow, domain.RiskHigh, domain.RiskCritical, domain.RiskLow}
	for i, level := range levels {
		tx := domain.NewTransaction("u1", float64(10*(i+1)), "t")
		tx.ApplyRisk(level)
		_ = repo.Save(context.Background(), tx)
	}
	filter := repository.TransactionFilter{UserID: "u1"}

	total, _ := repo.Count(context.Background(), filter)
	fraud, _ := repo.Count(context.Background(), repository.TransactionFilter{UserID: "u1", FraudulentOnly: true})
	sum, _ := repo.SumAmount(context.Background(), filter)
	dist, _ := repo.CountByRiskLevel(context.Background(), filter)

	if total != 4 || fraud != 2 {
		t.Errorf("expected 4 total and 2 fraudulent, got %d and %d", total, fraud)
	}
	if sum != 100 {
		t.Errorf("expected sum 100, got %f", sum)
	}
	if dist[domain.RiskLow] != 2 || dist[domain.RiskCritical] != 1 {
		t.Errorf("unexpected distribution %v", dist)
	}
}

func TestAlertRepository_UpdateStatus(t *testing.T) {
	repo := NewAlertRepository()
	alert := domain.NewAlert(domain.AlertRequest{UserID: "u1", Channel: domain.ChannelEmail, Message: "m"})
	_ = repo.Save(context.Background(), alert)

	_ = alert.MarkDelivered(time.Now())
	err := repo.Update(context.Background(), alert)
	got, _ := repo.GetByID(context.Background(), alert.ID)

	if err != nil {
		t.Fatalf("unexpected error on Update: %v", err)
	}
	if got.Status != domain.AlertDelivered || got.SentAt == nil {
		t.Errorf("expected delivered alert with sentAt, got %+v", got)
	}
}
