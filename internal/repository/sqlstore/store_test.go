package sqlstore

import (
	"context"
	"errors"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDialect_Rebind(t *testing.T) {
	got := Postgres.rebind("SELECT * FROM t WHERE a = ? AND b = ?")
	if got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Errorf("unexpected postgres query %q", got)
	}
	if q := SQLite.rebind("a = ?"); q != "a = ?" {
		t.Errorf("sqlite query must stay unchanged, got %q", q)
	}
}

func TestFilterClause(t *testing.T) {
	where, args := filterClause(repository.TransactionFilter{UserID: "u1", Since: time.Now(), FraudulentOnly: true})
	if where != " WHERE user_id = ? AND created_at >= ? AND is_fraudulent = ?" || len(args) != 3 {
		t.Errorf("unexpected clause %q args=%v", where, args)
	}
	if where, _ := filterClause(repository.TransactionFilter{}); where != "" {
		t.Errorf("expected empty clause, got %q", where)
	}
}

func openSQLite(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "fraud.db"), logger)
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED=0") {
			t.Skip("sqlite3 driver needs cgo")
		}
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()

	user := domain.NewUser("Officer", "officer@example.com", domain.RoleCompliance)
	if err := store.Users().Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.Users().Create(ctx, domain.NewUser("Dup", "OFFICER@example.com", domain.RoleManager)); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	tx := domain.NewTransaction(user.ID, 2500, "Refund request").WithIP("10.0.0.1")
	tx.ApplyRisk(domain.RiskHigh)
	tx.Embedding = []float32{0.5, -0.5}
	if err := store.Transactions().Save(ctx, tx); err != nil {
		t.Fatalf("save tx: %v", err)
	}
	got, err := store.Transactions().GetByID(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get tx: %v", err)
	}
	if got.IP != "10.0.0.1" || !got.IsFraudulent || len(got.Embedding) != 2 {
		t.Errorf("unexpected tx %+v", got)
	}

	report, _ := domain.NewReport(tx, domain.FraudAnalysis{RiskLevel: domain.RiskHigh, RiskScore: 70}, nil)
	if err := store.Reports().Save(ctx, report); err != nil {
		t.Fatalf("save report: %v", err)
	}

	alert := domain.NewAlert(domain.AlertRequest{UserID: user.ID, Channel: domain.ChannelSlack, Message: "m", ReportID: report.ID})
	if err := store.Alerts().Save(ctx, alert); err != nil {
		t.Fatalf("save alert: %v", err)
	}
	_ = alert.MarkFailed()
	if err := store.Alerts().Update(ctx, alert); err != nil {
		t.Fatalf("update alert: %v", err)
	}
	alerts, err := store.Alerts().ListByUser(ctx, user.ID)
	if err != nil || len(alerts) != 1 || alerts[0].Status != domain.AlertFailed || alerts[0].ReportID != report.ID {
		t.Fatalf("unexpected alerts %+v err=%v", alerts, err)
	}

	filter := repository.TransactionFilter{UserID: user.ID, Since: time.Now().Add(-time.Hour)}
	count, _ := store.Transactions().Count(ctx, filter)
	sum, _ := store.Transactions().SumAmount(ctx, filter)
	dist, _ := store.Transactions().CountByRiskLevel(ctx, filter)
	if count != 1 || sum != 2500 || dist[domain.RiskHigh] != 1 {
		t.Errorf("unexpected aggregates count=%d sum=%f dist=%v", count, sum, dist)
	}
}
