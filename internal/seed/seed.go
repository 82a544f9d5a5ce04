package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"fraud_monitor/internal/auth"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/embedding"
	"fraud_monitor/internal/repository"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	OfficerEmail = "officer@agentledger.com"
	ManagerEmail = "manager@agentledger.com"
)

type demoUser struct {
	name  string
	email string
	role  domain.UserRole
	image string
}

var demoUsers = []demoUser{
	{"Alice Kumar", OfficerEmail, domain.RoleCompliance, "https://images.unsplash.com/photo-1494790108755-2616b612b786?w=150&h=150&fit=crop&crop=face"},
	{"Bob Smith", ManagerEmail, domain.RoleManager, "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=150&h=150&fit=crop&crop=face"},
}

type demoTransaction struct {
	amount      float64
	ip          string
	description string
	level       domain.RiskLevel
}

var demoTransactions = []demoTransaction{
	{150.00, "192.168.1.100", "Online purchase - Electronics store", domain.RiskLow},
	{2500.00, "10.0.0.1", "Refund request - Duplicate purchase claim", domain.RiskHigh},
	{75.50, "172.16.0.1", "Subscription payment - Monthly service", domain.RiskLow},
	{1200.00, "203.0.113.1", "Chargeback dispute - Product not received", domain.RiskCritical},
	{45.00, "198.51.100.1", "Regular transaction - Coffee shop", domain.RiskLow},
}

type demoReport struct {
	title       string
	explanation string
	score       int
	similar     []domain.SimilarTransaction
}

var demoReports = map[domain.RiskLevel]demoReport{
	domain.RiskHigh: {
		title:       "High Risk Refund Request Detected",
		explanation: `This transaction matches patterns from 3 previous fraudulent refund claims. The user is requesting a refund for a "duplicate purchase" but our records show only one legitimate transaction. The IP address is associated with previous fraud attempts.`,
		score:       85,
		similar: []domain.SimilarTransaction{
			{ID: "txn_001", Amount: 1800, Description: "Refund request - Duplicate order", RiskLevel: domain.RiskHigh, Similarity: 0.92},
			{ID: "txn_002", Amount: 2200, Description: "Refund claim - Product not delivered", RiskLevel: domain.RiskHigh, Similarity: 0.88},
		},
	},
	domain.RiskCritical: {
		title:       "Critical Risk Chargeback Detected",
		explanation: `This chargeback dispute shows clear signs of fraud. The user claims "product not received" but our delivery records show successful delivery with signature confirmation. The IP address has been flagged in multiple fraud databases.`,
		score:       95,
		similar: []domain.SimilarTransaction{
			{ID: "txn_003", Amount: 1500, Description: "Chargeback - Item not as described", RiskLevel: domain.RiskCritical, Similarity: 0.95},
		},
	},
}

type Result struct {
	Users        int
	Transactions int
	Reports      int
	Alerts       int
	Skipped      bool
}

// Seeder loads the demo dataset. It does nothing when the officer account
// already exists.
type Seeder struct {
	store    repository.Store
	embedder embedding.Embedder
	now      func() time.Time
	logger   *slog.Logger
}

func NewSeeder(store repository.Store, embedder embedding.Embedder, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if embedder == nil {
		embedder = embedding.NewHashEmbedder(embedding.DefaultDimensions)
	}
	return &Seeder{store: store, embedder: embedder, now: time.Now, logger: logger}
}

func (s *Seeder) Run(ctx context.Context, password string) (*Result, error) {
	_, err := s.store.Users().GetByEmail(ctx, OfficerEmail)
	if err == nil {
		s.logger.InfoContext(ctx, "Seed data already present")
		return &Result{Skipped: true}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check seed state: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash demo password: %w", err)
	}

	result := &Result{}
	var officer *domain.User
	for _, du := range demoUsers {
		user := domain.NewUser(du.name, du.email, du.role)
		user.Image = du.image
		user.PasswordHash = hash
		if err := s.store.Users().Create(ctx, user); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create user %s: %w", du.email, err)
		}
		if du.email == OfficerEmail {
			officer = user
		}
		result.Users++
	}

	flagged := make(map[domain.RiskLevel]*domain.Transaction)
	for i, dt := range demoTransactions {
		tx := domain.NewTransaction(officer.ID, dt.amount, dt.description).WithIP(dt.ip)
		tx.ApplyRisk(dt.level)
		tx.CreatedAt = s.now().Add(time.Duration(i-len(demoTransactions)) * time.Hour)
		if vec, err := s.embedder.Embed(ctx, dt.description); err == nil {
			tx.Embedding = vec
		}
		if err := s.store.Transactions().Save(ctx, tx); err != nil {
			return nil, fmt.Errorf("failed to save transaction: %w", err)
		}
		if _, ok := flagged[dt.level]; !ok && dt.level.IsFraudulent() {
			flagged[dt.level] = tx
		}
		result.Transactions++
	}

	for _, level := range []domain.RiskLevel{domain.RiskHigh, domain.RiskCritical} {
		tx, ok := flagged[level]
		if !ok {
			continue
		}
		report, err := s.createReport(ctx, officer, tx, demoReports[level])
		if err != nil {
			return nil, err
		}
		result.Reports++

		n, err := s.createAlerts(ctx, officer, report)
		if err != nil {
			return nil, err
		}
		result.Alerts += n
	}

	s.logger.InfoContext(ctx, "Seed data loaded",
		slog.Int("users", result.Users),
		slog.Int("transactions", result.Transactions),
		slog.Int("reports", result.Reports),
		slog.Int("alerts", result.Alerts))
	return result, nil
}

func (s *Seeder) createReport(ctx context.Context, officer *domain.User, tx *domain.Transaction, dr demoReport) (*domain.Report, error) {
	cases, err := json.Marshal(dr.similar)
	if err != nil {
		return nil, err
	}
	now := s.now()
	report := &domain.Report{
		ID:            uuid.NewString(),
		TransactionID: tx.ID,
		UserID:        officer.ID,
		Title:         dr.title,
		Explanation:   dr.explanation,
		RiskScore:     dr.score,
		SimilarCases:  string(cases),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Reports().Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	return report, nil
}

func (s *Seeder) createAlerts(ctx context.Context, officer *domain.User, report *domain.Report) (int, error) {
	requests := []domain.AlertRequest{
		{UserID: officer.ID, ReportID: report.ID, Channel: domain.ChannelSlack,
			Message: "🚨 High Risk Fraud Detected: " + report.Title},
		{UserID: officer.ID, ReportID: report.ID, Channel: domain.ChannelEmail,
			Message: fmt.Sprintf("Fraud Alert: %s - Risk Score: %d/100", report.Title, report.RiskScore)},
	}
	for _, req := range requests {
		alert := domain.NewAlert(req)
		if err := alert.MarkDelivered(s.now()); err != nil {
			return 0, err
		}
		if err := s.store.Alerts().Save(ctx, alert); err != nil {
			return 0, fmt.Errorf("failed to save alert: %w", err)
		}
	}
	return len(requests), nil
}
