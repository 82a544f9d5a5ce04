package repository

import (
	"context"
	"errors"
	"fraud_monitor/internal/domain"
	"time"
)

// TransactionFilter narrows aggregate queries. Zero values match everything.
type TransactionFilter struct {
	UserID         string
	Since          time.Time
	FraudulentOnly bool
}

func (f TransactionFilter) Match(tx *domain.Transaction) bool {
	if f.UserID != "" && tx.UserID != f.UserID {
		return false
	}
	if !f.Since.IsZero() && tx.CreatedAt.Before(f.Since) {
		return false
	}
	if f.FraudulentOnly && !tx.IsFraudulent {
		return false
	}
	return true
}

type TransactionRepository interface {
	Save(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	// ListByUser returns newest first; an empty userID lists every user.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Transaction, error)
	// ListRecent returns transactions created since the given time by users other than excludeUserID, newest first.
	ListRecent(ctx context.Context, since time.Time, excludeUserID string, limit int) ([]*domain.Transaction, error)
	Count(ctx context.Context, filter TransactionFilter) (int, error)
	SumAmount(ctx context.Context, filter TransactionFilter) (float64, error)
	CountByRiskLevel(ctx context.Context, filter TransactionFilter) (map[domain.RiskLevel]int, error)
}

type ReportRepository interface {
	Save(ctx context.Context, report *domain.Report) error
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Report, error)
}

type AlertRepository interface {
	Save(ctx context.Context, alert *domain.Alert) error
	// Update persists the status and sent time of an existing alert.
	Update(ctx context.Context, alert *domain.Alert) error
	GetByID(ctx context.Context, id string) (*domain.Alert, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Alert, error)
}

type UserRepository interface {
	// Create fails with ErrDuplicate when the email is already taken.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Store bundles the repositories of one persistence backend.
type Store interface {
	Transactions() TransactionRepository
	Reports() ReportRepository
	Alerts() AlertRepository
	Users() UserRepository
	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)
