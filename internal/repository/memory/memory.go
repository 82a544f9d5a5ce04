package memory

import (
	"context"
	"fraud_monitor/internal/repository"
)

var (
	_ repository.TransactionRepository = (*TransactionRepository)(nil)
	_ repository.ReportRepository      = (*ReportRepository)(nil)
	_ repository.AlertRepository       = (*AlertRepository)(nil)
	_ repository.UserRepository        = (*UserRepository)(nil)
	_ repository.Store                 = (*Store)(nil)
)

// Store keeps every collection in process memory.
type Store struct {
	TransactionRepo *TransactionRepository
	ReportRepo      *ReportRepository
	AlertRepo       *AlertRepository
	UserRepo        *UserRepository
}

func NewStore() *Store {
	return &Store{
		TransactionRepo: NewTransactionRepository(),
		ReportRepo:      NewReportRepository(),
		AlertRepo:       NewAlertRepository(),
		UserRepo:        NewUserRepository(),
	}
}

func (s *Store) Transactions() repository.TransactionRepository { return s.TransactionRepo }
func (s *Store) Reports() repository.ReportRepository           { return s.ReportRepo }
func (s *Store) Alerts() repository.AlertRepository             { return s.AlertRepo }
func (s *Store) Users() repository.UserRepository               { return s.UserRepo }

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }
