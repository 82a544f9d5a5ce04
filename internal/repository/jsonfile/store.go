// Package jsonfile persists every collection as a JSON array on disk,
// one file per collection under <dir>/<kind>/<kind>.json.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"fraud_monitor/internal/repository/memory"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const (
	kindUsers        = "users"
	kindTransactions = "transactions"
	kindReports      = "reports"
	kindAlerts       = "alerts"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	dir    string
	mem    *memory.Store
	mu     sync.Mutex
	logger *slog.Logger

	transactions *transactionRepo
	reports      *reportRepo
	alerts       *alertRepo
	users        *userRepo
}

// Open loads existing collections from dir, creating the directory if needed.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &Store{dir: dir, mem: memory.NewStore(), logger: logger}

	var (
		users        []*domain.User
		transactions []*domain.Transaction
		reports      []*domain.Report
		alerts       []*domain.Alert
	)
	if err := s.load(kindUsers, &users); err != nil {
		return nil, err
	}
	if err := s.load(kindTransactions, &transactions); err != nil {
		return nil, err
	}
	if err := s.load(kindReports, &reports); err != nil {
		return nil, err
	}
	if err := s.load(kindAlerts, &alerts); err != nil {
		return nil, err
	}
	s.mem.UserRepo.Restore(users)
	s.mem.TransactionRepo.Restore(transactions)
	s.mem.ReportRepo.Restore(reports)
	s.mem.AlertRepo.Restore(alerts)

	s.transactions = &transactionRepo{TransactionRepository: s.mem.TransactionRepo, store: s}
	s.reports = &reportRepo{ReportRepository: s.mem.ReportRepo, store: s}
	s.alerts = &alertRepo{AlertRepository: s.mem.AlertRepo, store: s}
	s.users = &userRepo{UserRepository: s.mem.UserRepo, store: s}

	logger.Info("JSON file store opened",
		slog.String("dir", dir),
		slog.Int("users", len(users)),
		slog.Int("transactions", len(transactions)))
	return s, nil
}

func (s *Store) Transactions() repository.TransactionRepository { return s.transactions }
func (s *Store) Reports() repository.ReportRepository           { return s.reports }
func (s *Store) Alerts() repository.AlertRepository             { return s.alerts }
func (s *Store) Users() repository.UserRepository               { return s.users }

func (s *Store) Ping(ctx context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *Store) Close() error { return nil }

func (s *Store) path(kind string) string {
	return filepath.Join(s.dir, kind, kind+".json")
}

func (s *Store) load(kind string, dst interface{}) error {
	data, err := os.ReadFile(s.path(kind))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", kind, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return nil
}

// persist applies mutate and rewrites the collection file under one lock.
func (s *Store) persist(kind string, mutate func() error, snapshot func() interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := mutate(); err != nil {
		return err
	}
	return s.write(kind, snapshot())
}

// write replaces the collection file through a temp file and rename.
// Callers hold s.mu.
func (s *Store) write(kind string, items interface{}) error {
	path := s.path(kind)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", kind, err)
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", kind, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", kind, err)
	}
	return nil
}

type transactionRepo struct {
	*memory.TransactionRepository
	store *Store
}

func (r *transactionRepo) Save(ctx context.Context, tx *domain.Transaction) error {
	return r.store.persist(kindTransactions,
		func() error { return r.TransactionRepository.Save(ctx, tx) },
		func() interface{} { return r.Snapshot() })
}

type reportRepo struct {
	*memory.ReportRepository
	store *Store
}

func (r *reportRepo) Save(ctx context.Context, report *domain.Report) error {
	return r.store.persist(kindReports,
		func() error { return r.ReportRepository.Save(ctx, report) },
		func() interface{} { return r.Snapshot() })
}

type alertRepo struct {
	*memory.AlertRepository
	store *Store
}

func (r *alertRepo) Save(ctx context.Context, alert *domain.Alert) error {
	return r.store.persist(kindAlerts,
		func() error { return r.AlertRepository.Save(ctx, alert) },
		func() interface{} { return r.Snapshot() })
}

func (r *alertRepo) Update(ctx context.Context, alert *domain.Alert) error {
	return r.store.persist(kindAlerts,
		func() error { return r.AlertRepository.Update(ctx, alert) },
		func() interface{} { return r.Snapshot() })
}

type userRepo struct {
	*memory.UserRepository
	store *Store
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	return r.store.persist(kindUsers,
		func() error { return r.UserRepository.Create(ctx, user) },
		func() interface{} { return r.Snapshot() })
}
