// Package sqlstore implements the repositories on database/sql for
// PostgreSQL (lib/pq) and SQLite (go-sqlite3).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"fraud_monitor/internal/repository"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

type Dialect struct {
	Name       string
	DriverName string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

var (
	Postgres = Dialect{Name: "postgres", DriverName: "postgres", numbered: true}
	SQLite   = Dialect{Name: "sqlite", DriverName: "sqlite3"}
)

func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ repository.Store = (*Store)(nil)

type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger

	transactions *TransactionRepository
	reports      *ReportRepository
	alerts       *AlertRepository
	users        *UserRepository
}

// OpenPostgres connects with a lib/pq DSN and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	return open(ctx, Postgres, dsn, logger)
}

// OpenSQLite opens (or creates) the database file and applies the schema.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	return open(ctx, SQLite, path+"?_foreign_keys=on&_busy_timeout=5000", logger)
}

func open(ctx context.Context, dialect Dialect, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dialect.numbered {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	} else {
		db.SetMaxOpenConns(1)
	}

	s := NewStore(db, dialect, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQL store ready", slog.String("dialect", dialect.Name))
	return s, nil
}

// NewStore wraps an already opened database. Call Migrate before use.
func NewStore(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, dialect: dialect, logger: logger}
	s.transactions = &TransactionRepository{db: db, d: dialect}
	s.reports = &ReportRepository{db: db, d: dialect}
	s.alerts = &AlertRepository{db: db, d: dialect}
	s.users = &UserRepository{db: db, d: dialect}
	return s
}

func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	s.logger.Info("Migrations completed", slog.Int("statements", len(migrations)))
	return nil
}

func (s *Store) Transactions() repository.TransactionRepository { return s.transactions }
func (s *Store) Reports() repository.ReportRepository           { return s.reports }
func (s *Store) Alerts() repository.AlertRepository             { return s.alerts }
func (s *Store) Users() repository.UserRepository               { return s.users }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

// Plain column types keep one schema valid for both dialects.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		email VARCHAR(320) NOT NULL UNIQUE,
		password_hash VARCHAR(255),
		role VARCHAR(20) NOT NULL,
		image TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		description TEXT NOT NULL,
		ip VARCHAR(64),
		embedding TEXT,
		risk_level VARCHAR(16) NOT NULL,
		is_fraudulent BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id VARCHAR(64) PRIMARY KEY,
		transaction_id VARCHAR(64) NOT NULL REFERENCES transactions(id),
		user_id VARCHAR(64) NOT NULL,
		title TEXT NOT NULL,
		explanation TEXT NOT NULL,
		risk_score INTEGER NOT NULL,
		similar_cases TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_user_id ON reports(user_id)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id VARCHAR(64) PRIMARY KEY,
		report_id VARCHAR(64) REFERENCES reports(id),
		user_id VARCHAR(64) NOT NULL,
		channel VARCHAR(16) NOT NULL,
		message TEXT NOT NULL,
		status VARCHAR(16) NOT NULL,
		sent_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_user_id ON alerts(user_id)`,
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
