package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"strings"
	"time"
)

type TransactionRepository struct {
	db *sql.DB
	d  Dialect
}

const transactionColumns = `id, user_id, amount, description, ip, embedding, risk_level, is_fraudulent, created_at, updated_at`

func (r *TransactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	tx.UpdatedAt = time.Now()

	var embedding sql.NullString
	if len(tx.Embedding) > 0 {
		raw, err := json.Marshal(tx.Embedding)
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		embedding = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, r.d.rebind(`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		tx.ID, tx.UserID, tx.Amount, tx.Description, nullString(tx.IP), embedding,
		string(tx.RiskLevel), tx.IsFraudulent, tx.CreatedAt.UTC(), tx.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction %s", repository.ErrDuplicate, tx.ID)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`), id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
	}
	return tx, err
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var args []interface{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

func (r *TransactionRepository) ListRecent(ctx context.Context, since time.Time, excludeUserID string, limit int) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE created_at >= ? AND user_id <> ? ORDER BY created_at DESC`
	args := []interface{}{since.UTC(), excludeUserID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

func (r *TransactionRepository) Count(ctx context.Context, filter repository.TransactionFilter) (int, error) {
	where, args := filterClause(filter)
	var count int
	err := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT COUNT(*) FROM transactions`+where), args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *TransactionRepository) SumAmount(ctx context.Context, filter repository.TransactionFilter) (float64, error) {
	where, args := filterClause(filter)
	var sum sql.NullFloat64
	err := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT SUM(amount) FROM transactions`+where), args...).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return sum.Float64, nil
}

func (r *TransactionRepository) CountByRiskLevel(ctx context.Context, filter repository.TransactionFilter) (map[domain.RiskLevel]int, error) {
	where, args := filterClause(filter)
	rows, err := r.db.QueryContext(ctx, r.d.rebind(`SELECT risk_level, COUNT(*) FROM transactions`+where+` GROUP BY risk_level`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to group transactions: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.RiskLevel]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		counts[domain.RiskLevel(level)] = n
	}
	return counts, rows.Err()
}

func (r *TransactionRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func filterClause(f repository.TransactionFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if f.FraudulentOnly {
		conds = append(conds, "is_fraudulent = ?")
		args = append(args, true)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx        domain.Transaction
		ip        sql.NullString
		embedding sql.NullString
		level     string
	)
	err := row.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Description, &ip, &embedding,
		&level, &tx.IsFraudulent, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tx.IP = ip.String
	tx.RiskLevel = domain.RiskLevel(level)
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &tx.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding of %s: %w", tx.ID, err)
		}
	}
	return &tx, nil
}
