package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
)

type ReportRepository struct {
	db *sql.DB
	d  Dialect
}

const reportColumns = `id, transaction_id, user_id, title, explanation, risk_score, similar_cases, created_at, updated_at`

func (r *ReportRepository) Save(ctx context.Context, report *domain.Report) error {
	_, err := r.db.ExecContext(ctx, r.d.rebind(`INSERT INTO reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		report.ID, report.TransactionID, report.UserID, report.Title, report.Explanation,
		report.RiskScore, report.SimilarCases, report.CreatedAt.UTC(), report.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: report %s", repository.ErrDuplicate, report.ID)
		}
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT `+reportColumns+` FROM reports WHERE id = ?`), id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: report %s", repository.ErrNotFound, id)
	}
	return report, err
}

func (r *ReportRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Report, error) {
	rows, err := r.db.QueryContext(ctx, r.d.rebind(`SELECT `+reportColumns+` FROM reports
		WHERE user_id = ? ORDER BY created_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var result []*domain.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, report)
	}
	return result, rows.Err()
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var report domain.Report
	err := row.Scan(&report.ID, &report.TransactionID, &report.UserID, &report.Title,
		&report.Explanation, &report.RiskScore, &report.SimilarCases, &report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &report, nil
}
