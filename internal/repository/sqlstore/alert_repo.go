package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
)

type AlertRepository struct {
	db *sql.DB
	d  Dialect
}

const alertColumns = `id, report_id, user_id, channel, message, status, sent_at, created_at`

func (r *AlertRepository) Save(ctx context.Context, alert *domain.Alert) error {
	_, err := r.db.ExecContext(ctx, r.d.rebind(`INSERT INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		alert.ID, nullString(alert.ReportID), alert.UserID, string(alert.Channel), alert.Message,
		string(alert.Status), nullTime(alert), alert.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: alert %s", repository.ErrDuplicate, alert.ID)
		}
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	res, err := r.db.ExecContext(ctx, r.d.rebind(`UPDATE alerts SET status = ?, sent_at = ? WHERE id = ?`),
		string(alert.Status), nullTime(alert), alert.ID)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: alert %s", repository.ErrNotFound, alert.ID)
	}
	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	row := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT `+alertColumns+` FROM alerts WHERE id = ?`), id)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: alert %s", repository.ErrNotFound, id)
	}
	return alert, err
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Alert, error) {
	rows, err := r.db.QueryContext(ctx, r.d.rebind(`SELECT `+alertColumns+` FROM alerts
		WHERE user_id = ? ORDER BY created_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var result []*domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}

func nullTime(alert *domain.Alert) sql.NullTime {
	if alert.SentAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: alert.SentAt.UTC(), Valid: true}
}

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var (
		alert    domain.Alert
		reportID sql.NullString
		channel  string
		status   string
		sentAt   sql.NullTime
	)
	err := row.Scan(&alert.ID, &reportID, &alert.UserID, &channel, &alert.Message, &status, &sentAt, &alert.CreatedAt)
	if err != nil {
		return nil, err
	}
	alert.ReportID = reportID.String
	alert.Channel = domain.AlertChannel(channel)
	alert.Status = domain.AlertStatus(status)
	if sentAt.Valid {
		t := sentAt.Time
		alert.SentAt = &t
	}
	return &alert, nil
}
