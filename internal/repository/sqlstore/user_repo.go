package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
)

type UserRepository struct {
	db *sql.DB
	d  Dialect
}

const userColumns = `id, name, email, password_hash, role, image, created_at`

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	user.Email = domain.NormalizeEmail(user.Email)
	_, err := r.db.ExecContext(ctx, r.d.rebind(`INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Name, user.Email, nullString(user.PasswordHash), string(user.Role),
		nullString(user.Image), user.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user email %s", repository.ErrDuplicate, user.Email)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", repository.ErrNotFound, id)
	}
	return user, err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`),
		domain.NormalizeEmail(email))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user email %s", repository.ErrNotFound, email)
	}
	return user, err
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user  domain.User
		hash  sql.NullString
		role  string
		image sql.NullString
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &hash, &role, &image, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.PasswordHash = hash.String
	user.Role = domain.UserRole(role)
	user.Image = image.String
	return &user, nil
}
