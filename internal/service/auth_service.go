package service

import (
	"context"
	"errors"
	"fmt"
	"fraud_monitor/internal/auth"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"fraud_monitor/pkg/validator"
	"log/slog"
	"time"
)

var ErrEmailTaken = errors.New("email already registered")

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type Session struct {
	User      domain.PublicUser
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenManager
	sessions  auth.SessionStore
	validator *validator.Validator
	logger    *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, sessions auth.SessionStore, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		sessions:  sessions,
		validator: validator.New(),
		logger:    logger,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := s.validator.ValidateRegistration(in.Name, in.Email, in.Password); err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(in.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := domain.NewUser(in.Name, email, domain.ParseUserRole(in.Role))
	user.PasswordHash = hash

	// The repository enforces uniqueness for concurrent registrations.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		s.logger.WarnContext(ctx, "Failed login", slog.String("user_id", user.ID))
		return nil, err
	}

	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, claims.SessionID(), user.ID, s.tokens.TTL()); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User logged in", slog.String("user_id", user.ID))
	return &Session{User: user.Public(), Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Revoke(ctx, sessionID)
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, auth.ErrUnauthorized
	}
	return user, err
}
