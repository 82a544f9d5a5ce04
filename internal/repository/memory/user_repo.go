package memory

import (
	"context"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"sort"
	"sync"
)

type UserRepository struct {
	mu      sync.RWMutex
	users   map[string]*domain.User
	byEmail map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:   make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := domain.NormalizeEmail(user.Email)
	if _, exists := r.byEmail[email]; exists {
		return fmt.Errorf("%w: user email %s", repository.ErrDuplicate, email)
	}
	if _, exists := r.users[user.ID]; exists {
		return fmt.Errorf("%w: user %s", repository.ErrDuplicate, user.ID)
	}

	stored := *user
	stored.Email = email
	r.users[user.ID] = &stored
	r.byEmail[email] = user.ID

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, fmt.Errorf("%w: user %s", repository.ErrNotFound, id)
	}
	out := *user
	return &out, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byEmail[domain.NormalizeEmail(email)]
	if !exists {
		return nil, fmt.Errorf("%w: user email %s", repository.ErrNotFound, email)
	}
	out := *r.users[id]
	return &out, nil
}

func (r *UserRepository) Snapshot() []*domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out := *u
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (r *UserRepository) Restore(items []*domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = make(map[string]*domain.User, len(items))
	r.byEmail = make(map[string]string, len(items))
	for _, u := range items {
		stored := *u
		stored.Email = domain.NormalizeEmail(u.Email)
		r.users[u.ID] = &stored
		r.byEmail[stored.Email] = u.ID
	}
}
