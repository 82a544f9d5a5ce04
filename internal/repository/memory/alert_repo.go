package memory

import (
	"context"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"sort"
	"sync"
)

type AlertRepository struct {
	mu     sync.RWMutex
	alerts map[string]*domain.Alert
}

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{
		alerts: make(map[string]*domain.Alert),
	}
}

func (r *AlertRepository) Save(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.alerts[alert.ID]; exists {
		return fmt.Errorf("%w: alert %s", repository.ErrDuplicate, alert.ID)
	}

	r.alerts[alert.ID] = cloneAlert(alert)
	return nil
}

func (r *AlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.alerts[alert.ID]
	if !exists {
		return fmt.Errorf("%w: alert %s", repository.ErrNotFound, alert.ID)
	}

	updated := cloneAlert(stored)
	updated.Status = alert.Status
	updated.SentAt = alert.SentAt
	r.alerts[alert.ID] = cloneAlert(updated)
	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, exists := r.alerts[id]
	if !exists {
		return nil, fmt.Errorf("%w: alert %s", repository.ErrNotFound, id)
	}
	return cloneAlert(alert), nil
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Alert
	for _, alert := range r.alerts {
		if alert.UserID == userID {
			result = append(result, cloneAlert(alert))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *AlertRepository) Snapshot() []*domain.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Alert, 0, len(r.alerts))
	for _, alert := range r.alerts {
		result = append(result, cloneAlert(alert))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (r *AlertRepository) Restore(items []*domain.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts = make(map[string]*domain.Alert, len(items))
	for _, alert := range items {
		r.alerts[alert.ID] = cloneAlert(alert)
	}
}

func cloneAlert(a *domain.Alert) *domain.Alert {
	out := *a
	if a.SentAt != nil {
		sent := *a.SentAt
		out.SentAt = &sent
	}
	return &out
}
