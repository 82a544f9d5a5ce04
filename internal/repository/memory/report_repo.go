package memory

import (
	"context"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"sort"
	"sync"
)

type ReportRepository struct {
	mu      sync.RWMutex
	reports map[string]*domain.Report
}

func NewReportRepository() *ReportRepository {
	return &ReportRepository{
		reports: make(map[string]*domain.Report),
	}
}

func (r *ReportRepository) Save(ctx context.Context, report *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reports[report.ID]; exists {
		return fmt.Errorf("%w: report %s", repository.ErrDuplicate, report.ID)
	}

	stored := *report
	r.reports[report.ID] = &stored
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, exists := r.reports[id]
	if !exists {
		return nil, fmt.Errorf("%w: report %s", repository.ErrNotFound, id)
	}
	out := *report
	return &out, nil
}

func (r *ReportRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Report
	for _, report := range r.reports {
		if report.UserID == userID {
			out := *report
			result = append(result, &out)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *ReportRepository) Snapshot() []*domain.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Report, 0, len(r.reports))
	for _, report := range r.reports {
		out := *report
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (r *ReportRepository) Restore(items []*domain.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports = make(map[string]*domain.Report, len(items))
	for _, report := range items {
		stored := *report
		r.reports[report.ID] = &stored
	}
}
