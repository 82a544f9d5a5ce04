package memory

import (
	"context"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"sort"
	"sync"
	"time"
)

type TransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	byUser       map[string][]string
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{
		transactions: make(map[string]*domain.Transaction),
		byUser:       make(map[string][]string),
	}
}

func (r *TransactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transactions[tx.ID]; exists {
		return fmt.Errorf("%w: transaction %s", repository.ErrDuplicate, tx.ID)
	}

	tx.UpdatedAt = time.Now()
	stored := *tx
	r.transactions[tx.ID] = &stored
	r.byUser[tx.UserID] = append(r.byUser[tx.UserID], tx.ID)

	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, exists := r.transactions[id]
	if !exists {
		return nil, fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
	}
	out := *tx
	return &out, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Transaction
	if userID == "" {
		for _, tx := range r.transactions {
			result = append(result, tx)
		}
	} else {
		for _, id := range r.byUser[userID] {
			result = append(result, r.transactions[id])
		}
	}

	return copyNewestFirst(result, limit), nil
}

func (r *TransactionRepository) ListRecent(ctx context.Context, since time.Time, excludeUserID string, limit int) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range r.transactions {
		if tx.UserID == excludeUserID || tx.CreatedAt.Before(since) {
			continue
		}
		result = append(result, tx)
	}

	return copyNewestFirst(result, limit), nil
}

func (r *TransactionRepository) Count(ctx context.Context, filter repository.TransactionFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int
	for _, tx := range r.transactions {
		if filter.Match(tx) {
			count++
		}
	}
	return count, nil
}

func (r *TransactionRepository) SumAmount(ctx context.Context, filter repository.TransactionFilter) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total float64
	for _, tx := range r.transactions {
		if filter.Match(tx) {
			total += tx.Amount
		}
	}
	return total, nil
}

func (r *TransactionRepository) CountByRiskLevel(ctx context.Context, filter repository.TransactionFilter) (map[domain.RiskLevel]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.RiskLevel]int)
	for _, tx := range r.transactions {
		if filter.Match(tx) {
			counts[tx.RiskLevel]++
		}
	}
	return counts, nil
}

// Snapshot returns copies of every stored transaction, oldest first.
func (r *TransactionRepository) Snapshot() []*domain.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Transaction, 0, len(r.transactions))
	for _, tx := range r.transactions {
		out := *tx
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Restore replaces the repository contents, keeping stored timestamps.
func (r *TransactionRepository) Restore(items []*domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transactions = make(map[string]*domain.Transaction, len(items))
	r.byUser = make(map[string][]string)
	for _, tx := range items {
		stored := *tx
		r.transactions[tx.ID] = &stored
		r.byUser[tx.UserID] = append(r.byUser[tx.UserID], tx.ID)
	}
}

func copyNewestFirst(items []*domain.Transaction, limit int) []*domain.Transaction {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	result := make([]*domain.Transaction, 0, len(items))
	for _, tx := range items {
		out := *tx
		result = append(result, &out)
	}
	return result
}
