package processor

import (
	"context"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"math"
	"sort"
	"strings"
	"time"
)

type SimilarityConfig struct {
	Window     time.Duration
	Candidates int
	Threshold  float64
	Top        int
}

func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		Window:     30 * 24 * time.Hour,
		Candidates: 100,
		Threshold:  0.7,
		Top:        5,
	}
}

// SimilarityFinder ranks other users' recent transactions against a new one.
type SimilarityFinder struct {
	txRepo repository.TransactionRepository
	cfg    SimilarityConfig
	now    func() time.Time
}

func NewSimilarityFinder(txRepo repository.TransactionRepository, cfg SimilarityConfig) *SimilarityFinder {
	return &SimilarityFinder{txRepo: txRepo, cfg: cfg, now: time.Now}
}

func (f *SimilarityFinder) FindSimilar(ctx context.Context, check domain.FraudCheck) ([]domain.SimilarTransaction, error) {
	since := f.now().Add(-f.cfg.Window)
	candidates, err := f.txRepo.ListRecent(ctx, since, check.UserID, f.cfg.Candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	return RankSimilar(check.Amount, check.Description, candidates, f.cfg.Threshold, f.cfg.Top), nil
}

// RankSimilar keeps candidates strictly above threshold, best first, at most top.
func RankSimilar(amount float64, description string, candidates []*domain.Transaction, threshold float64, top int) []domain.SimilarTransaction {
	words := wordSet(description)
	result := []domain.SimilarTransaction{}
	for _, tx := range candidates {
		sim := (AmountSimilarity(amount, tx.Amount) + jaccard(words, wordSet(tx.Description))) / 2
		if sim <= threshold {
			continue
		}
		result = append(result, domain.SimilarTransaction{
			ID:          tx.ID,
			Amount:      tx.Amount,
			Description: tx.Description,
			RiskLevel:   tx.RiskLevel,
			Similarity:  sim,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Similarity > result[j].Similarity
	})
	if top > 0 && len(result) > top {
		result = result[:top]
	}
	return result
}

// AmountSimilarity is 1 - |a-b| / max(a,b), and 1 when both are zero.
func AmountSimilarity(a, b float64) float64 {
	hi := math.Max(a, b)
	if hi <= 0 {
		return 1
	}
	return 1 - math.Abs(a-b)/hi
}

// TextSimilarity is the Jaccard overlap of lower-cased whitespace word sets.
func TextSimilarity(a, b string) float64 {
	return jaccard(wordSet(a), wordSet(b))
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	var inter int
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
