package processor

import (
	"context"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository/memory"
	"math"
	"testing"
	"time"
)

func TestAmountSimilarity(t *testing.T) {
	cases := []struct {
		a, b, want float64
	}{
		{100, 100, 1},
		{0, 0, 1},
		{50, 100, 0.5},
		{0, 100, 0},
	}
	for _, c := range cases {
		if got := AmountSimilarity(c.a, c.b); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("AmountSimilarity(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestTextSimilarity(t *testing.T) {
	if got := TextSimilarity("Wire Transfer abroad", "wire transfer abroad"); got != 1 {
		t.Errorf("expected 1 for same words, got %v", got)
	}
	if got := TextSimilarity("coffee", "bitcoin"); got != 0 {
		t.Errorf("expected 0 for disjoint words, got %v", got)
	}
	if got := TextSimilarity("", "   "); got != 0 {
		t.Errorf("expected 0 for empty descriptions, got %v", got)
	}
	if got := TextSimilarity("a b", "b c"); math.Abs(got-1.0/3) > 1e-9 {
		t.Errorf("expected 1/3, got %v", got)
	}
}

func TestRankSimilar_FiltersSortsAndCaps(t *testing.T) {
	var candidates []*domain.Transaction
	for i := 0; i < 7; i++ {
		candidates = append(candidates, domain.NewTransaction("u2", 1000+float64(i*10), "electronics store purchase"))
	}
	candidates = append(candidates, domain.NewTransaction("u2", 1, "bitcoin"))

	got := RankSimilar(1000, "electronics store purchase", candidates, 0.7, 5)

	if len(got) != 5 {
		t.Fatalf("expected 5 results, got %d", len(got))
	}
	if got[0].Similarity != 1 {
		t.Errorf("expected identical candidate first with similarity 1, got %v", got[0].Similarity)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Errorf("results not sorted at %d", i)
		}
	}
	for _, s := range got {
		if s.Description == "bitcoin" {
			t.Errorf("dissimilar candidate was not filtered: %+v", s)
		}
	}
}

func TestRankSimilar_EmptyResultIsNotNil(t *testing.T) {
	got := RankSimilar(5, "coffee", nil, 0.7, 5)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestSimilarityFinder_FindSimilar_ExcludesOwnAndOld(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTransactionRepository()
	mine := domain.NewTransaction("u1", 200, "grocery shopping")
	other := domain.NewTransaction("u2", 200, "grocery shopping")
	stale := domain.NewTransaction("u3", 200, "grocery shopping")
	stale.CreatedAt = time.Now().AddDate(0, 0, -45)
	for _, tx := range []*domain.Transaction{mine, other, stale} {
		_ = repo.Save(ctx, tx)
	}
	finder := NewSimilarityFinder(repo, DefaultSimilarityConfig())

	got, err := finder.FindSimilar(ctx, domain.FraudCheck{UserID: "u1", Amount: 200, Description: "grocery shopping"})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != other.ID {
		t.Errorf("expected only the other user's recent transaction, got %+v", got)
	}
}
