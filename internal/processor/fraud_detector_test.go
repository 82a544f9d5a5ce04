package processor

import (
	"fraud_monitor/internal/domain"
	"slices"
	"testing"
	"time"
)

func at(hour int) *time.Time {
	ts := time.Date(2024, 3, 12, hour, 0, 0, 0, time.UTC)
	return &ts
}

func TestHeuristicScorer_Analyze_WireTransferIsCritical(t *testing.T) {
	s := NewHeuristicScorer(WithLocation(time.UTC))

	got := s.Analyze(domain.FraudCheck{
		Amount:      15000,
		Description: "urgent wire transfer to international account",
		Timestamp:   at(10),
	})

	if got.RiskScore != 80 {
		t.Errorf("expected score 80, got %d", got.RiskScore)
	}
	if got.RiskLevel != domain.RiskCritical {
		t.Errorf("expected CRITICAL, got %s", got.RiskLevel)
	}
	for _, reason := range []string{"High transaction amount", "Suspicious keyword: wire transfer", "Suspicious keyword: international"} {
		if !slices.Contains(got.RedFlags, reason) {
			t.Errorf("expected reason %q in %v", reason, got.RedFlags)
		}
	}
	if !slices.Contains(got.Recommendations, "Verify large transaction") ||
		!slices.Contains(got.Recommendations, "Immediate manual review required") {
		t.Errorf("unexpected recommendations %v", got.Recommendations)
	}
	if got.Confidence != 60 {
		t.Errorf("expected confidence 60, got %d", got.Confidence)
	}
	if got.Source != SourceHeuristic {
		t.Errorf("expected heuristic source, got %q", got.Source)
	}
}

func TestHeuristicScorer_Analyze_CoffeeIsLow(t *testing.T) {
	s := NewHeuristicScorer(WithLocation(time.UTC))

	got := s.Analyze(domain.FraudCheck{Amount: 50, Description: "coffee", Timestamp: at(10)})

	if got.RiskScore != 0 || got.RiskLevel != domain.RiskLow {
		t.Errorf("expected LOW/0, got %s/%d", got.RiskLevel, got.RiskScore)
	}
	if len(got.RedFlags) != 0 {
		t.Errorf("expected no red flags, got %v", got.RedFlags)
	}
	if got.Confidence != 100 {
		t.Errorf("expected confidence 100, got %d", got.Confidence)
	}
	if !slices.Equal(got.Recommendations, []string{"Continue normal processing"}) {
		t.Errorf("unexpected recommendations %v", got.Recommendations)
	}
}

func TestHeuristicScorer_Analyze_UnusualHour(t *testing.T) {
	s := NewHeuristicScorer(WithLocation(time.UTC))
	cases := map[int]bool{5: true, 6: false, 21: false, 22: true, 23: true}

	for hour, flagged := range cases {
		got := s.Analyze(domain.FraudCheck{Amount: 10, Description: "lunch", Timestamp: at(hour)})
		if (got.RiskScore == 15) != flagged {
			t.Errorf("hour %d: expected flagged=%v, got score %d", hour, flagged, got.RiskScore)
		}
	}
}

func TestHeuristicScorer_Analyze_UsesClockWithoutTimestamp(t *testing.T) {
	s := NewHeuristicScorer(WithLocation(time.UTC), WithClock(func() time.Time { return *at(3) }))

	got := s.Analyze(domain.FraudCheck{Amount: 10, Description: "lunch"})

	if got.RiskScore != 15 {
		t.Errorf("expected night-time score 15, got %d", got.RiskScore)
	}
}

func TestHeuristicScorer_Analyze_ClampsScore(t *testing.T) {
	s := NewHeuristicScorer(WithLocation(time.UTC))

	got := s.Analyze(domain.FraudCheck{
		Amount:      50000,
		Description: "international wire transfer bitcoin ethereum cryptocurrency",
		Timestamp:   at(2),
	})

	if got.RiskScore != 100 {
		t.Errorf("expected clamped score 100, got %d", got.RiskScore)
	}
	if got.Confidence != 60 {
		t.Errorf("expected confidence floor 60, got %d", got.Confidence)
	}
}

func TestHeuristicScorer_Analyze_MonotonicInAmount(t *testing.T) {
	s := NewHeuristicScorer(WithLocation(time.UTC))
	prev := -1

	for _, amount := range []float64{0, 100, 5000, 5000.01, 10000, 10000.01, 1e6} {
		got := s.Analyze(domain.FraudCheck{Amount: amount, Description: "payment", Timestamp: at(12)})
		if got.RiskScore < prev {
			t.Fatalf("score decreased at amount %.2f: %d < %d", amount, got.RiskScore, prev)
		}
		prev = got.RiskScore
	}
}

func TestHeuristicScorer_Analyze_MonotonicInKeywords(t *testing.T) {
	s := NewHeuristicScorer(WithLocation(time.UTC))
	desc := "payment"
	prev := -1

	for _, kw := range SuspiciousKeywords {
		desc += " " + kw
		got := s.Analyze(domain.FraudCheck{Amount: 10, Description: desc, Timestamp: at(12)})
		if got.RiskScore < prev {
			t.Fatalf("score decreased after adding %q: %d < %d", kw, got.RiskScore, prev)
		}
		prev = got.RiskScore
	}
}
