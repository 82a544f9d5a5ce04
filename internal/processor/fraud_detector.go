package processor

import (
	"fmt"
	"fraud_monitor/internal/domain"
	"strings"
	"time"
)

// SuspiciousKeywords are matched case-insensitively against descriptions.
var SuspiciousKeywords = []string{"cryptocurrency", "wire transfer", "international", "bitcoin", "ethereum"}

// HeuristicScorer is a fixed, additive rule set. It has no side effects.
type HeuristicScorer struct {
	patterns []RiskPattern
	location *time.Location
	now      func() time.Time
}

// RiskPattern contributes Weight once per reason returned by Detect.
type RiskPattern struct {
	Name   string
	Detect func(in scoringInput) []patternHit
}

type patternHit struct {
	weight         int
	reason         string
	recommendation string
}

type scoringInput struct {
	amount      float64
	description string
	hour        int
}

type HeuristicOption func(*HeuristicScorer)

// WithLocation sets the zone used to read the transaction hour.
func WithLocation(loc *time.Location) HeuristicOption {
	return func(s *HeuristicScorer) { s.location = loc }
}

// WithClock replaces time.Now for checks without a timestamp.
func WithClock(now func() time.Time) HeuristicOption {
	return func(s *HeuristicScorer) { s.now = now }
}

func NewHeuristicScorer(opts ...HeuristicOption) *HeuristicScorer {
	s := &HeuristicScorer{location: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.patterns = []RiskPattern{
		{Name: "amount", Detect: detectAmount},
		{Name: "keywords", Detect: detectKeywords},
		{Name: "time_of_day", Detect: detectUnusualHour},
	}
	return s
}

func (s *HeuristicScorer) Analyze(check domain.FraudCheck) domain.FraudAnalysis {
	ts := s.now()
	if check.Timestamp != nil {
		ts = *check.Timestamp
	}
	in := scoringInput{
		amount:      check.Amount,
		description: strings.ToLower(check.Description),
		hour:        ts.In(s.location).Hour(),
	}

	var (
		score           int
		reasons         = []string{}
		recommendations []string
	)
	for _, pattern := range s.patterns {
		for _, hit := range pattern.Detect(in) {
			score += hit.weight
			reasons = append(reasons, hit.reason)
			if hit.recommendation != "" {
				recommendations = append(recommendations, hit.recommendation)
			}
		}
	}

	score = domain.ClampScore(score)
	level := domain.RiskLevelForScore(score)
	recommendations = append(recommendations, levelRecommendations[level]...)

	return domain.FraudAnalysis{
		RiskLevel:       level,
		RiskScore:       score,
		Explanation:     heuristicExplanation(reasons, score),
		Confidence:      max(60, 100-score),
		RedFlags:        reasons,
		Recommendations: recommendations,
		SimilarPatterns: []string{},
		Source:          SourceHeuristic,
	}
}

const SourceHeuristic = "heuristic"

var levelRecommendations = map[domain.RiskLevel][]string{
	domain.RiskCritical: {"Immediate manual review required", "Consider blocking transaction"},
	domain.RiskHigh:     {"Enhanced monitoring required", "Additional verification needed"},
	domain.RiskMedium:   {"Monitor closely", "Consider additional checks"},
	domain.RiskLow:      {"Continue normal processing"},
}

func detectAmount(in scoringInput) []patternHit {
	switch {
	case in.amount > 10000:
		return []patternHit{{weight: 30, reason: "High transaction amount", recommendation: "Verify large transaction"}}
	case in.amount > 5000:
		return []patternHit{{weight: 20, reason: "Moderately high transaction amount"}}
	}
	return nil
}

func detectKeywords(in scoringInput) []patternHit {
	var hits []patternHit
	for _, kw := range SuspiciousKeywords {
		if strings.Contains(in.description, kw) {
			hits = append(hits, patternHit{weight: 25, reason: "Suspicious keyword: " + kw})
		}
	}
	return hits
}

// Hours outside [6,22) are unusual.
func detectUnusualHour(in scoringInput) []patternHit {
	if in.hour < 6 || in.hour >= 22 {
		return []patternHit{{weight: 15, reason: "Unusual transaction time"}}
	}
	return nil
}

func heuristicExplanation(reasons []string, score int) string {
	if len(reasons) == 0 {
		return fmt.Sprintf("Heuristic analysis: no red flags detected (Score: %d)", score)
	}
	return fmt.Sprintf("Heuristic analysis: %s (Score: %d)", strings.Join(reasons, ", "), score)
}
