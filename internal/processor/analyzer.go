package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/llm"
	"fraud_monitor/pkg/metrics"
	"log/slog"
	"math"
	"strings"
	"time"
)

// Analyzer scores a transaction. Implementations never fail; they degrade.
type Analyzer interface {
	Analyze(ctx context.Context, check domain.FraudCheck) domain.FraudAnalysis
}

// AIAnalyzer asks a hosted model for an assessment and falls back to the
// heuristic scorer on any error.
type AIAnalyzer struct {
	model     llm.Model
	heuristic *HeuristicScorer
	timeout   time.Duration
	metrics   *metrics.MetricsCollector
	logger    *slog.Logger
}

func NewAIAnalyzer(
	model llm.Model,
	heuristic *HeuristicScorer,
	timeout time.Duration,
	metricsCollector *metrics.MetricsCollector,
	logger *slog.Logger,
) *AIAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if heuristic == nil {
		heuristic = NewHeuristicScorer()
	}
	return &AIAnalyzer{
		model:     model,
		heuristic: heuristic,
		timeout:   timeout,
		metrics:   metricsCollector,
		logger:    logger,
	}
}

var errNoModel = errors.New("no model configured")

func (a *AIAnalyzer) Analyze(ctx context.Context, check domain.FraudCheck) domain.FraudAnalysis {
	analysis, err := a.analyzeWithModel(ctx, check)
	if err == nil {
		return analysis
	}

	reason := "model_error"
	switch {
	case errors.Is(err, errNoModel), errors.Is(err, llm.ErrNotConfigured):
		reason = "not_configured"
	case errors.Is(err, errUnparseable):
		reason = "parse_error"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	}
	a.metrics.RecordAnalyzerFallback(reason)
	if reason != "not_configured" {
		a.logger.WarnContext(ctx, "Model analysis failed, using heuristic",
			slog.String("reason", reason),
			slog.String("error", err.Error()))
	}

	return a.heuristic.Analyze(check)
}

func (a *AIAnalyzer) analyzeWithModel(ctx context.Context, check domain.FraudCheck) (domain.FraudAnalysis, error) {
	if a.model == nil {
		return domain.FraudAnalysis{}, errNoModel
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	reply, err := a.model.Generate(ctx, buildPrompt(check))
	if err != nil {
		return domain.FraudAnalysis{}, err
	}

	analysis, err := parseModelReply(reply)
	if err != nil {
		return domain.FraudAnalysis{}, err
	}
	analysis.Source = "ai:" + a.model.Name()
	return analysis, nil
}

type trainingExample struct {
	amount      float64
	description string
	level       domain.RiskLevel
	score       int
	why         string
}

var trainingExamples = []trainingExample{
	{50, "Starbucks coffee purchase", domain.RiskLow, 15, "small routine purchase at a known merchant"},
	{5000, "Urgent wire transfer to unknown account", domain.RiskCritical, 95, "urgency, wire transfer, unknown beneficiary"},
	{1200, "Amazon electronics purchase", domain.RiskMedium, 35, "higher value retail purchase, common pattern"},
}

func buildPrompt(check domain.FraudCheck) string {
	var b strings.Builder
	b.WriteString("You are an expert fraud detection analyst. Assess the transaction below.\n\n")
	b.WriteString("Labeled examples:\n")
	for i, ex := range trainingExamples {
		fmt.Fprintf(&b, "%d. $%.2f - %q -> %s (score %d): %s\n", i+1, ex.amount, ex.description, ex.level, ex.score, ex.why)
	}

	b.WriteString("\nTransaction:\n")
	fmt.Fprintf(&b, "- Amount: $%.2f\n", check.Amount)
	fmt.Fprintf(&b, "- Description: %s\n", check.Description)
	fmt.Fprintf(&b, "- User ID: %s\n", check.UserID)
	fmt.Fprintf(&b, "- IP: %s\n", valueOr(check.IP, "Unknown"))
	if check.Merchant != "" {
		fmt.Fprintf(&b, "- Merchant: %s\n", check.Merchant)
	}
	if check.Location != "" {
		fmt.Fprintf(&b, "- Location: %s\n", check.Location)
	}
	if check.UserAgent != "" {
		fmt.Fprintf(&b, "- User agent: %s\n", check.UserAgent)
	}
	if check.Timestamp != nil {
		fmt.Fprintf(&b, "- Timestamp: %s\n", check.Timestamp.Format(time.RFC3339))
	}

	b.WriteString(`
Respond with one JSON object and nothing else:
{"riskLevel": "LOW|MEDIUM|HIGH|CRITICAL", "riskScore": 0-100, "explanation": "...",
 "confidence": 0-100, "redFlags": ["..."], "recommendations": ["..."], "similarPatterns": ["..."]}`)
	return b.String()
}

var errUnparseable = errors.New("unparseable model reply")

type modelReply struct {
	RiskLevel       string   `json:"riskLevel"`
	RiskScore       *float64 `json:"riskScore"`
	Explanation     string   `json:"explanation"`
	Confidence      *float64 `json:"confidence"`
	RedFlags        []string `json:"redFlags"`
	Recommendations []string `json:"recommendations"`
	SimilarPatterns []string `json:"similarPatterns"`
}

// parseModelReply decodes the first JSON object in the reply.
func parseModelReply(reply string) (domain.FraudAnalysis, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return domain.FraudAnalysis{}, fmt.Errorf("%w: no JSON object", errUnparseable)
	}

	var parsed modelReply
	if err := json.Unmarshal([]byte(reply[start:end+1]), &parsed); err != nil {
		return domain.FraudAnalysis{}, fmt.Errorf("%w: %v", errUnparseable, err)
	}
	if parsed.RiskScore == nil && parsed.RiskLevel == "" {
		return domain.FraudAnalysis{}, fmt.Errorf("%w: neither riskLevel nor riskScore present", errUnparseable)
	}

	score := 0
	if parsed.RiskScore != nil {
		score = clampRound(*parsed.RiskScore)
	}
	level, err := domain.ParseRiskLevel(parsed.RiskLevel)
	if err != nil {
		level = domain.RiskLevelForScore(score)
	}
	confidence := 80
	if parsed.Confidence != nil {
		confidence = clampRound(*parsed.Confidence)
	}

	return domain.FraudAnalysis{
		RiskLevel:       level,
		RiskScore:       score,
		Explanation:     parsed.Explanation,
		Confidence:      confidence,
		RedFlags:        nonNil(parsed.RedFlags),
		Recommendations: nonNil(parsed.Recommendations),
		SimilarPatterns: nonNil(parsed.SimilarPatterns),
	}, nil
}

// clampRound bounds v to [0,100], then rounds.
func clampRound(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(v, 100))))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
