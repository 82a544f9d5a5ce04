package processor

import (
	"context"
	"errors"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/embedding"
	"fraud_monitor/internal/events"
	"fraud_monitor/internal/repository"
	"fraud_monitor/pkg/metrics"
	"fraud_monitor/pkg/validator"
	"log/slog"
	"sort"
	"time"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
	searchScanLimit  = 500
)

// AlertSink accepts alerts raised by escalation rules.
type AlertSink interface {
	Enqueue(ctx context.Context, req domain.AlertRequest) error
}

type Dependencies struct {
	Store      repository.Store
	Analyzer   Analyzer
	Similarity *SimilarityFinder
	Embedder   embedding.Embedder
	Rules      *RuleEngine
	Alerts     AlertSink
	Publisher  events.Publisher
	Metrics    *metrics.MetricsCollector
	Logger     *slog.Logger
}

type TransactionProcessor struct {
	txRepo          repository.TransactionRepository
	reportRepo      repository.ReportRepository
	userRepo        repository.UserRepository
	analyzer        Analyzer
	similarity      *SimilarityFinder
	embedder        embedding.Embedder
	rules           *RuleEngine
	alerts          AlertSink
	publisher       events.Publisher
	validator       *validator.Validator
	metrics         *metrics.MetricsCollector
	reportThreshold domain.RiskLevel
	logger          *slog.Logger
}

// DetectionResult is the outcome of scoring one inbound transaction.
type DetectionResult struct {
	Transaction         *domain.Transaction
	FraudAnalysis       domain.FraudAnalysis
	SimilarTransactions []domain.SimilarTransaction
	Report              *domain.Report
	Escalations         []RuleResult
}

type TransactionView struct {
	Transaction *domain.Transaction
	User        *domain.PublicUser
}

type SearchResult struct {
	Transaction *domain.Transaction
	Score       float64
}

type ReportView struct {
	Report      *domain.Report
	Transaction *domain.Transaction
}

func NewTransactionProcessor(deps Dependencies, reportThreshold domain.RiskLevel) *TransactionProcessor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Analyzer == nil {
		deps.Analyzer = NewAIAnalyzer(nil, nil, 0, deps.Metrics, logger)
	}
	if deps.Similarity == nil {
		deps.Similarity = NewSimilarityFinder(deps.Store.Transactions(), DefaultSimilarityConfig())
	}
	if deps.Embedder == nil {
		deps.Embedder = embedding.NewHashEmbedder(embedding.DefaultDimensions)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewNoopPublisher(logger)
	}
	if reportThreshold == "" {
		reportThreshold = domain.RiskHigh
	}

	return &TransactionProcessor{
		txRepo:          deps.Store.Transactions(),
		reportRepo:      deps.Store.Reports(),
		userRepo:        deps.Store.Users(),
		analyzer:        deps.Analyzer,
		similarity:      deps.Similarity,
		embedder:        deps.Embedder,
		rules:           deps.Rules,
		alerts:          deps.Alerts,
		publisher:       deps.Publisher,
		validator:       validator.New(),
		metrics:         deps.Metrics,
		reportThreshold: reportThreshold,
		logger:          logger,
	}
}

// ProcessTransaction scores, stores and escalates one inbound transaction.
// Dependency failures degrade the result; only validation and the
// transaction write can fail the call.
func (p *TransactionProcessor) ProcessTransaction(ctx context.Context, check domain.FraudCheck) (*DetectionResult, error) {
	start := time.Now()

	if err := p.validator.ValidateFraudCheck(check); err != nil {
		p.metrics.RecordRejected()
		return nil, err
	}

	analysis := p.analyzer.Analyze(ctx, check)

	similar, err := p.similarity.FindSimilar(ctx, check)
	if err != nil {
		p.logger.WarnContext(ctx, "Similarity search failed", slog.String("error", err.Error()))
		similar = []domain.SimilarTransaction{}
	}

	tx := domain.NewTransaction(check.UserID, check.Amount, check.Description).WithIP(check.IP)
	tx.ApplyRisk(analysis.RiskLevel)
	if vec, err := p.embedder.Embed(ctx, check.Description); err != nil {
		p.logger.WarnContext(ctx, "Embedding failed", slog.String("error", err.Error()))
	} else {
		tx.Embedding = vec
	}

	if err := p.txRepo.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	result := &DetectionResult{
		Transaction:         tx,
		FraudAnalysis:       analysis,
		SimilarTransactions: similar,
	}

	if analysis.RiskLevel.AtLeast(p.reportThreshold) {
		result.Report = p.createReport(ctx, tx, analysis, similar)
	}

	p.publishScored(ctx, tx, analysis, result.Report)
	result.Escalations = p.escalate(ctx, tx, analysis, result.Report)

	p.metrics.RecordScored(string(analysis.RiskLevel), analysis.Source, analysis.RiskScore, time.Since(start))
	p.logger.InfoContext(ctx, "Transaction scored",
		slog.String("transaction_id", tx.ID),
		slog.String("user_id", tx.UserID),
		slog.String("risk_level", string(analysis.RiskLevel)),
		slog.Int("risk_score", analysis.RiskScore),
		slog.String("source", analysis.Source),
		slog.Int("similar", len(similar)),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

func (p *TransactionProcessor) createReport(ctx context.Context, tx *domain.Transaction, analysis domain.FraudAnalysis, similar []domain.SimilarTransaction) *domain.Report {
	report, err := domain.NewReport(tx, analysis, similar)
	if err == nil {
		err = p.reportRepo.Save(ctx, report)
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to create report",
			slog.String("transaction_id", tx.ID),
			slog.String("error", err.Error()))
		return nil
	}
	return report
}

type scoredPayload struct {
	TransactionID string           `json:"transactionId"`
	UserID        string           `json:"userId"`
	Amount        float64          `json:"amount"`
	RiskLevel     domain.RiskLevel `json:"riskLevel"`
	RiskScore     int              `json:"riskScore"`
	IsFraudulent  bool             `json:"isFraudulent"`
	Source        string           `json:"source"`
	ReportID      string           `json:"reportId,omitempty"`
}

func (p *TransactionProcessor) publishScored(ctx context.Context, tx *domain.Transaction, analysis domain.FraudAnalysis, report *domain.Report) {
	payload := scoredPayload{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		RiskLevel:     tx.RiskLevel,
		RiskScore:     analysis.RiskScore,
		IsFraudulent:  tx.IsFraudulent,
		Source:        analysis.Source,
	}
	if report != nil {
		payload.ReportID = report.ID
	}

	event, err := domain.NewEvent(domain.EventTransactionScored, tx.ID, payload)
	if err == nil {
		err = p.publisher.Publish(ctx, event)
	}
	if err != nil {
		p.metrics.RecordPublishFailure(domain.EventTransactionScored)
		p.logger.WarnContext(ctx, "Failed to publish event",
			slog.String("event_type", domain.EventTransactionScored),
			slog.String("transaction_id", tx.ID),
			slog.String("error", err.Error()))
	}
}

func (p *TransactionProcessor) escalate(ctx context.Context, tx *domain.Transaction, analysis domain.FraudAnalysis, report *domain.Report) []RuleResult {
	if p.rules == nil || p.alerts == nil {
		return nil
	}

	rc := RuleContext{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		Description:   tx.Description,
		RiskLevel:     analysis.RiskLevel,
		RiskScore:     analysis.RiskScore,
		Explanation:   analysis.Explanation,
	}
	if report != nil {
		rc.ReportID = report.ID
	}

	results := p.rules.Evaluate(ctx, rc)
	for _, r := range results {
		err := p.alerts.Enqueue(ctx, domain.AlertRequest{
			UserID:   tx.UserID,
			Channel:  r.Channel,
			Message:  r.Message,
			ReportID: rc.ReportID,
			Type:     domain.DefaultAlertType,
		})
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to enqueue escalation",
				slog.String("rule_id", r.RuleID),
				slog.String("transaction_id", tx.ID),
				slog.String("error", err.Error()))
		}
	}
	return results
}

// ListTransactions returns the newest transactions, optionally for one user,
// with the owning user attached when known.
func (p *TransactionProcessor) ListTransactions(ctx context.Context, userID string, limit int) ([]TransactionView, error) {
	txs, err := p.txRepo.ListByUser(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	users := make(map[string]*domain.PublicUser)
	views := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		user, seen := users[tx.UserID]
		if !seen {
			if u, err := p.userRepo.GetByID(ctx, tx.UserID); err == nil {
				public := u.Public()
				user = &public
			} else if !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("failed to load user %s: %w", tx.UserID, err)
			}
			users[tx.UserID] = user
		}
		views = append(views, TransactionView{Transaction: tx, User: user})
	}
	return views, nil
}

// Search ranks stored transactions by embedding similarity to the query.
func (p *TransactionProcessor) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if err := validator.RequireText("q", query); err != nil {
		return nil, err
	}

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	txs, err := p.txRepo.ListByUser(ctx, "", searchScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	results := []SearchResult{}
	for _, tx := range txs {
		score := embedding.Cosine(vec, tx.Embedding)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{Transaction: tx, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit = clampLimit(limit); len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (p *TransactionProcessor) GetReport(ctx context.Context, id string) (*ReportView, error) {
	report, err := p.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &ReportView{Report: report}
	if tx, err := p.txRepo.GetByID(ctx, report.TransactionID); err == nil {
		view.Transaction = tx
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load report transaction: %w", err)
	}
	return view, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
