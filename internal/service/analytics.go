package service

import (
	"context"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/repository"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
)

var analyticsRanges = map[string]int{"7d": 7, "30d": 30, "90d": 90}

const DefaultRange = "7d"

// ParseRange maps unknown ranges to the default seven days.
func ParseRange(s string) (string, int) {
	if days, ok := analyticsRanges[s]; ok {
		return s, days
	}
	return DefaultRange, analyticsRanges[DefaultRange]
}

type TrendPoint struct {
	Date         string `json:"date"`
	Transactions int    `json:"transactions"`
	Fraudulent   int    `json:"fraudulent"`
}

type RiskDistribution struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

type UserActivity struct {
	UserID           string `json:"userId"`
	TransactionCount int    `json:"transactionCount"`
	FraudCount       int    `json:"fraudCount"`
}

// Analytics holds real aggregates next to illustrative series. Only the
// counts, sum, rate and distribution are derived from stored data.
type Analytics struct {
	Range                  string           `json:"range"`
	TotalTransactions      int              `json:"totalTransactions"`
	FraudulentTransactions int              `json:"fraudulentTransactions"`
	TotalAmount            float64          `json:"totalAmount"`
	FraudRate              float64          `json:"fraudRate"`
	WeeklyTrend            []TrendPoint     `json:"weeklyTrend"`
	RiskDistribution       RiskDistribution `json:"riskDistribution"`
	TopFraudKeywords       []KeywordCount   `json:"topFraudKeywords"`
	UserActivity           []UserActivity   `json:"userActivity"`
}

var sampleKeywords = []KeywordCount{
	{"refund", 45},
	{"chargeback", 32},
	{"duplicate", 28},
	{"urgent", 22},
	{"immediate", 18},
}

var sampleUserActivity = []UserActivity{
	{"user_123", 156, 12},
	{"user_456", 89, 8},
	{"user_789", 134, 5},
	{"user_101", 67, 3},
	{"user_202", 98, 7},
}

type AnalyticsService struct {
	txRepo repository.TransactionRepository
	rand   func() float64
	now    func() time.Time
	logger *slog.Logger
}

func NewAnalyticsService(txRepo repository.TransactionRepository, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{txRepo: txRepo, rand: rand.Float64, now: time.Now, logger: logger}
}

func (s *AnalyticsService) GetAnalytics(ctx context.Context, userID, rangeParam string) (*Analytics, error) {
	rangeName, days := ParseRange(rangeParam)
	now := s.now()
	start := now.AddDate(0, 0, -days)
	filter := repository.TransactionFilter{UserID: userID, Since: start}

	var (
		total, fraudulent int
		amount            float64
		levels            map[domain.RiskLevel]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.txRepo.Count(gctx, filter)
		return err
	})
	g.Go(func() error {
		f := filter
		f.FraudulentOnly = true
		var err error
		fraudulent, err = s.txRepo.Count(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		amount, err = s.txRepo.SumAmount(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		levels, err = s.txRepo.CountByRiskLevel(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate transactions: %w", err)
	}

	var rate float64
	if total > 0 {
		rate = float64(fraudulent) / float64(total) * 100
	}

	s.logger.DebugContext(ctx, "Analytics computed",
		slog.String("user_id", userID),
		slog.String("range", rangeName),
		slog.Int("total", total))

	return &Analytics{
		Range:                  rangeName,
		TotalTransactions:      total,
		FraudulentTransactions: fraudulent,
		TotalAmount:            amount,
		FraudRate:              rate,
		WeeklyTrend:            s.trend(start, now),
		RiskDistribution: RiskDistribution{
			Low:      levels[domain.RiskLow],
			Medium:   levels[domain.RiskMedium],
			High:     levels[domain.RiskHigh],
			Critical: levels[domain.RiskCritical],
		},
		TopFraudKeywords: append([]KeywordCount(nil), sampleKeywords...),
		UserActivity:     append([]UserActivity(nil), sampleUserActivity...),
	}, nil
}

// trend generates one synthetic point per day; weekends are scaled down.
func (s *AnalyticsService) trend(start, end time.Time) []TrendPoint {
	var points []TrendPoint
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		mult := 1.0
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			mult = 0.6
		}
		base := math.Floor(s.rand()*30) + 15
		baseFraud := math.Floor(s.rand()*5) + 1

		points = append(points, TrendPoint{
			Date:         day.UTC().Format("2006-01-02"),
			Transactions: int(math.Floor(base * mult)),
			Fraudulent:   int(math.Floor(baseFraud * mult)),
		})
	}
	return points
}
