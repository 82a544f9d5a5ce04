package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const reportTitleMax = 60

type Report struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	Title         string    `json:"title"`
	Explanation   string    `json:"explanation"`
	RiskScore     int       `json:"riskScore"`
	SimilarCases  string    `json:"similarCases"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ReportSummary is the minimal view embedded in alert listings.
type ReportSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func NewReport(tx *Transaction, analysis FraudAnalysis, similar []SimilarTransaction) (*Report, error) {
	if similar == nil {
		similar = []SimilarTransaction{}
	}
	cases, err := json.Marshal(similar)
	if err != nil {
		return nil, fmt.Errorf("failed to encode similar cases: %w", err)
	}

	now := time.Now()
	return &Report{
		ID:            uuid.NewString(),
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Title:         fmt.Sprintf("%s risk transaction: %s", analysis.RiskLevel, truncate(tx.Description, reportTitleMax)),
		Explanation:   analysis.Explanation,
		RiskScore:     ClampScore(analysis.RiskScore),
		SimilarCases:  string(cases),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (r *Report) Summary() *ReportSummary {
	return &ReportSummary{ID: r.ID, Title: r.Title}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
