package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevels lists every level from lowest to highest.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if level.Rank() < 0 {
		return "", fmt.Errorf("unknown risk level: %q", s)
	}
	return level, nil
}

// Rank orders levels for threshold comparisons; -1 for unknown values.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.Rank() >= other.Rank()
}

// IsFraudulent reports whether the level is HIGH or CRITICAL.
func (l RiskLevel) IsFraudulent() bool {
	return l.AtLeast(RiskHigh)
}

// RiskLevelForScore maps a 0-100 score onto a level.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 30:
		return RiskMedium
	default:
		return RiskLow
	}
}

type Transaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Amount       float64   `json:"amount"`
	Description  string    `json:"description"`
	IP           string    `json:"ip,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	RiskLevel    RiskLevel `json:"riskLevel"`
	IsFraudulent bool      `json:"isFraudulent"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FraudCheck is an inbound transaction awaiting scoring.
type FraudCheck struct {
	UserID      string
	Amount      float64
	Description string
	IP          string
	UserAgent   string
	Merchant    string
	Location    string
	Timestamp   *time.Time
}

func NewTransaction(userID string, amount float64, description string) *Transaction {
	now := time.Now()
	return &Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Description: description,
		RiskLevel:   RiskLow,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (tx *Transaction) WithIP(ip string) *Transaction {
	tx.IP = ip
	return tx
}

// ApplyRisk sets the level and keeps the fraud flag consistent with it.
func (tx *Transaction) ApplyRisk(level RiskLevel) {
	tx.RiskLevel = level
	tx.IsFraudulent = level.IsFraudulent()
}
