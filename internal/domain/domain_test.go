package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRiskLevelForScore_Thresholds(t *testing.T) {
	cases := map[int]RiskLevel{
		0: RiskLow, 29: RiskLow, 30: RiskMedium, 59: RiskMedium,
		60: RiskHigh, 79: RiskHigh, 80: RiskCritical, 100: RiskCritical,
	}
	for score, want := range cases {
		if got := RiskLevelForScore(score); got != want {
			t.Errorf("score %d: expected %s, got %s", score, want, got)
		}
	}
}

func TestTransaction_ApplyRiskKeepsFraudFlagConsistent(t *testing.T) {
	tx := NewTransaction("u1", 10, "coffee")
	for _, level := range RiskLevels {
		tx.ApplyRisk(level)
		want := level == RiskHigh || level == RiskCritical
		if tx.IsFraudulent != want {
			t.Errorf("level %s: expected isFraudulent=%v", level, want)
		}
	}
}

func TestParseRiskLevel_Unknown(t *testing.T) {
	if _, err := ParseRiskLevel("SEVERE"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if got, err := ParseRiskLevel(" high "); err != nil || got != RiskHigh {
		t.Fatalf("expected HIGH, got %s err=%v", got, err)
	}
}

func TestAlert_TransitionsOnce(t *testing.T) {
	alert := NewAlert(AlertRequest{UserID: "u1", Channel: ChannelSlack, Message: "hi"})
	if alert.Status != AlertPending {
		t.Fatalf("expected PENDING at creation, got %s", alert.Status)
	}

	now := time.Now()
	if err := alert.MarkDelivered(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alert.SentAt == nil || !alert.SentAt.Equal(now) {
		t.Errorf("expected sentAt to be stamped")
	}
	if err := alert.MarkFailed(); !errors.Is(err, ErrInvalidAlertTransition) {
		t.Errorf("expected ErrInvalidAlertTransition, got %v", err)
	}
	if alert.Status != AlertDelivered {
		t.Errorf("terminal status changed to %s", alert.Status)
	}
}

func TestParseAlertChannel(t *testing.T) {
	if ch, err := ParseAlertChannel("slack"); err != nil || ch != ChannelSlack {
		t.Fatalf("expected SLACK, got %s err=%v", ch, err)
	}
	if _, err := ParseAlertChannel("SMS"); err == nil {
		t.Fatal("expected error for SMS")
	}
}

func TestParseUserRole_DefaultsToCompliance(t *testing.T) {
	if ParseUserRole("admin") != RoleCompliance {
		t.Error("expected unknown role to map to COMPLIANCE")
	}
	if ParseUserRole("manager") != RoleManager {
		t.Error("expected MANAGER")
	}
}

func TestNewReport_TitleAndCases(t *testing.T) {
	tx := NewTransaction("u1", 15000, strings.Repeat("wire ", 30))
	report, err := NewReport(tx, FraudAnalysis{RiskLevel: RiskCritical, RiskScore: 130, Explanation: "x"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(report.Title, "CRITICAL risk transaction: ") {
		t.Errorf("unexpected title %q", report.Title)
	}
	if report.RiskScore != 100 {
		t.Errorf("expected clamped score 100, got %d", report.RiskScore)
	}
	if report.SimilarCases != "[]" {
		t.Errorf("expected empty case list, got %s", report.SimilarCases)
	}
}
