package processor

import (
	"context"
	"fraud_monitor/internal/domain"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRuleEngine_Evaluate_DefaultRules(t *testing.T) {
	engine, err := NewRuleEngine(DefaultRules(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := engine.Evaluate(context.Background(), RuleContext{
		TransactionID: "tx1",
		Amount:        15000,
		Description:   "wire transfer",
		RiskLevel:     domain.RiskCritical,
		RiskScore:     85,
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 escalations, got %d", len(got))
	}
	if got[0].Channel != domain.ChannelSlack || got[1].Channel != domain.ChannelEmail {
		t.Errorf("expected slack then email by priority, got %s, %s", got[0].Channel, got[1].Channel)
	}
	if !strings.Contains(got[0].Message, "$15000.00") || !strings.Contains(got[1].Message, "85/100") {
		t.Errorf("unexpected rendered messages %q / %q", got[0].Message, got[1].Message)
	}

	if none := engine.Evaluate(context.Background(), RuleContext{RiskLevel: domain.RiskHigh}); len(none) != 0 {
		t.Errorf("expected HIGH not to trigger default rules, got %v", none)
	}
}

func TestRuleEngine_Evaluate_AllConditionsMustHold(t *testing.T) {
	rules := []EscalationRule{{
		ID: "big-crypto",
		Conditions: []Condition{
			{Field: "amount", Operator: ">", Value: 5000},
			{Field: "description", Operator: "contains", Value: "Bitcoin"},
		},
		Action: RuleAction{Channel: "notion", Message: "{{.Description}}"},
	}}
	engine, err := NewRuleEngine(rules, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hit := engine.Evaluate(context.Background(), RuleContext{Amount: 6000, Description: "buy bitcoin now"})
	miss := engine.Evaluate(context.Background(), RuleContext{Amount: 100, Description: "buy bitcoin now"})

	if len(hit) != 1 || hit[0].Channel != domain.ChannelNotion {
		t.Errorf("expected one notion escalation, got %v", hit)
	}
	if len(miss) != 0 {
		t.Errorf("expected no escalation below amount, got %v", miss)
	}
}

func TestRuleEngine_InOperatorAndDisabledRules(t *testing.T) {
	rules := []EscalationRule{
		{
			ID:         "watchlist",
			Conditions: []Condition{{Field: "user_id", Operator: "in", Value: []interface{}{"u1", "u2"}}},
			Action:     RuleAction{Channel: "SLACK", Message: "watchlist user {{.UserID}}"},
		},
		{
			ID:       "off",
			Disabled: true,
			Action:   RuleAction{Channel: "SLACK", Message: "never"},
		},
	}
	engine, err := NewRuleEngine(rules, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := engine.Evaluate(context.Background(), RuleContext{UserID: "U2"})

	if engine.Len() != 1 {
		t.Errorf("expected disabled rule to be skipped, got %d rules", engine.Len())
	}
	if len(got) != 1 || got[0].Message != "watchlist user U2" {
		t.Errorf("unexpected result %v", got)
	}
}

func TestNewRuleEngine_RejectsInvalidRules(t *testing.T) {
	cases := map[string]EscalationRule{
		"unknown field":    {ID: "a", Conditions: []Condition{{Field: "merchant", Operator: "==", Value: "x"}}, Action: RuleAction{Channel: "SLACK", Message: "m"}},
		"unknown operator": {ID: "b", Conditions: []Condition{{Field: "amount", Operator: "~", Value: 1}}, Action: RuleAction{Channel: "SLACK", Message: "m"}},
		"bad channel":      {ID: "c", Action: RuleAction{Channel: "PAGER", Message: "m"}},
		"bad template":     {ID: "d", Action: RuleAction{Channel: "SLACK", Message: "{{.Nope"}},
		"bad level":        {ID: "e", Conditions: []Condition{{Field: "risk_level", Operator: ">=", Value: "SEVERE"}}, Action: RuleAction{Channel: "SLACK", Message: "m"}},
	}

	for name, rule := range cases {
		if _, err := NewRuleEngine([]EscalationRule{rule}, nil); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadRules_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - id: high-score
    name: High score to Slack
    priority: 10
    conditions:
      - field: risk_score
        operator: ">="
        value: 60
    action:
      channel: SLACK
      message: "score {{.RiskScore}}"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write rules: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	engine, err := NewRuleEngine(rules, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := engine.Evaluate(context.Background(), RuleContext{RiskScore: 72})
	if len(got) != 1 || got[0].Message != "score 72" {
		t.Errorf("unexpected result %v", got)
	}
}
