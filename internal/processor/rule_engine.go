package processor

import (
	"bytes"
	"context"
	"fmt"
	"fraud_monitor/internal/domain"
	"log/slog"
	"os"
	"slices"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// EscalationRule raises alerts for scored transactions. All conditions must
// hold for the rule to trigger.
type EscalationRule struct {
	ID         string      `yaml:"id" json:"id"`
	Name       string      `yaml:"name" json:"name"`
	Priority   int         `yaml:"priority" json:"priority"`
	Disabled   bool        `yaml:"disabled" json:"disabled"`
	Conditions []Condition `yaml:"conditions" json:"conditions"`
	Action     RuleAction  `yaml:"action" json:"action"`
}

type Condition struct {
	Field    string      `yaml:"field" json:"field"`
	Operator string      `yaml:"operator" json:"operator"`
	Value    interface{} `yaml:"value" json:"value"`
}

// RuleAction names the alert channel and a text/template for the message.
type RuleAction struct {
	Channel string `yaml:"channel" json:"channel"`
	Message string `yaml:"message" json:"message"`
}

type RuleResult struct {
	RuleID   string
	RuleName string
	Channel  domain.AlertChannel
	Message  string
}

// RuleContext is the data visible to conditions and message templates.
type RuleContext struct {
	TransactionID string
	UserID        string
	Amount        float64
	Description   string
	RiskLevel     domain.RiskLevel
	RiskScore     int
	Explanation   string
	ReportID      string
}

type compiledRule struct {
	rule       EscalationRule
	channel    domain.AlertChannel
	predicates []func(RuleContext) bool
	message    *template.Template
}

type RuleEngine struct {
	rules  []compiledRule
	logger *slog.Logger
}

func NewRuleEngine(rules []EscalationRule, logger *slog.Logger) (*RuleEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	engine := &RuleEngine{logger: logger}
	for _, rule := range rules {
		if rule.Disabled {
			continue
		}
		compiled, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		engine.rules = append(engine.rules, compiled)
	}

	slices.SortStableFunc(engine.rules, func(a, b compiledRule) int {
		return b.rule.Priority - a.rule.Priority
	})

	return engine, nil
}

// DefaultRules escalate CRITICAL transactions to Slack and e-mail.
func DefaultRules() []EscalationRule {
	return []EscalationRule{
		{
			ID:       "critical-slack",
			Name:     "Critical risk to Slack",
			Priority: 100,
			Conditions: []Condition{
				{Field: "risk_level", Operator: ">=", Value: string(domain.RiskCritical)},
			},
			Action: RuleAction{
				Channel: string(domain.ChannelSlack),
				Message: "High Risk Fraud Detected: {{.RiskLevel}} transaction of ${{printf \"%.2f\" .Amount}} ({{.Description}}), score {{.RiskScore}}/100",
			},
		},
		{
			ID:       "critical-email",
			Name:     "Critical risk to compliance inbox",
			Priority: 90,
			Conditions: []Condition{
				{Field: "risk_level", Operator: ">=", Value: string(domain.RiskCritical)},
			},
			Action: RuleAction{
				Channel: string(domain.ChannelEmail),
				Message: "Fraud Alert: transaction {{.TransactionID}} - Risk Score: {{.RiskScore}}/100. {{.Explanation}}",
			},
		},
	}
}

// LoadRules reads escalation rules from a YAML (or JSON) file.
func LoadRules(path string) ([]EscalationRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc struct {
		Rules []EscalationRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return doc.Rules, nil
}

func (e *RuleEngine) Evaluate(ctx context.Context, rc RuleContext) []RuleResult {
	var results []RuleResult

	for _, rule := range e.rules {
		if !rule.matches(rc) {
			continue
		}

		var buf bytes.Buffer
		if err := rule.message.Execute(&buf, rc); err != nil {
			e.logger.ErrorContext(ctx, "Failed to render rule message",
				slog.String("rule_id", rule.rule.ID),
				slog.String("error", err.Error()))
			continue
		}

		results = append(results, RuleResult{
			RuleID:   rule.rule.ID,
			RuleName: rule.rule.Name,
			Channel:  rule.channel,
			Message:  buf.String(),
		})
		e.logger.InfoContext(ctx, "Rule triggered",
			slog.String("rule_id", rule.rule.ID),
			slog.String("rule_name", rule.rule.Name),
			slog.String("transaction_id", rc.TransactionID))
	}

	return results
}

func (e *RuleEngine) Len() int {
	return len(e.rules)
}

func (r compiledRule) matches(rc RuleContext) bool {
	for _, p := range r.predicates {
		if !p(rc) {
			return false
		}
	}
	return true
}

func compileRule(rule EscalationRule) (compiledRule, error) {
	channel, err := domain.ParseAlertChannel(rule.Action.Channel)
	if err != nil {
		return compiledRule{}, err
	}
	if strings.TrimSpace(rule.Action.Message) == "" {
		return compiledRule{}, fmt.Errorf("action message is required")
	}
	tmpl, err := template.New(rule.ID).Option("missingkey=error").Parse(rule.Action.Message)
	if err != nil {
		return compiledRule{}, fmt.Errorf("invalid message template: %w", err)
	}

	compiled := compiledRule{rule: rule, channel: channel, message: tmpl}
	for _, cond := range rule.Conditions {
		p, err := compileCondition(cond)
		if err != nil {
			return compiledRule{}, err
		}
		compiled.predicates = append(compiled.predicates, p)
	}
	return compiled, nil
}

func compileCondition(c Condition) (func(RuleContext) bool, error) {
	switch c.Field {
	case "amount":
		return numericCondition(c, func(rc RuleContext) float64 { return rc.Amount })
	case "risk_score":
		return numericCondition(c, func(rc RuleContext) float64 { return float64(rc.RiskScore) })
	case "risk_level":
		return riskLevelCondition(c)
	case "description":
		return stringCondition(c, func(rc RuleContext) string { return rc.Description })
	case "user_id":
		return stringCondition(c, func(rc RuleContext) string { return rc.UserID })
	default:
		return nil, fmt.Errorf("unknown field: %s", c.Field)
	}
}

func numericCondition(c Condition, get func(RuleContext) float64) (func(RuleContext) bool, error) {
	target, ok := toFloat(c.Value)
	if !ok {
		return nil, fmt.Errorf("invalid value type for %s: %v", c.Field, c.Value)
	}
	cmp, err := compareOp(c.Operator)
	if err != nil {
		return nil, err
	}
	return func(rc RuleContext) bool {
		v := get(rc)
		switch {
		case v < target:
			return cmp(-1)
		case v > target:
			return cmp(1)
		}
		return cmp(0)
	}, nil
}

// Risk levels compare by severity, so ">= HIGH" matches HIGH and CRITICAL.
func riskLevelCondition(c Condition) (func(RuleContext) bool, error) {
	s, ok := c.Value.(string)
	if !ok {
		return nil, fmt.Errorf("invalid value type for risk_level: %v", c.Value)
	}
	target, err := domain.ParseRiskLevel(s)
	if err != nil {
		return nil, err
	}
	cmp, err := compareOp(c.Operator)
	if err != nil {
		return nil, err
	}
	return func(rc RuleContext) bool {
		return cmp(rc.RiskLevel.Rank() - target.Rank())
	}, nil
}

func stringCondition(c Condition, get func(RuleContext) string) (func(RuleContext) bool, error) {
	switch c.Operator {
	case "==", "!=", "contains":
		target, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("invalid value type for %s: %v", c.Field, c.Value)
		}
		target = strings.ToLower(target)
		return func(rc RuleContext) bool {
			v := strings.ToLower(get(rc))
			switch c.Operator {
			case "==":
				return v == target
			case "!=":
				return v != target
			}
			return strings.Contains(v, target)
		}, nil
	case "in":
		items, ok := c.Value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid value for 'in' operator")
		}
		set := make([]string, 0, len(items))
		for _, item := range items {
			set = append(set, strings.ToLower(fmt.Sprint(item)))
		}
		return func(rc RuleContext) bool {
			return slices.Contains(set, strings.ToLower(get(rc)))
		}, nil
	default:
		return nil, fmt.Errorf("unknown operator: %s", c.Operator)
	}
}

func compareOp(op string) (func(int) bool, error) {
	switch op {
	case ">":
		return func(c int) bool { return c > 0 }, nil
	case ">=":
		return func(c int) bool { return c >= 0 }, nil
	case "<":
		return func(c int) bool { return c < 0 }, nil
	case "<=":
		return func(c int) bool { return c <= 0 }, nil
	case "==":
		return func(c int) bool { return c == 0 }, nil
	case "!=":
		return func(c int) bool { return c != 0 }, nil
	default:
		return nil, fmt.Errorf("unknown operator: %s", op)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
