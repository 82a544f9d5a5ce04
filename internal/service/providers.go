package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"fraud_monitor/internal/domain"
	"io"
	"log/slog"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

// Notification is one delivery attempt handed to a provider.
type Notification struct {
	AlertID  string
	ReportID string
	Channel  domain.AlertChannel
	Type     string
	Message  string
}

func (n Notification) Subject() string {
	return fmt.Sprintf("Fraud Alert: %s", subjectReplacer.Replace(n.Type))
}

// Header values must stay on one line.
var subjectReplacer = strings.NewReplacer("_", " ", "\r", " ", "\n", " ")

// Provider delivers a notification through one backend.
type Provider interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

const providerTimeout = 10 * time.Second

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

type SlackWebhookProvider struct {
	webhookURL string
	client     *http.Client
}

func NewSlackWebhookProvider(webhookURL string) *SlackWebhookProvider {
	return &SlackWebhookProvider{webhookURL: webhookURL, client: &http.Client{Timeout: providerTimeout}}
}

func (p *SlackWebhookProvider) Name() string { return "slack_webhook" }

func (p *SlackWebhookProvider) Send(ctx context.Context, n Notification) error {
	return postJSON(ctx, p.client, p.webhookURL, nil, map[string]string{
		"text":       "🚨 Fraud Monitor Alert\n" + n.Message,
		"username":   "Fraud Monitor",
		"icon_emoji": ":shield:",
	})
}

// EmailAPIProvider sends mail through the SendGrid v3 API.
type EmailAPIProvider struct {
	apiKey  string
	baseURL string
	from    string
	to      string
	client  *http.Client
}

func NewEmailAPIProvider(apiKey, baseURL, from, to string) *EmailAPIProvider {
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com/v3"
	}
	return &EmailAPIProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		from:    from,
		to:      to,
		client:  &http.Client{Timeout: providerTimeout},
	}
}

func (p *EmailAPIProvider) Name() string { return "email_api" }

func (p *EmailAPIProvider) Send(ctx context.Context, n Notification) error {
	type address struct {
		Email string `json:"email"`
	}
	body := map[string]interface{}{
		"personalizations": []map[string]interface{}{{"to": []address{{Email: p.to}}}},
		"from":             address{Email: p.from},
		"subject":          n.Subject(),
		"content":          []map[string]string{{"type": "text/plain", "value": n.Message}},
	}
	return postJSON(ctx, p.client, p.baseURL+"/mail/send", map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	}, body)
}

type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPProvider struct {
	addr     string
	host     string
	auth     smtp.Auth
	from     string
	to       string
	sendMail SendMailFunc
}

func NewSMTPProvider(host string, port int, username, password, from, to string) *SMTPProvider {
	var a smtp.Auth
	if username != "" {
		a = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPProvider{
		addr:     fmt.Sprintf("%s:%d", host, port),
		host:     host,
		auth:     a,
		from:     from,
		to:       to,
		sendMail: smtp.SendMail,
	}
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", p.from)
	fmt.Fprintf(&msg, "To: %s\r\n", p.to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", n.Subject())
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(n.Message)
	msg.WriteString("\r\n")

	if err := p.sendMail(p.addr, p.auth, p.from, []string{p.to}, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp send via %s failed: %w", p.addr, err)
	}
	return nil
}

// NotionProvider creates one page per alert in a Notion database.
type NotionProvider struct {
	apiKey     string
	databaseID string
	baseURL    string
	client     *http.Client
}

func NewNotionProvider(apiKey, databaseID, baseURL string) *NotionProvider {
	if baseURL == "" {
		baseURL = "https://api.notion.com/v1"
	}
	return &NotionProvider{
		apiKey:     apiKey,
		databaseID: databaseID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: providerTimeout},
	}
}

func (p *NotionProvider) Name() string { return "notion" }

func (p *NotionProvider) Send(ctx context.Context, n Notification) error {
	text := func(s string) []map[string]interface{} {
		return []map[string]interface{}{{"text": map[string]string{"content": s}}}
	}
	body := map[string]interface{}{
		"parent": map[string]string{"database_id": p.databaseID},
		"properties": map[string]interface{}{
			"Name": map[string]interface{}{"title": text(n.Subject())},
		},
		"children": []map[string]interface{}{{
			"object":    "block",
			"type":      "paragraph",
			"paragraph": map[string]interface{}{"rich_text": text(n.Message)},
		}},
	}
	return postJSON(ctx, p.client, p.baseURL+"/pages", map[string]string{
		"Authorization":  "Bearer " + p.apiKey,
		"Notion-Version": "2022-06-28",
	}, body)
}

// LogProvider records the alert in the service log and always succeeds.
type LogProvider struct {
	logger *slog.Logger
}

func NewLogProvider(logger *slog.Logger) *LogProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Name() string { return "log" }

func (p *LogProvider) Send(ctx context.Context, n Notification) error {
	p.logger.WarnContext(ctx, "Alert recorded in log",
		slog.String("alert_id", n.AlertID),
		slog.String("channel", string(n.Channel)),
		slog.String("type", n.Type),
		slog.String("message", n.Message))
	return nil
}
