package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AlertChannel string
type AlertStatus string

const (
	ChannelSlack  AlertChannel = "SLACK"
	ChannelEmail  AlertChannel = "EMAIL"
	ChannelNotion AlertChannel = "NOTION"

	AlertPending   AlertStatus = "PENDING"
	AlertDelivered AlertStatus = "DELIVERED"
	AlertFailed    AlertStatus = "FAILED"

	DefaultAlertType = "FRAUD_DETECTED"
)

var ErrInvalidAlertTransition = errors.New("invalid alert status transition")

func ParseAlertChannel(s string) (AlertChannel, error) {
	ch := AlertChannel(strings.ToUpper(strings.TrimSpace(s)))
	switch ch {
	case ChannelSlack, ChannelEmail, ChannelNotion:
		return ch, nil
	}
	return "", fmt.Errorf("unsupported channel: %q", s)
}

type Alert struct {
	ID        string       `json:"id"`
	ReportID  string       `json:"reportId,omitempty"`
	UserID    string       `json:"userId"`
	Channel   AlertChannel `json:"channel"`
	Message   string       `json:"message"`
	Status    AlertStatus  `json:"status"`
	SentAt    *time.Time   `json:"sentAt,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// AlertRequest asks the dispatcher to create and deliver one alert.
type AlertRequest struct {
	UserID   string
	Channel  AlertChannel
	Message  string
	ReportID string
	Type     string
}

func NewAlert(req AlertRequest) *Alert {
	return &Alert{
		ID:        uuid.NewString(),
		ReportID:  req.ReportID,
		UserID:    req.UserID,
		Channel:   req.Channel,
		Message:   req.Message,
		Status:    AlertPending,
		CreatedAt: time.Now(),
	}
}

// MarkDelivered moves a pending alert to DELIVERED and stamps the send time.
func (a *Alert) MarkDelivered(at time.Time) error {
	if a.Status != AlertPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidAlertTransition, a.Status, AlertDelivered)
	}
	a.Status = AlertDelivered
	a.SentAt = &at
	return nil
}

func (a *Alert) MarkFailed() error {
	if a.Status != AlertPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidAlertTransition, a.Status, AlertFailed)
	}
	a.Status = AlertFailed
	return nil
}

func (a *Alert) IsTerminal() bool {
	return a.Status == AlertDelivered || a.Status == AlertFailed
}
