package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventTransactionScored = "transaction.scored"
	EventAlertDelivered    = "alert.delivered"
	EventAlertFailed       = "alert.failed"
)

type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func NewEvent(eventType, key string, payload interface{}) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		Payload:    body,
		OccurredAt: time.Now().UTC(),
	}, nil
}
