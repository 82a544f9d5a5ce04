// Package events publishes signed domain events to a message bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/pkg/crypto"
	"log/slog"
	"sync"
)

type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
	Close() error
}

// EventTypeHeader names the event type on published messages.
const EventTypeHeader = "X-Fraudmon-Event-Type"

// envelope is the wire form shared by every bus.
func envelope(event domain.Event, signer *crypto.Signer) (body []byte, headers map[string]string, err error) {
	body, err = json.Marshal(event)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	headers = map[string]string{EventTypeHeader: event.Type}
	if signer != nil {
		headers[crypto.SignatureHeader] = signer.SignEvent(event)
	}
	return body, headers, nil
}

// NoopPublisher drops events after a debug log line.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.logger.DebugContext(ctx, "Event dropped, no bus configured",
		slog.String("event_type", event.Type),
		slog.String("key", event.Key))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }

// MemoryPublisher keeps published events with their signatures.
type MemoryPublisher struct {
	mu         sync.Mutex
	signer     *crypto.Signer
	events     []domain.Event
	signatures []string
	Err        error
}

func NewMemoryPublisher(signer *crypto.Signer) *MemoryPublisher {
	return &MemoryPublisher{signer: signer}
}

func (p *MemoryPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	_, headers, err := envelope(event, p.signer)
	if err != nil {
		return err
	}
	p.events = append(p.events, event)
	p.signatures = append(p.signatures, headers[crypto.SignatureHeader])
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

func (p *MemoryPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}

func (p *MemoryPublisher) Signatures() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.signatures...)
}
