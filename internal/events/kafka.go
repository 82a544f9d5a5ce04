package events

import (
	"context"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/pkg/crypto"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
	signer *crypto.Signer
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, signer *crypto.Signer, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            3,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	logger.Info("Kafka publisher initialized",
		slog.Any("brokers", brokers),
		slog.String("topic", topic))

	return newKafkaPublisher(writer, topic, signer, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, signer *crypto.Signer, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, signer: signer, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, headers, err := envelope(event, p.signer)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Key),
		Value: body,
		Time:  event.OccurredAt,
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka publisher", slog.String("error", err.Error()))
		return err
	}
	p.logger.Info("Kafka publisher closed")
	return nil
}
