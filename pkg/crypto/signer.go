package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"fraud_monitor/internal/domain"
	"log/slog"
)

var ErrInvalidSignature = errors.New("invalid signature")

// SignatureHeader carries the event signature on published messages.
const SignatureHeader = "X-Fraudmon-Signature"

type Signer struct {
	secretKey []byte
	logger    *slog.Logger
}

func NewSigner(secretKey string, logger *slog.Logger) *Signer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(data []byte, signature string) error {
	expected := s.Sign(data)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		s.logger.Warn("Signature verification failed", slog.Int("payload_bytes", len(data)))
		return ErrInvalidSignature
	}
	return nil
}

// SignEvent covers the event id, type, key and payload.
func (s *Signer) SignEvent(event domain.Event) string {
	return s.Sign(eventDigestInput(event))
}

func (s *Signer) VerifyEvent(event domain.Event, signature string) error {
	if err := s.Verify(eventDigestInput(event), signature); err != nil {
		return fmt.Errorf("event %s: %w", event.ID, err)
	}
	return nil
}

func eventDigestInput(event domain.Event) []byte {
	head := fmt.Sprintf("%s:%s:%s:%d:", event.ID, event.Type, event.Key, event.OccurredAt.UnixNano())
	return append([]byte(head), event.Payload...)
}
