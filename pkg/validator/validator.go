package validator

import (
	"errors"
	"fmt"
	"fraud_monitor/internal/domain"
	"math"
	"net"
	"regexp"
	"strings"
	"time"
)

var (
	ErrValidation = errors.New("validation failed")

	ErrMissingField   = errors.New("missing required field")
	ErrInvalidAmount  = errors.New("invalid transaction amount")
	ErrInvalidEmail   = errors.New("invalid email")
	ErrInvalidIP      = errors.New("invalid ip address")
	ErrFutureTime     = errors.New("transaction date cannot be in the future")
	ErrWeakPassword   = errors.New("password too short")
	ErrLongPassword   = errors.New("password too long")
	ErrMessageTooLong = errors.New("message too long")
	ErrInvalidType    = errors.New("invalid alert type")
)

const (
	MaxAmount         = 1_000_000_000
	MinPasswordLength = 8
	// bcrypt only accepts up to 72 bytes.
	MaxPasswordLength = 72
	MaxMessageLength  = 4000
	maxClockSkew      = 5 * time.Minute
)

type Validator struct {
	emailRegex *regexp.Regexp
	typeRegex  *regexp.Regexp
	now        func() time.Time
}

func New() *Validator {
	return &Validator{
		emailRegex: regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`),
		typeRegex:  regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`),
		now:        time.Now,
	}
}

// Missing reports the named fields as absent.
func Missing(fields ...string) error {
	return fmt.Errorf("%w: %w: %s", ErrValidation, ErrMissingField, strings.Join(fields, ", "))
}

func (v *Validator) ValidateFraudCheck(check domain.FraudCheck) error {
	var errs []error

	var missing []string
	if strings.TrimSpace(check.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(check.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", ")))
	}

	if check.Amount < 0 || check.Amount > MaxAmount || math.IsNaN(check.Amount) || math.IsInf(check.Amount, 0) {
		errs = append(errs, ErrInvalidAmount)
	}

	if check.IP != "" && net.ParseIP(check.IP) == nil {
		errs = append(errs, ErrInvalidIP)
	}

	if check.Timestamp != nil && check.Timestamp.After(v.now().Add(maxClockSkew)) {
		errs = append(errs, ErrFutureTime)
	}

	return wrap(errs)
}

func (v *Validator) ValidateRegistration(name, email, password string) error {
	var missing []string
	if strings.TrimSpace(name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(email) == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return Missing(missing...)
	}

	var errs []error
	if !v.emailRegex.MatchString(domain.NormalizeEmail(email)) {
		errs = append(errs, ErrInvalidEmail)
	}
	if len(password) < MinPasswordLength {
		errs = append(errs, ErrWeakPassword)
	}
	if len(password) > MaxPasswordLength {
		errs = append(errs, ErrLongPassword)
	}
	return wrap(errs)
}

// ValidateAlert checks a client alert request. An empty alertType is allowed
// and falls back to the default type.
func (v *Validator) ValidateAlert(channel, message, alertType string) error {
	var missing []string
	if strings.TrimSpace(channel) == "" {
		missing = append(missing, "channel")
	}
	if strings.TrimSpace(message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return Missing(missing...)
	}

	if _, err := domain.ParseAlertChannel(channel); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if len(message) > MaxMessageLength {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMessageTooLong)
	}
	if alertType != "" && !v.typeRegex.MatchString(alertType) {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidType)
	}
	return nil
}

func wrap(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, errors.Join(errs...))
}

// RequireText fails when value is blank.
func RequireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return Missing(field)
	}
	return nil
}
