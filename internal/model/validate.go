package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Limits holds the tunable bounds enforced on new streams and messages.
type Limits struct {
	MinRatePerSecond int64
	MinDeposit       int64
	MaxMessageLength int
}

// DefaultLimits are the bounds applied when no overrides are configured.
var DefaultLimits = Limits{
	MinRatePerSecond: 1,
	MinDeposit:       1,
	MaxMessageLength: 1024,
}

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

var accountIDPattern = regexp.MustCompile(`^[a-z0-9._-]{1,64}$`)

// ValidAccountID reports whether id is a well-formed account identifier:
// 1-64 characters drawn from [a-z0-9._-].
func ValidAccountID(id string) bool {
	return accountIDPattern.MatchString(id)
}

// ValidateStream checks a new Stream for constraint violations against the
// given limits. It returns a *ValidationError if any rules fail, or nil if
// the stream is valid.
func ValidateStream(s *Stream, lim Limits) error {
	var ve ValidationError

	if !ValidAccountID(s.Payer) {
		ve.Errors = append(ve.Errors, FieldError{Field: "payer", Message: "must be 1-64 characters of [a-z0-9._-]"})
	}
	if !ValidAccountID(s.Recipient) {
		ve.Errors = append(ve.Errors, FieldError{Field: "recipient", Message: "must be 1-64 characters of [a-z0-9._-]"})
	}
	if s.Payer != "" && s.Payer == s.Recipient {
		ve.Errors = append(ve.Errors, FieldError{Field: "recipient", Message: "must differ from payer"})
	}

	// Rate: positive and at least the configured minimum.
	if s.RatePerSecond <= 0 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "rate_per_second",
			Message: fmt.Sprintf("must be positive, got %d", s.RatePerSecond),
		})
	} else if s.RatePerSecond < lim.MinRatePerSecond {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "rate_per_second",
			Message: fmt.Sprintf("must be at least %d, got %d", lim.MinRatePerSecond, s.RatePerSecond),
		})
	}

	// Deposit: positive and at least the configured minimum.
	if s.Deposit <= 0 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "deposit",
			Message: fmt.Sprintf("must be positive, got %d", s.Deposit),
		})
	} else if s.Deposit < lim.MinDeposit {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "deposit",
			Message: fmt.Sprintf("must be at least %d, got %d", lim.MinDeposit, s.Deposit),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateMessage checks a Message for constraint violations against the
// given limits. Content length is measured in runes, not bytes.
func ValidateMessage(m *Message, lim Limits) error {
	var ve ValidationError

	if m.Content == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "content", Message: "is required"})
	} else if n := len([]rune(m.Content)); n > lim.MaxMessageLength {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "content",
			Message: fmt.Sprintf("must be %d characters or fewer, got %d", lim.MaxMessageLength, n),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
