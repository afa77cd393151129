package model

import (
	"strings"
	"testing"
)

// validStream returns a Stream that passes all validation rules.
func validStream() Stream {
	return Stream{
		Payer:         "alice",
		Recipient:     "bob",
		RatePerSecond: 1000,
		Deposit:       1000000,
	}
}

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidateStream_Valid(t *testing.T) {
	s := validStream()
	if err := ValidateStream(&s, DefaultLimits); err != nil {
		t.Errorf("expected no error for a valid stream, got: %v", err)
	}
}

func TestValidateStream_BadPayer(t *testing.T) {
	s := validStream()
	s.Payer = "Not An ID"
	errs := fieldErrors(t, ValidateStream(&s, DefaultLimits))
	if !hasFieldError(errs, "payer") {
		t.Error("expected error on field 'payer' for malformed id")
	}
}

func TestValidateStream_EmptyRecipient(t *testing.T) {
	s := validStream()
	s.Recipient = ""
	errs := fieldErrors(t, ValidateStream(&s, DefaultLimits))
	if !hasFieldError(errs, "recipient") {
		t.Error("expected error on field 'recipient' for empty id")
	}
}

func TestValidateStream_RecipientTooLong(t *testing.T) {
	s := validStream()
	s.Recipient = strings.Repeat("a", 65)
	errs := fieldErrors(t, ValidateStream(&s, DefaultLimits))
	if !hasFieldError(errs, "recipient") {
		t.Error("expected error on field 'recipient' for id exceeding 64 chars")
	}
}

func TestValidateStream_RecipientExactly64(t *testing.T) {
	s := validStream()
	s.Recipient = strings.Repeat("a", 64)
	if err := ValidateStream(&s, DefaultLimits); err != nil {
		t.Errorf("64-char recipient id should be valid, got: %v", err)
	}
}

func TestValidateStream_PayerEqualsRecipient(t *testing.T) {
	s := validStream()
	s.Recipient = s.Payer
	errs := fieldErrors(t, ValidateStream(&s, DefaultLimits))
	if !hasFieldError(errs, "recipient") {
		t.Error("expected error on field 'recipient' when payer and recipient match")
	}
}

func TestValidateStream_ZeroRate(t *testing.T) {
	s := validStream()
	s.RatePerSecond = 0
	errs := fieldErrors(t, ValidateStream(&s, DefaultLimits))
	if !hasFieldError(errs, "rate_per_second") {
		t.Error("expected error on field 'rate_per_second' for zero rate")
	}
}

func TestValidateStream_NegativeRate(t *testing.T) {
	s := validStream()
	s.RatePerSecond = -5
	errs := fieldErrors(t, ValidateStream(&s, DefaultLimits))
	if !hasFieldError(errs, "rate_per_second") {
		t.Error("expected error on field 'rate_per_second' for negative rate")
	}
}

func TestValidateStream_RateBelowMinimum(t *testing.T) {
	lim := DefaultLimits
	lim.MinRatePerSecond = 100
	s := validStream()
	s.RatePerSecond = 99
	errs := fieldErrors(t, ValidateStream(&s, lim))
	if !hasFieldError(errs, "rate_per_second") {
		t.Error("expected error on field 'rate_per_second' for rate below the configured minimum")
	}
}

func TestValidateStream_RateAtMinimum(t *testing.T) {
	lim := DefaultLimits
	lim.MinRatePerSecond = 100
	s := validStream()
	s.RatePerSecond = 100
	if err := ValidateStream(&s, lim); err != nil {
		t.Errorf("rate equal to the configured minimum should be valid, got: %v", err)
	}
}

func TestValidateStream_DepositBelowMinimum(t *testing.T) {
	lim := DefaultLimits
	lim.MinDeposit = 500
	s := validStream()
	s.Deposit = 499
	errs := fieldErrors(t, ValidateStream(&s, lim))
	if !hasFieldError(errs, "deposit") {
		t.Error("expected error on field 'deposit' for deposit below the configured minimum")
	}
}

func TestValidateStream_ZeroDeposit(t *testing.T) {
	s := validStream()
	s.Deposit = 0
	errs := fieldErrors(t, ValidateStream(&s, DefaultLimits))
	if !hasFieldError(errs, "deposit") {
		t.Error("expected error on field 'deposit' for zero deposit")
	}
}

func TestValidateMessage_Valid(t *testing.T) {
	m := Message{Content: "halfway there"}
	if err := ValidateMessage(&m, DefaultLimits); err != nil {
		t.Errorf("expected no error for valid content, got: %v", err)
	}
}

func TestValidateMessage_EmptyContent(t *testing.T) {
	m := Message{Content: ""}
	errs := fieldErrors(t, ValidateMessage(&m, DefaultLimits))
	if !hasFieldError(errs, "content") {
		t.Error("expected error on field 'content' for empty content")
	}
}

func TestValidateMessage_ContentTooLong(t *testing.T) {
	m := Message{Content: strings.Repeat("a", DefaultLimits.MaxMessageLength+1)}
	errs := fieldErrors(t, ValidateMessage(&m, DefaultLimits))
	if !hasFieldError(errs, "content") {
		t.Error("expected error on field 'content' for content exceeding the maximum length")
	}
}

func TestValidateMessage_ContentAtMaximum(t *testing.T) {
	m := Message{Content: strings.Repeat("a", DefaultLimits.MaxMessageLength)}
	if err := ValidateMessage(&m, DefaultLimits); err != nil {
		t.Errorf("content at exactly the maximum length should be valid, got: %v", err)
	}
}

func TestValidateMessage_ContentRuneCount(t *testing.T) {
	lim := DefaultLimits
	lim.MaxMessageLength = 4
	// Four runes, twelve bytes.
	m := Message{Content: "зонт"}
	if err := ValidateMessage(&m, lim); err != nil {
		t.Errorf("multibyte content within the rune limit should be valid, got: %v", err)
	}
}

func TestValidAccountID(t *testing.T) {
	valid := []string{"alice", "a", "svc.billing", "team-1", "x_y", strings.Repeat("z", 64)}
	for _, id := range valid {
		if !ValidAccountID(id) {
			t.Errorf("ValidAccountID(%q) = false, want true", id)
		}
	}
	invalid := []string{"", "Alice", "has space", "naïve", strings.Repeat("z", 65), "semi;colon"}
	for _, id := range invalid {
		if ValidAccountID(id) {
			t.Errorf("ValidAccountID(%q) = true, want false", id)
		}
	}
}

func TestValidationError_Error(t *testing.T) {
	ve := &ValidationError{
		Errors: []FieldError{
			{Field: "payer", Message: "is required"},
			{Field: "deposit", Message: "must be positive, got -2"},
		},
	}
	got := ve.Error()
	want := "validation failed: payer: is required; deposit: must be positive, got -2"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	ve := &ValidationError{}
	if ve.HasErrors() {
		t.Error("HasErrors() should be false for empty Errors slice")
	}
	ve.Errors = append(ve.Errors, FieldError{Field: "x", Message: "y"})
	if !ve.HasErrors() {
		t.Error("HasErrors() should be true when Errors is non-empty")
	}
}
