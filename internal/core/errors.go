package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrSameWalletTransfer = errors.New("source and destination wallet are the same")
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrUnknownFrequency   = errors.New("unknown frequency")
	ErrDuplicateName      = errors.New("name already in use")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// FieldError describes one offending input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every offending field of an input, in the order the
// checks ran. The first entry is the one surfaced to users.
type ValidationError struct {
	Problems []FieldError
}

// NewValidationError creates a ValidationError with a single problem.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Problems: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return ErrValidation.Error()
	}
	return e.Problems[0].Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Field returns the first offending field.
func (e *ValidationError) Field() string {
	if len(e.Problems) == 0 {
		return ""
	}
	return e.Problems[0].Field
}

// Fields returns all offending fields.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		out = append(out, p.Field)
	}
	return out
}

// Messages returns all problem messages.
func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		out = append(out, p.Message)
	}
	return out
}

// Problems accumulates field errors while an input is checked.
type Problems struct {
	list []FieldError
}

func (p *Problems) Add(field, message string) {
	p.list = append(p.list, FieldError{Field: field, Message: message})
}

func (p *Problems) Empty() bool { return len(p.list) == 0 }

// Err returns nil when nothing was added, a *ValidationError otherwise.
func (p *Problems) Err() error {
	if len(p.list) == 0 {
		return nil
	}
	return &ValidationError{Problems: append([]FieldError(nil), p.list...)}
}

// StorageError wraps a persistence failure with the operation in flight.
type StorageError struct {
	Op    string
	Table string
	ID    string
	Err   error
}

func (e *StorageError) Error() string {
	parts := []string{"storage", e.Op, e.Table}
	if e.ID != "" {
		parts = append(parts, e.ID)
	}
	return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
