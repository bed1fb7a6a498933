package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrOutOfStock        = errors.New("Item is out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
	ErrPaymentIncomplete = errors.New("Payment not completed")
	ErrProvider          = errors.New("payment provider error")
	ErrConflict          = errors.New("conflict")
	ErrBadRequest        = errors.New("bad request")
	ErrUnauthenticated   = errors.New("invalid credentials")
)

// ValidationError carries a message and optional per-field errors.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// InsufficientStockError reports how much was asked for against what is left.
type InsufficientStockError struct {
	ItemID    string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient quantity. Available: %d, Requested: %d", e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// StatusError pairs a sentinel with the message shown to the client.
type StatusError struct {
	Kind    error
	Message string
	Cause   error
}

func (e *StatusError) Error() string { return e.Message }

func (e *StatusError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func notFound(msg string) error { return &StatusError{Kind: ErrNotFound, Message: msg} }

func denied(msg string) error { return &StatusError{Kind: ErrAccessDenied, Message: msg} }

func invalidState(msg string, cause error) error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &StatusError{Kind: ErrInvalidState, Message: msg, Cause: cause}
}

func providerFailed(cause error) error {
	return &StatusError{Kind: ErrProvider, Message: "Payment provider error", Cause: cause}
}
