// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrTradeNotFound  = errors.New("trade not found")
	ErrLegNotFound    = errors.New("leg not found")
	ErrTradeClosed    = errors.New("trade already closed")
	ErrLegClosed      = errors.New("leg already closed")
	ErrNotASpread     = errors.New("trade is not a spread")
	ErrNoOpenLegs     = errors.New("no open legs")
	ErrConfigInvalid  = errors.New("invalid configuration")
	ErrDatabaseError  = errors.New("database error")
	ErrOptionsBlocked = errors.New("option trading blocked")
)

// ValidationError represents a validation error on user-supplied input.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ConfigurationError represents a missing or malformed configuration entry.
type ConfigurationError struct {
	Section string
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configuration error [%s.%s]: %s", e.Section, e.Key, e.Message)
	}
	return fmt.Sprintf("configuration error [%s]: %s", e.Section, e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(section, key, message string) *ConfigurationError {
	return &ConfigurationError{
		Section: section,
		Key:     key,
		Message: message,
	}
}

// IncompleteLegError signals that P&L was requested on a leg that has no
// exit price. This is caller misuse and is never silently coerced to zero.
type IncompleteLegError struct {
	Symbol string
}

func (e *IncompleteLegError) Error() string {
	return fmt.Sprintf("incomplete leg [%s]: P&L requested on a leg without an exit price", e.Symbol)
}

// NewIncompleteLegError creates a new IncompleteLegError.
func NewIncompleteLegError(symbol string) *IncompleteLegError {
	return &IncompleteLegError{Symbol: symbol}
}

// NotFoundError represents a reference to a nonexistent trade or leg.
type NotFoundError struct {
	Kind string // "trade" or "leg"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
