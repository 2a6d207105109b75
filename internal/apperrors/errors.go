package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrConflict indicates the request violates a domain rule given the current state.
var ErrConflict = errors.New("conflict")

// ErrUnauthorized indicates missing or invalid credentials.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden indicates the caller may not perform the action.
var ErrForbidden = errors.New("forbidden")

// ErrInternal is returned when an unexpected internal failure should not leak details.
var ErrInternal = errors.New("internal error")

// ErrStorage indicates the underlying persistence layer failed.
// A lost ledger write is a financial-integrity incident, so these are always surfaced.
var ErrStorage = errors.New("storage error")

// ErrConcurrencyTimeout indicates the per-ledger serialization point could not be
// acquired within the bounded wait. Nothing was written; the call is safe to retry.
var ErrConcurrencyTimeout = errors.New("timed out waiting for ledger lock")

var (
	// ErrInvalidAmount is a validation failure on a monetary amount.
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)

	// ErrAlreadyReversed is returned when reversing a transaction that already has a reversal.
	ErrAlreadyReversed = fmt.Errorf("%w: transaction already reversed", ErrConflict)

	// ErrReversalOfReversal is returned when the reversal target is itself a reversal entry.
	ErrReversalOfReversal = fmt.Errorf("%w: a reversal entry cannot be reversed", ErrConflict)
)

// AppError carries an HTTP-style status code alongside the wrapped cause.
// Repositories use it for storage failures so the cause is never swallowed.
type AppError struct {
	Code    int
	Message string
	Err     error
}

// NewAppError creates an AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an AppError against the sentinel implied by its code.
func (e *AppError) Is(target error) bool {
	switch target {
	case ErrStorage:
		return e.Code == http.StatusInternalServerError
	case ErrConcurrencyTimeout:
		return e.Code == http.StatusServiceUnavailable
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrValidation:
		return e.Code == http.StatusBadRequest
	case ErrConflict:
		return e.Code == http.StatusConflict
	}
	return false
}

// NewStorageError wraps a persistence failure.
func NewStorageError(message string, err error) error {
	return NewAppError(http.StatusInternalServerError, message, err)
}

// ValidationError describes malformed input on a single field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// InvalidAmountError is a ValidationError specific to monetary amounts.
type InvalidAmountError struct {
	Amount string
	Reason string
}

// NewInvalidAmountError creates an InvalidAmountError.
func NewInvalidAmountError(amount, reason string) error {
	return &InvalidAmountError{Amount: amount, Reason: reason}
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %s: %s", e.Amount, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ReversalError is a domain-rule violation on Reverse.
// Err is ErrAlreadyReversed or ErrReversalOfReversal.
type ReversalError struct {
	TransactionID int64
	Err           error
}

func (e *ReversalError) Error() string {
	return fmt.Sprintf("cannot reverse transaction %d: %v", e.TransactionID, e.Err)
}

func (e *ReversalError) Unwrap() error {
	return e.Err
}

// ConcurrencyTimeoutError reports the ledger key whose lock could not be acquired.
type ConcurrencyTimeoutError struct {
	Key    string
	Waited time.Duration
}

func (e *ConcurrencyTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for ledger %s", e.Waited, e.Key)
}

func (e *ConcurrencyTimeoutError) Unwrap() error {
	return ErrConcurrencyTimeout
}

// HTTPStatus maps an error onto the response status an embedding service should use.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConcurrencyTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether the caller may retry the same call unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyTimeout) || errors.Is(err, ErrStorage)
}
