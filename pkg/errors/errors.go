package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateItem     = errors.New("duplicate item")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// InvalidInput reports a request that is well-formed but semantically
// invalid (non-positive quantity, past expiration date, negative threshold).
func InvalidInput(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidInput,
		Code:       "INVALID_INPUT",
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// InsufficientStock reports a consumption request that exceeds the
// unexpired available quantity of an item.
func InsufficientStock(itemName string, requested, available int) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock for %s: requested %d, available %d", itemName, requested, available),
		StatusCode: http.StatusConflict,
	}
}

// DuplicateItem reports a catalog creation colliding with an existing name.
func DuplicateItem(name string) *AppError {
	return &AppError{
		Err:        ErrDuplicateItem,
		Code:       "DUPLICATE_ITEM",
		Message:    fmt.Sprintf("item %q already exists", name),
		StatusCode: http.StatusConflict,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
