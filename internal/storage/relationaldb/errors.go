package relationaldb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Configuration errors
	ErrMissingHost           = errors.New("database host is required")
	ErrMissingDatabase       = errors.New("database name is required")
	ErrMissingUsername       = errors.New("database username is required")
	ErrInvalidPort           = errors.New("invalid database port")
	ErrInvalidDriver         = errors.New("invalid database driver")
	ErrInvalidMaxOpenConns   = errors.New("max open connections must be >= 0")
	ErrInvalidMaxIdleConns   = errors.New("max idle connections must be >= 0")
	ErrMaxIdleExceedsMaxOpen = errors.New("max idle connections cannot exceed max open connections")
	ErrInvalidTimeout        = errors.New("timeout must be positive")
	ErrInvalidMaxRetries     = errors.New("max retries must be >= 0")
	ErrInvalidRetryMaxDelay  = errors.New("retry max delay must be >= retry delay")

	ErrDatabaseClosed = errors.New("database connection is closed")
)

// ErrorType represents different categories of database errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfiguration
	ErrorTypeConnection
	ErrorTypeTransaction
	ErrorTypeConstraint
	ErrorTypeQuery
	ErrorTypeSchema
)

// DatabaseError provides detailed information about database errors
type DatabaseError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Code      string
	Retryable bool
}

// Error implements the error interface
func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause error
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error is retryable
func (e *DatabaseError) IsRetryable() bool {
	return e.Retryable
}

// NewDatabaseError creates a new DatabaseError
func NewDatabaseError(errorType ErrorType, operation, message string, cause error) *DatabaseError {
	return &DatabaseError{
		Type:      errorType,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryableError(errorType, cause),
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConfiguration, operation, message, cause)
}

// NewConnectionError creates a connection error
func NewConnectionError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConnection, operation, message, cause)
}

// NewSchemaError creates a schema error
func NewSchemaError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeSchema, operation, message, cause)
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"database is locked",
	"temporary",
	"deadlock",
	"timeout",
	"busy",
}

func matchesRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func isRetryableError(errorType ErrorType, cause error) bool {
	switch errorType {
	case ErrorTypeConnection:
		return true
	case ErrorTypeTransaction, ErrorTypeQuery:
		return matchesRetryable(cause)
	default:
		return false
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Retryable
	}
	return matchesRetryable(err)
}

// Classifier maps a driver error to a DatabaseError. Drivers with typed
// errors provide one; the fallback classifies on the message.
type Classifier func(err error, operation string) *DatabaseError

// WrapError wraps an existing error with database error context
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		newErr := *dbErr
		newErr.Operation = operation
		return &newErr
	}

	msg := strings.ToLower(err.Error())
	var errorType ErrorType
	switch {
	case strings.Contains(msg, "connection") || strings.Contains(msg, "connect"):
		errorType = ErrorTypeConnection
	case strings.Contains(msg, "transaction") || strings.Contains(msg, "deadlock") || strings.Contains(msg, "locked"):
		errorType = ErrorTypeTransaction
	case strings.Contains(msg, "constraint") || strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique"):
		errorType = ErrorTypeConstraint
	case strings.Contains(msg, "syntax") || strings.Contains(msg, "invalid"):
		errorType = ErrorTypeQuery
	case strings.Contains(msg, "table") || strings.Contains(msg, "column") || strings.Contains(msg, "schema"):
		errorType = ErrorTypeSchema
	default:
		errorType = ErrorTypeUnknown
	}
	return NewDatabaseError(errorType, operation, err.Error(), err)
}
