package prep

import (
	"errors"
	"fmt"
)

// SessionError represents errors related to session aggregate operations
type SessionError struct {
	Type      string
	SessionID string
	Message   string
	Cause     error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session error [%s] for session %s: %s (caused by: %v)", e.Type, e.SessionID, e.Message, e.Cause)
	}
	return fmt.Sprintf("session error [%s] for session %s: %s", e.Type, e.SessionID, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// Session error types
const (
	SessionErrorTypeNotFound        = "not_found"
	SessionErrorTypeUnauthorized    = "unauthorized"
	SessionErrorTypeCreateFailed    = "create_failed"
	SessionErrorTypeOperationFailed = "operation_failed"
	SessionErrorTypeInvalidRequest  = "invalid_request"
)

// NewSessionNotFoundError creates an error for when a session does not exist
func NewSessionNotFoundError(sessionID string) *SessionError {
	return &SessionError{
		Type:      SessionErrorTypeNotFound,
		SessionID: sessionID,
		Message:   "session not found",
	}
}

// NewSessionUnauthorizedError creates an error for a caller that does not own the session
func NewSessionUnauthorizedError(sessionID, callerID string) *SessionError {
	return &SessionError{
		Type:      SessionErrorTypeUnauthorized,
		SessionID: sessionID,
		Message:   fmt.Sprintf("caller %s does not own the session", callerID),
	}
}

// NewSessionCreateFailedError wraps any failure of the create pipeline.
// Validation, question insertion and attach failures all collapse into it.
func NewSessionCreateFailedError(sessionID string, cause error) *SessionError {
	return &SessionError{
		Type:      SessionErrorTypeCreateFailed,
		SessionID: sessionID,
		Message:   "session creation failed",
		Cause:     cause,
	}
}

// NewSessionOperationError creates a generic failure for a read or delete step
func NewSessionOperationError(operation, sessionID string, cause error) *SessionError {
	return &SessionError{
		Type:      SessionErrorTypeOperationFailed,
		SessionID: sessionID,
		Message:   fmt.Sprintf("%s failed", operation),
		Cause:     cause,
	}
}

// NewSessionInvalidRequestError creates an error for a request missing required fields
func NewSessionInvalidRequestError(message string) *SessionError {
	return &SessionError{
		Type:    SessionErrorTypeInvalidRequest,
		Message: message,
	}
}

// IsSessionNotFound reports whether err carries a not-found session error.
func IsSessionNotFound(err error) bool {
	return hasSessionErrorType(err, SessionErrorTypeNotFound)
}

// IsSessionUnauthorized reports whether err carries an ownership failure.
func IsSessionUnauthorized(err error) bool {
	return hasSessionErrorType(err, SessionErrorTypeUnauthorized)
}

func hasSessionErrorType(err error, errType string) bool {
	var sessionErr *SessionError
	if !errors.As(err, &sessionErr) {
		return false
	}
	return sessionErr.Type == errType
}

// StorageError represents errors related to storage operations
type StorageError struct {
	Type      string
	Operation string
	Resource  string
	Message   string
	Cause     error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage error [%s] during %s on %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Resource, e.Message, e.Cause)
	}
	return fmt.Sprintf("storage error [%s] during %s on %s: %s",
		e.Type, e.Operation, e.Resource, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Storage error types
const (
	StorageErrorTypeQueryFailed         = "query_failed"
	StorageErrorTypeTransactionFailed   = "transaction_failed"
	StorageErrorTypeConstraintViolation = "constraint_violation"
)

// NewStorageQueryError creates an error for storage query failures
func NewStorageQueryError(operation, resource string, cause error) *StorageError {
	return &StorageError{
		Type:      StorageErrorTypeQueryFailed,
		Operation: operation,
		Resource:  resource,
		Message:   "storage query failed",
		Cause:     cause,
	}
}

// NewStorageTransactionError creates an error for a rolled back transaction
func NewStorageTransactionError(operation, resource string, cause error) *StorageError {
	return &StorageError{
		Type:      StorageErrorTypeTransactionFailed,
		Operation: operation,
		Resource:  resource,
		Message:   "transaction rolled back",
		Cause:     cause,
	}
}

// NewStorageConstraintError creates an error for constraint violations
func NewStorageConstraintError(operation, resource string, cause error) *StorageError {
	return &StorageError{
		Type:      StorageErrorTypeConstraintViolation,
		Operation: operation,
		Resource:  resource,
		Message:   "storage constraint violation",
		Cause:     cause,
	}
}
