package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultListLimit = 100

// auditRecorder implements the Recorder interface
type auditRecorder struct {
	store Store
}

// NewRecorder creates a new audit recorder
func NewRecorder(store Store) Recorder {
	return &auditRecorder{
		store: store,
	}
}

// Record logs a session API call
func (r *auditRecorder) Record(ctx context.Context, log *SessionAuditLog) error {
	if err := log.Validate(); err != nil {
		return fmt.Errorf("invalid audit log: %w", err)
	}

	if log.LogID == "" {
		log.LogID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	if err := r.store.CreateAuditLog(ctx, log); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// ListForSession returns audit logs for a specific session
func (r *auditRecorder) ListForSession(ctx context.Context, sessionID string, limit int) ([]*SessionAuditLog, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID cannot be empty")
	}

	if limit <= 0 {
		limit = defaultListLimit
	}

	logs, err := r.store.GetAuditLogsBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get session audit logs: %w", err)
	}

	return logs, nil
}

// ListForUser returns audit logs for a specific user
func (r *auditRecorder) ListForUser(ctx context.Context, userID string, limit int) ([]*SessionAuditLog, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	if limit <= 0 {
		limit = defaultListLimit
	}

	logs, err := r.store.GetAuditLogsByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get user audit logs: %w", err)
	}

	return logs, nil
}
