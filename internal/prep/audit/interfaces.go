package audit

import (
	"context"
)

// Recorder records and reads back session API audit entries
type Recorder interface {
	// Record validates and persists one entry, filling id and timestamp
	Record(ctx context.Context, log *SessionAuditLog) error

	// ListForSession returns entries touching a session, newest first
	ListForSession(ctx context.Context, sessionID string, limit int) ([]*SessionAuditLog, error)

	// ListForUser returns entries made by a user, newest first
	ListForUser(ctx context.Context, userID string, limit int) ([]*SessionAuditLog, error)
}

// Store defines the interface for audit log persistence
type Store interface {
	CreateAuditLog(ctx context.Context, log *SessionAuditLog) error
	GetAuditLogsBySession(ctx context.Context, sessionID string, limit int) ([]*SessionAuditLog, error)
	GetAuditLogsByUser(ctx context.Context, userID string, limit int) ([]*SessionAuditLog, error)
}
