package audit

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Operations recorded for the session API
const (
	OperationCreateSession = "create_session"
	OperationGetSession    = "get_session"
	OperationListSessions  = "list_sessions"
	OperationDeleteSession = "delete_session"
)

// SessionAuditLog represents an audit log entry for one session API call
type SessionAuditLog struct {
	bun.BaseModel `bun:"table:session_audit_logs,alias:sal"`

	LogID       string                 `bun:"id,pk" json:"log_id"`
	UserID      string                 `bun:"user_id,notnull" json:"user_id"`
	Operation   string                 `bun:"operation,notnull" json:"operation"`
	Endpoint    string                 `bun:"endpoint,notnull" json:"endpoint"`
	Method      string                 `bun:"method,notnull" json:"method"`
	SessionID   string                 `bun:"session_id" json:"session_id,omitempty"`
	Success     bool                   `bun:"success,notnull,default:true" json:"success"`
	StatusCode  int                    `bun:"status_code,notnull" json:"status_code"`
	ErrorMsg    string                 `bun:"error_msg" json:"error_msg,omitempty"`
	Timestamp   time.Time              `bun:"timestamp,notnull,default:current_timestamp" json:"timestamp"`
	RequestData map[string]interface{} `bun:"request_data,type:jsonb" json:"request_data,omitempty"`
}

// Validate validates the audit log entry
func (l *SessionAuditLog) Validate() error {
	if l.UserID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if l.Operation == "" {
		return fmt.Errorf("operation cannot be empty")
	}
	if l.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if l.Method == "" {
		return fmt.Errorf("method cannot be empty")
	}
	return nil
}
