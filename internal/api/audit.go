package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prepdeck/prepdeck/internal/auth"
	"github.com/prepdeck/prepdeck/internal/prep/audit"
)

// handlers set this when the session id is not a path parameter
const auditSessionIDKey = "audit_session_id"

// AuditMiddleware records every authenticated session call after the
// response is written. Records are stored asynchronously.
func AuditMiddleware(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		operation := auditOperation(c.Request.Method, c.FullPath())
		callerID := auth.CallerID(c)
		if operation == "" || callerID == "" {
			return
		}

		sessionID := c.Param("id")
		if sessionID == "" {
			sessionID = c.GetString(auditSessionIDKey)
		}

		status := c.Writer.Status()
		entry := &audit.SessionAuditLog{
			UserID:     callerID,
			Operation:  operation,
			Endpoint:   c.Request.URL.Path,
			Method:     c.Request.Method,
			SessionID:  sessionID,
			Success:    status < http.StatusBadRequest,
			StatusCode: status,
			Timestamp:  startTime.UTC(),
			RequestData: map[string]interface{}{
				"response_time_ms": time.Since(startTime).Milliseconds(),
			},
		}

		if status >= http.StatusBadRequest {
			if last := c.Errors.Last(); last != nil {
				entry.ErrorMsg = last.Error()
			} else {
				entry.ErrorMsg = fmt.Sprintf("HTTP %d", status)
			}
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := as.Audit.Record(ctx, entry); err != nil {
				as.Logger.Error("Failed to record session audit log",
					zap.String("user_id", callerID),
					zap.String("operation", operation),
					zap.Error(err))
			}
		}()
	}
}

func auditOperation(method, route string) string {
	switch {
	case method == http.MethodPost && route == "/api/sessions/create":
		return audit.OperationCreateSession
	case method == http.MethodGet && route == "/api/sessions/my-sessions":
		return audit.OperationListSessions
	case method == http.MethodGet && route == "/api/sessions/:id":
		return audit.OperationGetSession
	case method == http.MethodDelete && route == "/api/sessions/:id":
		return audit.OperationDeleteSession
	default:
		return ""
	}
}
