package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prepdeck/prepdeck/internal/auth"
	"github.com/prepdeck/prepdeck/internal/prep"
	"github.com/prepdeck/prepdeck/internal/prep/sessions"
)

const (
	serverErrorMessage = "Server Error."
	maxAuditLimit      = 500
)

func createSession(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sessions.CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			// well-formed JSON with wrongly typed fields fails like any other create
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				as.Logger.Error("Failed to create session", zap.Error(err))
				serverError(c, err)
				return
			}
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
			return
		}

		session, err := as.Sessions.CreateSession(c.Request.Context(), auth.CallerID(c), &req)
		if err != nil {
			as.Logger.Error("Failed to create session", zap.Error(err))
			serverError(c, err)
			return
		}

		c.Set(auditSessionIDKey, session.ID.String())
		c.JSON(http.StatusCreated, gin.H{"success": true, "session": session})
	}
}

// getSession is open to any authenticated caller; only delete checks ownership.
func getSession(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		session, err := as.Sessions.GetSession(c.Request.Context(), sessionID)
		if err != nil {
			if prep.IsSessionNotFound(err) {
				_ = c.Error(err)
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Session not found"})
				return
			}
			as.Logger.Error("Failed to get session", zap.String("session_id", sessionID), zap.Error(err))
			serverError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "session": session})
	}
}

func listMySessions(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := as.Sessions.ListMySessions(c.Request.Context(), auth.CallerID(c))
		if err != nil {
			as.Logger.Error("Failed to list sessions", zap.String("caller_id", auth.CallerID(c)), zap.Error(err))
			serverError(c, err)
			return
		}

		if as.LegacyListShape {
			c.JSON(http.StatusOK, result)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "sessions": result})
	}
}

func deleteSession(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		session, err := as.Sessions.DeleteSession(c.Request.Context(), auth.CallerID(c), sessionID)
		if err != nil {
			switch {
			case prep.IsSessionNotFound(err):
				_ = c.Error(err)
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Session not found"})
			case prep.IsSessionUnauthorized(err):
				_ = c.Error(err)
				c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authorized to delete this session"})
			default:
				as.Logger.Error("Failed to delete session", zap.String("session_id", sessionID), zap.Error(err))
				serverError(c, err)
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Session deleted Successfully",
			"session": session,
		})
	}
}

// listSessionAudit returns the audit trail of a session to its owner
func listSessionAudit(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		limit, ok := auditLimit(c)
		if !ok {
			return
		}

		if _, err := as.Sessions.AuthorizeOwner(c.Request.Context(), auth.CallerID(c), sessionID); err != nil {
			switch {
			case prep.IsSessionNotFound(err):
				_ = c.Error(err)
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Session not found"})
			case prep.IsSessionUnauthorized(err):
				_ = c.Error(err)
				c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authorized to view this session"})
			default:
				as.Logger.Error("Failed to authorize audit read", zap.String("session_id", sessionID), zap.Error(err))
				serverError(c, err)
			}
			return
		}

		logs, err := as.Audit.ListForSession(c.Request.Context(), sessionID, limit)
		if err != nil {
			as.Logger.Error("Failed to list session audit logs", zap.String("session_id", sessionID), zap.Error(err))
			serverError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs})
	}
}

// listMyAudit returns the calls made by the caller, newest first
func listMyAudit(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := auditLimit(c)
		if !ok {
			return
		}

		logs, err := as.Audit.ListForUser(c.Request.Context(), auth.CallerID(c), limit)
		if err != nil {
			as.Logger.Error("Failed to list user audit logs", zap.String("caller_id", auth.CallerID(c)), zap.Error(err))
			serverError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs})
	}
}

// auditLimit parses ?limit=; zero means the recorder default
func auditLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 || limit > maxAuditLimit {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid limit"})
		return 0, false
	}
	return limit, true
}

// serverError hides the cause from the caller and keeps it for the audit trail
func serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": serverErrorMessage})
}
