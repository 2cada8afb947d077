package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const callerIDKey = "caller_id"

// Middleware rejects requests without a valid bearer token and stores the
// caller id in the gin context.
func Middleware(verifier *Verifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		callerID, err := verifier.Verify(token)
		if err != nil {
			message := "Not authorized, token failed"
			if errors.Is(err, ErrMissingToken) {
				message = "Not authorized, no token"
			}
			logger.Debug("Rejected request",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": message,
			})
			return
		}

		c.Set(callerIDKey, callerID)
		c.Next()
	}
}

// CallerID returns the authenticated caller, or "" outside Middleware
func CallerID(c *gin.Context) string {
	return c.GetString(callerIDKey)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
