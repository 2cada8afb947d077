package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prepdeck/prepdeck/internal/auth"
	"github.com/prepdeck/prepdeck/internal/health"
	"github.com/prepdeck/prepdeck/internal/prep/audit"
	"github.com/prepdeck/prepdeck/internal/prep/sessions"
)

// AppState holds the services the HTTP layer depends on
type AppState struct {
	Sessions sessions.SessionManager
	Audit    audit.Recorder // nil disables the audit trail
	Health   *health.Manager
	Verifier *auth.Verifier
	Logger   *zap.Logger

	AllowedOrigins  []string
	MaxRequestSize  int64
	LegacyListShape bool
}

// NewRouter builds the gin engine with every route and middleware
func NewRouter(as *AppState) *gin.Engine {
	router := gin.New()

	router.Use(cors.New(corsConfig(as.AllowedOrigins)))
	router.Use(RequestLogger(as.Logger))
	router.Use(gin.Recovery())
	if as.MaxRequestSize > 0 {
		router.Use(limitRequestBody(as.MaxRequestSize))
	}

	router.GET("/health", healthCheck(as))

	api := router.Group("/api/sessions")
	api.Use(auth.Middleware(as.Verifier, as.Logger))
	if as.Audit != nil {
		api.Use(AuditMiddleware(as))
	}
	{
		api.POST("/create", createSession(as))
		api.GET("/my-sessions", listMySessions(as))
		api.GET("/:id", getSession(as))
		api.DELETE("/:id", deleteSession(as))
	}
	if as.Audit != nil {
		api.GET("/audit/mine", listMyAudit(as))
		api.GET("/:id/audit", listSessionAudit(as))
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// RequestLogger logs one line per request with zap
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}

func limitRequestBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func healthCheck(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := as.Health.RuntimeHealthCheck(c.Request.Context())

		status := http.StatusOK
		state := "healthy"
		if !report.Healthy {
			status = http.StatusServiceUnavailable
			state = "unhealthy"
		}

		c.JSON(status, gin.H{
			"status":    state,
			"timestamp": time.Now().Format(time.RFC3339),
			"services":  report.Services,
		})
	}
}
