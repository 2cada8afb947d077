package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/prepdeck/prepdeck/internal/api"
	"github.com/prepdeck/prepdeck/internal/auth"
	"github.com/prepdeck/prepdeck/internal/config"
	"github.com/prepdeck/prepdeck/internal/database"
	"github.com/prepdeck/prepdeck/internal/graph"
	"github.com/prepdeck/prepdeck/internal/health"
	"github.com/prepdeck/prepdeck/internal/prep/audit"
	"github.com/prepdeck/prepdeck/internal/prep/sessions"
)

// AppState holds all application services and the resources to release on shutdown
type AppState struct {
	API    *api.AppState
	Logger *zap.Logger
	DB     *bun.DB
	Graph  *graph.TopicGraph
}

func main() {
	config.Load()

	logger := initLogger()
	defer logger.Sync()
	logger.Info("Configuration loaded", zap.String("source", "config.Load()"))

	as, err := newAppState(logger)
	if err != nil {
		logger.Fatal("Failed to initialize application state", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = as.API.Health.StartupHealthCheck(ctx)
	cancel()
	if err != nil {
		logger.Fatal("Startup health check failed", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(as.API)

	httpConfig := config.Http()
	server := &http.Server{
		Addr:         httpConfig.Addr(),
		Handler:      router,
		ReadTimeout:  httpConfig.ReadTimeout,
		WriteTimeout: httpConfig.WriteTimeout,
	}

	done := setupSignalHandler(as, server, logger)

	logger.Info("Starting prepdeck server", zap.String("address", server.Addr))

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	<-done
	logger.Info("Server shutdown complete")
}

// newAppState opens the configured store, the optional topic graph and the
// audit trail, and wires them into the HTTP layer.
func newAppState(logger *zap.Logger) (*AppState, error) {
	as := &AppState{Logger: logger}
	authConfig := config.Auth()
	healthManager := health.NewManager(logger)
	healthManager.AddChecker(health.NewConfigChecker(authConfig.JWTSecret, config.Store().Driver))

	var (
		sessionStore sessions.SessionStore
		auditStore   audit.Store
	)

	switch config.Store().Driver {
	case "postgres":
		pgConfig := config.Postgres()
		logger.Info("Database configuration",
			zap.String("host", pgConfig.Host),
			zap.Int("port", pgConfig.Port),
			zap.String("database", pgConfig.Database),
			zap.String("user", pgConfig.User))

		db, err := database.Open(pgConfig.DSN(), pgConfig.MaxOpenConnections)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}

		as.DB = db
		sessionStore = sessions.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		healthManager.AddChecker(health.NewDatabaseChecker(db))
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		sessionStore = sessions.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", config.Store().Driver)
	}

	var serviceOpts []sessions.ServiceOption
	if graphConfig := config.Graph(); graphConfig.Enabled {
		topicGraph, err := graph.NewTopicGraph(graph.Neo4jConfig{
			URI:      graphConfig.URI,
			Username: graphConfig.Username,
			Password: graphConfig.Password,
			Database: graphConfig.Database,
		}, logger)
		if err != nil {
			// the projection is optional, sessions are served without it
			logger.Warn("Topic graph unavailable", zap.Error(err))
		} else {
			as.Graph = topicGraph
			serviceOpts = append(serviceOpts, sessions.WithProjector(topicGraph))
			healthManager.AddChecker(health.NewGraphChecker(topicGraph))
		}
	}

	var recorder audit.Recorder
	if config.Audit().Enabled {
		recorder = audit.NewRecorder(auditStore)
	}

	httpConfig := config.Http()
	as.API = &api.AppState{
		Sessions:        sessions.NewSessionService(sessionStore, logger, serviceOpts...),
		Audit:           recorder,
		Health:          healthManager,
		Verifier:        auth.NewVerifier(authConfig.JWTSecret, authConfig.Issuer),
		Logger:          logger,
		AllowedOrigins:  httpConfig.AllowedOrigins,
		MaxRequestSize:  httpConfig.MaxRequestSize,
		LegacyListShape: config.API().LegacyListShape,
	}

	return as, nil
}

func initLogger() *zap.Logger {
	logConfig := config.Logger()

	var config zap.Config
	if logConfig.Format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	switch logConfig.Level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return logger
}

func setupSignalHandler(as *AppState, server *http.Server, logger *zap.Logger) chan struct{} {
	done := make(chan struct{}, 1)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalCh

		logger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), config.Http().ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Error during server shutdown", zap.Error(err))
		}

		if as.Graph != nil {
			if err := as.Graph.Close(ctx); err != nil {
				logger.Error("Error closing topic graph", zap.Error(err))
			}
		}

		if as.DB != nil {
			if err := as.DB.Close(); err != nil {
				logger.Error("Error closing database", zap.Error(err))
			}
		}

		done <- struct{}{}
	}()

	return done
}
