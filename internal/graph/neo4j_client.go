package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/prepdeck/prepdeck/internal/prep/sessions"
)

// TopicGraph mirrors prep sessions into Neo4j as
// (:PrepSession)-[:FOCUSES_ON]->(:Topic) so sessions can be found by topic.
type TopicGraph struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// Neo4jConfig represents Neo4j connection configuration
type Neo4jConfig struct {
	URI      string `json:"uri" yaml:"uri"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
}

// NewTopicGraph connects to Neo4j and creates the projection constraints
func NewTopicGraph(config Neo4jConfig, logger *zap.Logger) (*TopicGraph, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("Neo4j URI is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	auth := neo4j.BasicAuth(config.Username, config.Password, "")
	driver, err := neo4j.NewDriverWithContext(config.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	g := &TopicGraph{
		driver:   driver,
		database: config.Database,
		logger:   logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	g.initializeSchema(ctx)

	logger.Info("Neo4j topic graph initialized successfully",
		zap.String("uri", config.URI),
		zap.String("database", config.Database))

	return g, nil
}

// Close closes the Neo4j driver
func (g *TopicGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *TopicGraph) initializeSchema(ctx context.Context) {
	session := g.newSession(ctx)
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT prep_session_id IF NOT EXISTS FOR (s:PrepSession) REQUIRE s.id IS UNIQUE",
		"CREATE CONSTRAINT topic_name IF NOT EXISTS FOR (t:Topic) REQUIRE t.name IS UNIQUE",
		"CREATE INDEX prep_session_owner IF NOT EXISTS FOR (s:PrepSession) ON (s.owner)",
	}

	for _, constraint := range constraints {
		if _, err := session.Run(ctx, constraint, nil); err != nil {
			g.logger.Warn("Failed to create constraint",
				zap.String("constraint", constraint),
				zap.Error(err))
		}
	}
}

// ProjectSession upserts the session node and replaces its topic edges
func (g *TopicGraph) ProjectSession(ctx context.Context, s *sessions.Session) error {
	session := g.newSession(ctx)
	defer session.Close(ctx)

	query := `
		MERGE (s:PrepSession {id: $id})
		SET s.owner = $owner,
		    s.role = $role,
		    s.experience = $experience,
		    s.created_at = $created_at
		WITH s
		OPTIONAL MATCH (s)-[old:FOCUSES_ON]->(:Topic)
		DELETE old
		WITH DISTINCT s
		UNWIND $topics AS topic
		MERGE (t:Topic {name: topic})
		MERGE (s)-[:FOCUSES_ON]->(t)
	`

	if _, err := session.Run(ctx, query, sessionParams(s)); err != nil {
		return fmt.Errorf("failed to project session %s: %w", s.ID, err)
	}

	return nil
}

// RemoveSession deletes the session node and its edges
func (g *TopicGraph) RemoveSession(ctx context.Context, sessionID uuid.UUID) error {
	session := g.newSession(ctx)
	defer session.Close(ctx)

	query := `MATCH (s:PrepSession {id: $id}) DETACH DELETE s`

	if _, err := session.Run(ctx, query, map[string]any{"id": sessionID.String()}); err != nil {
		return fmt.Errorf("failed to remove session %s: %w", sessionID, err)
	}

	return nil
}

// HealthCheck performs a basic health check on the Neo4j connection
func (g *TopicGraph) HealthCheck(ctx context.Context) error {
	return g.driver.VerifyConnectivity(ctx)
}

func (g *TopicGraph) newSession(ctx context.Context) neo4j.SessionWithContext {
	return g.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: g.database,
	})
}

func sessionParams(s *sessions.Session) map[string]any {
	topics := make([]any, 0)
	seen := make(map[string]bool)
	for _, topic := range s.Topics() {
		name := strings.ToLower(topic)
		if seen[name] {
			continue
		}
		seen[name] = true
		topics = append(topics, name)
	}

	return map[string]any{
		"id":         s.ID.String(),
		"owner":      s.Owner,
		"role":       s.Role,
		"experience": string(s.Experience),
		"created_at": s.CreatedAt,
		"topics":     topics,
	}
}
