package graph

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/prepdeck/prepdeck/internal/prep/sessions"
)

func TestSessionParamsNormalizesTopics(t *testing.T) {
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := &sessions.Session{
		ID:            uuid.New(),
		Owner:         "user-1",
		Role:          "Backend Developer",
		Experience:    "2",
		TopicsToFocus: "Node.js, node.js ,Express, ",
		CreatedAt:     created,
	}

	params := sessionParams(s)

	assert.Equal(t, s.ID.String(), params["id"])
	assert.Equal(t, "user-1", params["owner"])
	assert.Equal(t, "2", params["experience"])
	assert.Equal(t, created, params["created_at"])
	assert.Equal(t, []any{"node.js", "express"}, params["topics"])
}

func TestSessionParamsWithoutTopics(t *testing.T) {
	params := sessionParams(&sessions.Session{ID: uuid.New()})
	assert.Equal(t, []any{}, params["topics"])
}

func TestNewTopicGraphRequiresURI(t *testing.T) {
	_, err := NewTopicGraph(Neo4jConfig{}, zap.NewNop())
	assert.EqualError(t, err, "Neo4j URI is required")
}
