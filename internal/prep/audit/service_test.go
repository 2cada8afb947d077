package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFillsDefaults(t *testing.T) {
	ctx := context.Background()
	recorder := NewRecorder(NewInMemoryStore())

	entry := &SessionAuditLog{
		UserID:     "user-1",
		Operation:  OperationCreateSession,
		Endpoint:   "/api/sessions/create",
		Method:     "POST",
		SessionID:  "s-1",
		Success:    true,
		StatusCode: 201,
	}
	require.NoError(t, recorder.Record(ctx, entry))
	assert.NotEmpty(t, entry.LogID)
	assert.False(t, entry.Timestamp.IsZero())

	logs, err := recorder.ListForSession(ctx, "s-1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, OperationCreateSession, logs[0].Operation)
}

func TestRecordRejectsIncompleteEntries(t *testing.T) {
	recorder := NewRecorder(NewInMemoryStore())

	err := recorder.Record(context.Background(), &SessionAuditLog{Operation: OperationGetSession})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user ID cannot be empty")
}

func TestListForUserNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	recorder := NewRecorder(NewInMemoryStore())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, recorder.Record(ctx, &SessionAuditLog{
			UserID:    "user-1",
			Operation: OperationListSessions,
			Endpoint:  "/api/sessions/my-sessions",
			Method:    "GET",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	logs, err := recorder.ListForUser(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, base.Add(2*time.Minute), logs[0].Timestamp)
	assert.Equal(t, base.Add(time.Minute), logs[1].Timestamp)

	_, err = recorder.ListForUser(ctx, "", 10)
	assert.Error(t, err)
}
