package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/prepdeck/internal/prep"
)

func newStoredSession(t *testing.T, store *InMemoryStore, owner string) *Session {
	t.Helper()
	now := time.Now().UTC()
	session := &Session{
		ID:            uuid.New(),
		Owner:         owner,
		Role:          "SRE",
		Experience:    "5",
		TopicsToFocus: "Linux, Networking",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.CreateSession(context.Background(), session))
	return session
}

func TestInMemoryStoreRejectsOrphanQuestions(t *testing.T) {
	store := NewInMemoryStore()

	err := store.CreateQuestions(context.Background(), []*Question{
		{ID: uuid.New(), SessionID: uuid.New(), Question: "orphan"},
	})

	var storageErr *prep.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, prep.StorageErrorTypeConstraintViolation, storageErr.Type)
	assert.Empty(t, store.questions)
}

func TestInMemoryStoreAttachRequiresOwnedQuestions(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	a := newStoredSession(t, store, "user-1")
	b := newStoredSession(t, store, "user-1")

	q := &Question{ID: uuid.New(), SessionID: b.ID, Question: "belongs to b"}
	require.NoError(t, store.CreateQuestions(ctx, []*Question{q}))

	err := store.AttachQuestions(ctx, a.ID, []uuid.UUID{q.ID})
	require.Error(t, err)

	err = store.AttachQuestions(ctx, uuid.New(), nil)
	assert.True(t, prep.IsSessionNotFound(err))

	require.NoError(t, store.AttachQuestions(ctx, b.ID, []uuid.UUID{q.ID}))
	got, err := store.GetSession(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{q.ID}, got.QuestionIDs)
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	session := newStoredSession(t, store, "user-1")

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	got.Owner = "mallory"

	again, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", again.Owner)
}

func TestInMemoryStoreRunInTxRestoresOnError(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	kept := newStoredSession(t, store, "user-1")

	err := store.RunInTx(ctx, func(ctx context.Context, tx SessionStore) error {
		if _, err := tx.DeleteQuestionsBySession(ctx, kept.ID); err != nil {
			return err
		}
		if err := tx.DeleteSession(ctx, kept.ID); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	_, err = store.GetSession(ctx, kept.ID)
	assert.NoError(t, err)
}

func TestInMemoryStoreListQuestionsForSessions(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	a := newStoredSession(t, store, "user-1")
	b := newStoredSession(t, store, "user-2")

	require.NoError(t, store.CreateQuestions(ctx, []*Question{
		{ID: uuid.New(), SessionID: a.ID, Question: "a1"},
		{ID: uuid.New(), SessionID: a.ID, Question: "a2"},
		{ID: uuid.New(), SessionID: b.ID, Question: "b1"},
	}))

	grouped, err := store.ListQuestionsForSessions(ctx, []uuid.UUID{a.ID})
	require.NoError(t, err)
	assert.Len(t, grouped[a.ID], 2)
	assert.Empty(t, grouped[b.ID])
}

func TestExperienceAcceptsNumbersAndStrings(t *testing.T) {
	var req CreateSessionRequest

	require.NoError(t, json.Unmarshal([]byte(`{"role":"Backend Developer","experience":2,"topicsToFocus":"Node.js"}`), &req))
	assert.Equal(t, Experience("2"), req.Experience)
	assert.NoError(t, req.Validate())

	require.NoError(t, json.Unmarshal([]byte(`{"experience":"3-5 years"}`), &req))
	assert.Equal(t, Experience("3-5 years"), req.Experience)

	assert.Error(t, json.Unmarshal([]byte(`{"experience":true}`), &req))
}

func TestSessionTopics(t *testing.T) {
	s := &Session{TopicsToFocus: " Node.js, ,React ,SQL"}
	assert.Equal(t, []string{"Node.js", "React", "SQL"}, s.Topics())

	assert.Empty(t, (&Session{}).Topics())
}

func TestSchemaConversionRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	session := &Session{
		ID:          uuid.New(),
		Owner:       "user-1",
		Role:        "SRE",
		Experience:  "4",
		QuestionIDs: []uuid.UUID{uuid.New(), uuid.New()},
		CreatedAt:   now,
	}

	back := SessionSchemaToSession(SessionToSessionSchema(session))
	assert.Equal(t, session.QuestionIDs, back.QuestionIDs)
	assert.Equal(t, session.Owner, back.Owner)
	assert.Equal(t, session.Experience, back.Experience)
}
