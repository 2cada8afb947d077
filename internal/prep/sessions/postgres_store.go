package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/prepdeck/prepdeck/internal/prep"
)

// PostgresStore implements SessionStore interface with PostgreSQL storage
type PostgresStore struct {
	db bun.IDB
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
	}
}

// SessionSchema represents the prep_sessions table schema
type SessionSchema struct {
	bun.BaseModel `bun:"table:prep_sessions,alias:ps"`

	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	OwnerID       string    `bun:"owner_id,notnull" json:"owner_id"`
	Role          string    `bun:"role,notnull" json:"role"`
	Experience    string    `bun:"experience,notnull" json:"experience"`
	TopicsToFocus string    `bun:"topics_to_focus,notnull" json:"topics_to_focus"`
	Description   string    `bun:"description,notnull,default:''" json:"description"`
	QuestionIDs   []string  `bun:"question_ids,array,notnull,default:'{}'" json:"question_ids"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// QuestionSchema represents the prep_questions table schema
type QuestionSchema struct {
	bun.BaseModel `bun:"table:prep_questions,alias:pq"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	SessionID uuid.UUID `bun:"session_id,notnull,type:uuid" json:"session_id"`
	Question  string    `bun:"question,notnull" json:"question"`
	Answer    string    `bun:"answer,notnull,default:''" json:"answer"`
	IsPinned  bool      `bun:"is_pinned,notnull,default:false" json:"is_pinned"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// RunInTx runs fn inside a database transaction. When the store already
// wraps a bun.Tx the callback joins that transaction.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx SessionStore) error) error {
	if _, ok := s.db.(bun.Tx); ok {
		return fn(ctx, s)
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &PostgresStore{db: tx})
	})
	if err != nil {
		return prep.NewStorageTransactionError("run transaction", "prep_sessions", err)
	}
	return nil
}

// CreateSession inserts a new session row
func (s *PostgresStore) CreateSession(ctx context.Context, session *Session) error {
	schema := SessionToSessionSchema(session)

	_, err := s.db.NewInsert().
		Model(&schema).
		Exec(ctx)
	if err != nil {
		return prep.NewStorageQueryError("create session", "prep_sessions", err)
	}

	return nil
}

// CreateQuestions inserts a question batch with one multi-row insert
func (s *PostgresStore) CreateQuestions(ctx context.Context, questions []*Question) error {
	if len(questions) == 0 {
		return nil
	}

	schemas := make([]QuestionSchema, len(questions))
	for i, q := range questions {
		schemas[i] = QuestionToQuestionSchema(q)
	}

	_, err := s.db.NewInsert().
		Model(&schemas).
		Exec(ctx)
	if err != nil {
		return prep.NewStorageQueryError("create questions", "prep_questions", err)
	}

	return nil
}

// AttachQuestions replaces the session's question reference list
func (s *PostgresStore) AttachQuestions(ctx context.Context, sessionID uuid.UUID, questionIDs []uuid.UUID) error {
	ids := make([]string, len(questionIDs))
	for i, id := range questionIDs {
		ids[i] = id.String()
	}

	result, err := s.db.NewUpdate().
		Model((*SessionSchema)(nil)).
		Set("question_ids = ?", pgdialect.Array(ids)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return prep.NewStorageQueryError("attach questions", "prep_sessions", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("attach questions: %w", prep.NewSessionNotFoundError(sessionID.String()))
	}

	return nil
}

// GetSession retrieves a session by ID
func (s *PostgresStore) GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	var schema SessionSchema
	err := s.db.NewSelect().
		Model(&schema).
		Where("id = ?", sessionID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, prep.NewSessionNotFoundError(sessionID.String())
		}
		return nil, prep.NewStorageQueryError("get session", "prep_sessions", err)
	}

	return SessionSchemaToSession(schema), nil
}

// ListSessionsByOwner returns the owner's sessions, newest first
func (s *PostgresStore) ListSessionsByOwner(ctx context.Context, owner string) ([]*Session, error) {
	var schemas []SessionSchema
	err := s.listSessionsByOwnerQuery(&schemas, owner).Scan(ctx)
	if err != nil {
		return nil, prep.NewStorageQueryError("list sessions", "prep_sessions", err)
	}

	sessions := make([]*Session, len(schemas))
	for i, schema := range schemas {
		sessions[i] = SessionSchemaToSession(schema)
	}
	return sessions, nil
}

// ListQuestions returns a session's questions, pinned first then oldest first
func (s *PostgresStore) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]*Question, error) {
	var schemas []QuestionSchema
	err := s.listQuestionsQuery(&schemas, sessionID).Scan(ctx)
	if err != nil {
		return nil, prep.NewStorageQueryError("list questions", "prep_questions", err)
	}

	questions := make([]*Question, len(schemas))
	for i, schema := range schemas {
		questions[i] = QuestionSchemaToQuestion(schema)
	}
	return questions, nil
}

func (s *PostgresStore) listSessionsByOwnerQuery(dest *[]SessionSchema, owner string) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(dest).
		Where("owner_id = ?", owner).
		Order("created_at DESC")
}

func (s *PostgresStore) listQuestionsQuery(dest *[]QuestionSchema, sessionID uuid.UUID) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(dest).
		Where("session_id = ?", sessionID).
		Order("is_pinned DESC", "created_at ASC")
}

// ListQuestionsForSessions loads the questions of several sessions in one query
func (s *PostgresStore) ListQuestionsForSessions(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID][]*Question, error) {
	grouped := make(map[uuid.UUID][]*Question, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return grouped, nil
	}

	var schemas []QuestionSchema
	err := s.db.NewSelect().
		Model(&schemas).
		Where("session_id IN (?)", bun.In(sessionIDs)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, prep.NewStorageQueryError("list questions", "prep_questions", err)
	}

	for _, schema := range schemas {
		grouped[schema.SessionID] = append(grouped[schema.SessionID], QuestionSchemaToQuestion(schema))
	}
	return grouped, nil
}

// DeleteQuestionsBySession removes every question referencing the session
func (s *PostgresStore) DeleteQuestionsBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	result, err := s.db.NewDelete().
		Model((*QuestionSchema)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return 0, prep.NewStorageQueryError("delete questions", "prep_questions", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// DeleteSession removes the session row
func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	result, err := s.db.NewDelete().
		Model((*SessionSchema)(nil)).
		Where("id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return prep.NewStorageQueryError("delete session", "prep_sessions", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return prep.NewSessionNotFoundError(sessionID.String())
	}

	return nil
}

// Conversion functions between schema and model

func SessionSchemaToSession(schema SessionSchema) *Session {
	ids := make([]uuid.UUID, 0, len(schema.QuestionIDs))
	for _, raw := range schema.QuestionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return &Session{
		ID:            schema.ID,
		Owner:         schema.OwnerID,
		Role:          schema.Role,
		Experience:    Experience(schema.Experience),
		TopicsToFocus: schema.TopicsToFocus,
		Description:   schema.Description,
		QuestionIDs:   ids,
		CreatedAt:     schema.CreatedAt,
		UpdatedAt:     schema.UpdatedAt,
	}
}

func SessionToSessionSchema(session *Session) SessionSchema {
	ids := make([]string, len(session.QuestionIDs))
	for i, id := range session.QuestionIDs {
		ids[i] = id.String()
	}

	return SessionSchema{
		ID:            session.ID,
		OwnerID:       session.Owner,
		Role:          session.Role,
		Experience:    string(session.Experience),
		TopicsToFocus: session.TopicsToFocus,
		Description:   session.Description,
		QuestionIDs:   ids,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}
}

func QuestionSchemaToQuestion(schema QuestionSchema) *Question {
	return &Question{
		ID:        schema.ID,
		SessionID: schema.SessionID,
		Question:  schema.Question,
		Answer:    schema.Answer,
		IsPinned:  schema.IsPinned,
		CreatedAt: schema.CreatedAt,
		UpdatedAt: schema.UpdatedAt,
	}
}

func QuestionToQuestionSchema(question *Question) QuestionSchema {
	return QuestionSchema{
		ID:        question.ID,
		SessionID: question.SessionID,
		Question:  question.Question,
		Answer:    question.Answer,
		IsPinned:  question.IsPinned,
		CreatedAt: question.CreatedAt,
		UpdatedAt: question.UpdatedAt,
	}
}
