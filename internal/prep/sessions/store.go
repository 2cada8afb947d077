package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/prepdeck/prepdeck/internal/prep"
)

// InMemoryStore implements SessionStore interface with in-memory storage
type InMemoryStore struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*Session
	questions map[uuid.UUID]*Question
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:  make(map[uuid.UUID]*Session),
		questions: make(map[uuid.UUID]*Question),
	}
}

// RunInTx holds the store lock for the whole callback and restores a snapshot
// of both maps if the callback fails.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx SessionStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionsSnapshot := make(map[uuid.UUID]*Session, len(s.sessions))
	for id, session := range s.sessions {
		sessionsSnapshot[id] = session
	}
	questionsSnapshot := make(map[uuid.UUID]*Question, len(s.questions))
	for id, question := range s.questions {
		questionsSnapshot[id] = question
	}

	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		s.sessions = sessionsSnapshot
		s.questions = questionsSnapshot
		return err
	}
	return nil
}

// CreateSession stores a new session
func (s *InMemoryStore) CreateSession(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createSession(session)
}

// CreateQuestions stores a batch of questions
func (s *InMemoryStore) CreateQuestions(ctx context.Context, questions []*Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createQuestions(questions)
}

// AttachQuestions replaces the session's question reference list
func (s *InMemoryStore) AttachQuestions(ctx context.Context, sessionID uuid.UUID, questionIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachQuestions(sessionID, questionIDs)
}

// GetSession retrieves a session by ID
func (s *InMemoryStore) GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getSession(sessionID)
}

// ListSessionsByOwner returns the owner's sessions, newest first
func (s *InMemoryStore) ListSessionsByOwner(ctx context.Context, owner string) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listSessionsByOwner(owner), nil
}

// ListQuestions returns a session's questions, pinned first then oldest first
func (s *InMemoryStore) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]*Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listQuestions(sessionID), nil
}

// ListQuestionsForSessions returns the questions of every given session
func (s *InMemoryStore) ListQuestionsForSessions(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID][]*Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listQuestionsForSessions(sessionIDs), nil
}

// DeleteQuestionsBySession removes all questions that reference the session
func (s *InMemoryStore) DeleteQuestionsBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteQuestionsBySession(sessionID), nil
}

// DeleteSession removes a session
func (s *InMemoryStore) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteSession(sessionID)
}

// The helpers below assume s.mu is held.

func (s *InMemoryStore) createSession(session *Session) error {
	if _, exists := s.sessions[session.ID]; exists {
		return prep.NewStorageConstraintError("create session", "sessions",
			fmt.Errorf("session with id %s already exists", session.ID))
	}

	stored := *session
	stored.QuestionIDs = append([]uuid.UUID{}, session.QuestionIDs...)
	stored.Questions = nil
	s.sessions[session.ID] = &stored
	return nil
}

func (s *InMemoryStore) createQuestions(questions []*Question) error {
	for _, q := range questions {
		if _, ok := s.sessions[q.SessionID]; !ok {
			return prep.NewStorageConstraintError("create question", "questions",
				fmt.Errorf("question %s references unknown session %s", q.ID, q.SessionID))
		}
		if _, exists := s.questions[q.ID]; exists {
			return prep.NewStorageConstraintError("create question", "questions",
				fmt.Errorf("question with id %s already exists", q.ID))
		}
	}

	for _, q := range questions {
		stored := *q
		s.questions[q.ID] = &stored
	}
	return nil
}

func (s *InMemoryStore) attachQuestions(sessionID uuid.UUID, questionIDs []uuid.UUID) error {
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("attach questions: %w", prep.NewSessionNotFoundError(sessionID.String()))
	}

	for _, id := range questionIDs {
		q, ok := s.questions[id]
		if !ok || q.SessionID != sessionID {
			return prep.NewStorageConstraintError("attach questions", "sessions",
				fmt.Errorf("question %s does not belong to session %s", id, sessionID))
		}
	}

	updated := *session
	updated.QuestionIDs = append([]uuid.UUID{}, questionIDs...)
	s.sessions[sessionID] = &updated
	return nil
}

func (s *InMemoryStore) getSession(sessionID uuid.UUID) (*Session, error) {
	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, prep.NewSessionNotFoundError(sessionID.String())
	}
	return copySession(session), nil
}

func (s *InMemoryStore) listSessionsByOwner(owner string) []*Session {
	result := make([]*Session, 0)
	for _, session := range s.sessions {
		if session.Owner == owner {
			result = append(result, copySession(session))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *InMemoryStore) listQuestions(sessionID uuid.UUID) []*Question {
	result := make([]*Question, 0)
	for _, q := range s.questions {
		if q.SessionID == sessionID {
			copied := *q
			result = append(result, &copied)
		}
	}

	sortPinnedFirst(result)
	return result
}

func (s *InMemoryStore) listQuestionsForSessions(sessionIDs []uuid.UUID) map[uuid.UUID][]*Question {
	wanted := make(map[uuid.UUID]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		wanted[id] = true
	}

	grouped := make(map[uuid.UUID][]*Question, len(sessionIDs))
	for _, q := range s.questions {
		if wanted[q.SessionID] {
			copied := *q
			grouped[q.SessionID] = append(grouped[q.SessionID], &copied)
		}
	}
	return grouped
}

func (s *InMemoryStore) deleteQuestionsBySession(sessionID uuid.UUID) int64 {
	var removed int64
	for id, q := range s.questions {
		if q.SessionID == sessionID {
			delete(s.questions, id)
			removed++
		}
	}
	return removed
}

func (s *InMemoryStore) deleteSession(sessionID uuid.UUID) error {
	if _, exists := s.sessions[sessionID]; !exists {
		return prep.NewSessionNotFoundError(sessionID.String())
	}

	delete(s.sessions, sessionID)
	return nil
}

// memoryTx is the view handed to RunInTx callbacks. The lock is already held
// by RunInTx, so it calls the unlocked helpers directly.
type memoryTx struct {
	store *InMemoryStore
}

func (t *memoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, tx SessionStore) error) error {
	return fn(ctx, t)
}

func (t *memoryTx) CreateSession(ctx context.Context, session *Session) error {
	return t.store.createSession(session)
}

func (t *memoryTx) CreateQuestions(ctx context.Context, questions []*Question) error {
	return t.store.createQuestions(questions)
}

func (t *memoryTx) AttachQuestions(ctx context.Context, sessionID uuid.UUID, questionIDs []uuid.UUID) error {
	return t.store.attachQuestions(sessionID, questionIDs)
}

func (t *memoryTx) GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	return t.store.getSession(sessionID)
}

func (t *memoryTx) ListSessionsByOwner(ctx context.Context, owner string) ([]*Session, error) {
	return t.store.listSessionsByOwner(owner), nil
}

func (t *memoryTx) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]*Question, error) {
	return t.store.listQuestions(sessionID), nil
}

func (t *memoryTx) ListQuestionsForSessions(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID][]*Question, error) {
	return t.store.listQuestionsForSessions(sessionIDs), nil
}

func (t *memoryTx) DeleteQuestionsBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	return t.store.deleteQuestionsBySession(sessionID), nil
}

func (t *memoryTx) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	return t.store.deleteSession(sessionID)
}

func copySession(session *Session) *Session {
	copied := *session
	copied.QuestionIDs = append([]uuid.UUID{}, session.QuestionIDs...)
	copied.Questions = nil
	return &copied
}

// sortPinnedFirst orders questions by isPinned descending, then createdAt ascending
func sortPinnedFirst(questions []*Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].IsPinned != questions[j].IsPinned {
			return questions[i].IsPinned
		}
		return questions[i].CreatedAt.Before(questions[j].CreatedAt)
	})
}

func sortByCreatedAt(questions []*Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].CreatedAt.Before(questions[j].CreatedAt)
	})
}
