package sessions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepdeck/prepdeck/internal/prep"
)

// SessionService implements the SessionManager interface
type SessionService struct {
	store     SessionStore
	projector Projector
	logger    *zap.Logger
	now       func() time.Time
}

// ServiceOption configures optional SessionService collaborators
type ServiceOption func(*SessionService)

// WithProjector mirrors committed sessions through p
func WithProjector(p Projector) ServiceOption {
	return func(s *SessionService) {
		s.projector = p
	}
}

// WithClock overrides time.Now, mostly for tests
func WithClock(now func() time.Time) ServiceOption {
	return func(s *SessionService) {
		s.now = now
	}
}

// NewSessionService creates a new session service
func NewSessionService(store SessionStore, logger *zap.Logger, opts ...ServiceOption) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SessionService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession creates a session owned by callerID together with its initial
// questions. The session insert, the question batch and the attach step commit
// or roll back as one unit.
func (s *SessionService) CreateSession(ctx context.Context, callerID string, req *CreateSessionRequest) (*Session, error) {
	sessionID := uuid.New()

	if strings.TrimSpace(callerID) == "" {
		return nil, prep.NewSessionCreateFailedError(sessionID.String(),
			prep.NewSessionInvalidRequestError("caller id is required"))
	}
	if req == nil {
		return nil, prep.NewSessionCreateFailedError(sessionID.String(),
			prep.NewSessionInvalidRequestError("request body is required"))
	}
	if err := req.Validate(); err != nil {
		return nil, prep.NewSessionCreateFailedError(sessionID.String(),
			prep.NewSessionInvalidRequestError(err.Error()))
	}

	now := s.now().UTC()
	session := &Session{
		ID:            sessionID,
		Owner:         callerID,
		Role:          req.Role,
		Experience:    req.Experience,
		TopicsToFocus: req.TopicsToFocus,
		Description:   req.Description,
		QuestionIDs:   []uuid.UUID{},
		Questions:     []*Question{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	questions := make([]*Question, len(req.Questions))
	questionIDs := make([]uuid.UUID, len(req.Questions))
	for i, input := range req.Questions {
		// one microsecond apart so createdAt order is input order at
		// PostgreSQL timestamp resolution
		createdAt := now.Add(time.Duration(i) * time.Microsecond)
		questions[i] = &Question{
			ID:        uuid.New(),
			SessionID: sessionID,
			Question:  input.Question,
			Answer:    input.Answer,
			IsPinned:  false,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
		questionIDs[i] = questions[i].ID
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx SessionStore) error {
		if err := tx.CreateSession(ctx, session); err != nil {
			return err
		}
		if len(questions) > 0 {
			if err := tx.CreateQuestions(ctx, questions); err != nil {
				return err
			}
		}
		return tx.AttachQuestions(ctx, sessionID, questionIDs)
	})
	if err != nil {
		return nil, prep.NewSessionCreateFailedError(sessionID.String(), err)
	}

	session.QuestionIDs = questionIDs
	session.Questions = questions

	s.logger.Info("Session created",
		zap.String("session_id", sessionID.String()),
		zap.String("owner", callerID),
		zap.Int("questions", len(questions)))

	if s.projector != nil {
		if err := s.projector.ProjectSession(ctx, session); err != nil {
			s.logger.Warn("Failed to project session",
				zap.String("session_id", sessionID.String()),
				zap.Error(err))
		}
	}

	return session, nil
}

// GetSession returns a session with its questions, pinned first and then
// oldest first. It performs no ownership check.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, prep.NewSessionNotFoundError(sessionID)
	}

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		if prep.IsSessionNotFound(err) {
			return nil, err
		}
		return nil, prep.NewSessionOperationError("get session", sessionID, err)
	}

	questions, err := s.store.ListQuestions(ctx, id)
	if err != nil {
		return nil, prep.NewSessionOperationError("list questions", sessionID, err)
	}
	session.Questions = questions

	return session, nil
}

// ListMySessions returns every session owned by callerID, newest first, each
// with its questions in the order they were attached.
func (s *SessionService) ListMySessions(ctx context.Context, callerID string) ([]*Session, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, prep.NewSessionInvalidRequestError("caller id is required")
	}

	sessions, err := s.store.ListSessionsByOwner(ctx, callerID)
	if err != nil {
		return nil, prep.NewSessionOperationError("list sessions", "", err)
	}
	if len(sessions) == 0 {
		return []*Session{}, nil
	}

	ids := make([]uuid.UUID, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}

	grouped, err := s.store.ListQuestionsForSessions(ctx, ids)
	if err != nil {
		return nil, prep.NewSessionOperationError("list questions", "", err)
	}

	for _, session := range sessions {
		session.Questions = orderByReference(session.QuestionIDs, grouped[session.ID])
	}

	return sessions, nil
}

// AuthorizeOwner returns the session when callerID owns it. Errors are
// reported as not found, then unauthorized, then generic failure.
func (s *SessionService) AuthorizeOwner(ctx context.Context, callerID, sessionID string) (*Session, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, prep.NewSessionNotFoundError(sessionID)
	}

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		if prep.IsSessionNotFound(err) {
			return nil, err
		}
		return nil, prep.NewSessionOperationError("get session", sessionID, err)
	}

	if session.Owner != callerID {
		return nil, prep.NewSessionUnauthorizedError(sessionID, callerID)
	}

	return session, nil
}

// DeleteSession removes a session and every question that references it.
// The returned session carries the questions it had before deletion.
func (s *SessionService) DeleteSession(ctx context.Context, callerID, sessionID string) (*Session, error) {
	session, err := s.AuthorizeOwner(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	id := session.ID

	questions, err := s.store.ListQuestions(ctx, id)
	if err != nil {
		return nil, prep.NewSessionOperationError("list questions", sessionID, err)
	}
	session.Questions = questions

	var removed int64
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx SessionStore) error {
		n, err := tx.DeleteQuestionsBySession(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return tx.DeleteSession(ctx, id)
	})
	if err != nil {
		return nil, prep.NewSessionOperationError("delete session", sessionID, err)
	}

	s.logger.Info("Session deleted",
		zap.String("session_id", sessionID),
		zap.String("owner", callerID),
		zap.Int64("questions_removed", removed))

	if s.projector != nil {
		if err := s.projector.RemoveSession(ctx, id); err != nil {
			s.logger.Warn("Failed to remove session projection",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}

	return session, nil
}

// orderByReference arranges questions in the order of the session's
// reference list. Questions missing from the list are appended by createdAt.
func orderByReference(refs []uuid.UUID, questions []*Question) []*Question {
	byID := make(map[uuid.UUID]*Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	ordered := make([]*Question, 0, len(questions))
	for _, ref := range refs {
		if q, ok := byID[ref]; ok {
			ordered = append(ordered, q)
			delete(byID, ref)
		}
	}

	if len(byID) > 0 {
		rest := make([]*Question, 0, len(byID))
		for _, q := range questions {
			if _, ok := byID[q.ID]; ok {
				rest = append(rest, q)
			}
		}
		sortByCreatedAt(rest)
		ordered = append(ordered, rest...)
	}

	return ordered
}
