package sessions

import (
	"context"

	"github.com/google/uuid"
)

// SessionManager defines the session aggregate operations. The caller id is
// always passed explicitly by the transport layer.
type SessionManager interface {
	CreateSession(ctx context.Context, callerID string, req *CreateSessionRequest) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListMySessions(ctx context.Context, callerID string) ([]*Session, error)
	DeleteSession(ctx context.Context, callerID, sessionID string) (*Session, error)

	// AuthorizeOwner loads the session and fails unless callerID owns it
	AuthorizeOwner(ctx context.Context, callerID, sessionID string) (*Session, error)
}

// SessionStore defines the interface for session and question persistence
type SessionStore interface {
	// RunInTx runs fn against a transactional view of the store. Every write
	// made through tx is discarded when fn returns an error.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx SessionStore) error) error

	CreateSession(ctx context.Context, session *Session) error
	CreateQuestions(ctx context.Context, questions []*Question) error
	AttachQuestions(ctx context.Context, sessionID uuid.UUID, questionIDs []uuid.UUID) error

	// GetSession returns a not-found SessionError when no row exists
	GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	// ListSessionsByOwner returns the owner's sessions, newest first
	ListSessionsByOwner(ctx context.Context, owner string) ([]*Session, error)
	// ListQuestions returns a session's questions, pinned first then oldest first
	ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]*Question, error)
	// ListQuestionsForSessions returns questions grouped by session id, unordered
	ListQuestionsForSessions(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID][]*Question, error)

	DeleteQuestionsBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
}

// Projector mirrors committed sessions into a secondary view. It is called
// after the store transaction commits and its failures never fail the request.
type Projector interface {
	ProjectSession(ctx context.Context, session *Session) error
	RemoveSession(ctx context.Context, sessionID uuid.UUID) error
}
