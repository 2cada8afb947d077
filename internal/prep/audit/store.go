package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/uptrace/bun"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *bun.DB
}

// NewPostgresStore creates a new PostgreSQL audit store
func NewPostgresStore(db *bun.DB) Store {
	return &PostgresStore{db: db}
}

// CreateAuditLog persists a new audit log entry
func (s *PostgresStore) CreateAuditLog(ctx context.Context, log *SessionAuditLog) error {
	_, err := s.db.NewInsert().Model(log).Exec(ctx)
	return err
}

// GetAuditLogsBySession returns audit logs for a specific session
func (s *PostgresStore) GetAuditLogsBySession(ctx context.Context, sessionID string, limit int) ([]*SessionAuditLog, error) {
	var logs []*SessionAuditLog
	err := s.db.NewSelect().
		Model(&logs).
		Where("session_id = ?", sessionID).
		Order("timestamp DESC").
		Limit(limit).
		Scan(ctx)
	return logs, err
}

// GetAuditLogsByUser returns audit logs for a specific user
func (s *PostgresStore) GetAuditLogsByUser(ctx context.Context, userID string, limit int) ([]*SessionAuditLog, error) {
	var logs []*SessionAuditLog
	err := s.db.NewSelect().
		Model(&logs).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Scan(ctx)
	return logs, err
}

// InMemoryStore keeps audit logs in process memory
type InMemoryStore struct {
	mu   sync.RWMutex
	logs []*SessionAuditLog
}

// NewInMemoryStore creates an empty in-memory audit store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) CreateAuditLog(ctx context.Context, log *SessionAuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *log
	s.logs = append(s.logs, &copied)
	return nil
}

func (s *InMemoryStore) GetAuditLogsBySession(ctx context.Context, sessionID string, limit int) ([]*SessionAuditLog, error) {
	return s.filter(limit, func(l *SessionAuditLog) bool { return l.SessionID == sessionID }), nil
}

func (s *InMemoryStore) GetAuditLogsByUser(ctx context.Context, userID string, limit int) ([]*SessionAuditLog, error) {
	return s.filter(limit, func(l *SessionAuditLog) bool { return l.UserID == userID }), nil
}

func (s *InMemoryStore) filter(limit int, keep func(*SessionAuditLog) bool) []*SessionAuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*SessionAuditLog, 0)
	for _, l := range s.logs {
		if keep(l) {
			copied := *l
			result = append(result, &copied)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
