package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/prepdeck/prepdeck/internal/prep/audit"
	"github.com/prepdeck/prepdeck/internal/prep/sessions"
)

var sessionIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_prep_sessions_owner_created ON prep_sessions(owner_id, created_at DESC)",
}

var questionIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_prep_questions_session_order ON prep_questions(session_id, is_pinned DESC, created_at ASC)",
}

var auditIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_session_audit_logs_session ON session_audit_logs(session_id, timestamp DESC)",
	"CREATE INDEX IF NOT EXISTS idx_session_audit_logs_user ON session_audit_logs(user_id, timestamp DESC)",
}

// Migrate creates every table and index used by the server
func Migrate(ctx context.Context, db *bun.DB) error {
	if err := CreateTables(ctx, db); err != nil {
		return err
	}
	return CreateIndexes(ctx, db)
}

// CreateTables creates the session, question and audit tables
func CreateTables(ctx context.Context, db *bun.DB) error {
	for _, query := range createTableQueries(db) {
		if _, err := query.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// createTableQueries lists the tables in dependency order; questions
// reference sessions and are removed with them.
func createTableQueries(db *bun.DB) []*bun.CreateTableQuery {
	return []*bun.CreateTableQuery{
		db.NewCreateTable().
			Model((*sessions.SessionSchema)(nil)).
			IfNotExists(),
		db.NewCreateTable().
			Model((*sessions.QuestionSchema)(nil)).
			IfNotExists().
			ForeignKey(`("session_id") REFERENCES "prep_sessions" ("id") ON DELETE CASCADE`),
		db.NewCreateTable().
			Model((*audit.SessionAuditLog)(nil)).
			IfNotExists(),
	}
}

// CreateIndexes creates the lookup indexes for owner listing and question ordering
func CreateIndexes(ctx context.Context, db *bun.DB) error {
	allIndexes := append([]string{}, sessionIndexes...)
	allIndexes = append(allIndexes, questionIndexes...)
	allIndexes = append(allIndexes, auditIndexes...)

	for _, indexSQL := range allIndexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("failed to create index with SQL %q: %w", indexSQL, err)
		}
	}

	return nil
}
