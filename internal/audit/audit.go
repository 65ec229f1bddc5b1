// Package audit records a trail of mutating engine operations to
// Postgres: which context an operation ran against, what the operation
// was, and a free-form detail string. Writing this trail is
// fire-and-forget from the caller's point of view — Record logs and
// swallows any failure rather than returning an error, the same
// graceful-degradation contract internal/services applies to ESI and
// cache failures.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Sternrassler/eve-o-provit/backend/internal/metrics"
	"github.com/Sternrassler/eve-o-provit/backend/pkg/logger"
)

// DBPool is the subset of a pgx connection pool this package needs.
// Satisfied by both *pgxpool.Pool and pgxmock.PgxPoolIface, so tests
// run against a mock without a live Postgres instance.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS audit_log (
	id SERIAL PRIMARY KEY,
	context_id UUID NOT NULL,
	operation TEXT NOT NULL,
	detail TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_context ON audit_log(context_id);
`

// Entry is one recorded operation.
type Entry struct {
	ContextID  uuid.UUID `json:"context_id"`
	Operation  string    `json:"operation"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Log writes Entry rows to Postgres.
type Log struct {
	db  DBPool
	log *logger.Logger
}

// New wraps db. log receives a warning for every write that fails;
// pass logger.NewNoop() to silence it in tests.
func New(db DBPool, log *logger.Logger) *Log {
	return &Log{db: db, log: log}
}

// Migrate creates the audit_log table if it doesn't already exist.
func Migrate(ctx context.Context, db DBPool) error {
	if _, err := db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("audit: migrate schema: %w", err)
	}
	return nil
}

// Record inserts one entry for contextID. Never returns an error: a
// failed write is logged and dropped, so a database hiccup never fails
// the HTTP request that triggered the operation being audited.
func (a *Log) Record(ctx context.Context, contextID uuid.UUID, operation, detail string) {
	_, err := a.db.Exec(ctx, `
		INSERT INTO audit_log (context_id, operation, detail, occurred_at)
		VALUES ($1, $2, $3, $4)
	`, contextID, operation, detail, time.Now().UTC())
	if err != nil {
		metrics.AuditWriteFailuresTotal.Inc()
		a.log.Warn("audit write failed", "error", err, "contextID", contextID, "operation", operation)
	}
}

// Recent returns the most recent entries for contextID, newest first,
// up to limit rows. No HTTP route exposes it.
func (a *Log) Recent(ctx context.Context, contextID uuid.UUID, limit int) ([]Entry, error) {
	rows, err := a.db.Query(ctx, `
		SELECT context_id, operation, detail, occurred_at
		FROM audit_log
		WHERE context_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, contextID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ContextID, &e.Operation, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("audit: scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: rows: %w", err)
	}
	return entries, nil
}
