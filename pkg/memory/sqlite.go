package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pulseops/pulser/pkg/errors"
	"github.com/pulseops/pulser/pkg/telemetry"
)

// SQLiteStore persists context records in a single SQLite table. Insertion
// order (rowid) is the newest-first ordering, so same-second appends keep a
// stable order.
type SQLiteStore struct {
	db         *sql.DB
	maxRecords int
	logger     *slog.Logger
	metrics    *telemetry.RouterMetrics
	now        func() time.Time
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteMaxRecords bounds the store to n records, pruning oldest first.
// Zero means unbounded.
func WithSQLiteMaxRecords(n int) SQLiteOption {
	return func(s *SQLiteStore) {
		s.maxRecords = n
	}
}

// WithSQLiteLogger sets the structured logger.
func WithSQLiteLogger(l *slog.Logger) SQLiteOption {
	return func(s *SQLiteStore) {
		s.logger = l
	}
}

// WithSQLiteMetrics sets the metrics tracker. A nil tracker is safe.
func WithSQLiteMetrics(m *telemetry.RouterMetrics) SQLiteOption {
	return func(s *SQLiteStore) {
		s.metrics = m
	}
}

// NewSQLiteStore opens the database at path and ensures the schema.
func NewSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.CodePersistence, "open context database", err).
			WithContext("path", path)
	}
	return NewSQLiteStoreDB(db, opts...)
}

// NewSQLiteStoreDB wraps an existing database handle and ensures the schema.
func NewSQLiteStoreDB(db *sql.DB, opts ...SQLiteOption) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New(errors.CodePersistence, "db is nil", nil)
	}
	if err := ensureContextSchema(db); err != nil {
		return nil, errors.New(errors.CodePersistence, "ensure context schema", err)
	}
	s := &SQLiteStore{
		db:         db,
		maxRecords: 1000,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append implements ContextStore.
func (s *SQLiteStore) Append(ctx context.Context, record ContextRecord) error {
	stamp(&record, s.now())

	response := string(record.Response)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO context_records (id, ts, agent, message, response_json)
		VALUES (?, ?, ?, ?, ?)
	`,
		record.ID,
		record.Timestamp,
		record.Agent,
		record.Message,
		response,
	)
	if err != nil {
		s.metrics.RecordPersistenceError(ctx, "append")
		return errors.New(errors.CodePersistence, "insert context record", err)
	}

	if s.maxRecords > 0 {
		s.prune(ctx)
	}
	return nil
}

// Recent implements ContextStore.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]ContextRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, agent, message, response_json
		FROM context_records
		ORDER BY rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		s.metrics.RecordPersistenceError(ctx, "read")
		s.logger.WarnContext(ctx, "querying context records failed", slog.String("error", err.Error()))
		return nil, nil
	}
	defer rows.Close()

	var records []ContextRecord
	for rows.Next() {
		var (
			rec      ContextRecord
			response string
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Agent, &rec.Message, &response); err != nil {
			s.metrics.RecordPersistenceError(ctx, "read")
			s.logger.WarnContext(ctx, "corrupt context record skipped", slog.String("error", err.Error()))
			continue
		}
		if response != "" {
			if !json.Valid([]byte(response)) {
				s.metrics.RecordPersistenceError(ctx, "read")
				s.logger.WarnContext(ctx, "corrupt context record skipped", slog.String("id", rec.ID))
				continue
			}
			rec.Response = json.RawMessage(response)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		s.metrics.RecordPersistenceError(ctx, "read")
		s.logger.WarnContext(ctx, "reading context records failed", slog.String("error", err.Error()))
	}
	return records, nil
}

// prune deletes the oldest records beyond the retention bound.
func (s *SQLiteStore) prune(ctx context.Context) {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM context_records
		WHERE rowid NOT IN (
			SELECT rowid FROM context_records ORDER BY rowid DESC LIMIT ?
		)
	`, s.maxRecords)
	if err != nil {
		s.logger.WarnContext(ctx, "pruning context records failed", slog.String("error", err.Error()))
	}
}

func ensureContextSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS context_records (
			id TEXT NOT NULL,
			ts TEXT NOT NULL,
			agent TEXT NOT NULL,
			message TEXT NOT NULL,
			response_json TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_context_agent ON context_records(agent);
		CREATE INDEX IF NOT EXISTS idx_context_ts ON context_records(ts);
	`)
	return err
}

var _ ContextStore = (*SQLiteStore)(nil)
