package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/janus/pkg/usage"
)

// SQLiteConfig contains configuration for the SQLite usage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode so aggregation reads do
	// not block concurrent appends.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/usage.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements usage.Storage using SQLite. Appends are
// serialized by the database; reads under WAL mode see a consistent
// snapshot while appends are in flight.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite storage backend. It initializes the
// schema and enables WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "usage.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite usage storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up the database schema and pragmas.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return usage.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return usage.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return usage.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return usage.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return usage.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return usage.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Append persists a usage record.
func (s *SQLiteStorage) Append(ctx context.Context, record *usage.Record) error {
	const query = `
		INSERT INTO usage_records (
			id, identity, method, path, outcome,
			remote_addr, user_agent, timestamp, recorded_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.Identity, record.Method, record.Path, string(record.Outcome),
		record.RemoteAddr, record.UserAgent, record.Timestamp, record.RecordedTime,
	)
	if err != nil {
		return usage.NewStorageError("sqlite", "append", err)
	}

	return nil
}

// Query retrieves usage records matching the query filters, newest first.
// Insertion order breaks ties so per-identity arrival order is preserved.
func (s *SQLiteStorage) Query(ctx context.Context, query *usage.Query) ([]*usage.Record, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := `SELECT id, identity, method, path, outcome, remote_addr, user_agent, timestamp, recorded_time FROM usage_records`
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	sqlQuery += " ORDER BY timestamp DESC, rowid DESC"

	limit := 100
	if query.Limit > 0 {
		limit = query.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*usage.Record{}
	for rows.Next() {
		var r usage.Record
		var outcome string
		err := rows.Scan(&r.ID, &r.Identity, &r.Method, &r.Path, &outcome,
			&r.RemoteAddr, &r.UserAgent, &r.Timestamp, &r.RecordedTime)
		if err != nil {
			return nil, usage.NewStorageError("sqlite", "scan", err)
		}
		r.Outcome = usage.Outcome(outcome)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, usage.NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Summarize returns per-identity authorized/denied counts for records
// matching the filters.
func (s *SQLiteStorage) Summarize(ctx context.Context, query *usage.Query) ([]*usage.Summary, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := `
		SELECT identity,
		       SUM(CASE WHEN outcome = 'authorized' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome = 'denied' THEN 1 ELSE 0 END)
		FROM usage_records`
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	sqlQuery += " GROUP BY identity ORDER BY identity"

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "summarize", err)
	}
	defer rows.Close()

	summaries := []*usage.Summary{}
	for rows.Next() {
		var sum usage.Summary
		if err := rows.Scan(&sum.Identity, &sum.Authorized, &sum.Denied); err != nil {
			return nil, usage.NewStorageError("sqlite", "scan", err)
		}
		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, usage.NewStorageError("sqlite", "summarize", err)
	}

	return summaries, nil
}

// Count returns the number of usage records matching the query filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *usage.Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM usage_records"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, usage.NewStorageError("sqlite", "count", err)
	}

	return count, nil
}

// DeleteBefore removes records older than cutoff and returns the number
// deleted.
func (s *SQLiteStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM usage_records WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, usage.NewStorageError("sqlite", "delete", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, usage.NewStorageError("sqlite", "delete", err)
	}

	if count > 0 {
		s.logger.Info("pruned usage records", "count", count, "cutoff", cutoff)
	}

	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return usage.NewStorageError("sqlite", "close", err)
	}
	return nil
}

// buildWhereClause builds the WHERE clause and argument list for a query.
func buildWhereClause(query *usage.Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if query.Identity != "" {
		conditions = append(conditions, "identity = ?")
		args = append(args, query.Identity)
	}
	if query.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(query.Outcome))
	}
	if query.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *query.StartTime)
	}
	if query.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *query.EndTime)
	}

	return strings.Join(conditions, " AND "), args
}
