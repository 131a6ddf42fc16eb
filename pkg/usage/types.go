package usage

import (
	"context"
	"time"
)

// Outcome classifies how a request was dispositioned by the authenticator.
type Outcome string

const (
	// OutcomeAuthorized marks a request whose credential matched a
	// configured identity and was forwarded upstream.
	OutcomeAuthorized Outcome = "authorized"

	// OutcomeDenied marks a request rejected before forwarding.
	OutcomeDenied Outcome = "denied"
)

// Record is a single usage entry. Records are append-only: once created
// they are never mutated, and arrival order per identity is preserved by
// the store.
type Record struct {
	// ID is a UUID v4 assigned at creation.
	ID string `json:"id"`

	// Identity is the matched identity name, or empty for denied requests
	// whose credential matched nothing.
	Identity string `json:"identity"`

	// Method and Path describe the inbound request.
	Method string `json:"method"`
	Path   string `json:"path"`

	// Outcome is the authorization disposition.
	Outcome Outcome `json:"outcome"`

	// RemoteAddr is the caller's address.
	RemoteAddr string `json:"remote_addr"`

	// UserAgent is the caller's User-Agent header, if any.
	UserAgent string `json:"user_agent"`

	// Timestamp is when the request arrived.
	Timestamp time.Time `json:"timestamp"`

	// RecordedTime is when the record was handed to the recorder.
	RecordedTime time.Time `json:"recorded_time"`
}

// Query defines filter parameters for reading usage records.
type Query struct {
	// Identity filters to a single identity. Empty matches all.
	Identity string `json:"identity,omitempty"`

	// Outcome filters by disposition. Empty matches all.
	Outcome Outcome `json:"outcome,omitempty"`

	// StartTime and EndTime bound the Timestamp field (inclusive).
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Limit and Offset paginate results. A zero Limit applies the
	// backend's default cap.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Summary is an aggregation of usage counts for one identity.
type Summary struct {
	Identity   string `json:"identity"`
	Authorized int64  `json:"authorized"`
	Denied     int64  `json:"denied"`
}

// Storage is the append-only usage store. Implementations must be safe for
// concurrent use: concurrent Append calls must not corrupt the log, and
// Query/Summarize must see a consistent (possibly slightly stale) view
// while appends are in flight.
type Storage interface {
	// Append durably persists a usage record.
	Append(ctx context.Context, record *Record) error

	// Query retrieves records matching the filters, newest first.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Summarize returns per-identity counts for records matching the
	// filters (Limit/Offset are ignored).
	Summarize(ctx context.Context, query *Query) ([]*Summary, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// DeleteBefore removes records with a Timestamp older than cutoff
	// and returns the number deleted. Used by retention pruning.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources held by the backend.
	Close() error
}
