package storage

import (
	"context"
	"sync"
	"time"

	"mercator-hq/janus/pkg/usage"
)

// MemoryStorage implements usage.Storage using an in-memory slice. It keeps
// records in arrival order and is intended for tests and for running the
// proxy without a durable store.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*usage.Record
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Append persists a usage record to memory.
func (s *MemoryStorage) Append(ctx context.Context, record *usage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to keep the store independent of caller mutation.
	recordCopy := *record
	s.records = append(s.records, &recordCopy)

	return nil
}

// Query retrieves records matching the filters, newest first.
func (s *MemoryStorage) Query(ctx context.Context, query *usage.Query) ([]*usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*usage.Record
	// Appends preserve arrival order; walk backwards for newest-first.
	for i := len(s.records) - 1; i >= 0; i-- {
		if matchesQuery(s.records[i], query) {
			recordCopy := *s.records[i]
			matched = append(matched, &recordCopy)
		}
	}

	start := query.Offset
	if start > len(matched) {
		return []*usage.Record{}, nil
	}
	matched = matched[start:]

	limit := 100
	if query.Limit > 0 {
		limit = query.Limit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	if matched == nil {
		matched = []*usage.Record{}
	}
	return matched, nil
}

// Summarize returns per-identity counts for records matching the filters.
func (s *MemoryStorage) Summarize(ctx context.Context, query *usage.Query) ([]*usage.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byIdentity := make(map[string]*usage.Summary)
	var order []string
	for _, record := range s.records {
		if !matchesQuery(record, query) {
			continue
		}
		sum, ok := byIdentity[record.Identity]
		if !ok {
			sum = &usage.Summary{Identity: record.Identity}
			byIdentity[record.Identity] = sum
			order = append(order, record.Identity)
		}
		switch record.Outcome {
		case usage.OutcomeAuthorized:
			sum.Authorized++
		case usage.OutcomeDenied:
			sum.Denied++
		}
	}

	summaries := make([]*usage.Summary, 0, len(order))
	for _, identity := range order {
		summaries = append(summaries, byIdentity[identity])
	}
	return summaries, nil
}

// Count returns the number of records matching the filters.
func (s *MemoryStorage) Count(ctx context.Context, query *usage.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matchesQuery(record, query) {
			count++
		}
	}
	return count, nil
}

// DeleteBefore removes records older than cutoff.
func (s *MemoryStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, record := range s.records {
		if record.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept

	return deleted, nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStorage) Close() error {
	return nil
}

// matchesQuery checks whether a record matches the query filters.
func matchesQuery(record *usage.Record, query *usage.Query) bool {
	if query == nil {
		return true
	}
	if query.Identity != "" && record.Identity != query.Identity {
		return false
	}
	if query.Outcome != "" && record.Outcome != query.Outcome {
		return false
	}
	if query.StartTime != nil && record.Timestamp.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && record.Timestamp.After(*query.EndTime) {
		return false
	}
	return true
}
