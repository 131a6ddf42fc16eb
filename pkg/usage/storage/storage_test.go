package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"mercator-hq/janus/pkg/usage"
)

// backends returns constructors for every Storage implementation so the
// contract tests run against all of them.
func backends(t *testing.T) map[string]func(t *testing.T) usage.Storage {
	return map[string]func(t *testing.T) usage.Storage{
		"sqlite": func(t *testing.T) usage.Storage {
			t.Helper()
			s, err := NewSQLiteStorage(&SQLiteConfig{
				Path:         filepath.Join(t.TempDir(), "usage.db"),
				MaxOpenConns: 5,
				MaxIdleConns: 2,
				WALMode:      true,
				BusyTimeout:  5 * time.Second,
			})
			if err != nil {
				t.Fatalf("NewSQLiteStorage() failed: %v", err)
			}
			return s
		},
		"memory": func(t *testing.T) usage.Storage {
			t.Helper()
			return NewMemoryStorage()
		},
	}
}

// newRecord builds a usage record with sensible defaults.
func newRecord(identity, path string, outcome usage.Outcome, ts time.Time) *usage.Record {
	return &usage.Record{
		ID:           uuid.New().String(),
		Identity:     identity,
		Method:       "GET",
		Path:         path,
		Outcome:      outcome,
		RemoteAddr:   "127.0.0.1:50000",
		UserAgent:    "test-client/1.0",
		Timestamp:    ts,
		RecordedTime: ts,
	}
}

func TestStorage_AppendAndQuery(t *testing.T) {
	for name, newStorage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStorage(t)
			defer s.Close()

			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			if err := s.Append(ctx, newRecord("alice", "/models", usage.OutcomeAuthorized, now)); err != nil {
				t.Fatalf("Append() failed: %v", err)
			}
			if err := s.Append(ctx, newRecord("bob", "/chat", usage.OutcomeDenied, now.Add(time.Second))); err != nil {
				t.Fatalf("Append() failed: %v", err)
			}

			records, err := s.Query(ctx, &usage.Query{})
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(records) != 2 {
				t.Fatalf("Query() returned %d records, want 2", len(records))
			}
			// Newest first
			if records[0].Identity != "bob" {
				t.Errorf("records[0].Identity = %q, want bob", records[0].Identity)
			}

			records, err = s.Query(ctx, &usage.Query{Identity: "alice"})
			if err != nil {
				t.Fatalf("Query(identity) failed: %v", err)
			}
			if len(records) != 1 || records[0].Identity != "alice" {
				t.Fatalf("identity filter returned %d records", len(records))
			}
			if records[0].Path != "/models" || records[0].Outcome != usage.OutcomeAuthorized {
				t.Errorf("record = %+v, fields not round-tripped", records[0])
			}
		})
	}
}

func TestStorage_QueryFilters(t *testing.T) {
	for name, newStorage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStorage(t)
			defer s.Close()

			ctx := context.Background()
			base := time.Now().UTC().Truncate(time.Millisecond)
			for i := 0; i < 10; i++ {
				outcome := usage.OutcomeAuthorized
				if i%2 == 1 {
					outcome = usage.OutcomeDenied
				}
				rec := newRecord("alice", fmt.Sprintf("/p/%d", i), outcome, base.Add(time.Duration(i)*time.Second))
				if err := s.Append(ctx, rec); err != nil {
					t.Fatalf("Append() failed: %v", err)
				}
			}

			denied, err := s.Query(ctx, &usage.Query{Outcome: usage.OutcomeDenied})
			if err != nil {
				t.Fatalf("Query(outcome) failed: %v", err)
			}
			if len(denied) != 5 {
				t.Errorf("denied count = %d, want 5", len(denied))
			}

			start := base.Add(5 * time.Second)
			late, err := s.Query(ctx, &usage.Query{StartTime: &start})
			if err != nil {
				t.Fatalf("Query(start_time) failed: %v", err)
			}
			if len(late) != 5 {
				t.Errorf("records after start = %d, want 5", len(late))
			}

			limited, err := s.Query(ctx, &usage.Query{Limit: 3})
			if err != nil {
				t.Fatalf("Query(limit) failed: %v", err)
			}
			if len(limited) != 3 {
				t.Errorf("limited count = %d, want 3", len(limited))
			}

			count, err := s.Count(ctx, &usage.Query{Outcome: usage.OutcomeAuthorized})
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if count != 5 {
				t.Errorf("Count(authorized) = %d, want 5", count)
			}
		})
	}
}

func TestStorage_Summarize(t *testing.T) {
	for name, newStorage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStorage(t)
			defer s.Close()

			ctx := context.Background()
			now := time.Now().UTC()

			for i := 0; i < 3; i++ {
				if err := s.Append(ctx, newRecord("alice", "/models", usage.OutcomeAuthorized, now)); err != nil {
					t.Fatalf("Append() failed: %v", err)
				}
			}
			if err := s.Append(ctx, newRecord("alice", "/models", usage.OutcomeDenied, now)); err != nil {
				t.Fatalf("Append() failed: %v", err)
			}
			if err := s.Append(ctx, newRecord("bob", "/chat", usage.OutcomeAuthorized, now)); err != nil {
				t.Fatalf("Append() failed: %v", err)
			}

			summaries, err := s.Summarize(ctx, &usage.Query{})
			if err != nil {
				t.Fatalf("Summarize() failed: %v", err)
			}
			if len(summaries) != 2 {
				t.Fatalf("Summarize() returned %d identities, want 2", len(summaries))
			}

			byIdentity := make(map[string]*usage.Summary)
			for _, sum := range summaries {
				byIdentity[sum.Identity] = sum
			}
			if a := byIdentity["alice"]; a == nil || a.Authorized != 3 || a.Denied != 1 {
				t.Errorf("alice summary = %+v, want 3 authorized / 1 denied", a)
			}
			if b := byIdentity["bob"]; b == nil || b.Authorized != 1 || b.Denied != 0 {
				t.Errorf("bob summary = %+v, want 1 authorized / 0 denied", b)
			}
		})
	}
}

func TestStorage_DeleteBefore(t *testing.T) {
	for name, newStorage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStorage(t)
			defer s.Close()

			ctx := context.Background()
			now := time.Now().UTC()

			if err := s.Append(ctx, newRecord("alice", "/old", usage.OutcomeAuthorized, now.Add(-48*time.Hour))); err != nil {
				t.Fatalf("Append() failed: %v", err)
			}
			if err := s.Append(ctx, newRecord("alice", "/new", usage.OutcomeAuthorized, now)); err != nil {
				t.Fatalf("Append() failed: %v", err)
			}

			deleted, err := s.DeleteBefore(ctx, now.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("DeleteBefore() failed: %v", err)
			}
			if deleted != 1 {
				t.Errorf("DeleteBefore() = %d, want 1", deleted)
			}

			count, err := s.Count(ctx, &usage.Query{})
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if count != 1 {
				t.Errorf("remaining count = %d, want 1", count)
			}
		})
	}
}

// Concurrent appends with interleaved reads must not corrupt the store.
func TestStorage_ConcurrentAppendAndQuery(t *testing.T) {
	for name, newStorage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStorage(t)
			defer s.Close()

			ctx := context.Background()
			const writers = 8
			const perWriter = 25

			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					identity := fmt.Sprintf("user-%d", w)
					for i := 0; i < perWriter; i++ {
						rec := newRecord(identity, "/p", usage.OutcomeAuthorized, time.Now().UTC())
						if err := s.Append(ctx, rec); err != nil {
							t.Errorf("Append() failed: %v", err)
							return
						}
					}
				}(w)
			}

			// Interleave reads while writes are in flight.
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					if _, err := s.Summarize(ctx, &usage.Query{}); err != nil {
						t.Errorf("Summarize() failed: %v", err)
						return
					}
				}
			}()

			wg.Wait()

			count, err := s.Count(ctx, &usage.Query{})
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if count != writers*perWriter {
				t.Errorf("Count() = %d, want %d", count, writers*perWriter)
			}
		})
	}
}
