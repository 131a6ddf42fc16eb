package recorder

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mercator-hq/janus/pkg/usage"
	"mercator-hq/janus/pkg/usage/storage"
)

func TestRecorder_RecordAndFlush(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := NewRecorder(store, nil)

	req := httptest.NewRequest("POST", "/v1/chat/completions?stream=true", nil)
	req.Header.Set("User-Agent", "openai-python/1.0.0")

	arrived := time.Now().UTC()
	if err := rec.Record(context.Background(), "alice", req, usage.OutcomeAuthorized, arrived); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	// Close drains the channel.
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	records, err := store.Query(context.Background(), &usage.Query{})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	r := records[0]
	if r.ID == "" {
		t.Error("record ID not assigned")
	}
	if r.Identity != "alice" {
		t.Errorf("Identity = %q, want alice", r.Identity)
	}
	if r.Method != "POST" || r.Path != "/v1/chat/completions" {
		t.Errorf("Method/Path = %s %s, want POST /v1/chat/completions", r.Method, r.Path)
	}
	if r.Outcome != usage.OutcomeAuthorized {
		t.Errorf("Outcome = %q, want authorized", r.Outcome)
	}
	if r.UserAgent != "openai-python/1.0.0" {
		t.Errorf("UserAgent = %q", r.UserAgent)
	}
}

// Two identical requests produce two independent records.
func TestRecorder_NoDeduplication(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := NewRecorder(store, nil)

	req := httptest.NewRequest("GET", "/models", nil)
	for i := 0; i < 2; i++ {
		if err := rec.Record(context.Background(), "alice", req, usage.OutcomeAuthorized, time.Now()); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}
	rec.Close()

	count, err := store.Count(context.Background(), &usage.Query{})
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}

	records, _ := store.Query(context.Background(), &usage.Query{})
	if records[0].ID == records[1].ID {
		t.Error("duplicate records share an ID")
	}
}

// failingStorage always fails Append; used to prove recording failures are
// swallowed by the worker.
type failingStorage struct {
	storage.MemoryStorage
}

func (f *failingStorage) Append(ctx context.Context, record *usage.Record) error {
	return usage.NewStorageError("test", "append", errors.New("disk on fire"))
}

func TestRecorder_StorageFailureDoesNotPropagate(t *testing.T) {
	rec := NewRecorder(&failingStorage{}, nil)

	req := httptest.NewRequest("GET", "/models", nil)
	if err := rec.Record(context.Background(), "alice", req, usage.OutcomeAuthorized, time.Now()); err != nil {
		t.Fatalf("Record() returned error despite async writes: %v", err)
	}

	// Close must drain without hanging or panicking.
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
}

func TestRecorder_FullChannelDrops(t *testing.T) {
	// Single-slot queue feeding a storage that blocks until released.
	release := make(chan struct{})
	store := &blockingStorage{release: release}
	rec := NewRecorder(store, &Config{Buffer: 1, WriteTimeout: time.Second})
	defer func() {
		close(release)
		rec.Close()
	}()

	req := httptest.NewRequest("GET", "/models", nil)
	ctx := context.Background()

	// Saturate the worker and the channel, then one more must drop.
	var sawDrop bool
	for i := 0; i < 10; i++ {
		if err := rec.Record(ctx, "alice", req, usage.OutcomeAuthorized, time.Now()); err != nil {
			var recErr *usage.RecorderError
			if !errors.As(err, &recErr) {
				t.Fatalf("error type = %T, want *usage.RecorderError", err)
			}
			sawDrop = true
			break
		}
	}
	if !sawDrop {
		t.Error("expected a dropped record once the channel filled")
	}
	if rec.Dropped() == 0 {
		t.Error("Dropped() = 0, want > 0")
	}
}

type blockingStorage struct {
	storage.MemoryStorage
	release chan struct{}
}

func (b *blockingStorage) Append(ctx context.Context, record *usage.Record) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestRecorder_ConcurrentRecords(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := NewRecorder(store, nil)

	const goroutines = 16
	const perGoroutine = 20

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest("GET", "/models", nil)
			for i := 0; i < perGoroutine; i++ {
				_ = rec.Record(context.Background(), "alice", req, usage.OutcomeAuthorized, time.Now())
			}
		}()
	}
	wg.Wait()
	rec.Close()

	count, err := store.Count(context.Background(), &usage.Query{})
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != goroutines*perGoroutine {
		t.Errorf("Count() = %d, want %d", count, goroutines*perGoroutine)
	}
}
