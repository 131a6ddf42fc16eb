package retention

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"mercator-hq/janus/pkg/usage"
	"mercator-hq/janus/pkg/usage/storage"
)

func seedRecord(t *testing.T, store usage.Storage, age time.Duration) {
	t.Helper()

	err := store.Append(context.Background(), &usage.Record{
		ID:           uuid.New().String(),
		Identity:     "alice",
		Method:       "GET",
		Path:         "/models",
		Outcome:      usage.OutcomeAuthorized,
		Timestamp:    time.Now().Add(-age),
		RecordedTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
}

func TestPruner_Prune(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedRecord(t, store, 100*24*time.Hour)
	seedRecord(t, store, 10*24*time.Hour)
	seedRecord(t, store, time.Hour)

	pruner := NewPruner(store, &Config{RetentionDays: 30})

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune() = %d, want 1", deleted)
	}

	count, err := store.Count(context.Background(), &usage.Query{})
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("remaining count = %d, want 2", count)
	}
}

func TestPruner_DisabledRetention(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedRecord(t, store, 365*24*time.Hour)

	pruner := NewPruner(store, &Config{RetentionDays: 0})

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Prune() = %d, want 0 with retention disabled", deleted)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	store := storage.NewMemoryStorage()
	pruner := NewPruner(store, &Config{RetentionDays: 30, PruneSchedule: "0 3 * * *"})

	ctx, cancel := context.WithCancel(context.Background())
	if err := pruner.Scheduler().Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !pruner.Scheduler().IsRunning() {
		t.Error("scheduler should be running")
	}

	cancel()
	pruner.Scheduler().Stop()
	if pruner.Scheduler().IsRunning() {
		t.Error("scheduler should be stopped")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	store := storage.NewMemoryStorage()
	pruner := NewPruner(store, &Config{RetentionDays: 30, PruneSchedule: "not a cron"})

	if err := pruner.Scheduler().Start(context.Background()); err == nil {
		t.Error("Start() = nil, want error for invalid cron expression")
	}
}

func TestScheduler_NotConfigured(t *testing.T) {
	store := storage.NewMemoryStorage()
	pruner := NewPruner(store, &Config{RetentionDays: 0, PruneSchedule: ""})

	if err := pruner.Scheduler().Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if pruner.Scheduler().IsRunning() {
		t.Error("scheduler should not run without a schedule")
	}
}
