package recorder

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/janus/pkg/usage"
)

// Config contains configuration for the usage recorder.
type Config struct {
	// Buffer is the size of the async write channel.
	// Default: 1000
	Buffer int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Buffer:       1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes usage records asynchronously so storage latency never sits
// on the request path. Records are enqueued on a buffered channel and
// drained by a background worker; when the channel is full the record is
// dropped and counted rather than blocking traffic. The durability window
// is therefore the channel depth plus one write timeout.
type Recorder struct {
	storage    usage.Storage
	config     *Config
	recordChan chan *usage.Record
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	dropped    atomic.Int64
	logger     *slog.Logger
}

// NewRecorder creates a usage recorder backed by the given storage and
// starts its background worker.
func NewRecorder(storage usage.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *usage.Record, config.Buffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "usage.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("usage recorder initialized",
		"buffer", config.Buffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Record builds a usage record for the request and enqueues it for async
// writing. It returns immediately; a full channel drops the record and
// returns a *usage.RecorderError, which callers on the request path log and
// swallow.
func (r *Recorder) Record(ctx context.Context, identity string, req *http.Request, outcome usage.Outcome, arrived time.Time) error {
	record := &usage.Record{
		ID:           uuid.New().String(),
		Identity:     identity,
		Method:       req.Method,
		Path:         req.URL.Path,
		Outcome:      outcome,
		RemoteAddr:   req.RemoteAddr,
		UserAgent:    req.UserAgent(),
		Timestamp:    arrived,
		RecordedTime: time.Now(),
	}

	select {
	case r.recordChan <- record:
		return nil
	default:
		dropped := r.dropped.Add(1)
		r.logger.Error("usage record channel full, dropping record",
			"record_id", record.ID,
			"identity", record.Identity,
			"dropped_total", dropped,
		)
		return usage.NewRecorderError(record.ID, context.DeadlineExceeded)
	}
}

// Dropped returns the number of records dropped due to a full channel.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close shuts down the recorder, draining the channel and waiting for all
// pending writes to complete.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.logger.Info("shutting down usage recorder")
		close(r.done)
		r.wg.Wait()
		r.logger.Info("usage recorder shut down complete")
	})
	return nil
}

// worker drains the record channel and writes records to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			// Drain remaining records before exit.
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

// writeRecord writes a single record to storage. Failures are logged and
// swallowed; a broken usage store must never take down the proxy path.
func (r *Recorder) writeRecord(record *usage.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()

	if err := r.storage.Append(ctx, record); err != nil {
		r.logger.Error("failed to store usage record",
			"record_id", record.ID,
			"identity", record.Identity,
			"error", err,
		)
		return
	}

	duration := time.Since(start)

	r.logger.Debug("usage recorded",
		"record_id", record.ID,
		"identity", record.Identity,
		"outcome", record.Outcome,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow usage write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}
}
