// Package recorder writes turn evidence asynchronously.
//
// Record returns as soon as the record is queued. A single worker drains the
// queue into the configured Storage; Close stops intake and drains whatever
// is still queued before returning.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"atlas-g/protocol/pkg/evidence"
)

// Config contains configuration for the evidence recorder.
type Config struct {
	// Enabled enables evidence recording.
	Enabled bool

	// AsyncBuffer is the size of the write queue.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds each storage write and each wait for queue space.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// MaxFieldLength is the rune limit for the stored query text.
	// Default: 500
	MaxFieldLength int
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		AsyncBuffer:    1000,
		WriteTimeout:   5 * time.Second,
		MaxFieldLength: 500,
	}
}

// Recorder queues turn records for asynchronous storage.
type Recorder struct {
	storage    evidence.Storage
	config     *Config
	recordChan chan *evidence.TurnRecord
	wg         sync.WaitGroup
	done       chan struct{}
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool

	onWritten func(err error)
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithWriteObserver registers a callback invoked after every storage write
// with its error, if any.
func WithWriteObserver(fn func(err error)) Option {
	return func(r *Recorder) {
		r.onWritten = fn
	}
}

// NewRecorder creates a recorder writing to storage and starts its worker.
func NewRecorder(storage evidence.Storage, config *Config, opts ...Option) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *evidence.TurnRecord, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "evidence.recorder"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("evidence recorder initialized",
		"enabled", config.Enabled,
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// Record finalises record (id, query hash and truncation, recorded time) and
// queues it. It does not block on storage.
func (r *Recorder) Record(ctx context.Context, record *evidence.TurnRecord) error {
	if !r.config.Enabled || record == nil {
		return nil
	}

	r.prepare(record)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return evidence.NewRecorderError(record.ID, evidence.ErrRecorderClosed)
	}

	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r.recordChan <- record:
		r.logger.Debug("evidence record enqueued",
			"record_id", record.ID,
			"session_id", record.SessionID,
		)
		return nil
	case <-timer.C:
		r.logger.Error("evidence record channel full, dropping record",
			"record_id", record.ID,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return evidence.NewRecorderError(record.ID, context.DeadlineExceeded)
	case <-ctx.Done():
		return evidence.NewRecorderError(record.ID, ctx.Err())
	}
}

func (r *Recorder) prepare(record *evidence.TurnRecord) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.QueryHash == "" {
		record.QueryHash = HashString(record.Query)
	}
	record.Query = TruncateString(record.Query, r.config.MaxFieldLength)
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
}

// Close stops intake, drains the queue and waits for the worker to exit.
// It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("evidence recorder shut down complete")
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			r.logger.Info("draining evidence channel before shutdown",
				"pending_count", len(r.recordChan),
			)
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

func (r *Recorder) writeRecord(record *evidence.TurnRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := r.storage.Store(ctx, record)
	if r.onWritten != nil {
		r.onWritten(err)
	}
	if err != nil {
		r.logger.Error("failed to store evidence record",
			"record_id", record.ID,
			"session_id", record.SessionID,
			"error", err,
		)
		return
	}

	duration := time.Since(start)
	r.logger.Debug("evidence recorded",
		"record_id", record.ID,
		"outcome", record.Outcome,
		"duration_ms", duration.Milliseconds(),
	)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow evidence write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}
}
