// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

// Package audit records access denials.
//
// The Recorder is injected into the evaluator as its DenialHook. The hook runs
// on the caller's goroutine, so it only enqueues; a single consumer goroutine
// hands entries to a Writer. When the queue is full the entry is dropped and
// counted rather than blocking the access check.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/oops"

	"github.com/assetdesk/assetdesk/internal/access"
)

// Mode controls which decisions are recorded.
type Mode string

// Audit modes.
const (
	ModeOff     Mode = "off"
	ModeDenials Mode = "denials"
)

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOff, ModeDenials:
		return Mode(s), nil
	default:
		return "", oops.In("audit").Code("INVALID_AUDIT_MODE").With("mode", s).Errorf("unknown audit mode %q", s)
	}
}

// Entry is one recorded denial.
type Entry struct {
	ID        ulid.ULID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Module    string    `json:"module,omitempty"`
	Action    string    `json:"action,omitempty"`
	View      string    `json:"view,omitempty"`
	Reason    string    `json:"reason"`
}

// Writer persists entries. Write is only called from the recorder's consumer
// goroutine.
type Writer interface {
	Write(ctx context.Context, e Entry) error
	Close() error
}

var (
	droppedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assetdesk_audit_dropped_total",
		Help: "Total number of audit entries dropped because the queue was full or closed",
	})

	failuresCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assetdesk_audit_write_failures_total",
		Help: "Total number of audit entries the writer failed to persist",
	})
)

const defaultBuffer = 1024

// Recorder queues denials for asynchronous writing.
type Recorder struct {
	mode   Mode
	writer Writer
	queue  chan Entry
	now    func() time.Time
	logger *slog.Logger

	mu     sync.RWMutex // guards closed against concurrent enqueue
	closed bool
	done   chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithBuffer sets the queue capacity.
func WithBuffer(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Entry, n)
		}
	}
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRecorderLogger sets the logger used to report write failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecorder creates a Recorder and starts its consumer goroutine. Close must
// be called to stop it.
func NewRecorder(mode Mode, writer Writer, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		mode:   mode,
		writer: writer,
		queue:  make(chan Entry, defaultBuffer),
		now:    time.Now,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.consume()
	return r
}

// Hook returns the access.DenialHook to install on the evaluator.
func (r *Recorder) Hook() access.DenialHook {
	return r.Record
}

// Record enqueues a denial. It never blocks.
func (r *Recorder) Record(_ context.Context, d access.Denial) {
	if r.mode != ModeDenials {
		return
	}
	ts := r.now().UTC()
	e := Entry{
		ID:        ulid.MustNew(ulid.Timestamp(ts), ulid.DefaultEntropy()),
		Timestamp: ts,
		UserID:    d.User.ID,
		Role:      string(d.User.Role),
		Module:    string(d.Module),
		Action:    string(d.Action),
		View:      string(d.View),
		Reason:    d.Reason,
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		droppedCounter.Inc()
		return
	}
	select {
	case r.queue <- e:
	default:
		droppedCounter.Inc()
	}
}

func (r *Recorder) consume() {
	defer close(r.done)
	for e := range r.queue {
		if err := r.writer.Write(context.Background(), e); err != nil {
			failuresCounter.Inc()
			r.logger.Error("audit write failed",
				"error", err,
				"user_id", e.UserID,
				"module", e.Module,
				"action", e.Action,
				"view", e.View)
		}
	}
}

// Close stops accepting entries, drains the queue into the writer, and
// closes the writer. It waits for the drain until ctx is done.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		return oops.In("audit").Code("AUDIT_DRAIN_TIMEOUT").Wrap(ctx.Err())
	}
	if err := r.writer.Close(); err != nil {
		return oops.In("audit").Code("AUDIT_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
