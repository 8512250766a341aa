// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package audit

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/assetdesk/assetdesk/internal/access"
	"github.com/assetdesk/assetdesk/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memWriter records writes. When gate is non-nil each write signals started
// and then waits on gate.
type memWriter struct {
	mu      sync.Mutex
	entries []Entry
	closed  bool
	fail    bool
	started chan struct{}
	gate    chan struct{}
}

func (w *memWriter) Write(_ context.Context, e Entry) error {
	if w.gate != nil {
		w.started <- struct{}{}
		<-w.gate
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return assert.AnError
	}
	w.entries = append(w.entries, e)
	return nil
}

func (w *memWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *memWriter) written() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Entry{}, w.entries...)
}

var denial = access.Denial{
	User:   access.User{ID: "u-7", Role: access.RoleUser},
	Module: access.Module("devices"),
	Action: access.Action("delete"),
	View:   access.ViewID("devices"),
	Reason: access.ReasonPolicy,
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("denials")
	require.NoError(t, err)
	assert.Equal(t, ModeDenials, m)

	_, err = ParseMode("all")
	errutil.AssertErrorCode(t, err, "INVALID_AUDIT_MODE")
}

func TestRecorder_DenialsModeWritesEntry(t *testing.T) {
	w := &memWriter{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecorder(ModeDenials, w, WithClock(func() time.Time { return at }))

	r.Hook()(context.Background(), denial)
	require.NoError(t, r.Close(context.Background()))

	got := w.written()
	require.Len(t, got, 1)
	e := got[0]
	assert.NotZero(t, e.ID)
	assert.Equal(t, at, e.Timestamp)
	assert.Equal(t, "u-7", e.UserID)
	assert.Equal(t, "user", e.Role)
	assert.Equal(t, "devices", e.Module)
	assert.Equal(t, "delete", e.Action)
	assert.Equal(t, "devices", e.View)
	assert.Equal(t, access.ReasonPolicy, e.Reason)
	assert.True(t, w.closed)
}

func TestRecorder_OffModeRecordsNothing(t *testing.T) {
	w := &memWriter{}
	r := NewRecorder(ModeOff, w)

	r.Record(context.Background(), denial)
	require.NoError(t, r.Close(context.Background()))

	assert.Empty(t, w.written())
}

func TestRecorder_CloseFlushesQueued(t *testing.T) {
	w := &memWriter{}
	r := NewRecorder(ModeDenials, w, WithBuffer(16))

	for i := 0; i < 10; i++ {
		r.Record(context.Background(), denial)
	}
	require.NoError(t, r.Close(context.Background()))

	assert.Len(t, w.written(), 10)
}

func TestRecorder_FullQueueDropsEntry(t *testing.T) {
	w := &memWriter{started: make(chan struct{}), gate: make(chan struct{})}
	r := NewRecorder(ModeDenials, w, WithBuffer(1))
	before := testutil.ToFloat64(droppedCounter)

	r.Record(context.Background(), denial)
	<-w.started // consumer holds the first entry

	r.Record(context.Background(), denial) // fills the queue
	r.Record(context.Background(), denial) // dropped

	assert.InDelta(t, before+1, testutil.ToFloat64(droppedCounter), 0.001)

	go func() {
		<-w.started
		close(w.gate)
	}()
	w.gate <- struct{}{}
	require.NoError(t, r.Close(context.Background()))
	assert.Len(t, w.written(), 2)
}

func TestRecorder_RecordAfterCloseIsDropped(t *testing.T) {
	w := &memWriter{}
	r := NewRecorder(ModeDenials, w)
	require.NoError(t, r.Close(context.Background()))
	before := testutil.ToFloat64(droppedCounter)

	r.Record(context.Background(), denial)

	assert.Empty(t, w.written())
	assert.InDelta(t, before+1, testutil.ToFloat64(droppedCounter), 0.001)
	require.NoError(t, r.Close(context.Background()), "second close is a no-op")
}

func TestRecorder_WriteFailureIsCounted(t *testing.T) {
	w := &memWriter{fail: true}
	r := NewRecorder(ModeDenials, w)
	before := testutil.ToFloat64(failuresCounter)

	r.Record(context.Background(), denial)
	require.NoError(t, r.Close(context.Background()))

	assert.InDelta(t, before+1, testutil.ToFloat64(failuresCounter), 0.001)
}

func TestRecorder_WriteFailureIsLoggedToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := NewRecorder(ModeDenials, &memWriter{fail: true}, WithRecorderLogger(logger))

	r.Record(context.Background(), denial)
	require.NoError(t, r.Close(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"msg":"audit write failed"`)
	assert.Contains(t, out, `"user_id":"u-7"`)
}

func TestRecorder_CloseHonoursContext(t *testing.T) {
	w := &memWriter{started: make(chan struct{}), gate: make(chan struct{})}
	r := NewRecorder(ModeDenials, w)
	r.Record(context.Background(), denial)
	<-w.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Close(ctx)
	errutil.AssertErrorCode(t, err, "AUDIT_DRAIN_TIMEOUT")

	close(w.gate)
	<-r.done
}
