package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixOrdersParticipants(t *testing.T) {
	assert.Equal(t, "a:b", Prefix("a", "b"))
	assert.Equal(t, "a:b", Prefix("b", "a"))
	assert.Equal(t, "100:99", Prefix("99", "100"), "ids compare as strings")
}

func TestDialogID(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, "a:b:1700000000", DialogID("b", "a", at))
	// Same pair, later reconnect: different dialog.
	assert.NotEqual(t, DialogID("a", "b", at), DialogID("a", "b", at.Add(time.Second)))
}

// stubRecorder counts writes and can be scripted to fail the first N
// attempts.
type stubRecorder struct {
	mu       sync.Mutex
	failures int
	opened   []job
	closed   []job
	done     chan struct{}
}

func newStubRecorder(failures int) *stubRecorder {
	return &stubRecorder{failures: failures, done: make(chan struct{}, 8)}
}

func (r *stubRecorder) open(j job) error  { return r.record(&r.opened, j) }
func (r *stubRecorder) close(j job) error { return r.record(&r.closed, j) }

func (r *stubRecorder) record(dst *[]job, j job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("database unreachable")
	}
	*dst = append(*dst, j)
	r.done <- struct{}{}
	return nil
}

func waitDone(t *testing.T, r *stubRecorder) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("ledger worker did not process the job in time")
	}
}

func TestWorkerProcessesRecords(t *testing.T) {
	rec := newStubRecorder(0)
	s := newService(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.RecordOpen("a", "b")
	waitDone(t, rec)
	s.RecordClose("a", "b")
	waitDone(t, rec)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.opened, 1)
	require.Len(t, rec.closed, 1)
	assert.Equal(t, "a", rec.opened[0].a)
	assert.Equal(t, "b", rec.opened[0].b)
	assert.False(t, rec.opened[0].at.IsZero())
}

func TestWorkerRetriesTransientFailure(t *testing.T) {
	rec := newStubRecorder(1) // first attempt fails, retry succeeds
	s := newService(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.RecordOpen("a", "b")
	waitDone(t, rec)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.opened, 1)
}

func TestSubmitDropsWhenBufferFull(t *testing.T) {
	s := newService(newStubRecorder(0))
	// No worker running: fill the buffer and overflow it. The overflow
	// must be dropped, not block the caller.
	for i := 0; i < jobBuffer+10; i++ {
		s.RecordOpen("a", "b")
	}
	assert.Equal(t, jobBuffer, len(s.jobs))
}
