package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkUSD-Protocol/services/internal/alert"
	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/pipeline"
	"github.com/zkUSD-Protocol/services/internal/pipeline/worker"
)

type stubHead struct {
	head  uint32
	err   error
	calls int
}

func (s *stubHead) GetHeadHeight(context.Context) (uint32, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.head, nil
}

type stubWorker struct {
	watermark  uint32
	readyErr   error
	replies    []worker.Result
	heights    []uint32
	noReply    bool
	done       chan struct{}
	dispatched chan uint32
}

func newStubWorker(watermark uint32) *stubWorker {
	return &stubWorker{
		watermark:  watermark,
		done:       make(chan struct{}),
		dispatched: make(chan uint32, 16),
	}
}

func (s *stubWorker) WaitReady(context.Context) (uint32, error) {
	return s.watermark, s.readyErr
}

func (s *stubWorker) ProcessBlock(height uint32) <-chan worker.Result {
	s.heights = append(s.heights, height)
	select {
	case s.dispatched <- height:
	default:
	}
	reply := make(chan worker.Result, 1)
	if s.noReply {
		return reply
	}
	res := worker.Result{TargetHeight: height}
	if len(s.replies) > 0 {
		res = s.replies[0]
		s.replies = s.replies[1:]
	}
	reply <- res
	return reply
}

func (s *stubWorker) Done() <-chan struct{} { return s.done }

type recordingAlerter struct {
	mu   sync.Mutex
	sent []alert.Alert
}

func (r *recordingAlerter) Send(_ context.Context, a alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, a)
	return nil
}

func (r *recordingAlerter) types() []alert.AlertType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]alert.AlertType, len(r.sent))
	for i, a := range r.sent {
		out[i] = a.Type
	}
	return out
}

type fatalRecorder struct {
	killed bool
	codes  []int
}

func newTestOrchestrator(head *stubHead, w *stubWorker, al *recordingAlerter, opts ...Option) (*Orchestrator, *fatalRecorder) {
	rec := &fatalRecorder{}
	base := []Option{
		WithGraceDelay(0),
		WithExitFunc(func(code int) { rec.codes = append(rec.codes, code) }),
	}
	o := New(
		head, w,
		func() { rec.killed = true },
		al,
		pipeline.NewEngineHealth(model.NetworkDevnet),
		model.NetworkDevnet,
		10*time.Millisecond,
		slog.Default(),
		append(base, opts...)...,
	)
	return o, rec
}

func TestCheckNewBlock_DispatchesWhenHeadAboveWatermark(t *testing.T) {
	head := &stubHead{head: 105}
	w := newStubWorker(100)
	o, rec := newTestOrchestrator(head, w, &recordingAlerter{})
	o.watermark = 100

	o.checkNewBlock(context.Background())

	require.Equal(t, []uint32{105}, w.heights)
	assert.Equal(t, uint32(105), o.watermark)
	assert.False(t, rec.killed)
	assert.Empty(t, rec.codes)
}

func TestCheckNewBlock_NoNewBlockDoesNothing(t *testing.T) {
	head := &stubHead{head: 100}
	w := newStubWorker(100)
	o, _ := newTestOrchestrator(head, w, &recordingAlerter{})
	o.watermark = 100

	o.checkNewBlock(context.Background())

	assert.Empty(t, w.heights)
	assert.Equal(t, uint32(100), o.watermark)
}

func TestCheckNewBlock_SkippedWhileCycleInFlight(t *testing.T) {
	head := &stubHead{head: 105}
	w := newStubWorker(100)
	w.noReply = true
	o, _ := newTestOrchestrator(head, w, &recordingAlerter{}, WithCycleTimeout(time.Minute))
	o.watermark = 100

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		o.checkNewBlock(ctx)
	}()

	select {
	case <-w.dispatched:
	case <-time.After(time.Second):
		t.Fatal("first check never dispatched")
	}

	// Second tick while the cycle is in flight must not query the head.
	o.checkNewBlock(ctx)
	assert.Equal(t, 1, head.calls)

	cancel()
	select {
	case <-firstDone:
	case <-time.After(time.Second):
		t.Fatal("first check never returned after cancel")
	}
}

func TestCheckNewBlock_HeadQueryFailureKeepsLoopAlive(t *testing.T) {
	head := &stubHead{err: errors.New("node unreachable")}
	w := newStubWorker(100)
	o, rec := newTestOrchestrator(head, w, &recordingAlerter{})
	o.watermark = 100

	o.checkNewBlock(context.Background())

	assert.Empty(t, w.heights)
	assert.Equal(t, uint32(100), o.watermark)
	assert.Empty(t, rec.codes)
}

func TestCheckNewBlock_WorkerErrorRetriesSameRangeNextTick(t *testing.T) {
	head := &stubHead{head: 105}
	w := newStubWorker(100)
	w.replies = []worker.Result{{TargetHeight: 105, Err: errors.New("proof compute failed")}}
	o, rec := newTestOrchestrator(head, w, &recordingAlerter{})
	o.watermark = 100

	o.checkNewBlock(context.Background())
	assert.Equal(t, uint32(100), o.watermark, "watermark must not advance on a failed cycle")
	assert.False(t, rec.killed, "worker-reported errors are not fatal")
	assert.Empty(t, rec.codes)

	// Next tick retries the same height; the default stub reply succeeds.
	o.checkNewBlock(context.Background())
	assert.Equal(t, []uint32{105, 105}, w.heights)
	assert.Equal(t, uint32(105), o.watermark)
}

func TestCheckNewBlock_CycleTimeoutIsFatal(t *testing.T) {
	head := &stubHead{head: 105}
	w := newStubWorker(100)
	w.noReply = true
	al := &recordingAlerter{}
	o, rec := newTestOrchestrator(head, w, al, WithCycleTimeout(20*time.Millisecond))
	o.watermark = 100

	o.checkNewBlock(context.Background())

	assert.True(t, rec.killed, "timeout must cancel the worker context")
	assert.Equal(t, []int{1}, rec.codes)
	require.Equal(t, []alert.AlertType{alert.AlertTypeCycleTimeout}, al.types())

	snap := o.health.Snapshot()
	assert.False(t, snap.WorkerAlive)
	assert.Equal(t, string(pipeline.HealthStatusUnhealthy), snap.Status)
}

func TestCheckNewBlock_WorkerDeathMidCycleIsFatal(t *testing.T) {
	head := &stubHead{head: 105}
	w := newStubWorker(100)
	w.noReply = true
	close(w.done)
	al := &recordingAlerter{}
	o, rec := newTestOrchestrator(head, w, al, WithCycleTimeout(time.Minute))
	o.watermark = 100

	o.checkNewBlock(context.Background())

	assert.True(t, rec.killed)
	assert.Equal(t, []int{1}, rec.codes)
	require.Equal(t, []alert.AlertType{alert.AlertTypeWorkerExit}, al.types())
}

func TestCheckNewBlock_DeadWorkerRefusalIsFatal(t *testing.T) {
	head := &stubHead{head: 105}
	w := newStubWorker(100)
	w.replies = []worker.Result{{TargetHeight: 105, Err: errors.New("worker has exited")}}
	close(w.done)
	al := &recordingAlerter{}
	o, rec := newTestOrchestrator(head, w, al)
	o.watermark = 100

	o.checkNewBlock(context.Background())

	assert.True(t, rec.killed, "an error reply from a dead worker is an exit, not a cycle failure")
	assert.Equal(t, []int{1}, rec.codes)
	require.Equal(t, []alert.AlertType{alert.AlertTypeWorkerExit}, al.types())
}

func TestCheckNewBlock_AlertsOnRepeatedFailuresThenRecovery(t *testing.T) {
	head := &stubHead{head: 105}
	w := newStubWorker(100)
	for i := 0; i < pipeline.DefaultUnhealthyThreshold; i++ {
		w.replies = append(w.replies, worker.Result{TargetHeight: 105, Err: errors.New("sidecar down")})
	}
	al := &recordingAlerter{}
	o, rec := newTestOrchestrator(head, w, al)
	o.watermark = 100

	// Failures up to the threshold raise one alert; the success after them
	// raises the recovery alert.
	for i := 0; i < pipeline.DefaultUnhealthyThreshold+1; i++ {
		o.checkNewBlock(context.Background())
	}

	assert.Equal(t, []alert.AlertType{alert.AlertTypeCycleError, alert.AlertTypeRecovery}, al.types())
	assert.Equal(t, uint32(105), o.watermark)
	assert.False(t, rec.killed)
}

func TestRun_SeedsWatermarkAndChecksImmediately(t *testing.T) {
	head := &stubHead{head: 105}
	w := newStubWorker(100)
	o, rec := newTestOrchestrator(head, w, &recordingAlerter{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(ctx) }()

	select {
	case h := <-w.dispatched:
		assert.Equal(t, uint32(105), h, "first check should dispatch the head above the seeded watermark")
	case <-time.After(time.Second):
		t.Fatal("no cycle dispatched")
	}

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, uint32(105), o.watermark)
	assert.Equal(t, string(pipeline.HealthStatusHealthy), o.health.Snapshot().Status)
	assert.Empty(t, rec.codes)
}

func TestRun_StartupFailurePropagates(t *testing.T) {
	head := &stubHead{head: 105}
	w := newStubWorker(0)
	w.readyErr = errors.New("prover init failed")
	al := &recordingAlerter{}
	o, _ := newTestOrchestrator(head, w, al)

	err := o.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker startup")
	assert.Equal(t, []alert.AlertType{alert.AlertTypeStartupFailure}, al.types())
	assert.Empty(t, w.heights, "no cycle may run after a failed handshake")
}
