package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/zkUSD-Protocol/services/internal/domain/event"
	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/oracle"
	"github.com/zkUSD-Protocol/services/internal/pipeline/fault"
	storemocks "github.com/zkUSD-Protocol/services/internal/store/mocks"
	"github.com/zkUSD-Protocol/services/internal/store/redis"
)

type stubCollector struct {
	submissions []oracle.Submission
	err         error
	heights     []uint32
}

func (s *stubCollector) Collect(_ context.Context, blockHeight uint32) ([]oracle.Submission, error) {
	s.heights = append(s.heights, blockHeight)
	if s.err != nil {
		return nil, s.err
	}
	return s.submissions, nil
}

type stubComputer struct {
	initCalls      int
	initErr        error
	computeCalls   int
	computeErr     error
	record         *model.ProofRecord
	lastHeight     uint32
	lastCommitment string
}

func (s *stubComputer) Init(_ context.Context) error {
	s.initCalls++
	return s.initErr
}

func (s *stubComputer) Compute(_ context.Context, blockHeight uint32, _ []oracle.Submission, whitelistCommitment string) (*model.ProofRecord, error) {
	s.computeCalls++
	s.lastHeight = blockHeight
	s.lastCommitment = whitelistCommitment
	if s.computeErr != nil {
		return nil, s.computeErr
	}
	return s.record, nil
}

type stubProcessor struct {
	updated []event.ChainEvent
	err     error
	targets []uint32
}

func (s *stubProcessor) ProcessEvents(_ context.Context, targetHeight uint32) ([]event.ChainEvent, error) {
	s.targets = append(s.targets, targetHeight)
	if s.err != nil {
		return nil, s.err
	}
	return s.updated, nil
}

type recordingCloser struct {
	closed bool
}

func (r *recordingCloser) Close() error {
	r.closed = true
	return nil
}

type workerFixture struct {
	worker    *Worker
	collector *stubCollector
	computer  *stubComputer
	processor *stubProcessor
	closer    *recordingCloser
	feed      *redis.InMemoryStream
}

func newFixture(t *testing.T, cp *model.Checkpoint) *workerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockCheckpoints := storemocks.NewMockCheckpointRepository(ctrl)
	mockCheckpoints.EXPECT().EnsureExists(gomock.Any(), uint32(300)).Return(nil).AnyTimes()
	mockCheckpoints.EXPECT().Get(gomock.Any()).Return(cp, nil).AnyTimes()

	f := &workerFixture{
		collector: &stubCollector{submissions: []oracle.Submission{{Slot: 0, PublicKey: "B62qkOracleA", Price: "245000000"}}},
		computer:  &stubComputer{record: &model.ProofRecord{BlockHeight: 105, Price: "245000000", Proof: []byte(`{}`)}},
		processor: &stubProcessor{},
		closer:    &recordingCloser{},
		feed:      redis.NewInMemoryStream(),
	}
	f.worker = New(
		f.collector,
		f.computer,
		f.processor,
		mockCheckpoints,
		f.feed,
		f.closer,
		300,
		"commitment_1",
		"devnet",
		slog.Default(),
	)
	return f
}

func startWorker(t *testing.T, f *workerFixture, ctx context.Context) uint32 {
	t.Helper()
	f.worker.Start(ctx)
	watermark, err := f.worker.WaitReady(ctx)
	require.NoError(t, err)
	return watermark
}

func waitDone(t *testing.T, w *Worker) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit")
	}
}

func TestWorker_StartupHandshake(t *testing.T) {
	f := newFixture(t, &model.Checkpoint{ID: 1, LastProcessedBlock: 100, StartBlock: 300})

	watermark := startWorker(t, f, context.Background())
	assert.Equal(t, uint32(100), watermark)
	assert.Equal(t, 1, f.computer.initCalls)

	f.worker.Shutdown()
	waitDone(t, f.worker)
	assert.True(t, f.closer.closed, "the worker owns the store handle")
}

func TestWorker_FreshCheckpointReportsStartBlock(t *testing.T) {
	f := newFixture(t, &model.Checkpoint{ID: 1, LastProcessedBlock: 0, StartBlock: 300})

	watermark := startWorker(t, f, context.Background())
	assert.Equal(t, uint32(300), watermark)

	f.worker.Shutdown()
	waitDone(t, f.worker)
}

func TestWorker_StartupFailureClosesResources(t *testing.T) {
	f := newFixture(t, &model.Checkpoint{ID: 1, StartBlock: 300})
	f.computer.initErr = errors.New("compile failed")

	f.worker.Start(context.Background())
	_, err := f.worker.WaitReady(context.Background())
	require.Error(t, err)

	waitDone(t, f.worker)
	assert.True(t, f.closer.closed)
}

func TestWorker_ProcessBlockRunsFullCycle(t *testing.T) {
	f := newFixture(t, &model.Checkpoint{ID: 1, LastProcessedBlock: 100, StartBlock: 300})
	f.processor.updated = []event.ChainEvent{
		{
			BlockHeight:     105,
			TransactionHash: "tx_1",
			Payload:         &event.DepositCollateral{VaultAddress: "B62qkVault1"},
		},
	}

	startWorker(t, f, context.Background())

	result := <-f.worker.ProcessBlock(105)
	require.NoError(t, result.Err)
	assert.Equal(t, uint32(105), result.TargetHeight)
	assert.Len(t, result.UpdatedEvents, 1)

	assert.Equal(t, []uint32{105}, f.collector.heights)
	assert.Equal(t, uint32(105), f.computer.lastHeight)
	assert.Equal(t, "commitment_1", f.computer.lastCommitment)
	assert.Equal(t, []uint32{105}, f.processor.targets)

	readCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var record event.CycleRecord
	_, err := f.feed.ReadJSON(readCtx, redis.CycleStream, "", &record)
	require.NoError(t, err)
	assert.Equal(t, uint32(105), record.BlockHeight)
	assert.Equal(t, "245000000", record.Price)
	assert.Equal(t, 1, record.EventsIngested)
	assert.Equal(t, []string{"B62qkVault1"}, record.UpdatedVaults)

	f.worker.Shutdown()
	waitDone(t, f.worker)
}

func TestWorker_CollectFailureSkipsProofAndLedger(t *testing.T) {
	f := newFixture(t, &model.Checkpoint{ID: 1, LastProcessedBlock: 100, StartBlock: 300})
	f.collector.err = fault.Wrap(fault.CategoryCollection, errors.New("feed down"))

	startWorker(t, f, context.Background())

	result := <-f.worker.ProcessBlock(105)
	require.Error(t, result.Err)
	assert.True(t, fault.Is(result.Err, fault.CategoryCollection))
	assert.Zero(t, f.computer.computeCalls)
	assert.Empty(t, f.processor.targets)

	f.worker.Shutdown()
	waitDone(t, f.worker)
}

func TestWorker_CycleFailureKeepsWorkerAlive(t *testing.T) {
	f := newFixture(t, &model.Checkpoint{ID: 1, LastProcessedBlock: 100, StartBlock: 300})
	f.processor.err = fault.Wrap(fault.CategoryStore, errors.New("write failed"))

	startWorker(t, f, context.Background())

	result := <-f.worker.ProcessBlock(105)
	require.Error(t, result.Err)

	// The next request is served by the same goroutine.
	f.processor.err = nil
	result = <-f.worker.ProcessBlock(106)
	require.NoError(t, result.Err)
	assert.Equal(t, uint32(106), result.TargetHeight)

	f.worker.Shutdown()
	waitDone(t, f.worker)
}

func TestWorker_KillSwitchStopsWorker(t *testing.T) {
	f := newFixture(t, &model.Checkpoint{ID: 1, LastProcessedBlock: 100, StartBlock: 300})

	ctx, cancel := context.WithCancel(context.Background())
	startWorker(t, f, ctx)

	cancel()
	waitDone(t, f.worker)
	assert.True(t, f.closer.closed)
}

func TestWorker_ProcessBlockAfterExitFailsFast(t *testing.T) {
	f := newFixture(t, &model.Checkpoint{ID: 1, LastProcessedBlock: 100, StartBlock: 300})

	startWorker(t, f, context.Background())
	f.worker.Shutdown()
	waitDone(t, f.worker)

	result := <-f.worker.ProcessBlock(105)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "worker has exited")
}

func TestWorker_ShutdownIsIdempotent(t *testing.T) {
	f := newFixture(t, &model.Checkpoint{ID: 1, LastProcessedBlock: 100, StartBlock: 300})

	startWorker(t, f, context.Background())

	f.worker.Shutdown()
	f.worker.Shutdown()
	waitDone(t, f.worker)
}

func TestWorker_LeftoverInProgressMarkerStillStarts(t *testing.T) {
	lastError := "archive unreachable"
	f := newFixture(t, &model.Checkpoint{
		ID:                 1,
		LastProcessedBlock: 100,
		StartBlock:         300,
		InProgress:         true,
		LastError:          &lastError,
	})

	watermark := startWorker(t, f, context.Background())
	assert.Equal(t, uint32(100), watermark)

	f.worker.Shutdown()
	waitDone(t, f.worker)
}
