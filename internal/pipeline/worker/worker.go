package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/zkUSD-Protocol/services/internal/domain/event"
	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/metrics"
	"github.com/zkUSD-Protocol/services/internal/oracle"
	"github.com/zkUSD-Protocol/services/internal/pipeline/fault"
	"github.com/zkUSD-Protocol/services/internal/store"
	"github.com/zkUSD-Protocol/services/internal/store/redis"
	"github.com/zkUSD-Protocol/services/internal/tracing"
)

// SubmissionCollector assembles the oracle submission vector for a height.
type SubmissionCollector interface {
	Collect(ctx context.Context, blockHeight uint32) ([]oracle.Submission, error)
}

// ProofComputer produces and persists the block proof for a height.
type ProofComputer interface {
	Init(ctx context.Context) error
	Compute(ctx context.Context, blockHeight uint32, submissions []oracle.Submission, whitelistCommitment string) (*model.ProofRecord, error)
}

// EventProcessor reconciles the event ledger up to a target height.
type EventProcessor interface {
	ProcessEvents(ctx context.Context, targetHeight uint32) ([]event.ChainEvent, error)
}

// Ready is the startup handshake: the watermark the worker will resume
// from, or the error that kept it from starting.
type Ready struct {
	WatermarkHeight uint32
	Err             error
}

// Result is the outcome of one processing cycle.
type Result struct {
	TargetHeight  uint32
	UpdatedEvents []event.ChainEvent
	Err           error
}

type request struct {
	height uint32
	reply  chan Result
}

// Worker runs the full cycle for one block height at a time: collect
// submissions, compute and persist the proof, reconcile the ledger, publish
// the cycle record. It is a single goroutine owning the store handle; all
// interaction goes through channels, and the handle is closed when the
// goroutine exits.
type Worker struct {
	collector   SubmissionCollector
	prover      ProofComputer
	processor   EventProcessor
	checkpoints store.CheckpointRepository
	feed        redis.MessageTransport
	storeCloser io.Closer

	startBlock          uint32
	whitelistCommitment string
	network             string
	logger              *slog.Logger

	requests chan request
	ready    chan Ready
	quit     chan struct{}
	done     chan struct{}
}

func New(
	collector SubmissionCollector,
	prover ProofComputer,
	processor EventProcessor,
	checkpoints store.CheckpointRepository,
	feed redis.MessageTransport,
	storeCloser io.Closer,
	startBlock uint32,
	whitelistCommitment string,
	network string,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		collector:           collector,
		prover:              prover,
		processor:           processor,
		checkpoints:         checkpoints,
		feed:                feed,
		storeCloser:         storeCloser,
		startBlock:          startBlock,
		whitelistCommitment: whitelistCommitment,
		network:             network,
		logger:              logger.With("component", "worker"),
		// Unbuffered: the single actor loop is the only reader, so a
		// dispatched request is either being worked on or refused.
		requests: make(chan request),
		ready:    make(chan Ready, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine. Canceling ctx is the kill switch:
// the actor exits without replying to an in-flight request.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// WaitReady blocks until the startup handshake arrives and returns the
// watermark the worker resumed from. Call it once, after Start.
func (w *Worker) WaitReady(ctx context.Context) (uint32, error) {
	select {
	case r := <-w.ready:
		return r.WatermarkHeight, r.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ProcessBlock asks the worker to run one cycle up to height. The result
// arrives on the returned channel; a cycle aborted by the kill switch never
// replies, so callers must select on Done as well.
func (w *Worker) ProcessBlock(height uint32) <-chan Result {
	reply := make(chan Result, 1)
	select {
	case w.requests <- request{height: height, reply: reply}:
	case <-w.done:
		reply <- Result{TargetHeight: height, Err: fmt.Errorf("worker has exited")}
	}
	return reply
}

// Shutdown asks the worker to exit after the in-flight cycle, if any.
func (w *Worker) Shutdown() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
}

// Done is closed when the worker goroutine has exited and the store handle
// is closed.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.closeResources()

	watermark, err := w.startup(ctx)
	w.ready <- Ready{WatermarkHeight: watermark, Err: err}
	if err != nil {
		w.logger.Error("worker startup failed", "error", err)
		return
	}
	w.logger.Info("worker ready", "watermark", watermark, "start_block", w.startBlock)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping", "reason", "context canceled")
			return
		case <-w.quit:
			w.logger.Info("worker stopping", "reason", "shutdown requested")
			return
		case req := <-w.requests:
			req.reply <- w.processBlock(ctx, req.height)
		}
	}
}

// startup prepares the cycle dependencies: the proof circuit is compiled
// once for the worker's lifetime and the checkpoint row is seeded so the
// first pass has a watermark to read.
func (w *Worker) startup(ctx context.Context) (uint32, error) {
	if err := w.prover.Init(ctx); err != nil {
		return 0, fmt.Errorf("initialize prover: %w", err)
	}

	if err := w.checkpoints.EnsureExists(ctx, w.startBlock); err != nil {
		return 0, fault.Wrap(fault.CategoryStore, fmt.Errorf("seed checkpoint: %w", err))
	}
	cp, err := w.checkpoints.Get(ctx)
	if err != nil {
		return 0, fault.Wrap(fault.CategoryStore, fmt.Errorf("load checkpoint: %w", err))
	}
	if cp == nil {
		return 0, fault.Wrap(fault.CategoryStore, fmt.Errorf("checkpoint row is missing after seeding"))
	}
	if cp.InProgress {
		// A previous run died mid-pass. The pass itself is idempotent, so
		// this is informational, not a recovery procedure.
		w.logger.Warn("previous run left a pass in progress", "watermark", cp.LastProcessedBlock, "last_error", cp.LastError)
	}

	return cp.FromBlock(), nil
}

func (w *Worker) processBlock(ctx context.Context, height uint32) Result {
	ctx, span := tracing.Tracer("worker").Start(ctx, "worker.cycle",
		otelTrace.WithAttributes(
			attribute.String("network", w.network),
			attribute.Int64("block_height", int64(height)),
		),
	)
	defer span.End()

	start := time.Now()
	w.logger.Info("cycle started", "height", height)

	submissions, err := w.collector.Collect(ctx, height)
	if err != nil {
		return w.failCycle(span, height, err)
	}

	proofRecord, err := w.prover.Compute(ctx, height, submissions, w.whitelistCommitment)
	if err != nil {
		return w.failCycle(span, height, err)
	}

	updated, err := w.processor.ProcessEvents(ctx, height)
	if err != nil {
		return w.failCycle(span, height, err)
	}

	w.publishCycle(ctx, height, proofRecord, updated)

	metrics.CyclesTotal.WithLabelValues(w.network, "success").Inc()
	metrics.CycleDuration.WithLabelValues(w.network).Observe(time.Since(start).Seconds())
	w.logger.Info("cycle complete",
		"height", height,
		"price", proofRecord.Price,
		"events", len(updated),
		"duration", time.Since(start))

	return Result{TargetHeight: height, UpdatedEvents: updated}
}

func (w *Worker) failCycle(span otelTrace.Span, height uint32, err error) Result {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.CyclesTotal.WithLabelValues(w.network, string(fault.CategoryOf(err))).Inc()
	w.logger.Error("cycle failed",
		"height", height,
		"category", fault.CategoryOf(err),
		"error", err)
	return Result{TargetHeight: height, Err: err}
}

// publishCycle emits the cycle record for downstream consumers. The feed is
// an observation channel, not part of cycle correctness: a publish failure
// logs and moves on.
func (w *Worker) publishCycle(ctx context.Context, height uint32, proofRecord *model.ProofRecord, updated []event.ChainEvent) {
	record := event.CycleRecord{
		BlockHeight:    height,
		Price:          proofRecord.Price,
		EventsIngested: len(updated),
		UpdatedVaults:  updatedVaults(updated),
		CompletedAt:    time.Now().UTC(),
	}
	if _, err := w.feed.PublishJSON(ctx, redis.CycleStream, record); err != nil {
		w.logger.Warn("failed to publish cycle record", "height", height, "error", err)
	}
}

func updatedVaults(events []event.ChainEvent) []string {
	seen := make(map[string]bool)
	var vaults []string
	for _, ev := range events {
		if ev.Payload == nil {
			continue
		}
		address := ev.Payload.Vault()
		if !seen[address] {
			seen[address] = true
			vaults = append(vaults, address)
		}
	}
	return vaults
}

func (w *Worker) closeResources() {
	if err := w.feed.Close(); err != nil {
		w.logger.Error("failed to close cycle feed", "error", err)
	}
	if w.storeCloser != nil {
		if err := w.storeCloser.Close(); err != nil {
			w.logger.Error("failed to close store", "error", err)
		}
	}
	w.logger.Info("worker resources closed")
}
