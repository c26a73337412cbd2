package prover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/zkUSD-Protocol/services/internal/circuitbreaker"
	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/metrics"
	"github.com/zkUSD-Protocol/services/internal/oracle"
	"github.com/zkUSD-Protocol/services/internal/pipeline/fault"
	"github.com/zkUSD-Protocol/services/internal/prover/rpc"
	"github.com/zkUSD-Protocol/services/internal/store"
	"github.com/zkUSD-Protocol/services/internal/tracing"
)

const (
	// defaultInitTimeout bounds circuit compilation in the sidecar. Cold
	// compiles of the block-proof circuit run for minutes.
	defaultInitTimeout = 10 * time.Minute

	defaultComputeTimeout = 2 * time.Minute
)

// Backend performs the heavy circuit work. Satisfied by rpc.Client.
type Backend interface {
	ProverInit(ctx context.Context) (*rpc.InitResult, error)
	ComputeBlockProof(ctx context.Context, params rpc.ComputeParams) (*rpc.ComputeResult, error)
}

// Prover wraps the proof backend with the persistence step the cycle
// requires: a computed proof that cannot be written is a failed cycle, not
// a success with a warning.
//
// A Prover is confined to the worker goroutine that owns it; its methods
// are not safe for concurrent use.
type Prover struct {
	backend        Backend
	proofs         store.ProofRepository
	breaker        *circuitbreaker.Breaker
	network        string
	initTimeout    time.Duration
	computeTimeout time.Duration
	logger         *slog.Logger

	initialized bool
}

type Option func(*Prover)

func WithInitTimeout(d time.Duration) Option {
	return func(p *Prover) { p.initTimeout = d }
}

func WithComputeTimeout(d time.Duration) Option {
	return func(p *Prover) { p.computeTimeout = d }
}

func New(backend Backend, proofs store.ProofRepository, network string, logger *slog.Logger, opts ...Option) *Prover {
	p := &Prover{
		backend: backend,
		proofs:  proofs,
		breaker: circuitbreaker.New("prover", circuitbreaker.Config{
			FailureThreshold: 3,
			OpenTimeout:      time.Minute,
		}),
		network:        network,
		initTimeout:    defaultInitTimeout,
		computeTimeout: defaultComputeTimeout,
		logger:         logger.With("component", "prover"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init compiles the proof circuit in the sidecar. It runs the compilation
// at most once per Prover lifetime; later calls are no-ops.
func (p *Prover) Init(ctx context.Context) error {
	if p.initialized {
		return nil
	}

	initCtx, cancel := context.WithTimeout(ctx, p.initTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.backend.ProverInit(initCtx)
	if err != nil {
		return fault.Wrap(fault.CategoryProofCompute, fmt.Errorf("initialize prover: %w", err))
	}

	p.initialized = true
	p.logger.Info("prover initialized",
		"verification_key_hash", result.VerificationKeyHash,
		"duration", time.Since(start))
	return nil
}

// Compute produces the block proof for blockHeight over the submission
// vector and persists it. The returned record reflects the stored row.
func (p *Prover) Compute(ctx context.Context, blockHeight uint32, submissions []oracle.Submission, whitelistCommitment string) (_ *model.ProofRecord, err error) {
	ctx, span := tracing.Tracer("prover").Start(ctx, "prover.compute",
		otelTrace.WithAttributes(
			attribute.String("network", p.network),
			attribute.Int64("block_height", int64(blockHeight)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !p.initialized {
		return nil, fault.Wrap(fault.CategoryProofCompute, fmt.Errorf("prover is not initialized"))
	}
	if p.breaker.Allow() != nil {
		metrics.ProverComputeErrors.WithLabelValues(p.network).Inc()
		return nil, fault.Wrap(fault.CategoryProofCompute, fmt.Errorf("prover circuit breaker is open"))
	}

	params := rpc.ComputeParams{
		BlockHeight:         blockHeight,
		Submissions:         toSubmissionParams(submissions),
		WhitelistCommitment: whitelistCommitment,
	}

	computeCtx, cancel := context.WithTimeout(ctx, p.computeTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.backend.ComputeBlockProof(computeCtx, params)
	if err != nil {
		p.breaker.RecordFailure()
		metrics.ProverComputeErrors.WithLabelValues(p.network).Inc()
		return nil, fault.Wrap(fault.CategoryProofCompute, fmt.Errorf("compute proof for height %d: %w", blockHeight, err))
	}
	p.breaker.RecordSuccess()
	metrics.ProverComputeDuration.WithLabelValues(p.network).Observe(time.Since(start).Seconds())

	record := &model.ProofRecord{
		BlockHeight: blockHeight,
		Proof:       []byte(result.Proof),
		Price:       result.Price,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.proofs.Upsert(ctx, record); err != nil {
		metrics.ProverPersistErrors.WithLabelValues(p.network).Inc()
		return nil, fault.Wrap(fault.CategoryProofPersist, fmt.Errorf("persist proof for height %d: %w", blockHeight, err))
	}
	metrics.ProofsPersistedTotal.WithLabelValues(p.network).Inc()

	p.logger.Info("proof computed",
		"height", blockHeight,
		"price", result.Price,
		"proof_bytes", len(record.Proof),
		"duration", time.Since(start))
	return record, nil
}

func toSubmissionParams(submissions []oracle.Submission) []rpc.SubmissionParam {
	params := make([]rpc.SubmissionParam, len(submissions))
	for i, sub := range submissions {
		params[i] = rpc.SubmissionParam{
			Slot:      sub.Slot,
			PublicKey: sub.PublicKey,
			Price:     sub.Price,
			Signature: sub.Signature,
			IsDummy:   sub.IsDummy,
		}
	}
	return params
}
