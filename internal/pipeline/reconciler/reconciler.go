package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/zkUSD-Protocol/services/internal/chain"
	"github.com/zkUSD-Protocol/services/internal/domain/event"
	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/metrics"
	"github.com/zkUSD-Protocol/services/internal/pipeline/fault"
	"github.com/zkUSD-Protocol/services/internal/store"
	"github.com/zkUSD-Protocol/services/internal/tracing"
)

// cleanupTimeout bounds the bracket writes that must land even when the
// pass context is already canceled.
const cleanupTimeout = 5 * time.Second

// EventApplier folds a single chain event into derived state.
type EventApplier interface {
	Apply(ctx context.Context, ev event.ChainEvent) (bool, error)
}

// Reconciler drives one ledger pass: fetch everything between the watermark
// and a target height, record it, fold vault events, then advance the
// watermark. Passes are strictly sequential; the caller guarantees only one
// runs at a time.
type Reconciler struct {
	adapter     chain.Adapter
	checkpoints store.CheckpointRepository
	rawEvents   store.RawEventRepository
	applier     EventApplier
	network     string
	logger      *slog.Logger
}

func New(
	adapter chain.Adapter,
	checkpoints store.CheckpointRepository,
	rawEvents store.RawEventRepository,
	applier EventApplier,
	network string,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		adapter:     adapter,
		checkpoints: checkpoints,
		rawEvents:   rawEvents,
		applier:     applier,
		network:     network,
		logger:      logger.With("component", "reconciler"),
	}
}

// ProcessEvents reconciles the ledger up to targetHeight and returns the
// events that were new to it. The watermark advances to targetHeight even
// when the range held no events; an empty range is a processed range.
func (r *Reconciler) ProcessEvents(ctx context.Context, targetHeight uint32) (updated []event.ChainEvent, err error) {
	ctx, span := tracing.Tracer("reconciler").Start(ctx, "reconciler.pass",
		otelTrace.WithAttributes(
			attribute.String("network", r.network),
			attribute.Int64("target_height", int64(targetHeight)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()

	if err := r.checkpoints.SetInProgress(ctx, true); err != nil {
		return nil, fault.Wrap(fault.CategoryStore, fmt.Errorf("mark pass in progress: %w", err))
	}
	defer func() {
		// The in-progress marker and the error trail must clear/record even
		// when the pass context died mid-flight.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()

		if clearErr := r.checkpoints.SetInProgress(cleanupCtx, false); clearErr != nil {
			r.logger.Error("failed to clear in-progress marker", "error", clearErr)
		}
		message := ""
		if err != nil {
			message = err.Error()
		}
		if recordErr := r.checkpoints.SetLastError(cleanupCtx, message); recordErr != nil {
			r.logger.Error("failed to record pass outcome", "error", recordErr)
		}

		metrics.ReconcilerPassDuration.WithLabelValues(r.network).Observe(time.Since(start).Seconds())
	}()

	cp, err := r.checkpoints.Get(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.CategoryStore, fmt.Errorf("load checkpoint: %w", err))
	}
	if cp == nil {
		return nil, fault.Wrap(fault.CategoryStore, fmt.Errorf("checkpoint row is missing"))
	}

	fromBlock := cp.FromBlock()
	if fromBlock > targetHeight {
		r.logger.Debug("target below watermark, nothing to fetch",
			"from", fromBlock, "target", targetHeight)
		return nil, nil
	}

	events, err := r.adapter.FetchEvents(ctx, fromBlock, targetHeight)
	if err != nil {
		return nil, fault.Wrap(fault.CategoryChainQuery, fmt.Errorf("fetch events [%d, %d]: %w", fromBlock, targetHeight, err))
	}
	metrics.ReconcilerEventsFetched.WithLabelValues(r.network).Add(float64(len(events)))

	inserted := 0
	deduplicated := 0
	for _, ev := range events {
		wasNew, err := r.recordEvent(ctx, ev)
		if err != nil {
			return nil, err
		}
		if wasNew {
			inserted++
			updated = append(updated, ev)
		} else {
			deduplicated++
		}

		// Reduction is not gated on ledger novelty: a pass that died between
		// insert and reduce leaves a ledger row whose vault update never
		// landed. The reducer's replay guards make re-applying a no-op.
		if shouldReduce(ev) {
			if _, err := r.applier.Apply(ctx, ev); err != nil {
				return nil, fmt.Errorf("apply event %s at height %d: %w", ev.TransactionHash, ev.BlockHeight, err)
			}
		}
	}
	metrics.ReconcilerEventsInserted.WithLabelValues(r.network).Add(float64(inserted))
	metrics.ReconcilerEventsDeduplicated.WithLabelValues(r.network).Add(float64(deduplicated))

	if err := r.checkpoints.Advance(ctx, targetHeight, time.Now().UTC()); err != nil {
		return nil, fault.Wrap(fault.CategoryStore, fmt.Errorf("advance watermark to %d: %w", targetHeight, err))
	}

	r.logger.Info("pass complete",
		"from", fromBlock,
		"target", targetHeight,
		"fetched", len(events),
		"inserted", inserted,
		"deduplicated", deduplicated,
		"duration", time.Since(start))
	return updated, nil
}

// recordEvent inserts ev into the ledger unless its (transaction, status)
// key is already there. It reports whether the ledger grew.
func (r *Reconciler) recordEvent(ctx context.Context, ev event.ChainEvent) (bool, error) {
	existing, err := r.rawEvents.FindByKey(ctx, ev.TransactionHash, ev.ChainStatus)
	if err != nil {
		return false, fault.Wrap(fault.CategoryStore, fmt.Errorf("look up event %s/%s: %w", ev.TransactionHash, ev.ChainStatus, err))
	}
	if existing != nil {
		return false, nil
	}

	result, err := r.rawEvents.Insert(ctx, &model.RawEvent{
		BlockHeight:     ev.BlockHeight,
		BlockHash:       ev.BlockHash,
		ParentBlockHash: ev.ParentBlockHash,
		GlobalSlot:      ev.GlobalSlot,
		ChainStatus:     ev.ChainStatus,
		EventType:       ev.Type,
		Payload:         ev.Raw,
		TransactionHash: ev.TransactionHash,
		TxStatus:        ev.TxStatus,
		TxMemo:          ev.TxMemo,
	})
	if err != nil {
		return false, fault.Wrap(fault.CategoryStore, fmt.Errorf("insert event %s/%s: %w", ev.TransactionHash, ev.ChainStatus, err))
	}
	// A lost race against a concurrent writer surfaces as a clean dedup.
	return result.Inserted, nil
}

// shouldReduce gates which ledger entries touch vault state: only vault
// events from included blocks whose transaction actually applied. Pending
// and failed entries stay ledger-only until a later status transition.
func shouldReduce(ev event.ChainEvent) bool {
	return ev.Payload != nil &&
		ev.ChainStatus == model.ChainStatusIncluded &&
		ev.TxStatus == model.TxStatusApplied
}
