package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/zkUSD-Protocol/services/internal/alert"
	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/metrics"
	"github.com/zkUSD-Protocol/services/internal/pipeline"
	"github.com/zkUSD-Protocol/services/internal/pipeline/worker"
)

const (
	// DefaultCycleTimeout is how long a dispatched cycle may run before the
	// worker is presumed wedged and the process terminates itself.
	DefaultCycleTimeout = time.Minute

	// DefaultGraceDelay is how long the fatal path waits after killing the
	// worker, so alert webhooks can flush before the process exits.
	DefaultGraceDelay = 5 * time.Second

	exitReasonCycleTimeout = "cycle_timeout"
	exitReasonWorkerExit   = "worker_exit"
)

type headProvider interface {
	GetHeadHeight(ctx context.Context) (uint32, error)
}

type workerHandle interface {
	WaitReady(ctx context.Context) (uint32, error)
	ProcessBlock(height uint32) <-chan worker.Result
	Done() <-chan struct{}
}

// Orchestrator polls the chain head and dispatches one proof cycle at a time
// to the worker. It owns the in-memory watermark: the highest height a cycle
// has fully completed for. A wedged or dead worker is unrecoverable in-process
// (the proof circuit state is gone), so those paths alert, kill the worker,
// and terminate the process for a supervisor restart.
type Orchestrator struct {
	head    headProvider
	worker  workerHandle
	kill    func()
	alerter alert.Alerter
	health  *pipeline.EngineHealth

	network      model.Network
	pollInterval time.Duration
	cycleTimeout time.Duration
	graceDelay   time.Duration
	exitFn       func(code int)
	logger       *slog.Logger

	// watermark is confined to the scheduler goroutine; busy is the
	// cross-goroutine single-flight guard.
	watermark uint32
	busy      atomic.Bool
}

// Option configures optional orchestrator behavior.
type Option func(*Orchestrator)

// WithCycleTimeout overrides the per-cycle deadline.
func WithCycleTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.cycleTimeout = d }
}

// WithGraceDelay overrides the pause between killing the worker and exiting.
func WithGraceDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.graceDelay = d }
}

// WithExitFunc overrides process termination, for tests.
func WithExitFunc(fn func(code int)) Option {
	return func(o *Orchestrator) { o.exitFn = fn }
}

// New creates an orchestrator. kill cancels the worker's root context; it is
// invoked on the fatal path so a wedged cycle cannot outlive the scheduler.
func New(
	head headProvider,
	workerHnd workerHandle,
	kill func(),
	alerter alert.Alerter,
	health *pipeline.EngineHealth,
	network model.Network,
	pollInterval time.Duration,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		head:         head,
		worker:       workerHnd,
		kill:         kill,
		alerter:      alerter,
		health:       health,
		network:      network,
		pollInterval: pollInterval,
		cycleTimeout: DefaultCycleTimeout,
		graceDelay:   DefaultGraceDelay,
		exitFn:       os.Exit,
		logger:       logger.With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run blocks on the worker's startup handshake, then polls the chain head
// until ctx is canceled. A single timer is re-armed only after the previous
// check fully completes, so there is never more than one pending tick.
func (o *Orchestrator) Run(ctx context.Context) error {
	watermark, err := o.worker.WaitReady(ctx)
	if err != nil {
		o.sendAlert(ctx, alert.Alert{
			Type:    alert.AlertTypeStartupFailure,
			Network: o.network.String(),
			Title:   "Oracle engine failed to start",
			Message: err.Error(),
		})
		return fmt.Errorf("worker startup: %w", err)
	}
	o.watermark = watermark
	o.health.SetWatermark(watermark)
	o.health.SetWorkerAlive(true)
	metrics.SchedulerWatermarkHeight.WithLabelValues(o.network.String()).Set(float64(watermark))

	o.logger.Info("orchestrator started",
		"network", o.network,
		"watermark", watermark,
		"poll_interval", o.pollInterval,
		"cycle_timeout", o.cycleTimeout,
	)

	// Check immediately on start, then on the poll interval.
	o.checkNewBlock(ctx)

	timer := time.NewTimer(o.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopping")
			return ctx.Err()
		case <-timer.C:
			o.checkNewBlock(ctx)
			timer.Reset(o.pollInterval)
		}
	}
}

// checkNewBlock reads the chain head and dispatches a cycle when it is above
// the watermark. Single-flight: a tick arriving while a cycle is in flight is
// counted and dropped.
func (o *Orchestrator) checkNewBlock(ctx context.Context) {
	if !o.busy.CompareAndSwap(false, true) {
		metrics.SchedulerChecksSkippedBusy.WithLabelValues(o.network.String()).Inc()
		return
	}
	defer o.busy.Store(false)

	metrics.SchedulerChecksTotal.WithLabelValues(o.network.String()).Inc()

	head, err := o.head.GetHeadHeight(ctx)
	if err != nil {
		o.logger.Warn("head height query failed", "error", err)
		return
	}
	metrics.SchedulerHeadHeight.WithLabelValues(o.network.String()).Set(float64(head))
	o.health.SetHead(head)

	if head <= o.watermark {
		o.logger.Debug("no new block", "head", head, "watermark", o.watermark)
		return
	}

	o.handleNewBlock(ctx, head)
}

// handleNewBlock runs one cycle to height and waits for exactly one of:
// the worker's reply, the cycle deadline, the worker dying, or shutdown.
// Worker-reported errors keep the loop alive; the same range is retried on
// the next tick because the watermark only advances on success.
func (o *Orchestrator) handleNewBlock(ctx context.Context, height uint32) {
	o.logger.Info("new block detected", "height", height, "watermark", o.watermark)

	replyCh := o.worker.ProcessBlock(height)
	timer := time.NewTimer(o.cycleTimeout)
	defer timer.Stop()

	select {
	case res := <-replyCh:
		if res.Err != nil {
			// A dead worker refuses requests with an error reply; that is
			// a worker exit, not a cycle failure.
			select {
			case <-o.worker.Done():
				o.fatal(ctx, exitReasonWorkerExit, height, res.Err)
			default:
				o.cycleFailed(ctx, height, res.Err)
			}
			return
		}
		o.cycleSucceeded(ctx, res)
	case <-timer.C:
		o.fatal(ctx, exitReasonCycleTimeout, height,
			fmt.Errorf("cycle exceeded %s at height %d", o.cycleTimeout, height))
	case <-o.worker.Done():
		o.fatal(ctx, exitReasonWorkerExit, height,
			fmt.Errorf("worker exited mid-cycle at height %d", height))
	case <-ctx.Done():
	}
}

func (o *Orchestrator) cycleSucceeded(ctx context.Context, res worker.Result) {
	o.watermark = res.TargetHeight
	metrics.SchedulerWatermarkHeight.WithLabelValues(o.network.String()).Set(float64(o.watermark))

	if recovered := o.health.CycleSucceeded(res.TargetHeight); recovered {
		o.sendAlert(ctx, alert.Alert{
			Type:    alert.AlertTypeRecovery,
			Network: o.network.String(),
			Title:   "Oracle engine recovered",
			Message: fmt.Sprintf("Proof cycle completed at height %d after repeated failures", res.TargetHeight),
		})
	}

	o.logger.Info("cycle complete",
		"height", res.TargetHeight,
		"updated_events", len(res.UpdatedEvents),
	)
}

func (o *Orchestrator) cycleFailed(ctx context.Context, height uint32, err error) {
	o.logger.Error("cycle failed", "height", height, "error", err)

	if unhealthy := o.health.CycleFailed(err); unhealthy {
		o.sendAlert(ctx, alert.Alert{
			Type:    alert.AlertTypeCycleError,
			Network: o.network.String(),
			Title:   "Proof cycles failing repeatedly",
			Message: err.Error(),
			Fields:  map[string]string{"height": strconv.FormatUint(uint64(height), 10)},
		})
	}
}

// fatal is the unrecoverable path: alert, kill the worker, give webhooks a
// moment to flush, then exit nonzero so the supervisor restarts the process.
func (o *Orchestrator) fatal(ctx context.Context, reason string, height uint32, err error) {
	o.logger.Error("fatal worker failure", "reason", reason, "height", height, "error", err)
	metrics.WorkerFatalExitsTotal.WithLabelValues(o.network.String(), reason).Inc()
	o.health.SetWorkerAlive(false)

	alertType := alert.AlertTypeCycleTimeout
	title := "Proof cycle timed out"
	if reason == exitReasonWorkerExit {
		alertType = alert.AlertTypeWorkerExit
		title = "Worker exited unexpectedly"
	}
	o.sendAlert(ctx, alert.Alert{
		Type:    alertType,
		Network: o.network.String(),
		Title:   title,
		Message: err.Error(),
		Fields:  map[string]string{"height": strconv.FormatUint(uint64(height), 10)},
	})

	o.kill()
	time.Sleep(o.graceDelay)
	o.exitFn(1)
}

func (o *Orchestrator) sendAlert(ctx context.Context, a alert.Alert) {
	if err := o.alerter.Send(ctx, a); err != nil {
		o.logger.Error("alert delivery failed", "alert_type", string(a.Type), "error", err)
	}
}
