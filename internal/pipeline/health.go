package pipeline

import (
	"sync"
	"time"

	"github.com/zkUSD-Protocol/services/internal/domain/model"
)

// HealthStatus represents the health state of the oracle engine.
type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"

	// DefaultUnhealthyThreshold is the number of consecutive cycle failures
	// before the engine is considered unhealthy.
	DefaultUnhealthyThreshold = 5

	// DefaultDegradedLagBlocks is how far the proven watermark may trail the
	// chain head before the engine is considered degraded even though cycles
	// still succeed.
	DefaultDegradedLagBlocks = 10
)

// EngineHealth tracks the health state of the oracle engine: the chain head
// it has observed, the watermark it has proven up to, and the outcome of
// recent proof cycles. The orchestrator writes to it; the API server reads
// snapshots.
type EngineHealth struct {
	mu                  sync.RWMutex
	network             model.Network
	status              HealthStatus
	consecutiveFailures int
	unhealthyThreshold  int
	degradedLagBlocks   uint32
	headHeight          uint32
	watermarkHeight     uint32
	workerAlive         bool
	lastCycleAt         *time.Time
	lastFailureAt       *time.Time
	lastError           string
}

// NewEngineHealth creates a health tracker for the given network.
func NewEngineHealth(network model.Network) *EngineHealth {
	return &EngineHealth{
		network:            network,
		status:             HealthStatusUnknown,
		unhealthyThreshold: DefaultUnhealthyThreshold,
		degradedLagBlocks:  DefaultDegradedLagBlocks,
	}
}

// SetWorkerAlive records whether the worker goroutine is running. A dead
// worker makes the engine unhealthy immediately regardless of failure count.
func (h *EngineHealth) SetWorkerAlive(alive bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.workerAlive = alive
	if !alive {
		h.status = HealthStatusUnhealthy
	}
}

// SetHead records the latest chain head height observed by the scheduler.
func (h *EngineHealth) SetHead(height uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if height > h.headHeight {
		h.headHeight = height
	}
}

// SetWatermark seeds the proven watermark, typically from the worker's
// startup handshake.
func (h *EngineHealth) SetWatermark(height uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if height > h.watermarkHeight {
		h.watermarkHeight = height
	}
}

// CycleSucceeded records a completed proof cycle at the given height and
// returns true if it represents a recovery from an unhealthy state.
func (h *EngineHealth) CycleSucceeded(height uint32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	wasUnhealthy := h.status == HealthStatusUnhealthy
	h.consecutiveFailures = 0
	h.lastCycleAt = &now
	h.lastError = ""
	if height > h.watermarkHeight {
		h.watermarkHeight = height
	}
	if h.isLagging() {
		h.status = HealthStatusDegraded
	} else {
		h.status = HealthStatusHealthy
	}
	return wasUnhealthy
}

// CycleFailed records a failed proof cycle. Returns true if the engine
// transitioned to unhealthy on this call.
func (h *EngineHealth) CycleFailed(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	h.consecutiveFailures++
	h.lastFailureAt = &now
	if err != nil {
		h.lastError = err.Error()
	}
	if h.consecutiveFailures >= h.unhealthyThreshold && h.status != HealthStatusUnhealthy {
		h.status = HealthStatusUnhealthy
		return true
	}
	return false
}

// isLagging reports whether the proven watermark trails the observed head by
// more than the degraded threshold. Must be called with mu held.
func (h *EngineHealth) isLagging() bool {
	if h.headHeight <= h.watermarkHeight {
		return false
	}
	return h.headHeight-h.watermarkHeight > h.degradedLagBlocks
}

// Snapshot returns the current health state.
func (h *EngineHealth) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var lag uint32
	if h.headHeight > h.watermarkHeight {
		lag = h.headHeight - h.watermarkHeight
	}
	return HealthSnapshot{
		Network:             string(h.network),
		Status:              string(h.status),
		HeadHeight:          h.headHeight,
		WatermarkHeight:     h.watermarkHeight,
		LagBlocks:           lag,
		WorkerAlive:         h.workerAlive,
		ConsecutiveFailures: h.consecutiveFailures,
		LastCycleAt:         h.lastCycleAt,
		LastFailureAt:       h.lastFailureAt,
		LastError:           h.lastError,
	}
}

// HealthSnapshot is a point-in-time view of engine health (JSON-safe).
type HealthSnapshot struct {
	Network             string     `json:"network"`
	Status              string     `json:"status"`
	HeadHeight          uint32     `json:"head_height"`
	WatermarkHeight     uint32     `json:"watermark_height"`
	LagBlocks           uint32     `json:"lag_blocks"`
	WorkerAlive         bool       `json:"worker_alive"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastCycleAt         *time.Time `json:"last_cycle_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}
