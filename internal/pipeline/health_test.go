package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zkUSD-Protocol/services/internal/domain/model"
)

func TestEngineHealth_CycleSucceeded(t *testing.T) {
	h := NewEngineHealth(model.NetworkDevnet)
	recovered := h.CycleSucceeded(100)

	assert.False(t, recovered)
	snap := h.Snapshot()
	assert.Equal(t, string(HealthStatusHealthy), snap.Status)
	assert.Equal(t, uint32(100), snap.WatermarkHeight)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.NotNil(t, snap.LastCycleAt)
}

func TestEngineHealth_CycleFailed_Threshold(t *testing.T) {
	h := NewEngineHealth(model.NetworkDevnet)
	for i := 0; i < DefaultUnhealthyThreshold-1; i++ {
		transitioned := h.CycleFailed(errors.New("compute failed"))
		assert.False(t, transitioned, "failure %d is below the unhealthy cutoff", i+1)
	}

	transitioned := h.CycleFailed(errors.New("compute failed"))
	assert.True(t, transitioned, "the final failure must flip the status")

	snap := h.Snapshot()
	assert.Equal(t, string(HealthStatusUnhealthy), snap.Status)
	assert.Equal(t, "compute failed", snap.LastError)
	assert.NotNil(t, snap.LastFailureAt)
}

func TestEngineHealth_RecoveryFromUnhealthy(t *testing.T) {
	h := NewEngineHealth(model.NetworkDevnet)
	for i := 0; i < DefaultUnhealthyThreshold; i++ {
		h.CycleFailed(errors.New("sidecar down"))
	}
	assert.Equal(t, string(HealthStatusUnhealthy), h.Snapshot().Status)

	recovered := h.CycleSucceeded(105)
	assert.True(t, recovered)

	snap := h.Snapshot()
	assert.Equal(t, string(HealthStatusHealthy), snap.Status)
	assert.Empty(t, snap.LastError, "success clears the last error")
}

func TestEngineHealth_LagMarksDegraded(t *testing.T) {
	h := NewEngineHealth(model.NetworkMainnet)
	h.SetHead(200)

	recovered := h.CycleSucceeded(100)
	assert.False(t, recovered)

	snap := h.Snapshot()
	assert.Equal(t, string(HealthStatusDegraded), snap.Status)
	assert.Equal(t, uint32(100), snap.LagBlocks)
}

func TestEngineHealth_CatchingUpRecoversFromDegraded(t *testing.T) {
	h := NewEngineHealth(model.NetworkMainnet)
	h.SetHead(200)
	h.CycleSucceeded(100)
	assert.Equal(t, string(HealthStatusDegraded), h.Snapshot().Status)

	h.CycleSucceeded(200)

	snap := h.Snapshot()
	assert.Equal(t, string(HealthStatusHealthy), snap.Status)
	assert.Equal(t, uint32(0), snap.LagBlocks)
}

func TestEngineHealth_DeadWorkerIsUnhealthy(t *testing.T) {
	h := NewEngineHealth(model.NetworkDevnet)
	h.CycleSucceeded(100)
	assert.Equal(t, string(HealthStatusHealthy), h.Snapshot().Status)

	h.SetWorkerAlive(false)

	snap := h.Snapshot()
	assert.Equal(t, string(HealthStatusUnhealthy), snap.Status)
	assert.False(t, snap.WorkerAlive)
}

func TestEngineHealth_HeadNeverMovesBackwards(t *testing.T) {
	h := NewEngineHealth(model.NetworkDevnet)
	h.SetHead(150)
	h.SetHead(120)

	assert.Equal(t, uint32(150), h.Snapshot().HeadHeight)
}

func TestEngineHealth_Snapshot_Fields(t *testing.T) {
	h := NewEngineHealth(model.NetworkDevnet)
	snap := h.Snapshot()

	assert.Equal(t, "devnet", snap.Network)
	assert.Equal(t, string(HealthStatusUnknown), snap.Status)
	assert.Nil(t, snap.LastCycleAt)
	assert.Nil(t, snap.LastFailureAt)
	assert.False(t, snap.WorkerAlive)
}
