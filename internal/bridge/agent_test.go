package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haoqf/nightowl/pkg/logger"
)

func TestLoopbackAgentTick(t *testing.T) {
	b := newTestBridge(t)
	agent := NewLoopbackAgent(b, time.Second, logger.NewNop())
	runID := "MORN_20260828_084500_ab12cd34"

	_, err := b.PublishBatch(testBatch(runID))
	require.NoError(t, err)

	agent.tick()

	// Heartbeat written, batch consumed
	assert.True(t, b.ReadHeartbeat().Present)
	assert.False(t, b.HasPublishedBatch())

	marker, err := b.ProcessedMarker(runID)
	require.NoError(t, err)
	assert.NotEmpty(t, marker)
}

func TestLoopbackAgentHonorsKillSwitch(t *testing.T) {
	b := newTestBridge(t)
	agent := NewLoopbackAgent(b, time.Second, logger.NewNop())
	runID := "MORN_20260828_084500_ab12cd34"

	_, err := b.PublishBatch(testBatch(runID))
	require.NoError(t, err)
	require.NoError(t, b.Engage())

	agent.tick()

	// Heartbeat still beats, but the batch stays untouched
	assert.True(t, b.ReadHeartbeat().Present)
	assert.True(t, b.HasPublishedBatch())

	marker, err := b.ProcessedMarker(runID)
	require.NoError(t, err)
	assert.Empty(t, marker)
}

func TestLoopbackAgentSkipsReprocessedRun(t *testing.T) {
	b := newTestBridge(t)
	agent := NewLoopbackAgent(b, time.Second, logger.NewNop())
	runID := "MORN_20260828_084500_ab12cd34"

	_, err := b.PublishBatch(testBatch(runID))
	require.NoError(t, err)
	agent.tick()

	// A stray republication of the same run must not be consumed again
	_, err = b.PublishBatch(testBatch(runID))
	require.NoError(t, err)
	agent.tick()

	assert.True(t, b.HasPublishedBatch(), "already-processed run must be left untouched")
}
