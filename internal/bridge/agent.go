package bridge

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/haoqf/nightowl/internal/contracts"
	"github.com/haoqf/nightowl/pkg/logger"
)

// LoopbackAgent is a deliberately dumb execution agent for local and
// end-to-end testing: heartbeat, honor STOP, read the outbox, log each
// instruction, rename to the processed marker. Real broker placement
// lives outside this repository behind the same file contract.
type LoopbackAgent struct {
	bridge   *Bridge
	interval time.Duration
	logger   *logger.Logger
}

// NewLoopbackAgent creates the agent with the given poll interval
func NewLoopbackAgent(b *Bridge, interval time.Duration, log *logger.Logger) *LoopbackAgent {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &LoopbackAgent{
		bridge:   b,
		interval: interval,
		logger:   log.WithComponent("loopback_agent"),
	}
}

// Run polls until the context is cancelled
func (a *LoopbackAgent) Run(ctx context.Context) error {
	// First heartbeat immediately so monitors turn green
	if err := a.bridge.WriteHeartbeat("alive"); err != nil {
		a.logger.WithError(err).Warn("Heartbeat write failed")
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.tick()
		}
	}
}

// tick is one poll cycle; errors are logged, never fatal to the loop
func (a *LoopbackAgent) tick() {
	if err := a.bridge.WriteHeartbeat("alive"); err != nil {
		a.logger.WithError(err).Warn("Heartbeat write failed")
	}

	if a.bridge.Engaged() {
		a.logger.Debug("STOP detected, skipping")
		return
	}

	batch, err := a.bridge.ReadBatch()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			a.logger.WithError(err).Warn("Outbox read failed")
		}
		return
	}
	if len(batch.Instructions) == 0 {
		return
	}

	// Refuse a batch whose run was already consumed; the marker is
	// authoritative even if a stray orders.csv reappears
	marker, err := a.bridge.ProcessedMarker(batch.RunID)
	if err != nil {
		a.logger.WithError(err).Warn("Marker scan failed")
		return
	}
	if marker != "" {
		a.logger.WithField("run_id", batch.RunID).Warn("Batch already processed, ignoring outbox file")
		return
	}

	a.execute(batch)

	if _, err := a.bridge.MarkProcessed(batch.RunID); err != nil {
		a.logger.WithError(err).Error("Failed to mark batch processed")
	}
}

func (a *LoopbackAgent) execute(batch *contracts.OrderBatch) {
	for _, ins := range batch.Instructions {
		a.logger.WithFields(map[string]interface{}{
			"run_id":     ins.RunID,
			"seq":        ins.SequenceNo,
			"instrument": ins.InstrumentCode,
			"side":       ins.Side,
			"quantity":   ins.Quantity.String(),
			"ref_price":  ins.ReferencePrice.String(),
		}).Info("Loopback execution")
	}
}
