package morningjob

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/haoqf/nightowl/internal/bridge"
	"github.com/haoqf/nightowl/internal/contracts"
	"github.com/haoqf/nightowl/internal/marketdata"
	"github.com/haoqf/nightowl/internal/scoring"
	"github.com/haoqf/nightowl/internal/universe"
	"github.com/haoqf/nightowl/pkg/config"
	"github.com/haoqf/nightowl/pkg/logger"
)

// Job derives order instructions from the latest completed night run
// and publishes them to the file bridge. It never mutates the run it
// reads from.
type Job struct {
	store        contracts.RunStore
	bars         marketdata.Provider
	bridge       *bridge.Bridge
	gate         *scoring.StrengthGate
	sanity       bridge.SanityLimits
	uniCfg       universe.Config
	topN         int
	baseQuantity int64
	logger       *logger.Logger
}

// Result summarizes one morning invocation
type Result struct {
	RunID       string `json:"run_id"`
	TradeDate   string `json:"trade_date"`
	Skipped     bool   `json:"skipped"`      // processed marker already present
	GateBlocked bool   `json:"gate_blocked"` // strength gate refused new positions
	GateNote    string `json:"gate_note,omitempty"`
	Published   int    `json:"published"` // instructions written to the outbox
	Dropped     int    `json:"dropped"`   // picks dropped for missing price or filter
	OutboxPath  string `json:"outbox_path,omitempty"`
}

// New wires the job from config
func New(store contracts.RunStore, bars marketdata.Provider, br *bridge.Bridge, cfg *config.Config, log *logger.Logger) *Job {
	uniCfg := universe.Config{
		ExcludePrefixes: cfg.Universe.ExcludePrefixes,
		ExcludeMarkets:  cfg.Universe.ExcludeMarkets,
	}
	sanity := bridge.SanityLimits{
		MaxOrderLines:       cfg.Sanity.MaxOrderLines,
		MaxNotionalPerOrder: decimal.NewFromFloat(cfg.Sanity.MaxNotionalPerOrder),
	}

	return &Job{
		store:        store,
		bars:         bars,
		bridge:       br,
		gate:         scoring.NewStrengthGate(cfg.Scoring.StrengthGateMin),
		sanity:       sanity,
		uniCfg:       uniCfg,
		topN:         cfg.Scoring.TopN,
		baseQuantity: cfg.Scoring.BaseQuantity,
		logger:       log.WithComponent("morning_job"),
	}
}

// Run derives and publishes orders for the trade date (YYYYMMDD; empty
// means the provider's latest). force republishes even when a processed
// marker for the run already exists.
func (j *Job) Run(ctx context.Context, tradeDate string, force bool) (*Result, error) {
	if j.bridge.Engaged() {
		return nil, contracts.ErrKillSwitchEngaged
	}

	if tradeDate == "" {
		latest, err := j.bars.LatestTradeDate(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve trade date: %w", err)
		}
		tradeDate = latest
	}
	tradeDate = marketdata.NormalizeTradeDate(tradeDate)
	if tradeDate == "" {
		return nil, &contracts.ConfigError{Field: "trade_date", Reason: "not a valid YYYYMMDD date"}
	}

	runID, err := j.store.LatestCompletedRun(ctx, tradeDate)
	if err != nil {
		return nil, err
	}

	log := j.logger.WithField("run_id", runID).WithField("trade_date", tradeDate)
	result := &Result{RunID: runID, TradeDate: tradeDate}

	// Replay guard: a processed marker means the agent already consumed
	// orders for this run, so a rerun is a no-op
	marker, err := j.bridge.ProcessedMarker(runID)
	if err != nil {
		return nil, err
	}
	if marker != "" && !force {
		log.WithField("marker", marker).Info("Run already processed, skipping")
		result.Skipped = true
		return result, nil
	}

	picks, err := j.store.ReadPicks(ctx, runID)
	if err != nil {
		return nil, err
	}

	// Re-filter on read: the exclusion config may have tightened since
	// the night run persisted these picks
	filtered := make([]contracts.Pick, 0, len(picks))
	for _, p := range picks {
		if universe.Admit(p.InstrumentCode, j.uniCfg) {
			filtered = append(filtered, p)
		} else {
			result.Dropped++
			log.WithField("instrument", p.InstrumentCode).Warn("Pick no longer admitted by universe filter")
		}
	}
	if len(filtered) > j.topN {
		filtered = filtered[:j.topN]
	}

	gate := j.gate.Evaluate(filtered)
	result.GateNote = gate.Note
	if !gate.AllowNew {
		log.WithField("note", gate.Note).Warn("Strength gate blocked new positions, no batch published")
		result.GateBlocked = true
		return result, nil
	}

	if hb := j.bridge.ReadHeartbeat(); hb.Offline {
		// Publish anyway: the outbox is durable and the agent picks it
		// up on reconnect. Offline is an observability signal here.
		log.Warn("Execution agent heartbeat stale or absent")
	}

	prices, err := j.referencePrices(ctx, tradeDate)
	if err != nil {
		return nil, err
	}

	batch := &contracts.OrderBatch{
		RunID:     runID,
		TradeDate: tradeDate,
		CreatedAt: time.Now().UTC(),
	}
	exposure := decimal.NewFromFloat(gate.ExposureMultiplier)
	quantity := decimal.NewFromInt(j.baseQuantity).Mul(exposure).Round(0)
	seq := 0
	for _, p := range filtered {
		price, ok := prices[p.InstrumentCode]
		if !ok || price.IsZero() {
			result.Dropped++
			log.WithField("instrument", p.InstrumentCode).Warn("No reference price, pick dropped")
			continue
		}
		seq++
		batch.Instructions = append(batch.Instructions, contracts.OrderInstruction{
			RunID:          runID,
			InstrumentCode: p.InstrumentCode,
			Side:           contracts.OrderSideBuy,
			Quantity:       quantity,
			ReferencePrice: price,
			SequenceNo:     seq,
			ClientOrderID:  uuid.NewString(),
		})
	}

	if len(batch.Instructions) == 0 {
		log.Warn("No publishable instructions, no batch written")
		return result, nil
	}

	// Fat-finger gate: an oversized batch never reaches the outbox
	if err := bridge.CheckBatchSanity(batch, j.sanity); err != nil {
		log.WithError(err).Error("Order batch failed sanity check")
		return nil, err
	}

	outboxPath, err := j.bridge.PublishBatch(batch)
	if err != nil {
		return nil, err
	}
	if err := j.store.SaveOrderBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("batch published but not recorded: %w", err)
	}

	result.Published = len(batch.Instructions)
	result.OutboxPath = outboxPath
	log.WithField("published", result.Published).Info("Order batch published")

	return result, nil
}

// referencePrices maps instrument code to the day's close
func (j *Job) referencePrices(ctx context.Context, tradeDate string) (map[string]decimal.Decimal, error) {
	bars, err := j.bars.Bars(ctx, tradeDate)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	prices := make(map[string]decimal.Decimal, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			prices[b.InstrumentCode] = decimal.NewFromFloat(b.Close)
		}
	}
	return prices, nil
}
