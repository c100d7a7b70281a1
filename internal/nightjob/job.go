package nightjob

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/haoqf/nightowl/internal/bridge"
	"github.com/haoqf/nightowl/internal/contracts"
	"github.com/haoqf/nightowl/internal/marketdata"
	"github.com/haoqf/nightowl/internal/scoring"
	"github.com/haoqf/nightowl/internal/universe"
	"github.com/haoqf/nightowl/pkg/config"
	"github.com/haoqf/nightowl/pkg/logger"
)

// Job is the selection pipeline: score, filter, rank, persist, export.
// One invocation per trading day; re-running creates a new run rather
// than mutating a prior one.
type Job struct {
	store    contracts.RunStore
	bars     marketdata.Provider
	bridge   *bridge.Bridge
	composer *scoring.Composer
	regime   *scoring.RegimeModifier
	uniCfg   universe.Config
	topM     int
	auditDir string
	snapshot string
	logger   *logger.Logger
}

// Result summarizes a completed night run
type Result struct {
	RunID     string `json:"run_id"`
	TradeDate string `json:"trade_date"`
	Scored    int    `json:"scored"`
	Dropped   int    `json:"dropped"`  // data-quality drops
	Filtered  int    `json:"filtered"` // universe rejections
	Picked    int    `json:"picked"`
	AuditPath string `json:"audit_path"`
}

// New wires the pipeline from config. The regime and damper signals
// are attached per their toggles; the pipeline itself only knows the
// Signal/Modifier contracts.
func New(store contracts.RunStore, bars marketdata.Provider, br *bridge.Bridge, cfg *config.Config, log *logger.Logger) *Job {
	weights := scoring.Weights{
		Trend: cfg.Scoring.TrendWeight,
		Flow:  cfg.Scoring.FlowWeight,
		Fund:  cfg.Scoring.FundWeight,
	}

	var regime *scoring.RegimeModifier
	var mods []scoring.Modifier
	if cfg.Scoring.EnableRegime {
		regime = scoring.NewRegimeModifier()
		mods = append(mods, regime)
	}
	if cfg.Scoring.EnableVolDamper {
		mods = append(mods, scoring.NewVolDamper())
	}

	uniCfg := universe.Config{
		ExcludePrefixes: cfg.Universe.ExcludePrefixes,
		ExcludeMarkets:  cfg.Universe.ExcludeMarkets,
	}

	return &Job{
		store:    store,
		bars:     bars,
		bridge:   br,
		composer: scoring.NewComposer(scoring.NewRuleSignal(weights), mods...),
		regime:   regime,
		uniCfg:   uniCfg,
		topM:     cfg.Scoring.TopM,
		auditDir: cfg.Audit.Dir,
		snapshot: cfg.SnapshotHash(),
		logger:   log.WithComponent("night_job"),
	}
}

// Run executes the pipeline for the trade date (YYYYMMDD; empty means
// the provider's latest). Data-quality problems drop the instrument
// and continue; anything else fails the run and is returned.
func (j *Job) Run(ctx context.Context, tradeDate string) (*Result, error) {
	// Stage: preflight. The kill switch is polled at the start of
	// every stage, cancellation is cooperative.
	if j.bridge.Engaged() {
		return nil, contracts.ErrKillSwitchEngaged
	}

	if err := j.checkConfig(); err != nil {
		return nil, err
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

	runID, err := j.store.CreateRun(ctx, tradeDate, j.snapshot)
	if err != nil {
		return nil, err
	}

	log := j.logger.WithField("run_id", runID).WithField("trade_date", tradeDate)
	result, err := j.execute(ctx, log, runID, tradeDate)
	if err != nil {
		// A failed run must never be left dangling as running
		if failErr := j.store.FailRun(ctx, runID, err.Error()); failErr != nil {
			log.WithError(failErr).Error("Could not record run failure")
		}
		log.WithError(err).Error("Night job failed")
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"picked":   result.Picked,
		"dropped":  result.Dropped,
		"filtered": result.Filtered,
	}).Info("Night job completed")

	return result, nil
}

func (j *Job) execute(ctx context.Context, log *logger.Logger, runID, tradeDate string) (*Result, error) {
	result := &Result{RunID: runID, TradeDate: tradeDate}

	// Stage: load bars
	if j.bridge.Engaged() {
		return nil, contracts.ErrKillSwitchEngaged
	}
	bars, err := j.bars.Bars(ctx, tradeDate)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for trade_date=%s", tradeDate)
	}

	// Stage: score
	if j.bridge.Engaged() {
		return nil, contracts.ErrKillSwitchEngaged
	}
	mkt := scoring.BuildMarketState(tradeDate, bars)
	regimeTag := ""
	if j.regime != nil {
		regimeTag = j.regime.Tag(mkt)
		log.WithField("regime", regimeTag).Info("Regime detected")
	}

	type scored struct {
		code  string
		score float64
	}
	scoredBars := make([]scored, 0, len(bars))
	for _, bar := range bars {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		s, err := j.composer.Score(bar, mkt)
		if err != nil {
			var dq *contracts.DataQualityError
			if errors.As(err, &dq) {
				// Local to one instrument: drop and continue
				result.Dropped++
				log.WithFields(map[string]interface{}{
					"instrument": dq.InstrumentCode,
					"reason":     dq.Reason,
				}).Warn("Instrument dropped")
				continue
			}
			return nil, err
		}
		scoredBars = append(scoredBars, scored{code: bar.InstrumentCode, score: s})
	}
	result.Scored = len(scoredBars)

	// Stage: universe filter, before any ranking
	if j.bridge.Engaged() {
		return nil, contracts.ErrKillSwitchEngaged
	}
	admitted := scoredBars[:0]
	for _, sb := range scoredBars {
		if universe.Admit(sb.code, j.uniCfg) {
			admitted = append(admitted, sb)
		} else {
			result.Filtered++
		}
	}

	// Stage: rank. Descending score, code breaks ties so reruns on the
	// same data rank identically; rank_final is contiguous from 1.
	sort.SliceStable(admitted, func(a, b int) bool {
		if admitted[a].score != admitted[b].score {
			return admitted[a].score > admitted[b].score
		}
		return admitted[a].code < admitted[b].code
	})
	if len(admitted) > j.topM {
		admitted = admitted[:j.topM]
	}

	picks := make([]contracts.Pick, 0, len(admitted))
	for i, sb := range admitted {
		picks = append(picks, contracts.Pick{
			RunID:          runID,
			InstrumentCode: sb.code,
			RankRule:       j.composer.Name(),
			RankFinal:      i + 1,
			Score:          sb.score,
			RegimeTag:      regimeTag,
		})
	}
	result.Picked = len(picks)

	// Stage: persist and commit
	if j.bridge.Engaged() {
		return nil, contracts.ErrKillSwitchEngaged
	}
	if err := j.store.AppendPicks(ctx, runID, picks); err != nil {
		return nil, err
	}
	if err := j.store.CompleteRun(ctx, runID); err != nil {
		return nil, err
	}

	// Stage: audit export, outside the run transaction; the run is
	// already committed, an export failure is surfaced on its own
	auditPath, err := exportPicksCSV(j.auditDir, tradeDate, runID, picks)
	if err != nil {
		return nil, fmt.Errorf("audit export (run %s committed): %w", runID, err)
	}
	result.AuditPath = auditPath

	return result, nil
}

// checkConfig rejects unusable filter configuration before a run is
// created, per the ConfigError contract.
func (j *Job) checkConfig() error {
	for _, m := range j.uniCfg.ExcludeMarkets {
		if !universe.KnownMarket(m) {
			return &contracts.ConfigError{
				Field:  "universe.exclude_markets",
				Reason: fmt.Sprintf("unknown market segment %q", m),
			}
		}
	}
	if j.topM <= 0 {
		return &contracts.ConfigError{Field: "scoring.top_m", Reason: "must be positive"}
	}
	return nil
}
