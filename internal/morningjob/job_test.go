package morningjob

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haoqf/nightowl/internal/bridge"
	"github.com/haoqf/nightowl/internal/contracts"
	"github.com/haoqf/nightowl/internal/marketdata"
	"github.com/haoqf/nightowl/pkg/config"
	"github.com/haoqf/nightowl/pkg/logger"
)

type fakeStore struct {
	runs    map[string]*contracts.Run
	picks   map[string][]contracts.Pick
	batches []*contracts.OrderBatch
	seq     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:  make(map[string]*contracts.Run),
		picks: make(map[string][]contracts.Pick),
	}
}

// seedRun installs a completed run with the given picks and returns its ID
func (s *fakeStore) seedRun(tradeDate string, picks ...contracts.Pick) string {
	s.seq++
	runID := fmt.Sprintf("NIGHT_%s_%06d", tradeDate, s.seq)
	s.runs[runID] = &contracts.Run{
		RunID:     runID,
		TradeDate: tradeDate,
		Status:    contracts.RunStatusCompleted,
		CreatedAt: time.Now(),
	}
	for i := range picks {
		picks[i].RunID = runID
	}
	s.picks[runID] = picks
	return runID
}

func (s *fakeStore) CreateRun(_ context.Context, tradeDate, snapshot string) (string, error) {
	panic("not used")
}

func (s *fakeStore) AppendPicks(_ context.Context, runID string, picks []contracts.Pick) error {
	panic("not used")
}

func (s *fakeStore) CompleteRun(_ context.Context, runID string) error { panic("not used") }

func (s *fakeStore) FailRun(_ context.Context, runID, reason string) error { panic("not used") }

func (s *fakeStore) LatestCompletedRun(_ context.Context, tradeDate string) (string, error) {
	best := ""
	for id, run := range s.runs {
		if run.TradeDate == tradeDate && run.Status == contracts.RunStatusCompleted && id > best {
			best = id
		}
	}
	if best == "" {
		return "", contracts.ErrNoRunAvailable
	}
	return best, nil
}

func (s *fakeStore) ReadPicks(_ context.Context, runID string) ([]contracts.Pick, error) {
	return s.picks[runID], nil
}

func (s *fakeStore) GetRun(_ context.Context, runID string) (*contracts.Run, error) {
	return s.runs[runID], nil
}

func (s *fakeStore) LatestRun(_ context.Context) (*contracts.Run, error) {
	return nil, contracts.ErrNoRunAvailable
}

func (s *fakeStore) SaveOrderBatch(_ context.Context, batch *contracts.OrderBatch) error {
	s.batches = append(s.batches, batch)
	return nil
}

type fakeProvider struct {
	tradeDate string
	bars      []marketdata.Bar
}

func (p *fakeProvider) Bars(_ context.Context, tradeDate string) ([]marketdata.Bar, error) {
	if tradeDate != p.tradeDate {
		return nil, nil
	}
	return p.bars, nil
}

func (p *fakeProvider) LatestTradeDate(_ context.Context) (string, error) {
	return p.tradeDate, nil
}

func pick(code string, rank int, score float64) contracts.Pick {
	return contracts.Pick{
		InstrumentCode: code,
		RankRule:       "rule_v1",
		RankFinal:      rank,
		Score:          score,
		RegimeTag:      "NEUTRAL",
	}
}

func priceBar(code string, close float64) marketdata.Bar {
	return marketdata.Bar{InstrumentCode: code, TradeDate: "20260115", Close: close}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Bridge: config.BridgeConfig{
			Dir:              t.TempDir(),
			HeartbeatTimeout: 15 * time.Minute,
			RetryAttempts:    3,
			RetryBackoff:     time.Millisecond,
		},
		Universe: config.UniverseConfig{ExcludeMarkets: []string{"STAR"}},
		Scoring: config.ScoringConfig{
			TopN:            2,
			StrengthGateMin: 0.1,
			BaseQuantity:    100,
		},
		Sanity: config.SanityConfig{
			MaxOrderLines:       30,
			MaxNotionalPerOrder: 500000,
		},
	}
}

func newTestJob(t *testing.T, store contracts.RunStore, bars marketdata.Provider, cfg *config.Config) (*Job, *bridge.Bridge) {
	t.Helper()
	log := logger.NewNop()
	br, err := bridge.New(cfg.Bridge, log)
	require.NoError(t, err)
	return New(store, bars, br, cfg, log), br
}

func TestRunPublishesTopN(t *testing.T) {
	store := newFakeStore()
	runID := store.seedRun("20260115",
		pick("600000.SH", 1, 0.9),
		pick("000001.SZ", 2, 0.7),
		pick("000002.SZ", 3, 0.5),
	)
	provider := &fakeProvider{
		tradeDate: "20260115",
		bars: []marketdata.Bar{
			priceBar("600000.SH", 21.5),
			priceBar("000001.SZ", 10.5),
			priceBar("000002.SZ", 10.1),
		},
	}
	job, br := newTestJob(t, store, provider, testConfig(t))

	result, err := job.Run(context.Background(), "", false)
	require.NoError(t, err)

	assert.Equal(t, runID, result.RunID)
	assert.Equal(t, 2, result.Published, "capped at top N")
	assert.False(t, result.Skipped)
	assert.False(t, result.GateBlocked)

	// Outbox holds the published batch
	batch, err := br.ReadBatch()
	require.NoError(t, err)
	require.Len(t, batch.Instructions, 2)
	assert.Equal(t, "600000.SH", batch.Instructions[0].InstrumentCode)
	for i, ins := range batch.Instructions {
		assert.Equal(t, i+1, ins.SequenceNo)
		assert.Equal(t, contracts.OrderSideBuy, ins.Side)
		assert.Equal(t, "100", ins.Quantity.String())
		assert.NotEmpty(t, ins.ClientOrderID)
	}

	// And the batch was recorded for audit
	require.Len(t, store.batches, 1)
	assert.Equal(t, runID, store.batches[0].RunID)
}

func TestRunSkipsProcessedRun(t *testing.T) {
	store := newFakeStore()
	runID := store.seedRun("20260115", pick("000001.SZ", 1, 0.9))
	provider := &fakeProvider{tradeDate: "20260115", bars: []marketdata.Bar{priceBar("000001.SZ", 10.5)}}
	job, br := newTestJob(t, store, provider, testConfig(t))

	_, err := job.Run(context.Background(), "20260115", false)
	require.NoError(t, err)
	_, err = br.MarkProcessed(runID)
	require.NoError(t, err)

	// Rerun is a no-op
	result, err := job.Run(context.Background(), "20260115", false)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, result.Published)
	assert.False(t, br.HasPublishedBatch())
	assert.Len(t, store.batches, 1)

	// Unless forced
	result, err = job.Run(context.Background(), "20260115", true)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Published)
}

func TestRunUsesLatestCompletedRun(t *testing.T) {
	store := newFakeStore()
	store.seedRun("20260115", pick("000001.SZ", 1, 0.9))
	second := store.seedRun("20260115", pick("600000.SH", 1, 0.9))
	provider := &fakeProvider{tradeDate: "20260115", bars: []marketdata.Bar{
		priceBar("000001.SZ", 10.5),
		priceBar("600000.SH", 21.5),
	}}
	job, _ := newTestJob(t, store, provider, testConfig(t))

	result, err := job.Run(context.Background(), "20260115", false)
	require.NoError(t, err)
	assert.Equal(t, second, result.RunID)
	require.Len(t, store.batches, 1)
	assert.Equal(t, "600000.SH", store.batches[0].Instructions[0].InstrumentCode)
}

func TestRunWithoutCompletedRun(t *testing.T) {
	job, _ := newTestJob(t, newFakeStore(), &fakeProvider{tradeDate: "20260115"}, testConfig(t))

	_, err := job.Run(context.Background(), "20260115", false)
	assert.ErrorIs(t, err, contracts.ErrNoRunAvailable)
}

func TestRunRefusesWhenKillSwitchEngaged(t *testing.T) {
	store := newFakeStore()
	store.seedRun("20260115", pick("000001.SZ", 1, 0.9))
	job, br := newTestJob(t, store, &fakeProvider{tradeDate: "20260115"}, testConfig(t))
	require.NoError(t, br.Engage())

	_, err := job.Run(context.Background(), "20260115", false)
	assert.ErrorIs(t, err, contracts.ErrKillSwitchEngaged)
	assert.False(t, br.HasPublishedBatch())
}

func TestStrengthGateBlocksBatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scoring.StrengthGateMin = 0.5
	store := newFakeStore()
	store.seedRun("20260115", pick("000001.SZ", 1, 0.2))
	provider := &fakeProvider{tradeDate: "20260115", bars: []marketdata.Bar{priceBar("000001.SZ", 10.5)}}
	job, br := newTestJob(t, store, provider, cfg)

	result, err := job.Run(context.Background(), "20260115", false)
	require.NoError(t, err)
	assert.True(t, result.GateBlocked)
	assert.NotEmpty(t, result.GateNote)
	assert.Zero(t, result.Published)
	assert.False(t, br.HasPublishedBatch())
	assert.Empty(t, store.batches)
}

func TestFatFingerGateBlocksPublication(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sanity.MaxNotionalPerOrder = 1000
	store := newFakeStore()
	store.seedRun("20260115", pick("600519.SH", 1, 0.9))
	// 100 shares at 1500 is 150k notional, far past the 1k cap
	provider := &fakeProvider{tradeDate: "20260115", bars: []marketdata.Bar{priceBar("600519.SH", 1500.0)}}
	job, br := newTestJob(t, store, provider, cfg)

	_, err := job.Run(context.Background(), "20260115", false)
	var sanityErr *contracts.OrderSanityError
	require.ErrorAs(t, err, &sanityErr)
	assert.Equal(t, "ORDER_TOO_LARGE", sanityErr.Reason)

	assert.False(t, br.HasPublishedBatch(), "refused batch must not reach the outbox")
	assert.Empty(t, store.batches)
}

func TestFatFingerGateBlocksOversizedBatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scoring.TopN = 3
	cfg.Sanity.MaxOrderLines = 2
	store := newFakeStore()
	store.seedRun("20260115",
		pick("000001.SZ", 1, 0.9),
		pick("000002.SZ", 2, 0.8),
		pick("600000.SH", 3, 0.7),
	)
	provider := &fakeProvider{tradeDate: "20260115", bars: []marketdata.Bar{
		priceBar("000001.SZ", 10.5),
		priceBar("000002.SZ", 10.1),
		priceBar("600000.SH", 21.5),
	}}
	job, br := newTestJob(t, store, provider, cfg)

	_, err := job.Run(context.Background(), "20260115", false)
	var sanityErr *contracts.OrderSanityError
	require.ErrorAs(t, err, &sanityErr)
	assert.Equal(t, "TOO_MANY_LINES", sanityErr.Reason)
	assert.False(t, br.HasPublishedBatch())
}

func TestRunRefiltersPicks(t *testing.T) {
	store := newFakeStore()
	// 688 pick persisted before STAR was excluded
	store.seedRun("20260115",
		pick("688001.SH", 1, 0.9),
		pick("000001.SZ", 2, 0.7),
	)
	provider := &fakeProvider{tradeDate: "20260115", bars: []marketdata.Bar{
		priceBar("688001.SH", 50.0),
		priceBar("000001.SZ", 10.5),
	}}
	job, _ := newTestJob(t, store, provider, testConfig(t))

	result, err := job.Run(context.Background(), "20260115", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, "000001.SZ", store.batches[0].Instructions[0].InstrumentCode)
}

func TestRunDropsPicksWithoutPrice(t *testing.T) {
	store := newFakeStore()
	store.seedRun("20260115",
		pick("000001.SZ", 1, 0.9),
		pick("000002.SZ", 2, 0.7),
	)
	provider := &fakeProvider{tradeDate: "20260115", bars: []marketdata.Bar{priceBar("000001.SZ", 10.5)}}
	job, _ := newTestJob(t, store, provider, testConfig(t))

	result, err := job.Run(context.Background(), "20260115", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 1, result.Dropped)
}

func TestHalvedExposureStillPublishes(t *testing.T) {
	// Gate blocking is about new positions; when it allows, exposure
	// scales quantity. Verify the multiplier path with a passing gate.
	cfg := testConfig(t)
	cfg.Scoring.StrengthGateMin = 0.0
	cfg.Scoring.BaseQuantity = 300
	store := newFakeStore()
	store.seedRun("20260115", pick("000001.SZ", 1, 0.9))
	provider := &fakeProvider{tradeDate: "20260115", bars: []marketdata.Bar{priceBar("000001.SZ", 10.5)}}
	job, _ := newTestJob(t, store, provider, cfg)

	result, err := job.Run(context.Background(), "20260115", false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Published)
	assert.Equal(t, "300", store.batches[0].Instructions[0].Quantity.String())
}
