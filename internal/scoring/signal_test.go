package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haoqf/nightowl/internal/contracts"
	"github.com/haoqf/nightowl/internal/marketdata"
)

func goodBar() marketdata.Bar {
	return marketdata.Bar{
		InstrumentCode: "600519.SH",
		TradeDate:      "20260828",
		Close:          105,
		PrevClose:      100,
		Amount:         1_000_000,
		TurnoverRate:   2.0,
	}
}

func TestBuildMarketState(t *testing.T) {
	bars := []marketdata.Bar{
		{InstrumentCode: "a", Close: 110, PrevClose: 100}, // +10%
		{InstrumentCode: "b", Close: 95, PrevClose: 100},  // -5%
		{InstrumentCode: "c", Close: 100, PrevClose: 0},   // unusable, skipped
	}

	st := BuildMarketState("20260828", bars)
	assert.Equal(t, 2, st.Instruments)
	assert.InDelta(t, 2.5, st.AvgPctChg, 1e-9)
	assert.InDelta(t, 0.5, st.Breadth, 1e-9)
}

func TestRuleSignalScore(t *testing.T) {
	sig := NewRuleSignal(DefaultWeights())

	score, err := sig.Score(goodBar(), MarketState{})
	require.NoError(t, err)

	// trend=0.05, flow=log1p(1e6), fund=0.02
	want := 0.5*0.05 + 0.3*math.Log1p(1_000_000) + 0.2*0.02
	assert.InDelta(t, want, score, 1e-9)
}

func TestRuleSignalMissingPrevClose(t *testing.T) {
	sig := NewRuleSignal(DefaultWeights())

	bar := goodBar()
	bar.PrevClose = 0

	_, err := sig.Score(bar, MarketState{})
	require.Error(t, err)

	var dq *contracts.DataQualityError
	assert.True(t, errors.As(err, &dq))
	assert.Equal(t, "600519.SH", dq.InstrumentCode)
}

func TestRegimeModifier(t *testing.T) {
	m := NewRegimeModifier()

	cases := []struct {
		avg  float64
		n    int
		tag  string
		mult float64
	}{
		{-1.5, 100, "RISK_OFF", 0.7},
		{1.5, 100, "RISK_ON", 1.1},
		{0.2, 100, "NEUTRAL", 1.0},
		{0, 0, "UNKNOWN", 1.0},
	}

	for _, c := range cases {
		mkt := MarketState{AvgPctChg: c.avg, Instruments: c.n}
		assert.Equal(t, c.tag, m.Tag(mkt))

		mult, err := m.Multiplier(marketdata.Bar{}, mkt)
		require.NoError(t, err)
		assert.InDelta(t, c.mult, mult, 1e-9, "avg=%v", c.avg)
	}
}

func TestVolDamperPenalizesChurn(t *testing.T) {
	d := NewVolDamper()

	quiet := goodBar()
	quiet.TurnoverRate = 0.5
	churny := goodBar()
	churny.TurnoverRate = 20.0

	mQuiet, err := d.Multiplier(quiet, MarketState{})
	require.NoError(t, err)
	mChurny, err := d.Multiplier(churny, MarketState{})
	require.NoError(t, err)

	assert.Greater(t, mQuiet, mChurny)
}

func TestComposerChainsMultipliers(t *testing.T) {
	composer := NewComposer(NewRuleSignal(DefaultWeights()), NewRegimeModifier(), NewVolDamper())
	assert.Equal(t, "rule_v1", composer.Name())

	bar := goodBar()
	mkt := MarketState{AvgPctChg: 1.5, Instruments: 100} // RISK_ON => 1.1

	base, err := NewRuleSignal(DefaultWeights()).Score(bar, mkt)
	require.NoError(t, err)
	damp, err := NewVolDamper().Multiplier(bar, mkt)
	require.NoError(t, err)

	got, err := composer.Score(bar, mkt)
	require.NoError(t, err)
	assert.InDelta(t, base*1.1*damp, got, 1e-9)
}

type nanSignal struct{}

func (nanSignal) Name() string { return "nan" }
func (nanSignal) Score(marketdata.Bar, MarketState) (float64, error) {
	return math.NaN(), nil
}

func TestComposerRejectsNonFinite(t *testing.T) {
	composer := NewComposer(nanSignal{})

	_, err := composer.Score(goodBar(), MarketState{})
	require.Error(t, err)

	var dq *contracts.DataQualityError
	assert.True(t, errors.As(err, &dq))
}

func TestStrengthGate(t *testing.T) {
	gate := NewStrengthGate(0.15)

	// Weak top pick blocks new positions at half exposure
	weak := gate.Evaluate([]contracts.Pick{
		{RankFinal: 1, Score: 0.10},
		{RankFinal: 2, Score: 0.50},
	})
	assert.False(t, weak.AllowNew)
	assert.InDelta(t, 0.5, weak.ExposureMultiplier, 1e-9)

	// Strong top pick passes
	strong := gate.Evaluate([]contracts.Pick{
		{RankFinal: 1, Score: 0.30},
	})
	assert.True(t, strong.AllowNew)
	assert.InDelta(t, 1.0, strong.ExposureMultiplier, 1e-9)

	// No picks: nothing to gate
	empty := gate.Evaluate(nil)
	assert.True(t, empty.AllowNew)
}
