package scoring

import (
	"fmt"
	"math"

	"github.com/haoqf/nightowl/internal/contracts"
	"github.com/haoqf/nightowl/internal/marketdata"
)

// Signal produces a base score for one instrument. Implementations are
// opaque to the pipeline: it only sees the score and an optional error.
type Signal interface {
	Name() string
	Score(bar marketdata.Bar, mkt MarketState) (float64, error)
}

// Modifier scales a base score. Modifiers compose by explicit chaining
// in the Composer, never by dynamic lookup.
type Modifier interface {
	Name() string
	Multiplier(bar marketdata.Bar, mkt MarketState) (float64, error)
}

// MarketState holds per-date aggregates shared by all signals
type MarketState struct {
	TradeDate   string
	Instruments int
	AvgPctChg   float64 // mean daily percentage change across the universe
	Breadth     float64 // share of instruments that closed up
}

// BuildMarketState computes aggregates over the day's bars.
// Bars without a usable previous close are skipped.
func BuildMarketState(tradeDate string, bars []marketdata.Bar) MarketState {
	st := MarketState{TradeDate: tradeDate}

	sum := 0.0
	up := 0
	n := 0
	for _, b := range bars {
		pct, ok := b.PctChange()
		if !ok {
			continue
		}
		sum += pct
		if pct > 0 {
			up++
		}
		n++
	}

	st.Instruments = n
	if n > 0 {
		st.AvgPctChg = sum / float64(n)
		st.Breadth = float64(up) / float64(n)
	}
	return st
}

// Composer chains a base signal with multiplicative modifiers:
// final = base * m1 * m2 * ... Any NaN or Inf along the way is a
// data-quality failure local to the instrument.
type Composer struct {
	base Signal
	mods []Modifier
}

// NewComposer creates a composer over a base signal
func NewComposer(base Signal, mods ...Modifier) *Composer {
	return &Composer{base: base, mods: mods}
}

// Name returns the rank rule name recorded on persisted picks
func (c *Composer) Name() string {
	return c.base.Name()
}

// Score computes the final score for one instrument
func (c *Composer) Score(bar marketdata.Bar, mkt MarketState) (float64, error) {
	score, err := c.base.Score(bar, mkt)
	if err != nil {
		return 0, err
	}
	if err := checkFinite(bar.InstrumentCode, c.base.Name(), score); err != nil {
		return 0, err
	}

	for _, m := range c.mods {
		mult, err := m.Multiplier(bar, mkt)
		if err != nil {
			return 0, err
		}
		if err := checkFinite(bar.InstrumentCode, m.Name(), mult); err != nil {
			return 0, err
		}
		score *= mult
	}

	if err := checkFinite(bar.InstrumentCode, "composed", score); err != nil {
		return 0, err
	}
	return score, nil
}

func checkFinite(code, stage string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &contracts.DataQualityError{
			InstrumentCode: code,
			Reason:         fmt.Sprintf("%s produced non-finite value", stage),
		}
	}
	return nil
}
