package scoring

import (
	"math"

	"github.com/haoqf/nightowl/internal/contracts"
	"github.com/haoqf/nightowl/internal/marketdata"
)

// Weights are the rule-score blend. They must sum to 1.0 (validated at
// config load).
type Weights struct {
	Trend float64
	Flow  float64
	Fund  float64
}

// DefaultWeights returns the standard blend
func DefaultWeights() Weights {
	return Weights{Trend: 0.5, Flow: 0.3, Fund: 0.2}
}

// RuleSignal is the weighted factor score:
// trend from the day's return, flow from log traded value, fund from
// the turnover rate.
type RuleSignal struct {
	weights Weights
}

// NewRuleSignal creates the rule signal with the given weights
func NewRuleSignal(w Weights) *RuleSignal {
	return &RuleSignal{weights: w}
}

// Name identifies the ranking method on persisted picks
func (s *RuleSignal) Name() string {
	return "rule_v1"
}

// Score computes the weighted factor score for one bar
func (s *RuleSignal) Score(bar marketdata.Bar, mkt MarketState) (float64, error) {
	pct, ok := bar.PctChange()
	if !ok {
		return 0, &contracts.DataQualityError{
			InstrumentCode: bar.InstrumentCode,
			Reason:         "missing or non-positive previous close",
		}
	}

	if bar.Amount < 0 || bar.TurnoverRate < 0 {
		return 0, &contracts.DataQualityError{
			InstrumentCode: bar.InstrumentCode,
			Reason:         "negative amount or turnover",
		}
	}

	trend := pct / 100.0
	flow := math.Log1p(bar.Amount)
	fund := bar.TurnoverRate / 100.0

	return s.weights.Trend*trend + s.weights.Flow*flow + s.weights.Fund*fund, nil
}
