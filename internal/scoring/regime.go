package scoring

import "github.com/haoqf/nightowl/internal/marketdata"

// Regime classification thresholds on the universe mean daily change,
// in percent. A proper index-based detector plugs in behind the same
// Modifier contract.
const (
	riskOffThreshold = -0.8
	riskOnThreshold  = 0.8
)

// RegimeModifier scales scores by market regime and tags picks with
// the detected regime name.
type RegimeModifier struct{}

// NewRegimeModifier creates the regime modifier
func NewRegimeModifier() *RegimeModifier {
	return &RegimeModifier{}
}

// Name identifies the modifier in data-quality reports
func (m *RegimeModifier) Name() string {
	return "regime"
}

// Multiplier returns the regime score multiplier for the day.
// Per-instrument input is ignored; the regime is a per-date property.
func (m *RegimeModifier) Multiplier(_ marketdata.Bar, mkt MarketState) (float64, error) {
	_, mult := m.classify(mkt)
	return mult, nil
}

// Tag returns the regime name recorded on each pick
func (m *RegimeModifier) Tag(mkt MarketState) string {
	tag, _ := m.classify(mkt)
	return tag
}

func (m *RegimeModifier) classify(mkt MarketState) (string, float64) {
	if mkt.Instruments == 0 {
		return "UNKNOWN", 1.0
	}
	switch {
	case mkt.AvgPctChg < riskOffThreshold:
		return "RISK_OFF", 0.7
	case mkt.AvgPctChg > riskOnThreshold:
		return "RISK_ON", 1.1
	default:
		return "NEUTRAL", 1.0
	}
}
