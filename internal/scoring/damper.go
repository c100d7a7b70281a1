package scoring

import "github.com/haoqf/nightowl/internal/marketdata"

// volDamperEps keeps the damper defined for zero-turnover instruments
const volDamperEps = 1e-6

// VolDamper penalizes high-churn instruments by dividing the score by
// a turnover proxy. A realized-volatility implementation can replace
// the proxy behind the same Modifier contract.
type VolDamper struct{}

// NewVolDamper creates the volatility damper
func NewVolDamper() *VolDamper {
	return &VolDamper{}
}

// Name identifies the modifier in data-quality reports
func (d *VolDamper) Name() string {
	return "vol_damper"
}

// Multiplier returns 1/(turnover_proxy + eps)
func (d *VolDamper) Multiplier(bar marketdata.Bar, _ MarketState) (float64, error) {
	proxy := bar.TurnoverRate / 100.0
	if proxy < 0 {
		proxy = 0
	}
	return 1.0 / (proxy + volDamperEps), nil
}
