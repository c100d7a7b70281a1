package marketdata

import "context"

// Bar is one instrument's daily bar. Fields follow the delimited bars
// file produced by the data collection side (out of scope here).
type Bar struct {
	InstrumentCode string
	Name           string
	TradeDate      string // YYYYMMDD

	Open      float64
	High      float64
	Low       float64
	Close     float64
	PrevClose float64

	Volume       float64
	Amount       float64 // traded value
	TurnoverRate float64 // percent
	TotalMV      float64 // total market value
}

// PctChange returns the day's percentage change, or false when the
// previous close is unusable.
func (b Bar) PctChange() (float64, bool) {
	if b.PrevClose <= 0 {
		return 0, false
	}
	return (b.Close - b.PrevClose) / b.PrevClose * 100.0, true
}

// Provider supplies daily bars for a trade date.
// The selection pipeline treats it as an external collaborator.
type Provider interface {
	// Bars returns all bars for the trade date (YYYYMMDD)
	Bars(ctx context.Context, tradeDate string) ([]Bar, error)

	// LatestTradeDate returns the most recent date the provider has data for
	LatestTradeDate(ctx context.Context) (string, error)
}
