package contracts

import "time"

// RunStatus is the lifecycle state of a selection run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one execution of the selection pipeline.
// RunID is never reused; multiple runs may exist per trade date and
// "latest" always means the greatest RunID among completed runs.
type Run struct {
	RunID          string    `json:"run_id"`
	TradeDate      string    `json:"trade_date"` // YYYYMMDD
	Status         RunStatus `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	ConfigSnapshot string    `json:"config_snapshot"` // hash of the filter/scoring config
	FailReason     string    `json:"fail_reason,omitempty"`
}

// Pick represents one instrument selected within a run.
// Within a run, RankFinal values are unique and contiguous from 1.
type Pick struct {
	RunID          string  `json:"run_id"`
	InstrumentCode string  `json:"instrument_code"`
	RankRule       string  `json:"rank_rule"`  // name of the ranking method
	RankFinal      int     `json:"rank_final"` // 1 = best
	Score          float64 `json:"score"`
	RegimeTag      string  `json:"regime_tag,omitempty"`
}

// IsTopRanked checks if the pick is in the top N ranks
func (p *Pick) IsTopRanked(n int) bool {
	return p.RankFinal > 0 && p.RankFinal <= n
}
