package contracts

import "context"

// RunStore is the persistence contract for selection runs.
// Jobs depend on this interface; the Postgres implementation lives in
// internal/runstore.
type RunStore interface {
	// CreateRun opens a new run in status running and returns its run ID
	CreateRun(ctx context.Context, tradeDate, configSnapshot string) (string, error)

	// AppendPicks appends picks to a run still in status running
	AppendPicks(ctx context.Context, runID string, picks []Pick) error

	// CompleteRun flips a run to completed; this is the commit marker
	// that makes the run visible to readers
	CompleteRun(ctx context.Context, runID string) error

	// FailRun flips a run to failed with a human-readable reason
	FailRun(ctx context.Context, runID, reason string) error

	// LatestCompletedRun returns the greatest run ID with status
	// completed for the date, or ErrNoRunAvailable
	LatestCompletedRun(ctx context.Context, tradeDate string) (string, error)

	// ReadPicks returns a run's picks ordered by rank_final ascending
	ReadPicks(ctx context.Context, runID string) ([]Pick, error)

	// GetRun returns a run by ID
	GetRun(ctx context.Context, runID string) (*Run, error)

	// LatestRun returns the most recent run regardless of status,
	// for the operator status surface
	LatestRun(ctx context.Context) (*Run, error)

	// SaveOrderBatch persists a derived order batch with status EXPORTED
	SaveOrderBatch(ctx context.Context, batch *OrderBatch) error
}
