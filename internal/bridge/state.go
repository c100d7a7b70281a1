package bridge

import (
	"errors"
	"os"
)

// BatchState is the per-batch handshake state machine:
//
//	Published -> Processed            (terminal)
//	Published -> Stalled              (kill switch or agent offline,
//	                                   terminal for the cycle)
//
// The Claimed transition is implicit: the agent just starts reading.
// Only the processed marker is authoritative.
type BatchState string

const (
	// BatchStateIdle means nothing is published and nothing was consumed
	BatchStateIdle BatchState = "idle"

	// BatchStatePublished means an outbox batch awaits the agent
	BatchStatePublished BatchState = "published"

	// BatchStateProcessed means the agent consumed the batch
	BatchStateProcessed BatchState = "processed"

	// BatchStateStalled means a published batch cannot progress: the
	// kill switch is engaged or the agent's heartbeat went stale
	BatchStateStalled BatchState = "stalled"
)

// StateOf derives the batch state for a run from the observable
// artifacts. Processed wins over everything; a published batch under
// an engaged kill switch or a dead agent is stalled until the
// condition clears.
func (b *Bridge) StateOf(runID string) (BatchState, error) {
	marker, err := b.ProcessedMarker(runID)
	if err != nil {
		return "", err
	}
	if marker != "" {
		return BatchStateProcessed, nil
	}

	batch, err := b.ReadBatch()
	if errors.Is(err, os.ErrNotExist) {
		return BatchStateIdle, nil
	}
	if err != nil {
		return "", err
	}
	// The outbox may already hold a newer run's batch; that says
	// nothing about the run being asked about
	if batch.RunID != runID {
		return BatchStateIdle, nil
	}

	if b.Engaged() || b.ReadHeartbeat().Offline {
		return BatchStateStalled, nil
	}
	return BatchStatePublished, nil
}
