package bridge

import (
	"fmt"
	"os"
)

// Engaged reports whether the STOP marker exists. Its mere presence
// halts order derivation; content is ignored. Errors other than
// not-exist count as engaged: when the marker cannot be checked, the
// safe answer is to stand down.
func (b *Bridge) Engaged() bool {
	_, err := os.Stat(b.StopFile())
	if err == nil {
		return true
	}
	return !os.IsNotExist(err)
}

// Engage creates the STOP marker. Idempotent.
func (b *Bridge) Engage() error {
	err := b.withRetry("engage kill switch", func() error {
		f, err := os.OpenFile(b.StopFile(), os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		return f.Close()
	})
	if err != nil {
		return fmt.Errorf("kill switch: %w", err)
	}

	b.logger.Warn("Kill switch engaged")
	return nil
}

// Release removes the STOP marker, resuming normal operation.
// Idempotent: releasing an absent marker is not an error.
func (b *Bridge) Release() error {
	err := b.withRetry("release kill switch", func() error {
		err := os.Remove(b.StopFile())
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("kill switch: %w", err)
	}

	b.logger.Info("Kill switch released")
	return nil
}
