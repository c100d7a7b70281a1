package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across jobs and the bridge
var (
	// ErrNoRunAvailable means no completed run exists for the requested date
	ErrNoRunAvailable = errors.New("no completed run available")

	// ErrKillSwitchEngaged means the STOP marker is present and trading must halt
	ErrKillSwitchEngaged = errors.New("kill switch engaged")
)

// ConfigError is a fatal configuration problem, detected before any
// pick is written.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// DataQualityError is local to one instrument (NaN score, missing bar).
// It is recovered by dropping the instrument, never by aborting the run.
type DataQualityError struct {
	InstrumentCode string
	Reason         string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality: %s: %s", e.InstrumentCode, e.Reason)
}

// StorageError is fatal to the invoking job: run store unreachable,
// migration failure, or a write that could not be applied.
type StorageError struct {
	Op    string
	RunID string
	Err   error
}

func (e *StorageError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("storage error: %s (run_id=%s): %v", e.Op, e.RunID, e.Err)
	}
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// OrderSanityError is a fat-finger refusal: the derived batch exceeds
// a configured size or notional limit. Nothing reaches the outbox.
type OrderSanityError struct {
	RunID  string
	Reason string
	Detail string
}

func (e *OrderSanityError) Error() string {
	return fmt.Sprintf("order sanity: %s (run_id=%s): %s", e.Reason, e.RunID, e.Detail)
}

// BridgeIntegrityError signals an attempt to redeliver a batch the
// execution agent already processed. The existing batch is left untouched.
type BridgeIntegrityError struct {
	RunID  string
	Marker string
}

func (e *BridgeIntegrityError) Error() string {
	return fmt.Sprintf("bridge integrity: batch for run %s already processed (marker %s)", e.RunID, e.Marker)
}
