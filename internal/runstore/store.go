package runstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/haoqf/nightowl/internal/contracts"
	"github.com/haoqf/nightowl/pkg/logger"
)

// Store is the Postgres-backed run store. It implements
// contracts.RunStore; all run/pick/order persistence goes through it.
type Store struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// New creates a run store on an existing pool
func New(pool *pgxpool.Pool, log *logger.Logger) *Store {
	return &Store{pool: pool, logger: log.WithComponent("runstore")}
}

// NewRunID builds a monotonically orderable run identifier:
// PREFIX_YYYYMMDD_HHMMSS_<uuid8>. The timestamp gives the ordering,
// the random suffix disambiguates same-second reruns. Never reused.
func NewRunID(prefix string) string {
	ts := time.Now().Format("20060102_150405")
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", strings.ToUpper(prefix), ts, suffix)
}

// CreateRun opens a new run in status running
func (s *Store) CreateRun(ctx context.Context, tradeDate, configSnapshot string) (string, error) {
	runID := NewRunID("NIGHT")

	query := `
		INSERT INTO runs (run_id, trade_date, status, created_at, config_snapshot)
		VALUES ($1, $2, $3, NOW(), $4)
	`

	_, err := s.pool.Exec(ctx, query, runID, tradeDate, contracts.RunStatusRunning, configSnapshot)
	if err != nil {
		return "", &contracts.StorageError{Op: "create run", Err: err}
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id":     runID,
		"trade_date": tradeDate,
	}).Info("Run created")

	return runID, nil
}

// AppendPicks appends picks to a run that is still running.
// Appends are rejected once the run is completed or failed, keeping a
// committed run immutable.
func (s *Store) AppendPicks(ctx context.Context, runID string, picks []contracts.Pick) error {
	if len(picks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &contracts.StorageError{Op: "begin append picks", RunID: runID, Err: err}
	}
	defer tx.Rollback(ctx)

	// Lock the owning run row; at most one writer progresses a run
	var status contracts.RunStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM runs WHERE run_id = $1 FOR UPDATE`, runID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return &contracts.StorageError{Op: "append picks", RunID: runID, Err: fmt.Errorf("run not found")}
	}
	if err != nil {
		return &contracts.StorageError{Op: "append picks", RunID: runID, Err: err}
	}
	if status != contracts.RunStatusRunning {
		return &contracts.StorageError{
			Op:    "append picks",
			RunID: runID,
			Err:   fmt.Errorf("run is %s, picks are immutable", status),
		}
	}

	query := `
		INSERT INTO picks (run_id, instrument_code, rank_rule, rank_final, score, regime_tag)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, p := range picks {
		_, err := tx.Exec(ctx, query,
			runID, p.InstrumentCode, p.RankRule, p.RankFinal, p.Score, p.RegimeTag,
		)
		if err != nil {
			return &contracts.StorageError{Op: "insert pick", RunID: runID, Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &contracts.StorageError{Op: "commit picks", RunID: runID, Err: err}
	}

	return nil
}

// CompleteRun flips the run to completed. The status flip is the
// commit marker: readers only ever see completed runs, so a run is
// visible whole or not at all.
func (s *Store) CompleteRun(ctx context.Context, runID string) error {
	return s.transition(ctx, runID, contracts.RunStatusCompleted, "")
}

// FailRun flips the run to failed with a reason
func (s *Store) FailRun(ctx context.Context, runID, reason string) error {
	return s.transition(ctx, runID, contracts.RunStatusFailed, reason)
}

func (s *Store) transition(ctx context.Context, runID string, to contracts.RunStatus, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE runs
		SET status = $2, fail_reason = NULLIF($3, '')
		WHERE run_id = $1 AND status = $4
	`, runID, to, reason, contracts.RunStatusRunning)
	if err != nil {
		return &contracts.StorageError{Op: "transition run", RunID: runID, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &contracts.StorageError{
			Op:    "transition run",
			RunID: runID,
			Err:   fmt.Errorf("run not found or not running"),
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"status": to,
	}).Info("Run status changed")

	return nil
}

// LatestCompletedRun returns the greatest run ID among completed runs
// for the trade date. A running or failed run is never returned, even
// when it is numerically newer.
func (s *Store) LatestCompletedRun(ctx context.Context, tradeDate string) (string, error) {
	var runID string
	err := s.pool.QueryRow(ctx, `
		SELECT run_id FROM runs
		WHERE trade_date = $1 AND status = $2
		ORDER BY run_id DESC
		LIMIT 1
	`, tradeDate, contracts.RunStatusCompleted).Scan(&runID)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", contracts.ErrNoRunAvailable
	}
	if err != nil {
		return "", &contracts.StorageError{Op: "latest completed run", Err: err}
	}
	return runID, nil
}

// ReadPicks returns the run's picks ordered by rank
func (s *Store) ReadPicks(ctx context.Context, runID string) ([]contracts.Pick, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, instrument_code, rank_rule, rank_final, score, COALESCE(regime_tag, '')
		FROM picks
		WHERE run_id = $1
		ORDER BY rank_final ASC
	`, runID)
	if err != nil {
		return nil, &contracts.StorageError{Op: "read picks", RunID: runID, Err: err}
	}
	defer rows.Close()

	var picks []contracts.Pick
	for rows.Next() {
		var p contracts.Pick
		if err := rows.Scan(&p.RunID, &p.InstrumentCode, &p.RankRule, &p.RankFinal, &p.Score, &p.RegimeTag); err != nil {
			return nil, &contracts.StorageError{Op: "scan pick", RunID: runID, Err: err}
		}
		picks = append(picks, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &contracts.StorageError{Op: "read picks", RunID: runID, Err: err}
	}

	return picks, nil
}

// GetRun returns a run by ID
func (s *Store) GetRun(ctx context.Context, runID string) (*contracts.Run, error) {
	return s.scanRun(s.pool.QueryRow(ctx, `
		SELECT run_id, trade_date, status, created_at, config_snapshot, COALESCE(fail_reason, '')
		FROM runs WHERE run_id = $1
	`, runID))
}

// LatestRun returns the most recent run regardless of status
func (s *Store) LatestRun(ctx context.Context) (*contracts.Run, error) {
	return s.scanRun(s.pool.QueryRow(ctx, `
		SELECT run_id, trade_date, status, created_at, config_snapshot, COALESCE(fail_reason, '')
		FROM runs ORDER BY run_id DESC LIMIT 1
	`))
}

func (s *Store) scanRun(row pgx.Row) (*contracts.Run, error) {
	var r contracts.Run
	err := row.Scan(&r.RunID, &r.TradeDate, &r.Status, &r.CreatedAt, &r.ConfigSnapshot, &r.FailReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNoRunAvailable
	}
	if err != nil {
		return nil, &contracts.StorageError{Op: "scan run", Err: err}
	}
	return &r, nil
}

// SaveOrderBatch persists a derived order batch with status EXPORTED
func (s *Store) SaveOrderBatch(ctx context.Context, batch *contracts.OrderBatch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &contracts.StorageError{Op: "begin save orders", RunID: batch.RunID, Err: err}
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (
			run_id, trade_date, instrument_code, side, quantity,
			reference_price, sequence_no, client_order_id, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'EXPORTED', NOW())
		ON CONFLICT (run_id, sequence_no) DO NOTHING
	`

	for _, ins := range batch.Instructions {
		_, err := tx.Exec(ctx, query,
			ins.RunID, batch.TradeDate, ins.InstrumentCode, ins.Side,
			ins.Quantity, ins.ReferencePrice, ins.SequenceNo, ins.ClientOrderID,
		)
		if err != nil {
			return &contracts.StorageError{Op: "insert order", RunID: batch.RunID, Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &contracts.StorageError{Op: "commit orders", RunID: batch.RunID, Err: err}
	}

	return nil
}
