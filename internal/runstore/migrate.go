package runstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/haoqf/nightowl/internal/contracts"
)

// migration is one versioned, additive schema step. Statements never
// drop or rename existing data; IF NOT EXISTS keeps each step
// re-runnable even if the ledger and the schema ever disagree.
type migration struct {
	Version    int
	Name       string
	Statements []string
}

// migrations is the ordered ledger of schema changes. Append only;
// existing entries are frozen once released.
var migrations = []migration{
	{
		Version: 1,
		Name:    "runs and picks",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS runs (
				run_id          TEXT PRIMARY KEY,
				trade_date      TEXT NOT NULL,
				status          TEXT NOT NULL,
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				config_snapshot TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_trade_date_status
				ON runs (trade_date, status, run_id DESC)`,
			`CREATE TABLE IF NOT EXISTS picks (
				run_id          TEXT NOT NULL REFERENCES runs (run_id),
				instrument_code TEXT NOT NULL,
				rank_rule       TEXT NOT NULL DEFAULT '',
				rank_final      INTEGER NOT NULL,
				score           DOUBLE PRECISION NOT NULL,
				PRIMARY KEY (run_id, rank_final)
			)`,
		},
	},
	{
		Version: 2,
		Name:    "pick regime tag",
		Statements: []string{
			`ALTER TABLE picks ADD COLUMN IF NOT EXISTS regime_tag TEXT`,
		},
	},
	{
		Version: 3,
		Name:    "run failure reason",
		Statements: []string{
			`ALTER TABLE runs ADD COLUMN IF NOT EXISTS fail_reason TEXT`,
		},
	},
	{
		Version: 4,
		Name:    "exported orders",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS orders (
				run_id          TEXT NOT NULL,
				trade_date      TEXT NOT NULL,
				instrument_code TEXT NOT NULL,
				side            TEXT NOT NULL,
				quantity        NUMERIC NOT NULL,
				reference_price NUMERIC NOT NULL,
				sequence_no     INTEGER NOT NULL,
				client_order_id TEXT NOT NULL DEFAULT '',
				status          TEXT NOT NULL DEFAULT 'EXPORTED',
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (run_id, sequence_no)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_trade_date
				ON orders (trade_date)`,
		},
	},
}

// Migrate applies all migrations newer than the recorded schema
// version, in ascending order. Each step runs in its own transaction
// together with its ledger insert, so a mid-sequence failure leaves
// the store at the last fully applied version. Safe on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return &contracts.StorageError{Op: "ensure migration ledger", Err: err}
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}

		s.logger.WithFields(map[string]interface{}{
			"version": m.Version,
			"name":    m.Name,
		}).Info("Migration applied")
	}

	return nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &contracts.StorageError{Op: fmt.Sprintf("begin migration %d", m.Version), Err: err}
	}
	defer tx.Rollback(ctx)

	for _, stmt := range m.Statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return &contracts.StorageError{
				Op:  fmt.Sprintf("migration %d (%s)", m.Version, m.Name),
				Err: err,
			}
		}
	}

	// ON CONFLICT keeps a replayed step a no-op, never an error
	if _, err := tx.Exec(ctx, `
		INSERT INTO schema_migrations (version, name)
		VALUES ($1, $2)
		ON CONFLICT (version) DO NOTHING
	`, m.Version, m.Name); err != nil {
		return &contracts.StorageError{Op: fmt.Sprintf("record migration %d", m.Version), Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &contracts.StorageError{Op: fmt.Sprintf("commit migration %d", m.Version), Err: err}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version, 0 for a
// fresh store.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, &contracts.StorageError{Op: "read schema version", Err: err}
	}
	return version, nil
}

// TargetSchemaVersion returns the version the code expects
func TargetSchemaVersion() int {
	return migrations[len(migrations)-1].Version
}
