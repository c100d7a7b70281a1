package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haoqf/nightowl/internal/runstore"
)

// migrateCmd applies pending schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Long: `Brings the database schema to the current version.

Applied versions are recorded in schema_migrations; re-running is a
no-op for versions already applied.

Example:
  go run ./cmd/nightowl migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	app, err := newApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	if err := app.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	version, err := app.store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	fmt.Printf("Schema at version %d (target %d)\n", version, runstore.TargetSchemaVersion())
	return nil
}
