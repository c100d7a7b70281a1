package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haoqf/nightowl/internal/nightjob"
)

// nightCmd runs the selection pipeline once
var nightCmd = &cobra.Command{
	Use:   "night",
	Short: "Run the overnight selection pipeline",
	Long: `Scores the day's bars, applies the universe filter and persists
a ranked run. The run becomes visible to the morning job only after
it completes.

Example:
  go run ./cmd/nightowl night
  go run ./cmd/nightowl night --date 20260115`,
	RunE: runNight,
}

func init() {
	rootCmd.AddCommand(nightCmd)
}

func runNight(cmd *cobra.Command, args []string) error {
	app, err := newApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	// Schema is additive and idempotent, safe on every start
	if err := app.store.Migrate(ctx); err != nil {
		return err
	}

	job := nightjob.New(app.store, app.bars, app.bridge, app.cfg, app.log)
	result, err := job.Run(ctx, tradeDate)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s completed: %d picked, %d dropped, %d filtered\n",
		result.RunID, result.Picked, result.Dropped, result.Filtered)
	fmt.Printf("Audit export: %s\n", result.AuditPath)

	return nil
}
