package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haoqf/nightowl/internal/morningjob"
)

// morningCmd derives and publishes orders once
var morningCmd = &cobra.Command{
	Use:   "morning",
	Short: "Derive orders from the latest completed run",
	Long: `Reads the latest completed selection run, applies the strength
gate and publishes order instructions to the bridge outbox.

A run whose orders the agent already consumed is skipped; --force
republishes it anyway.

Example:
  go run ./cmd/nightowl morning
  go run ./cmd/nightowl morning --date 20260115 --force`,
	RunE: runMorning,
}

var morningForce bool

func init() {
	rootCmd.AddCommand(morningCmd)

	morningCmd.Flags().BoolVar(&morningForce, "force", false, "republish even if a processed marker exists")
}

func runMorning(cmd *cobra.Command, args []string) error {
	app, err := newApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	job := morningjob.New(app.store, app.bars, app.bridge, app.cfg, app.log)
	result, err := job.Run(context.Background(), tradeDate, morningForce)
	if err != nil {
		return err
	}

	switch {
	case result.Skipped:
		fmt.Printf("Run %s already processed, nothing published\n", result.RunID)
	case result.GateBlocked:
		fmt.Printf("Strength gate blocked run %s: %s\n", result.RunID, result.GateNote)
	default:
		fmt.Printf("Published %d instructions for run %s\n", result.Published, result.RunID)
		fmt.Printf("Outbox: %s\n", result.OutboxPath)
	}

	return nil
}
