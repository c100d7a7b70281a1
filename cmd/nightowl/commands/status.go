package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haoqf/nightowl/internal/contracts"
)

// statusCmd prints the operator view of runs and the bridge
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run and bridge status",
	Long: `Prints the latest run, the kill switch state, the agent
heartbeat and the outbox batch state.

Example:
  go run ./cmd/nightowl status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	fmt.Println("=== Nightowl Status ===")

	run, err := app.store.LatestRun(ctx)
	switch {
	case errors.Is(err, contracts.ErrNoRunAvailable):
		fmt.Println("Latest run:  none")
	case err != nil:
		return err
	default:
		fmt.Printf("Latest run:  %s (%s, %s)\n", run.RunID, run.TradeDate, run.Status)
		if run.FailReason != "" {
			fmt.Printf("Fail reason: %s\n", run.FailReason)
		}
		state, serr := app.bridge.StateOf(run.RunID)
		if serr != nil {
			return serr
		}
		fmt.Printf("Batch state: %s\n", state)
	}

	if app.bridge.Engaged() {
		fmt.Println("Kill switch: ENGAGED")
	} else {
		fmt.Println("Kill switch: off")
	}

	hb := app.bridge.ReadHeartbeat()
	switch {
	case !hb.Present:
		fmt.Println("Heartbeat:   absent")
	case hb.Offline:
		fmt.Printf("Heartbeat:   STALE (%s old, agent %s)\n", hb.Age.Round(time.Second), hb.AgentStatus)
	default:
		fmt.Printf("Heartbeat:   ok (%s old, agent %s)\n", hb.Age.Round(time.Second), hb.AgentStatus)
	}

	version, err := app.store.SchemaVersion(ctx)
	if err == nil {
		fmt.Printf("Schema:      version %d\n", version)
	}

	return nil
}
