package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haoqf/nightowl/internal/bridge"
)

// bridgeCmd groups the file-bridge operations
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Operate the file bridge",
}

var bridgeStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Engage the kill switch",
	Long: `Creates the STOP marker. Both jobs and the loopback agent refuse
to act while it exists.

Example:
  go run ./cmd/nightowl bridge stop`,
	RunE: runBridgeStop,
}

var bridgeResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Release the kill switch",
	RunE:  runBridgeResume,
}

var bridgeAgentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the loopback execution agent",
	Long: `Runs a stand-in for the external execution agent: writes
heartbeats, consumes outbox batches and leaves processed markers.
For development and end-to-end drills only.

Example:
  go run ./cmd/nightowl bridge agent`,
	RunE: runBridgeAgent,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.AddCommand(bridgeStopCmd)
	bridgeCmd.AddCommand(bridgeResumeCmd)
	bridgeCmd.AddCommand(bridgeAgentCmd)
}

func runBridgeStop(cmd *cobra.Command, args []string) error {
	app, err := newApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.bridge.Engage(); err != nil {
		return err
	}
	fmt.Printf("Kill switch engaged: %s\n", app.bridge.StopFile())
	return nil
}

func runBridgeResume(cmd *cobra.Command, args []string) error {
	app, err := newApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.bridge.Release(); err != nil {
		return err
	}
	fmt.Println("Kill switch released")
	return nil
}

func runBridgeAgent(cmd *cobra.Command, args []string) error {
	app, err := newApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	agent := bridge.NewLoopbackAgent(app.bridge, app.cfg.Bridge.AgentInterval, app.log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	fmt.Println("Loopback agent running, press Ctrl+C to stop")
	return agent.Run(ctx)
}
