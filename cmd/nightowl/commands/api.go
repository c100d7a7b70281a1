package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haoqf/nightowl/internal/api"
	"github.com/haoqf/nightowl/internal/api/handlers"
	"github.com/haoqf/nightowl/internal/universe"
)

// apiCmd starts the HTTP status server
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the status API server",
	Long: `Serves the operator surface over HTTP.

Endpoints:
  GET  /health                  - Health check
  GET  /api/status              - Runs, kill switch and heartbeat
  GET  /api/runs/latest         - Most recent run
  GET  /api/runs/{runID}        - One run
  GET  /api/runs/{runID}/picks  - Run picks, re-filtered
  GET  /api/picks/latest        - Latest completed run's picks
  POST /api/bridge/stop         - Engage the kill switch
  POST /api/bridge/resume       - Release the kill switch

Example:
  go run ./cmd/nightowl api
  go run ./cmd/nightowl api --port 8087`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "listen port (default from config)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	app, err := newApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	if apiPort != "" {
		app.cfg.Port = apiPort
	}

	status := handlers.NewStatusHandler(app.store, app.bridge, universe.Config{
		ExcludePrefixes: app.cfg.Universe.ExcludePrefixes,
		ExcludeMarkets:  app.cfg.Universe.ExcludeMarkets,
	}, app.log)

	server := api.New(app.cfg, app.log, api.NewRouter(status, app.log))

	go func() {
		if err := server.Start(); err != nil {
			app.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s, press Ctrl+C to stop\n", app.cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
