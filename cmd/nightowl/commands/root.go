package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	tradeDate string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nightowl",
	Short: "Nightowl - overnight selection and morning order derivation",
	Long: `Nightowl decision engine

Selects instruments after the close, derives order instructions before
the open and hands them to the execution agent over a file bridge.

Usage:
  go run ./cmd/nightowl [command]

Examples:
  go run ./cmd/nightowl migrate
  go run ./cmd/nightowl night
  go run ./cmd/nightowl morning
  go run ./cmd/nightowl scheduler
  go run ./cmd/nightowl api
  go run ./cmd/nightowl bridge stop`,
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tradeDate, "date", "", "trade date (YYYYMMDD, default: latest in bar data)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
