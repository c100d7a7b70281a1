package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haoqf/nightowl/internal/morningjob"
	"github.com/haoqf/nightowl/internal/nightjob"
	"github.com/haoqf/nightowl/internal/scheduler"
	"github.com/haoqf/nightowl/internal/scheduler/jobs"
)

// schedulerCmd runs both jobs on their cron schedules
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the night and morning jobs on schedule",
	Long: `Starts the long-running scheduler:
- night selection after the close (weekdays 17:30)
- morning order derivation before the open (weekdays 08:50)
- agent heartbeat watch every five minutes

Example:
  go run ./cmd/nightowl scheduler`,
	RunE: runScheduler,
}

var (
	nightSchedule   string
	morningSchedule string
)

func init() {
	rootCmd.AddCommand(schedulerCmd)

	schedulerCmd.Flags().StringVar(&nightSchedule, "night-schedule", "", "cron override for the night job")
	schedulerCmd.Flags().StringVar(&morningSchedule, "morning-schedule", "", "cron override for the morning job")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	app, err := newApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.store.Migrate(context.Background()); err != nil {
		return err
	}

	night := nightjob.New(app.store, app.bars, app.bridge, app.cfg, app.log)
	morning := morningjob.New(app.store, app.bars, app.bridge, app.cfg, app.log)

	sched := scheduler.New(app.log)
	for _, job := range []scheduler.Job{
		jobs.NewNightJob(night, nightSchedule, app.log),
		jobs.NewMorningJob(morning, morningSchedule, app.log),
		jobs.NewHeartbeatWatchJob(app.bridge, "", app.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return err
		}
	}

	sched.Start()
	fmt.Println("Scheduler running, press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}
