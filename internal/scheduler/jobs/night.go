package jobs

import (
	"context"

	"github.com/haoqf/nightowl/internal/nightjob"
	"github.com/haoqf/nightowl/pkg/logger"
)

// NightJob runs the selection pipeline after the session close
type NightJob struct {
	job      *nightjob.Job
	schedule string
	logger   *logger.Logger
}

// NewNightJob creates the scheduled night job
func NewNightJob(job *nightjob.Job, schedule string, log *logger.Logger) *NightJob {
	if schedule == "" {
		schedule = "0 30 17 * * 1-5" // 17:30 on weekdays, after close
	}
	return &NightJob{job: job, schedule: schedule, logger: log}
}

// Name returns the job name
func (j *NightJob) Name() string {
	return "night_selection"
}

// Schedule returns the cron schedule
func (j *NightJob) Schedule() string {
	return j.schedule
}

// Run executes the selection pipeline for the latest trade date
func (j *NightJob) Run(ctx context.Context) error {
	result, err := j.job.Run(ctx, "")
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"picked": result.Picked,
	}).Info("Scheduled night selection finished")

	return nil
}
