package jobs

import (
	"context"

	"github.com/haoqf/nightowl/internal/morningjob"
	"github.com/haoqf/nightowl/pkg/logger"
)

// MorningJob derives and publishes orders before the session open
type MorningJob struct {
	job      *morningjob.Job
	schedule string
	logger   *logger.Logger
}

// NewMorningJob creates the scheduled morning job
func NewMorningJob(job *morningjob.Job, schedule string, log *logger.Logger) *MorningJob {
	if schedule == "" {
		schedule = "0 50 8 * * 1-5" // 08:50 on weekdays, before open
	}
	return &MorningJob{job: job, schedule: schedule, logger: log}
}

// Name returns the job name
func (j *MorningJob) Name() string {
	return "morning_orders"
}

// Schedule returns the cron schedule
func (j *MorningJob) Schedule() string {
	return j.schedule
}

// Run derives orders from the latest completed run. Never forces: a
// scheduled retry after a processed marker must stay a no-op.
func (j *MorningJob) Run(ctx context.Context) error {
	result, err := j.job.Run(ctx, "", false)
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":       result.RunID,
		"published":    result.Published,
		"skipped":      result.Skipped,
		"gate_blocked": result.GateBlocked,
	}).Info("Scheduled morning orders finished")

	return nil
}
