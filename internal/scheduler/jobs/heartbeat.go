package jobs

import (
	"context"

	"github.com/haoqf/nightowl/internal/bridge"
	"github.com/haoqf/nightowl/pkg/logger"
)

// HeartbeatWatchJob periodically checks the execution agent's
// heartbeat and logs when it goes stale. Observability only; it never
// engages the kill switch on its own.
type HeartbeatWatchJob struct {
	bridge   *bridge.Bridge
	schedule string
	logger   *logger.Logger
}

// NewHeartbeatWatchJob creates the heartbeat watcher
func NewHeartbeatWatchJob(br *bridge.Bridge, schedule string, log *logger.Logger) *HeartbeatWatchJob {
	if schedule == "" {
		schedule = "0 */5 * * * *" // every five minutes
	}
	return &HeartbeatWatchJob{bridge: br, schedule: schedule, logger: log}
}

// Name returns the job name
func (j *HeartbeatWatchJob) Name() string {
	return "heartbeat_watch"
}

// Schedule returns the cron schedule
func (j *HeartbeatWatchJob) Schedule() string {
	return j.schedule
}

// Run reads the heartbeat and reports agent liveness
func (j *HeartbeatWatchJob) Run(_ context.Context) error {
	hb := j.bridge.ReadHeartbeat()

	fields := map[string]interface{}{
		"present": hb.Present,
		"offline": hb.Offline,
	}
	if hb.Present {
		fields["agent_status"] = hb.AgentStatus
		fields["age"] = hb.Age.String()
	}

	if hb.Offline {
		j.logger.WithFields(fields).Warn("Execution agent offline")
	} else {
		j.logger.WithFields(fields).Info("Execution agent alive")
	}

	return nil
}
