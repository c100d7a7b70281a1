package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Heartbeat is the agent's periodically rewritten liveness record
type Heartbeat struct {
	TS          string  `json:"ts"`    // human-readable timestamp
	Epoch       float64 `json:"epoch"` // unix seconds, authoritative for age
	AgentStatus string  `json:"agent_status"`
}

// HeartbeatStatus is what the decision side derives from the file
type HeartbeatStatus struct {
	Present     bool          `json:"present"`
	AgentStatus string        `json:"agent_status,omitempty"`
	LastBeat    time.Time     `json:"last_beat,omitempty"`
	Age         time.Duration `json:"age,omitempty"`
	Offline     bool          `json:"offline"`
}

func (b *Bridge) heartbeatPath() string {
	return filepath.Join(b.InboxDir(), heartbeatFile)
}

// WriteHeartbeat rewrites the liveness file. Called by the execution
// agent side (the loopback agent here); the decision side only reads.
func (b *Bridge) WriteHeartbeat(status string) error {
	now := time.Now()
	hb := Heartbeat{
		TS:          now.Format("2006-01-02 15:04:05"),
		Epoch:       float64(now.UnixNano()) / float64(time.Second),
		AgentStatus: status,
	}

	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	return b.withRetry("write heartbeat", func() error {
		return atomicWrite(b.heartbeatPath(), data)
	})
}

// ReadHeartbeat returns the agent's liveness status. A stale or absent
// heartbeat marks the agent offline; that is an observability signal
// for operators, it does not by itself block derivation.
func (b *Bridge) ReadHeartbeat() HeartbeatStatus {
	data, err := os.ReadFile(b.heartbeatPath())
	if err != nil {
		return HeartbeatStatus{Present: false, Offline: true}
	}

	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		b.logger.WithError(err).Warn("Unreadable heartbeat file")
		return HeartbeatStatus{Present: false, Offline: true}
	}

	last := time.Unix(0, int64(hb.Epoch*float64(time.Second)))
	age := time.Since(last)

	return HeartbeatStatus{
		Present:     true,
		AgentStatus: hb.AgentStatus,
		LastBeat:    last,
		Age:         age,
		Offline:     age > b.cfg.HeartbeatTimeout,
	}
}
