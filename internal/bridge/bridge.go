package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/haoqf/nightowl/pkg/config"
	"github.com/haoqf/nightowl/pkg/logger"
)

// Bridge is the decision engine's view of the shared filesystem
// handshake. Layout under one root:
//
//	<dir>/outbox/orders.csv                       published batch
//	<dir>/outbox/orders_processed_<date>_<run>.csv consumption marker
//	<dir>/inbox/heartbeat.json                    agent liveness
//	<dir>/STOP                                    kill switch
//
// The filesystem is the only synchronization primitive; every write
// that must be seen atomically goes through write-to-temp-then-rename.
type Bridge struct {
	dir    string
	cfg    config.BridgeConfig
	logger *logger.Logger
}

const (
	outboxDirName   = "outbox"
	inboxDirName    = "inbox"
	stopFileName    = "STOP"
	ordersFileName  = "orders.csv"
	processedPrefix = "orders_processed_"
	heartbeatFile   = "heartbeat.json"
)

// New creates a bridge and ensures the directory layout exists
func New(cfg config.BridgeConfig, log *logger.Logger) (*Bridge, error) {
	b := &Bridge{
		dir:    cfg.Dir,
		cfg:    cfg,
		logger: log.WithComponent("bridge"),
	}

	for _, d := range []string{b.OutboxDir(), b.InboxDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create bridge dir %s: %w", d, err)
		}
	}
	return b, nil
}

// OutboxDir is where order batches are published
func (b *Bridge) OutboxDir() string {
	return filepath.Join(b.dir, outboxDirName)
}

// InboxDir is where the agent writes heartbeats
func (b *Bridge) InboxDir() string {
	return filepath.Join(b.dir, inboxDirName)
}

// StopFile is the kill-switch marker path
func (b *Bridge) StopFile() string {
	return filepath.Join(b.dir, stopFileName)
}

// OutboxPath is the published batch path
func (b *Bridge) OutboxPath() string {
	return filepath.Join(b.OutboxDir(), ordersFileName)
}

// withRetry runs fn with bounded retry and doubling backoff. The other
// process may hold a file briefly; after the budget is spent the error
// is reported rather than hanging.
func (b *Bridge) withRetry(op string, fn func() error) error {
	attempts := b.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := b.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}

// atomicWrite writes data to path via a temp file and rename, so a
// concurrent reader sees the old content or the new, never a partial.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
