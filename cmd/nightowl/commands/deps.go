package commands

import (
	"fmt"

	"github.com/haoqf/nightowl/internal/bridge"
	"github.com/haoqf/nightowl/internal/marketdata"
	"github.com/haoqf/nightowl/internal/runstore"
	"github.com/haoqf/nightowl/pkg/config"
	"github.com/haoqf/nightowl/pkg/database"
	"github.com/haoqf/nightowl/pkg/logger"
)

// app bundles the wiring shared by every command
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	store  *runstore.Store
	bridge *bridge.Bridge
	bars   marketdata.Provider
}

// newApp loads config and connects the stack. withDB controls whether
// a database pool is opened; bridge-only commands skip it.
func newApp(withDB bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	br, err := bridge.New(cfg.Bridge, log)
	if err != nil {
		return nil, fmt.Errorf("init bridge: %w", err)
	}

	a := &app{
		cfg:    cfg,
		log:    log,
		bridge: br,
		bars:   marketdata.NewCSVProvider(cfg.Market.BarsPath),
	}

	if withDB {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.store = runstore.New(db.Pool, log)
		log.Info("Connected to database")
	}

	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
