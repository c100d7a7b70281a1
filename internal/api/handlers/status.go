package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/haoqf/nightowl/internal/bridge"
	"github.com/haoqf/nightowl/internal/contracts"
	"github.com/haoqf/nightowl/internal/universe"
	"github.com/haoqf/nightowl/pkg/logger"
)

// StatusHandler serves the operator read surface: run state, picks and
// bridge liveness. Read-only except for the kill switch endpoints.
type StatusHandler struct {
	store  contracts.RunStore
	bridge *bridge.Bridge
	uniCfg universe.Config
	logger *logger.Logger
}

// NewStatusHandler creates the status handler
func NewStatusHandler(store contracts.RunStore, br *bridge.Bridge, uniCfg universe.Config, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		store:  store,
		bridge: br,
		uniCfg: uniCfg,
		logger: log,
	}
}

// StatusResponse is the aggregate operator view
type StatusResponse struct {
	LatestRun  *contracts.Run    `json:"latest_run,omitempty"`
	KillSwitch bool              `json:"kill_switch"`
	Heartbeat  HeartbeatView     `json:"heartbeat"`
	BatchState map[string]string `json:"batch_state,omitempty"`
}

// HeartbeatView is the agent liveness summary
type HeartbeatView struct {
	Present     bool   `json:"present"`
	Offline     bool   `json:"offline"`
	AgentStatus string `json:"agent_status,omitempty"`
	LastBeat    string `json:"last_beat,omitempty"`
	Age         string `json:"age,omitempty"`
}

// GetStatus returns the aggregate state of runs and the bridge
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		KillSwitch: h.bridge.Engaged(),
		Heartbeat:  heartbeatView(h.bridge.ReadHeartbeat()),
	}

	run, err := h.store.LatestRun(r.Context())
	switch {
	case err == nil:
		resp.LatestRun = run
		state, serr := h.bridge.StateOf(run.RunID)
		if serr == nil {
			resp.BatchState = map[string]string{run.RunID: string(state)}
		}
	case errors.Is(err, contracts.ErrNoRunAvailable):
		// no runs yet, still a valid status
	default:
		h.logger.WithError(err).Error("Status query failed")
		writeError(w, http.StatusInternalServerError, "status query failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetLatestRun returns the most recent run of any status
func (h *StatusHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun(r.Context())
	if errors.Is(err, contracts.ErrNoRunAvailable) {
		writeError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Latest run query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRun returns one run by ID
func (h *StatusHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runID"]
	run, err := h.store.GetRun(r.Context(), runID)
	if errors.Is(err, contracts.ErrNoRunAvailable) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Run query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// PicksResponse wraps a pick listing with its filter accounting
type PicksResponse struct {
	RunID    string           `json:"run_id"`
	Picks    []contracts.Pick `json:"picks"`
	Filtered int              `json:"filtered"` // dropped by the read-side universe filter
}

// GetRunPicks returns a run's picks, re-filtered against the current
// universe exclusions
func (h *StatusHandler) GetRunPicks(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runID"]
	h.servePicks(w, r, runID)
}

// GetLatestPicks returns picks of the latest completed run for the
// trade date (query param trade_date, YYYYMMDD)
func (h *StatusHandler) GetLatestPicks(w http.ResponseWriter, r *http.Request) {
	tradeDate := r.URL.Query().Get("trade_date")
	if tradeDate == "" {
		writeError(w, http.StatusBadRequest, "trade_date query parameter required")
		return
	}

	runID, err := h.store.LatestCompletedRun(r.Context(), tradeDate)
	if errors.Is(err, contracts.ErrNoRunAvailable) {
		writeError(w, http.StatusNotFound, "no completed run for trade date")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Latest completed run query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	h.servePicks(w, r, runID)
}

func (h *StatusHandler) servePicks(w http.ResponseWriter, r *http.Request, runID string) {
	picks, err := h.store.ReadPicks(r.Context(), runID)
	if err != nil {
		h.logger.WithError(err).WithField("run_id", runID).Error("Picks query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	resp := PicksResponse{RunID: runID, Picks: make([]contracts.Pick, 0, len(picks))}
	for _, p := range picks {
		if universe.Admit(p.InstrumentCode, h.uniCfg) {
			resp.Picks = append(resp.Picks, p)
		} else {
			resp.Filtered++
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// EngageKillSwitch creates the STOP marker
func (h *StatusHandler) EngageKillSwitch(w http.ResponseWriter, r *http.Request) {
	if err := h.bridge.Engage(); err != nil {
		h.logger.WithError(err).Error("Kill switch engage failed")
		writeError(w, http.StatusInternalServerError, "engage failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"kill_switch": true})
}

// ReleaseKillSwitch removes the STOP marker
func (h *StatusHandler) ReleaseKillSwitch(w http.ResponseWriter, r *http.Request) {
	if err := h.bridge.Release(); err != nil {
		h.logger.WithError(err).Error("Kill switch release failed")
		writeError(w, http.StatusInternalServerError, "release failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"kill_switch": false})
}

func heartbeatView(hb bridge.HeartbeatStatus) HeartbeatView {
	view := HeartbeatView{
		Present: hb.Present,
		Offline: hb.Offline,
	}
	if hb.Present {
		view.AgentStatus = hb.AgentStatus
		view.LastBeat = hb.LastBeat.Format(time.RFC3339)
		view.Age = hb.Age.String()
	}
	return view
}
