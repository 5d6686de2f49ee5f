package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/largeweb/skapp-sub000/internal/domain"
	"github.com/largeweb/skapp-sub000/internal/service"
)

type OrchestrateHandler struct {
	orch *service.Orchestrator
}

func NewOrchestrateHandler(orch *service.Orchestrator) *OrchestrateHandler {
	return &OrchestrateHandler{orch: orch}
}

type orchestrateRequest struct {
	AgentID string `json:"agentId,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Time    string `json:"time,omitempty"`
}

// Run triggers one orchestration pass: one agent when agentId is given, the
// full set otherwise. mode and time override the scheduler for manual runs.
func (h *OrchestrateHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req orchestrateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	opts := service.RunOptions{AgentID: req.AgentID}

	if req.Mode != "" {
		if !domain.ValidMode(req.Mode) {
			writeError(w, http.StatusBadRequest, "mode must be awake or sleep")
			return
		}
		opts.Mode = domain.Mode(req.Mode)
	}

	if req.Time != "" {
		t, err := time.Parse(time.RFC3339, req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "time must be RFC3339")
			return
		}
		opts.Now = t
	}

	result, err := h.orch.Run(r.Context(), opts)
	if err != nil {
		if errors.Is(err, service.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "orchestration failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
