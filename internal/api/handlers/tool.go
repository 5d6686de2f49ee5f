package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/largeweb/skapp-sub000/internal/domain"
	"github.com/largeweb/skapp-sub000/internal/service"
	"github.com/largeweb/skapp-sub000/internal/store"
)

// ToolHandler executes one tool call against an agent, mirroring what the
// turn pipeline does for calls embedded in model output.
type ToolHandler struct {
	repo     domain.AgentRepository
	executor *service.ToolExecutor
}

func NewToolHandler(repo domain.AgentRepository, executor *service.ToolExecutor) *ToolHandler {
	return &ToolHandler{repo: repo, executor: executor}
}

type processToolRequest struct {
	ToolID  string         `json:"toolId"`
	Params  map[string]any `json:"params"`
	AgentID string         `json:"agentId"`
}

type processToolResponse struct {
	Result string `json:"result"`
}

func (h *ToolHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ToolID == "" {
		writeError(w, http.StatusBadRequest, "toolId is required")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}

	agent, err := h.repo.GetAgent(r.Context(), req.AgentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load agent")
		return
	}

	if !agent.ToolEnabled(req.ToolID) {
		writeError(w, http.StatusBadRequest, service.ErrToolDisabled.Error())
		return
	}

	call := domain.ToolCall{ToolID: req.ToolID, Params: req.Params}
	result, err := h.executor.Execute(r.Context(), call, req.AgentID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToolCall) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "tool execution failed")
		return
	}

	writeJSON(w, http.StatusOK, processToolResponse{Result: result})
}
