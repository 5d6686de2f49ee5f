package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/largeweb/skapp-sub000/internal/domain"
	"github.com/largeweb/skapp-sub000/internal/store"
	"go.uber.org/zap"
)

// GenerateHandler exposes the generation backend as an internal endpoint:
// callers supply the assembled context and get raw turn text back.
type GenerateHandler struct {
	repo   domain.AgentRepository
	client domain.GenerationClient
	logger *zap.Logger
}

func NewGenerateHandler(repo domain.AgentRepository, client domain.GenerationClient, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{repo: repo, client: client, logger: logger}
}

type generateRequest struct {
	SystemPrompt string               `json:"systemPrompt"`
	TurnHistory  []domain.TurnMessage `json:"turnHistory,omitempty"`
	TurnPrompt   string               `json:"turnPrompt"`
	Mode         string               `json:"mode,omitempty"`
}

type generateResponse struct {
	Content string `json:"content"`
}

func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	if _, err := h.repo.GetAgent(r.Context(), agentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load agent")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TurnPrompt == "" {
		writeError(w, http.StatusBadRequest, "turnPrompt is required")
		return
	}
	if req.Mode != "" && !domain.ValidMode(req.Mode) {
		writeError(w, http.StatusBadRequest, "mode must be awake or sleep")
		return
	}

	content, err := h.client.Generate(r.Context(), domain.GenerationRequest{
		SystemPrompt: req.SystemPrompt,
		History:      req.TurnHistory,
		TurnPrompt:   req.TurnPrompt,
	})
	if err != nil {
		h.logger.Error("generation call failed",
			zap.String("agent_id", agentID),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "generation backend failed")
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{Content: content})
}
