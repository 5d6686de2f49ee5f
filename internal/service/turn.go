package service

import (
	"context"
	"fmt"
	"time"

	"github.com/largeweb/skapp-sub000/internal/domain"
	"github.com/largeweb/skapp-sub000/internal/toolcall"
	"go.uber.org/zap"
)

const (
	// historyRetention is how many turn_history entries survive sleep
	// compaction. Awake turns append without bound.
	historyRetention = 10

	defaultTurnPrompt = "Continue with your objectives for this turn."
)

// TurnService runs one agent through one turn: context assembly, generation
// call, tool extraction/execution and persistence (awake), or the
// purge/clear/summarize compaction sequence (sleep).
type TurnService struct {
	repo     domain.AgentRepository
	client   domain.GenerationClient
	executor *ToolExecutor
	logger   *zap.Logger

	now func() time.Time
}

func NewTurnService(repo domain.AgentRepository, client domain.GenerationClient, executor *ToolExecutor, logger *zap.Logger) *TurnService {
	return &TurnService{
		repo:     repo,
		client:   client,
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the pipeline clock. Tests only.
func (s *TurnService) SetClock(now func() time.Time) {
	s.now = now
}

// RunTurn executes one turn for the agent in the given mode. Generation
// transport failures propagate to the caller's retry policy; tool and
// summarization failures are absorbed.
func (s *TurnService) RunTurn(ctx context.Context, agentID string, mode domain.Mode) error {
	if mode == domain.ModeSleep {
		return s.runSleepTurn(ctx, agentID)
	}
	return s.runAwakeTurn(ctx, agentID)
}

func (s *TurnService) runAwakeTurn(ctx context.Context, agentID string) error {
	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("load agent %s: %w", agentID, err)
	}

	pmem, err := s.repo.ListLayer(ctx, agentID, domain.LayerPMEM)
	if err != nil {
		return fmt.Errorf("list permanent memory: %w", err)
	}
	notes, err := s.repo.ListLayer(ctx, agentID, domain.LayerNote)
	if err != nil {
		return fmt.Errorf("list notes: %w", err)
	}
	thoughts, err := s.repo.ListLayer(ctx, agentID, domain.LayerThought)
	if err != nil {
		return fmt.Errorf("list thoughts: %w", err)
	}

	turnPrompt := agent.TurnPrompt
	if turnPrompt == "" {
		turnPrompt = defaultTurnPrompt
	}

	raw, err := s.client.Generate(ctx, domain.GenerationRequest{
		SystemPrompt: BuildSystemPrompt(agent, pmem, notes, thoughts),
		History:      agent.TurnHistory,
		TurnPrompt:   turnPrompt,
	})
	if err != nil {
		return fmt.Errorf("generation call: %w", err)
	}

	s.executeToolCalls(ctx, agent, raw)

	// Tool execution writes the record on its own get/put cycle and may have
	// raced ahead of our copy. Re-fetch and carry the tool-written fields.
	fresh, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("reload agent %s: %w", agentID, err)
	}

	nextPrompt, cleaned := toolcall.ExtractTurnPrompt(raw)

	fresh.TurnHistory = append(fresh.TurnHistory,
		domain.TurnMessage{Role: domain.RoleUser, Content: turnPrompt},
		domain.TurnMessage{Role: domain.RoleModel, Content: cleaned},
	)
	fresh.TurnPrompt = nextPrompt
	fresh.PreviousMode = fresh.CurrentMode
	fresh.CurrentMode = domain.ModeAwake

	if err := s.repo.SaveAgent(ctx, fresh); err != nil {
		return fmt.Errorf("persist turn: %w", err)
	}
	return nil
}

// executeToolCalls parses raw model output and runs every call whose tool is
// in the agent's enabled set. Invalid or disabled calls are dropped with a
// warning; per-call failures never fail the turn.
func (s *TurnService) executeToolCalls(ctx context.Context, agent *domain.Agent, raw string) {
	for _, call := range toolcall.Parse(raw) {
		if !agent.ToolEnabled(call.ToolID) {
			s.logger.Warn("dropping disabled tool call",
				zap.String("agent_id", agent.ID),
				zap.String("tool", call.ToolID))
			continue
		}
		if _, err := s.executor.Execute(ctx, call, agent.ID); err != nil {
			s.logger.Warn("dropping invalid tool call",
				zap.String("agent_id", agent.ID),
				zap.String("tool", call.ToolID),
				zap.Error(err))
		}
	}
}

func (s *TurnService) runSleepTurn(ctx context.Context, agentID string) error {
	now := s.now().UTC()

	purged, err := s.repo.PurgeExpiredNotes(ctx, agentID, now)
	if err != nil {
		return fmt.Errorf("purge expired notes: %w", err)
	}

	cleared, err := s.repo.ClearLayer(ctx, agentID, domain.LayerThought)
	if err != nil {
		return fmt.Errorf("clear thoughts: %w", err)
	}

	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("load agent %s: %w", agentID, err)
	}

	if len(agent.TurnHistory) > historyRetention {
		s.compactHistory(ctx, agent)
	}

	agent.PreviousMode = agent.CurrentMode
	agent.CurrentMode = domain.ModeSleep

	if err := s.repo.SaveAgent(ctx, agent); err != nil {
		return fmt.Errorf("persist sleep turn: %w", err)
	}

	s.logger.Info("sleep compaction complete",
		zap.String("agent_id", agentID),
		zap.Int("notes_purged", purged),
		zap.Int("thoughts_cleared", cleared),
		zap.Int("history_len", len(agent.TurnHistory)))
	return nil
}

// compactHistory replaces a long history with the most recent entries plus a
// synthetic summary exchange. Summarization failure is fail-soft: the history
// is left untouched and sleep still completes.
func (s *TurnService) compactHistory(ctx context.Context, agent *domain.Agent) {
	summary, err := s.client.Generate(ctx, domain.GenerationRequest{
		TurnPrompt:  fmt.Sprintf(summarizeInstruction, historyTranscript(agent.TurnHistory)),
		Temperature: 0.3,
	})
	if err != nil || summary == "" {
		s.logger.Warn("history summarization failed, keeping full history",
			zap.String("agent_id", agent.ID),
			zap.Int("history_len", len(agent.TurnHistory)),
			zap.Error(err))
		return
	}

	recent := agent.TurnHistory[len(agent.TurnHistory)-historyRetention:]
	compacted := make([]domain.TurnMessage, 0, historyRetention+2)
	compacted = append(compacted, recent...)
	compacted = append(compacted,
		domain.TurnMessage{Role: domain.RoleUser, Content: "summarize"},
		domain.TurnMessage{Role: domain.RoleModel, Content: summary},
	)
	agent.TurnHistory = compacted
}
