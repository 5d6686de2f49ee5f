package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/largeweb/skapp-sub000/internal/domain"
	"go.uber.org/zap"
)

// ToolExecutor dispatches validated tool calls to the four built-in
// memory-mutating tools. Execution is best-effort: a storage failure is
// caught, logged and rendered as a failure result, never raised. Every
// execution appends a rendered summary line to the agent's tool_call_results
// log in a separate record write from the turn pipeline's own persistence.
type ToolExecutor struct {
	repo   domain.AgentRepository
	logger *zap.Logger

	now func() time.Time
}

func NewToolExecutor(repo domain.AgentRepository, logger *zap.Logger) *ToolExecutor {
	return &ToolExecutor{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the executor clock. Tests only.
func (e *ToolExecutor) SetClock(now func() time.Time) {
	e.now = now
}

// Execute runs one tool call for the agent and returns the rendered result
// line. It returns an error only for a tool id outside the built-in set;
// callers are responsible for checking the agent's enabled tool set first.
func (e *ToolExecutor) Execute(ctx context.Context, call domain.ToolCall, agentID string) (string, error) {
	var result string

	switch call.ToolID {
	case domain.ToolSystemNote:
		result = e.createNote(ctx, call, agentID)
	case domain.ToolSystemThought:
		result = e.createThought(ctx, call, agentID)
	case domain.ToolTurnPromptEnhancement:
		result = e.setEnhancement(ctx, call, agentID)
	case domain.ToolDaySummary:
		result = e.setDaySummary(ctx, call, agentID)
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidToolCall, call.ToolID)
	}

	line := renderResult(call, result, e.now())
	e.appendResultLine(ctx, agentID, line)
	return line, nil
}

func (e *ToolExecutor) createNote(ctx context.Context, call domain.ToolCall, agentID string) string {
	message := call.Message()
	if message == "" {
		return "failed: message is required"
	}

	days := domain.ClampNoteExpiryDays(call.ExpirationDays())
	now := e.now().UTC()
	expiresAt := now.Add(time.Duration(days) * 24 * time.Hour)

	entry := &domain.MemoryEntry{
		AgentID:   agentID,
		Layer:     domain.LayerNote,
		Content:   message,
		CreatedAt: now,
		ExpiresAt: &expiresAt,
	}
	if err := e.repo.AppendEntry(ctx, entry); err != nil {
		e.logger.Error("failed to store note",
			zap.String("agent_id", agentID),
			zap.Error(err))
		return "failed: " + err.Error()
	}
	return fmt.Sprintf("note saved, expires in %d days", days)
}

func (e *ToolExecutor) createThought(ctx context.Context, call domain.ToolCall, agentID string) string {
	message := call.Message()
	if message == "" {
		return "failed: message is required"
	}

	entry := &domain.MemoryEntry{
		AgentID:   agentID,
		Layer:     domain.LayerThought,
		Content:   message,
		CreatedAt: e.now().UTC(),
	}
	if err := e.repo.AppendEntry(ctx, entry); err != nil {
		e.logger.Error("failed to store thought",
			zap.String("agent_id", agentID),
			zap.Error(err))
		return "failed: " + err.Error()
	}
	return "thought saved until next sleep"
}

func (e *ToolExecutor) setEnhancement(ctx context.Context, call domain.ToolCall, agentID string) string {
	message := call.Message()
	if message == "" {
		return "failed: message is required"
	}
	if err := e.updateRecord(ctx, agentID, func(a *domain.Agent) {
		a.TurnPromptEnhancement = message
	}); err != nil {
		return "failed: " + err.Error()
	}
	return "turn prompt enhancement set"
}

func (e *ToolExecutor) setDaySummary(ctx context.Context, call domain.ToolCall, agentID string) string {
	message := call.Message()
	if message == "" {
		return "failed: message is required"
	}
	if err := e.updateRecord(ctx, agentID, func(a *domain.Agent) {
		a.PreviousDaySummary = message
	}); err != nil {
		return "failed: " + err.Error()
	}
	return "day summary recorded"
}

// updateRecord is a read-modify-write cycle on the agent record. There is no
// compare-and-swap; the pipeline reconciles by re-reading after execution.
func (e *ToolExecutor) updateRecord(ctx context.Context, agentID string, mutate func(*domain.Agent)) error {
	a, err := e.repo.GetAgent(ctx, agentID)
	if err != nil {
		e.logger.Error("failed to load agent record for tool write",
			zap.String("agent_id", agentID),
			zap.Error(err))
		return err
	}
	mutate(a)
	if err := e.repo.SaveAgent(ctx, a); err != nil {
		e.logger.Error("failed to save agent record for tool write",
			zap.String("agent_id", agentID),
			zap.Error(err))
		return err
	}
	return nil
}

func (e *ToolExecutor) appendResultLine(ctx context.Context, agentID, line string) {
	err := e.updateRecord(ctx, agentID, func(a *domain.Agent) {
		a.ToolCallResults = append(a.ToolCallResults, line)
	})
	if err != nil {
		e.logger.Warn("failed to record tool call result",
			zap.String("agent_id", agentID),
			zap.Error(err))
	}
}

// renderResult formats one execution as "toolId(params) → result [timestamp]".
func renderResult(call domain.ToolCall, result string, at time.Time) string {
	return fmt.Sprintf("%s(%s) → %s [%s]",
		call.ToolID, renderParams(call.Params), result, at.UTC().Format(time.RFC3339))
}

func renderParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, ", ")
}
