package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/largeweb/skapp-sub000/internal/domain"
	"github.com/largeweb/skapp-sub000/internal/llm"
	"github.com/largeweb/skapp-sub000/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type turnEnv struct {
	repo   *store.AgentRepository
	client *llm.MockClient
	turns  *TurnService
}

func newTurnEnv(t *testing.T) *turnEnv {
	t.Helper()
	repo := store.NewAgentRepository(store.NewMemoryKV())
	client := llm.NewMockClient()
	executor := NewToolExecutor(repo, zap.NewNop())
	turns := NewTurnService(repo, client, executor, zap.NewNop())
	return &turnEnv{repo: repo, client: client, turns: turns}
}

func (e *turnEnv) seedAgent(t *testing.T, a *domain.Agent) {
	t.Helper()
	if a.SystemTools == nil {
		a.SystemTools = domain.BuiltinTools()
	}
	require.NoError(t, e.repo.SaveAgent(context.Background(), a))
}

func TestAwakeTurn_EndToEnd(t *testing.T) {
	env := newTurnEnv(t)
	ctx := context.Background()

	env.seedAgent(t, &domain.Agent{
		ID:         "a1",
		Name:       "Scout",
		TurnPrompt: "survey the area",
	})

	env.client.GenerateResponse = `Surveying now.
<tool_call>{"tool":"generate_system_note","params":{"message":"X"}}</tool_call>
All clear. <turn_prompt>next</turn_prompt>`

	start := time.Now()
	require.NoError(t, env.turns.RunTurn(ctx, "a1", domain.ModeAwake))

	// Note created with ~7 day default expiry.
	notes, err := env.repo.ListLayer(ctx, "a1", domain.LayerNote)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "X", notes[0].Content)
	require.NotNil(t, notes[0].ExpiresAt)
	expected := start.Add(7 * 24 * time.Hour)
	assert.InDelta(t, 0, notes[0].ExpiresAt.Sub(expected).Seconds(), 2)

	a, err := env.repo.GetAgent(ctx, "a1")
	require.NoError(t, err)

	// Next turn's instruction extracted from the trailing marker.
	assert.Equal(t, "next", a.TurnPrompt)

	// Exactly one user/model pair appended, marker stripped from the
	// stored model turn.
	require.Len(t, a.TurnHistory, 2)
	assert.Equal(t, domain.RoleUser, a.TurnHistory[0].Role)
	assert.Equal(t, "survey the area", a.TurnHistory[0].Content)
	assert.Equal(t, domain.RoleModel, a.TurnHistory[1].Role)
	assert.NotContains(t, a.TurnHistory[1].Content, "<turn_prompt>")

	// Tool execution recorded.
	require.Len(t, a.ToolCallResults, 1)
	assert.Contains(t, a.ToolCallResults[0], domain.ToolSystemNote)

	// Generation request carried the assembled context.
	require.Len(t, env.client.GenerateCalls, 1)
	assert.Contains(t, env.client.GenerateCalls[0].SystemPrompt, "Scout")
	assert.Equal(t, "survey the area", env.client.GenerateCalls[0].TurnPrompt)
}

func TestAwakeTurn_DisabledToolDropped(t *testing.T) {
	env := newTurnEnv(t)
	ctx := context.Background()

	env.seedAgent(t, &domain.Agent{
		ID:          "a1",
		Name:        "Scout",
		SystemTools: []string{domain.ToolSystemThought},
	})

	env.client.GenerateResponse = `<tool_call>{"tool":"generate_system_note","params":{"message":"X"}}</tool_call> ok`

	require.NoError(t, env.turns.RunTurn(ctx, "a1", domain.ModeAwake))

	notes, err := env.repo.ListLayer(ctx, "a1", domain.LayerNote)
	require.NoError(t, err)
	assert.Empty(t, notes, "disabled tool must not mutate the note layer")

	a, err := env.repo.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, a.ToolCallResults, "disabled tool must not produce a result entry")
	assert.Len(t, a.TurnHistory, 2, "turn still completes")
}

func TestAwakeTurn_GenerationFailurePropagates(t *testing.T) {
	env := newTurnEnv(t)
	ctx := context.Background()

	env.seedAgent(t, &domain.Agent{ID: "a1", Name: "Scout"})
	env.client.GenerateError = errors.New("upstream timeout")

	err := env.turns.RunTurn(ctx, "a1", domain.ModeAwake)
	require.Error(t, err)

	a, getErr := env.repo.GetAgent(ctx, "a1")
	require.NoError(t, getErr)
	assert.Empty(t, a.TurnHistory, "failed turn must not persist history")
}

func TestAwakeTurn_MergesConcurrentToolWrites(t *testing.T) {
	env := newTurnEnv(t)
	ctx := context.Background()

	env.seedAgent(t, &domain.Agent{ID: "a1", Name: "Scout"})

	env.client.GenerateResponse = `<tool_call>{"tool":"generate_turn_prompt_enhancement","params":{"message":"be brief"}}</tool_call> done`

	require.NoError(t, env.turns.RunTurn(ctx, "a1", domain.ModeAwake))

	// The enhancement was written by the executor's own record write; the
	// pipeline's final persistence must not clobber it.
	a, err := env.repo.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "be brief", a.TurnPromptEnhancement)
	assert.Len(t, a.TurnHistory, 2)
}

func sleepHistory(n int) []domain.TurnMessage {
	history := make([]domain.TurnMessage, 0, n)
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleModel
		}
		history = append(history, domain.TurnMessage{Role: role, Content: fmt.Sprintf("entry %d", i)})
	}
	return history
}

func TestSleepTurn_PurgesExpiredNotesAndClearsThoughts(t *testing.T) {
	env := newTurnEnv(t)
	ctx := context.Background()

	env.seedAgent(t, &domain.Agent{ID: "a1", Name: "Scout"})

	now := time.Now().UTC()
	expired := now.Add(-time.Hour)
	live := now.Add(5 * 24 * time.Hour)
	require.NoError(t, env.repo.AppendEntry(ctx, &domain.MemoryEntry{
		AgentID: "a1", Layer: domain.LayerNote, Content: "stale", ExpiresAt: &expired,
	}))
	require.NoError(t, env.repo.AppendEntry(ctx, &domain.MemoryEntry{
		AgentID: "a1", Layer: domain.LayerNote, Content: "fresh", ExpiresAt: &live,
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, env.repo.AppendEntry(ctx, &domain.MemoryEntry{
			AgentID: "a1", Layer: domain.LayerThought, Content: "thought",
		}))
	}

	require.NoError(t, env.turns.RunTurn(ctx, "a1", domain.ModeSleep))

	notes, err := env.repo.ListLayer(ctx, "a1", domain.LayerNote)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "fresh", notes[0].Content)
	assert.False(t, notes[0].Expired(time.Now().UTC()))

	thoughts, err := env.repo.ListLayer(ctx, "a1", domain.LayerThought)
	require.NoError(t, err)
	assert.Empty(t, thoughts, "thought layer must be empty after sleep")
}

func TestSleepTurn_CompactsLongHistory(t *testing.T) {
	env := newTurnEnv(t)
	ctx := context.Background()

	env.seedAgent(t, &domain.Agent{
		ID:          "a1",
		Name:        "Scout",
		TurnHistory: sleepHistory(15),
	})
	env.client.GenerateResponse = "summary of the first five entries"

	require.NoError(t, env.turns.RunTurn(ctx, "a1", domain.ModeSleep))

	a, err := env.repo.GetAgent(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, a.TurnHistory, 12, "10 retained + 2 summary-exchange entries")

	// Retained tail is the most recent 10 entries.
	assert.Equal(t, "entry 5", a.TurnHistory[0].Content)
	assert.Equal(t, "entry 14", a.TurnHistory[9].Content)

	assert.Equal(t, domain.TurnMessage{Role: domain.RoleUser, Content: "summarize"}, a.TurnHistory[10])
	assert.Equal(t, domain.RoleModel, a.TurnHistory[11].Role)
	assert.Contains(t, a.TurnHistory[11].Content, "summary")

	// The summarization request carried the full transcript.
	require.Len(t, env.client.GenerateCalls, 1)
	assert.True(t, strings.Contains(env.client.GenerateCalls[0].TurnPrompt, "entry 0"))
}

func TestSleepTurn_SummarizationFailureIsFailSoft(t *testing.T) {
	env := newTurnEnv(t)
	ctx := context.Background()

	env.seedAgent(t, &domain.Agent{
		ID:          "a1",
		Name:        "Scout",
		TurnHistory: sleepHistory(15),
	})
	env.client.GenerateError = errors.New("backend down")

	require.NoError(t, env.turns.RunTurn(ctx, "a1", domain.ModeSleep), "sleep must complete despite summarization failure")

	a, err := env.repo.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, a.TurnHistory, 15, "history untouched on failure")
}

func TestSleepTurn_ShortHistorySkipsSummarization(t *testing.T) {
	env := newTurnEnv(t)
	ctx := context.Background()

	env.seedAgent(t, &domain.Agent{
		ID:          "a1",
		Name:        "Scout",
		TurnHistory: sleepHistory(10),
	})

	require.NoError(t, env.turns.RunTurn(ctx, "a1", domain.ModeSleep))

	assert.Empty(t, env.client.GenerateCalls, "no summarization call for short history")

	a, err := env.repo.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, a.TurnHistory, 10)
	assert.Equal(t, domain.ModeSleep, a.CurrentMode)
}
