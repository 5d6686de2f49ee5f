package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/largeweb/skapp-sub000/internal/domain"
	"github.com/largeweb/skapp-sub000/internal/store"
	"go.uber.org/zap"
)

func newExecutorEnv(t *testing.T) (*ToolExecutor, *store.AgentRepository) {
	t.Helper()
	repo := store.NewAgentRepository(store.NewMemoryKV())
	executor := NewToolExecutor(repo, zap.NewNop())

	agent := &domain.Agent{
		ID:          "a1",
		Name:        "Test Agent",
		SystemTools: domain.BuiltinTools(),
	}
	if err := repo.SaveAgent(context.Background(), agent); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return executor, repo
}

func TestToolExecutor_CreateNoteDefaultExpiry(t *testing.T) {
	executor, repo := newExecutorEnv(t)
	ctx := context.Background()

	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	executor.SetClock(func() time.Time { return now })

	call := domain.ToolCall{
		ToolID: domain.ToolSystemNote,
		Params: map[string]any{"message": "check the feed"},
	}
	result, err := executor.Execute(ctx, call, "a1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result, "7 days") {
		t.Fatalf("expected default 7 day expiry in result, got %q", result)
	}

	notes, err := repo.ListLayer(ctx, "a1", domain.LayerNote)
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	if notes[0].Content != "check the feed" {
		t.Fatalf("unexpected content %q", notes[0].Content)
	}
	want := now.Add(7 * 24 * time.Hour)
	if notes[0].ExpiresAt == nil || notes[0].ExpiresAt.Sub(want).Abs() > time.Second {
		t.Fatalf("expected expiry ~%v, got %v", want, notes[0].ExpiresAt)
	}
}

func TestToolExecutor_NoteExpiryClamped(t *testing.T) {
	executor, repo := newExecutorEnv(t)
	ctx := context.Background()

	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	executor.SetClock(func() time.Time { return now })

	_, err := executor.Execute(ctx, domain.ToolCall{
		ToolID: domain.ToolSystemNote,
		Params: map[string]any{"message": "long note", "expirationDays": float64(30)},
	}, "a1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	notes, _ := repo.ListLayer(ctx, "a1", domain.LayerNote)
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	want := now.Add(14 * 24 * time.Hour)
	if notes[0].ExpiresAt == nil || !notes[0].ExpiresAt.Equal(want) {
		t.Fatalf("expected clamp to 14 days (%v), got %v", want, notes[0].ExpiresAt)
	}
}

func TestToolExecutor_CreateThought(t *testing.T) {
	executor, repo := newExecutorEnv(t)
	ctx := context.Background()

	_, err := executor.Execute(ctx, domain.ToolCall{
		ToolID: domain.ToolSystemThought,
		Params: map[string]any{"message": "I wonder"},
	}, "a1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	thoughts, _ := repo.ListLayer(ctx, "a1", domain.LayerThought)
	if len(thoughts) != 1 {
		t.Fatalf("expected 1 thought, got %d", len(thoughts))
	}
	if thoughts[0].ExpiresAt != nil {
		t.Fatal("thoughts must not carry an expiry")
	}
}

func TestToolExecutor_ScalarTools(t *testing.T) {
	executor, repo := newExecutorEnv(t)
	ctx := context.Background()

	_, err := executor.Execute(ctx, domain.ToolCall{
		ToolID: domain.ToolTurnPromptEnhancement,
		Params: map[string]any{"message": "focus on research"},
	}, "a1")
	if err != nil {
		t.Fatalf("execute enhancement: %v", err)
	}

	_, err = executor.Execute(ctx, domain.ToolCall{
		ToolID: domain.ToolDaySummary,
		Params: map[string]any{"message": "a productive day"},
	}, "a1")
	if err != nil {
		t.Fatalf("execute day summary: %v", err)
	}

	a, _ := repo.GetAgent(ctx, "a1")
	if a.TurnPromptEnhancement != "focus on research" {
		t.Fatalf("unexpected enhancement %q", a.TurnPromptEnhancement)
	}
	if a.PreviousDaySummary != "a productive day" {
		t.Fatalf("unexpected day summary %q", a.PreviousDaySummary)
	}
	if len(a.ToolCallResults) != 2 {
		t.Fatalf("expected 2 result lines, got %d", len(a.ToolCallResults))
	}
}

func TestToolExecutor_ResultLineFormat(t *testing.T) {
	executor, repo := newExecutorEnv(t)
	ctx := context.Background()

	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	executor.SetClock(func() time.Time { return now })

	line, err := executor.Execute(ctx, domain.ToolCall{
		ToolID: domain.ToolSystemThought,
		Params: map[string]any{"message": "hm"},
	}, "a1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !strings.HasPrefix(line, "generate_system_thought(message=hm) → ") {
		t.Fatalf("unexpected line prefix: %q", line)
	}
	if !strings.HasSuffix(line, "[2025-07-01T12:00:00Z]") {
		t.Fatalf("expected timestamp suffix, got %q", line)
	}

	a, _ := repo.GetAgent(ctx, "a1")
	if len(a.ToolCallResults) != 1 || a.ToolCallResults[0] != line {
		t.Fatalf("expected result line persisted, got %v", a.ToolCallResults)
	}
}

func TestToolExecutor_UnknownTool(t *testing.T) {
	executor, repo := newExecutorEnv(t)
	ctx := context.Background()

	_, err := executor.Execute(ctx, domain.ToolCall{ToolID: "launch_rockets"}, "a1")
	if !errors.Is(err, ErrInvalidToolCall) {
		t.Fatalf("expected ErrInvalidToolCall, got %v", err)
	}

	a, _ := repo.GetAgent(ctx, "a1")
	if len(a.ToolCallResults) != 0 {
		t.Fatal("unknown tool must not produce a result entry")
	}
	notes, _ := repo.ListLayer(ctx, "a1", domain.LayerNote)
	thoughts, _ := repo.ListLayer(ctx, "a1", domain.LayerThought)
	if len(notes) != 0 || len(thoughts) != 0 {
		t.Fatal("unknown tool must not mutate memory layers")
	}
}

func TestToolExecutor_MissingMessageRecordedAsFailure(t *testing.T) {
	executor, repo := newExecutorEnv(t)
	ctx := context.Background()

	line, err := executor.Execute(ctx, domain.ToolCall{ToolID: domain.ToolSystemNote}, "a1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(line, "failed: message is required") {
		t.Fatalf("expected failure result, got %q", line)
	}

	notes, _ := repo.ListLayer(ctx, "a1", domain.LayerNote)
	if len(notes) != 0 {
		t.Fatal("failed call must not create a note")
	}
	a, _ := repo.GetAgent(ctx, "a1")
	if len(a.ToolCallResults) != 1 {
		t.Fatal("failed execution still appends a result line")
	}
}
