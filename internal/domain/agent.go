package domain

import (
	"time"
)

// Mode is the scheduler state an agent runs its turn in.
type Mode string

const (
	ModeAwake Mode = "awake"
	ModeSleep Mode = "sleep"
)

// ValidMode reports whether s names a known mode.
func ValidMode(s string) bool {
	return s == string(ModeAwake) || s == string(ModeSleep)
}

// TurnMessage is one entry in an agent's turn history.
// Role is "user" for the triggering prompt and "model" for the response.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Agent is the unit of state: identity, mode bookkeeping, turn history and
// the scalar slots the built-in tools write into. Layered memory entries
// (PMEM/NOTE/THGT) live under separate keys, see MemoryEntry.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	CurrentMode  Mode      `json:"current_mode"`
	PreviousMode Mode      `json:"previous_mode"`
	LastActivity time.Time `json:"last_activity"`
	// LastSlept is a calendar date (2006-01-02) in the scheduler time zone,
	// used to prevent more than one sleep cycle per day.
	LastSlept string `json:"last_slept,omitempty"`

	TurnsCount int `json:"turns_count"`

	TurnHistory           []TurnMessage `json:"turn_history"`
	TurnPrompt            string        `json:"turn_prompt,omitempty"`
	TurnPromptEnhancement string        `json:"turn_prompt_enhancement,omitempty"`
	PreviousDaySummary    string        `json:"previous_day_summary,omitempty"`

	// ToolCallResults is an unbounded append log of rendered execution
	// summaries. Readers window it; the writer never truncates.
	ToolCallResults []string `json:"tool_call_results"`

	// SystemTools is the enabled tool set. A tool call whose id is not in
	// this list never mutates state.
	SystemTools []string `json:"system_tools"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToolEnabled reports whether toolID is in the agent's enabled tool set.
func (a *Agent) ToolEnabled(toolID string) bool {
	for _, t := range a.SystemTools {
		if t == toolID {
			return true
		}
	}
	return false
}

// AgentResult is the per-agent outcome of one orchestrator run.
type AgentResult struct {
	AgentID string `json:"agentId"`
	Status  string `json:"status"` // success | failed | skipped
	Error   string `json:"error,omitempty"`
	Ms      int64  `json:"ms"`
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// BatchResult aggregates one orchestrator invocation.
type BatchResult struct {
	Processed  int           `json:"processed"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Results    []AgentResult `json:"results"`
}
