package domain

// Tool identifiers for the four built-in memory-mutating tools.
const (
	ToolSystemNote            = "generate_system_note"
	ToolSystemThought         = "generate_system_thought"
	ToolTurnPromptEnhancement = "generate_turn_prompt_enhancement"
	ToolDaySummary            = "generate_day_summary_from_conversation"
)

// BuiltinTools lists every tool id the executor can dispatch.
func BuiltinTools() []string {
	return []string{
		ToolSystemNote,
		ToolSystemThought,
		ToolTurnPromptEnhancement,
		ToolDaySummary,
	}
}

// ToolCall is one structured invocation extracted from model output.
type ToolCall struct {
	ToolID string         `json:"toolId"`
	Params map[string]any `json:"params"`
}

// Message returns the string "message" param, or "" when absent.
func (c ToolCall) Message() string {
	s, _ := c.Params["message"].(string)
	return s
}

// ExpirationDays returns the numeric "expirationDays" param, or 0 when
// absent or non-numeric. JSON numbers decode as float64.
func (c ToolCall) ExpirationDays() int {
	switch v := c.Params["expirationDays"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
