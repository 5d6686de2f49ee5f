package service

import (
	"fmt"
	"strings"

	"github.com/largeweb/skapp-sub000/internal/domain"
)

const toolUsageInstructions = `You can call tools by emitting blocks of the form:
<tool_call>{"tool":"<tool_id>","params":{"message":"..."}}</tool_call>

Available tools:
- generate_system_note: save a note that expires after "expirationDays" days (1-14, default 7)
- generate_system_thought: save a thought that lasts until your next sleep cycle
- generate_turn_prompt_enhancement: set extra guidance for your next turn
- generate_day_summary_from_conversation: record a summary of the previous day

To choose your own instruction for the next turn, end your response with:
<turn_prompt>your next instruction</turn_prompt>`

// BuildSystemPrompt renders the agent's layered memory into the system
// instructions for an awake turn. Only tools in the enabled set are listed.
func BuildSystemPrompt(a *domain.Agent, pmem, notes, thoughts []domain.MemoryEntry) string {
	var sb strings.Builder

	sb.WriteString("You are " + a.Name + ".")
	if a.Description != "" {
		sb.WriteString(" " + a.Description)
	}
	sb.WriteString("\n")

	if len(pmem) > 0 {
		sb.WriteString("\n## Permanent memory\n")
		for _, e := range pmem {
			sb.WriteString("- " + e.Content + "\n")
		}
	}

	if len(notes) > 0 {
		sb.WriteString("\n## Notes\n")
		for _, e := range notes {
			if e.ExpiresAt != nil {
				sb.WriteString(fmt.Sprintf("- %s (expires %s)\n", e.Content, e.ExpiresAt.Format("2006-01-02")))
			} else {
				sb.WriteString("- " + e.Content + "\n")
			}
		}
	}

	if len(thoughts) > 0 {
		sb.WriteString("\n## Thoughts\n")
		for _, e := range thoughts {
			sb.WriteString("- " + e.Content + "\n")
		}
	}

	if a.PreviousDaySummary != "" {
		sb.WriteString("\n## Previous day\n" + a.PreviousDaySummary + "\n")
	}

	if a.TurnPromptEnhancement != "" {
		sb.WriteString("\n## Guidance for this turn\n" + a.TurnPromptEnhancement + "\n")
	}

	if len(a.SystemTools) > 0 {
		sb.WriteString("\n" + toolUsageInstructions + "\n")
	}

	return sb.String()
}

const summarizeInstruction = `Summarize the following conversation history in a few concise sentences, preserving decisions, open tasks and important facts:

%s`

// historyTranscript renders turn history into a plain transcript for the
// sleep-time summarization call.
func historyTranscript(history []domain.TurnMessage) string {
	var sb strings.Builder
	for _, m := range history {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
