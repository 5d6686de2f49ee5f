// Package toolcall extracts structured tool invocations and the trailing
// turn-prompt marker from raw model output. Parsing is pure and tolerant:
// malformed fragments are skipped, never surfaced as errors.
package toolcall

import (
	"encoding/json"
	"strings"

	"github.com/largeweb/skapp-sub000/internal/domain"
)

const (
	openTag  = "<tool_call>"
	closeTag = "</tool_call>"

	turnPromptOpen  = "<turn_prompt>"
	turnPromptClose = "</turn_prompt>"
)

// callBody is the JSON payload between tool_call markers.
type callBody struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// Parse scans text for <tool_call>{"tool":...,"params":{...}}</tool_call>
// blocks and returns them in order of appearance. Fragments with malformed
// JSON or an empty tool id are skipped; an unterminated opening tag ends the
// scan silently.
func Parse(text string) []domain.ToolCall {
	var calls []domain.ToolCall

	rest := text
	for {
		start := strings.Index(rest, openTag)
		if start < 0 {
			break
		}
		rest = rest[start+len(openTag):]

		end := strings.Index(rest, closeTag)
		if end < 0 {
			break
		}
		body := strings.TrimSpace(rest[:end])
		rest = rest[end+len(closeTag):]

		var parsed callBody
		if err := json.Unmarshal([]byte(body), &parsed); err != nil {
			continue
		}
		if parsed.Tool == "" {
			continue
		}
		if parsed.Params == nil {
			parsed.Params = map[string]any{}
		}
		calls = append(calls, domain.ToolCall{ToolID: parsed.Tool, Params: parsed.Params})
	}
	return calls
}

// ExtractTurnPrompt pulls the trailing <turn_prompt> marker out of text.
// It returns the content of the last complete marker and the text with all
// complete markers removed. An unterminated marker is left in place.
func ExtractTurnPrompt(text string) (next string, cleaned string) {
	var sb strings.Builder

	rest := text
	for {
		start := strings.Index(rest, turnPromptOpen)
		if start < 0 {
			sb.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+len(turnPromptOpen):], turnPromptClose)
		if end < 0 {
			sb.WriteString(rest)
			break
		}
		sb.WriteString(rest[:start])
		next = strings.TrimSpace(rest[start+len(turnPromptOpen) : start+len(turnPromptOpen)+end])
		rest = rest[start+len(turnPromptOpen)+end+len(turnPromptClose):]
	}
	return next, strings.TrimSpace(sb.String())
}
