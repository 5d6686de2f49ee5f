package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MemoryLayer identifies which of the three layered stores an entry lives in.
type MemoryLayer string

const (
	// LayerPMEM is permanent memory. Entries never expire.
	LayerPMEM MemoryLayer = "pmem"
	// LayerNote holds notes with an explicit 1-14 day expiry, purged at sleep.
	LayerNote MemoryLayer = "note"
	// LayerThought holds thoughts, cleared wholesale at every sleep cycle.
	LayerThought MemoryLayer = "thgt"
)

// ValidMemoryLayer reports whether s names a known layer.
func ValidMemoryLayer(s string) bool {
	switch MemoryLayer(s) {
	case LayerPMEM, LayerNote, LayerThought:
		return true
	}
	return false
}

// Note expiry bounds in days.
const (
	NoteExpiryDefaultDays = 7
	NoteExpiryMinDays     = 1
	NoteExpiryMaxDays     = 14
)

// ClampNoteExpiryDays clamps a requested note expiry to the allowed range.
// Zero or negative requests fall back to the default.
func ClampNoteExpiryDays(days int) int {
	if days <= 0 {
		return NoteExpiryDefaultDays
	}
	if days < NoteExpiryMinDays {
		return NoteExpiryMinDays
	}
	if days > NoteExpiryMaxDays {
		return NoteExpiryMaxDays
	}
	return days
}

// MemoryEntry is one record in a memory layer. ExpiresAt is non-nil for
// every NOTE entry and nil for PMEM and THGT entries.
type MemoryEntry struct {
	ID        uuid.UUID   `json:"id"`
	AgentID   string      `json:"agent_id"`
	Layer     MemoryLayer `json:"layer"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// Expired reports whether the entry's logical expiry has passed at now.
// Entries without an expiry never expire.
func (e *MemoryEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// Key scheme for the KV store. The agent record and each memory entry are
// separate documents under the agent's namespace so that deleting the
// namespace prefix cascades.
//
//	agent:{id}                      -> Agent
//	agent:{id}:mem:{layer}:{entry}  -> MemoryEntry

func AgentKey(agentID string) string {
	return "agent:" + agentID
}

func AgentPrefix(agentID string) string {
	return "agent:" + agentID + ":"
}

func LayerPrefix(agentID string, layer MemoryLayer) string {
	return fmt.Sprintf("agent:%s:mem:%s:", agentID, layer)
}

func EntryKey(agentID string, layer MemoryLayer, entryID uuid.UUID) string {
	return LayerPrefix(agentID, layer) + entryID.String()
}
