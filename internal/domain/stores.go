package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// KVEntry is one key/value pair returned by a prefix listing.
type KVEntry struct {
	Key   string
	Value []byte
}

// KVStore is the key/value repository every component is handed. ttl of zero
// means the key never expires at the storage layer. Implementations must
// treat expired keys as absent.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ListByPrefix(ctx context.Context, prefix string) ([]KVEntry, error)
}

// AgentRepository reads and writes agent records and their memory-layer
// entries on top of a KVStore. Record writes are whole-document put with
// last-write-wins semantics; there is no compare-and-swap.
type AgentRepository interface {
	GetAgent(ctx context.Context, id string) (*Agent, error)
	SaveAgent(ctx context.Context, a *Agent) error
	DeleteAgent(ctx context.Context, id string) error
	ListAgentIDs(ctx context.Context) ([]string, error)

	AppendEntry(ctx context.Context, e *MemoryEntry) error
	ListLayer(ctx context.Context, agentID string, layer MemoryLayer) ([]MemoryEntry, error)
	DeleteEntry(ctx context.Context, agentID string, layer MemoryLayer, entryID uuid.UUID) error
	// ClearLayer deletes every entry in the layer and returns the count.
	ClearLayer(ctx context.Context, agentID string, layer MemoryLayer) (int, error)
	// PurgeExpiredNotes deletes NOTE entries with expires_at <= now.
	PurgeExpiredNotes(ctx context.Context, agentID string, now time.Time) (int, error)
}

// GenerationRequest is the input to one generation call.
type GenerationRequest struct {
	SystemPrompt string
	History      []TurnMessage
	TurnPrompt   string
	MaxTokens    int
	Temperature  float32
}

// GenerationClient is the text-in/text-out generation backend.
type GenerationClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
