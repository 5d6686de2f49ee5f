package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/largeweb/skapp-sub000/internal/domain"
)

// AgentRepository persists agent records and memory-layer entries on a
// KVStore. Each entry is its own document under the agent's key prefix, so
// tool writes and record writes are independent put cycles.
//
// For NOTE entries the logical expires_at field is the source of truth; the
// storage TTL is derived from it at write time as a backstop and is never
// edited independently.
type AgentRepository struct {
	kv domain.KVStore
}

func NewAgentRepository(kv domain.KVStore) *AgentRepository {
	return &AgentRepository{kv: kv}
}

func (r *AgentRepository) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	value, err := r.kv.Get(ctx, domain.AgentKey(id))
	if err != nil {
		return nil, err
	}
	a := &domain.Agent{}
	if err := json.Unmarshal(value, a); err != nil {
		return nil, fmt.Errorf("decode agent record %s: %w", id, err)
	}
	return a, nil
}

func (r *AgentRepository) SaveAgent(ctx context.Context, a *domain.Agent) error {
	if a.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	value, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode agent record %s: %w", a.ID, err)
	}
	return r.kv.Put(ctx, domain.AgentKey(a.ID), value, 0)
}

// DeleteAgent removes the record and every key under the agent's namespace.
func (r *AgentRepository) DeleteAgent(ctx context.Context, id string) error {
	entries, err := r.kv.ListByPrefix(ctx, domain.AgentPrefix(id))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := r.kv.Delete(ctx, e.Key); err != nil {
			return err
		}
	}
	return r.kv.Delete(ctx, domain.AgentKey(id))
}

func (r *AgentRepository) ListAgentIDs(ctx context.Context) ([]string, error) {
	entries, err := r.kv.ListByPrefix(ctx, "agent:")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		// Record keys are agent:{id}; entry keys carry further segments.
		id := strings.TrimPrefix(e.Key, "agent:")
		if id == "" || strings.Contains(id, ":") {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *AgentRepository) AppendEntry(ctx context.Context, e *domain.MemoryEntry) error {
	if !domain.ValidMemoryLayer(string(e.Layer)) {
		return fmt.Errorf("unknown memory layer %q", e.Layer)
	}
	if e.Layer == domain.LayerNote && e.ExpiresAt == nil {
		return fmt.Errorf("note entry requires expires_at")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s entry: %w", e.Layer, err)
	}

	var ttl time.Duration
	if e.ExpiresAt != nil {
		ttl = time.Until(*e.ExpiresAt)
		if ttl <= 0 {
			ttl = time.Second
		}
	}
	return r.kv.Put(ctx, domain.EntryKey(e.AgentID, e.Layer, e.ID), value, ttl)
}

func (r *AgentRepository) ListLayer(ctx context.Context, agentID string, layer domain.MemoryLayer) ([]domain.MemoryEntry, error) {
	raw, err := r.kv.ListByPrefix(ctx, domain.LayerPrefix(agentID, layer))
	if err != nil {
		return nil, err
	}
	entries := make([]domain.MemoryEntry, 0, len(raw))
	for _, kvEntry := range raw {
		var e domain.MemoryEntry
		if err := json.Unmarshal(kvEntry.Value, &e); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", kvEntry.Key, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *AgentRepository) DeleteEntry(ctx context.Context, agentID string, layer domain.MemoryLayer, entryID uuid.UUID) error {
	return r.kv.Delete(ctx, domain.EntryKey(agentID, layer, entryID))
}

func (r *AgentRepository) ClearLayer(ctx context.Context, agentID string, layer domain.MemoryLayer) (int, error) {
	raw, err := r.kv.ListByPrefix(ctx, domain.LayerPrefix(agentID, layer))
	if err != nil {
		return 0, err
	}
	for _, e := range raw {
		if err := r.kv.Delete(ctx, e.Key); err != nil {
			return 0, err
		}
	}
	return len(raw), nil
}

func (r *AgentRepository) PurgeExpiredNotes(ctx context.Context, agentID string, now time.Time) (int, error) {
	notes, err := r.ListLayer(ctx, agentID, domain.LayerNote)
	if err != nil {
		return 0, err
	}
	purged := 0
	for i := range notes {
		if !notes[i].Expired(now) {
			continue
		}
		if err := r.DeleteEntry(ctx, agentID, domain.LayerNote, notes[i].ID); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}
