package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/largeweb/skapp-sub000/internal/domain"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time // zero means no storage TTL
}

// MemoryKV is an in-process KVStore with the same TTL semantics as
// PostgresKV. Selected with STORE_BACKEND=memory; also backs the tests.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// SetClock overrides the expiry clock. Tests only.
func (s *MemoryKV) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryKV) live(item memoryItem) bool {
	return item.expiresAt.IsZero() || item.expiresAt.After(s.now())
}

func (s *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok || !s.live(item) {
		return nil, ErrNotFound
	}
	value := make([]byte, len(item.value))
	copy(value, item.value)
	return value, nil
}

func (s *MemoryKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := memoryItem{value: make([]byte, len(value))}
	copy(item.value, value)
	if ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}
	s.items[key] = item
	return nil
}

func (s *MemoryKV) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemoryKV) ListByPrefix(ctx context.Context, prefix string) ([]domain.KVEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []domain.KVEntry
	for key, item := range s.items {
		if !strings.HasPrefix(key, prefix) || !s.live(item) {
			continue
		}
		value := make([]byte, len(item.value))
		copy(value, item.value)
		entries = append(entries, domain.KVEntry{Key: key, Value: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}
