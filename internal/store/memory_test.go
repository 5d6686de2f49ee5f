package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryKV_PutGetDelete(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	if err := kv.Put(ctx, "k1", []byte(`"v1"`), 0); err != nil {
		t.Fatalf("put: %v", err)
	}

	value, err := kv.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != `"v1"` {
		t.Fatalf("unexpected value %s", value)
	}

	if err := kv.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := kv.Get(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryKV_GetMissing(t *testing.T) {
	kv := NewMemoryKV()
	if _, err := kv.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryKV_TTLExpiry(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	kv.SetClock(func() time.Time { return now })

	if err := kv.Put(ctx, "short", []byte(`1`), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := kv.Get(ctx, "short"); err != nil {
		t.Fatalf("expected key to be live, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := kv.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired key to be absent, got %v", err)
	}

	entries, err := kv.ListByPrefix(ctx, "short")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected expired key excluded from listing, got %d", len(entries))
	}
}

func TestMemoryKV_ListByPrefix(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	for _, key := range []string{"agent:b", "agent:a", "agent:a:mem:note:1", "other:x"} {
		if err := kv.Put(ctx, key, []byte(`1`), 0); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	entries, err := kv.ListByPrefix(ctx, "agent:")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Sorted by key
	if entries[0].Key != "agent:a" || entries[1].Key != "agent:a:mem:note:1" || entries[2].Key != "agent:b" {
		t.Fatalf("unexpected order: %v %v %v", entries[0].Key, entries[1].Key, entries[2].Key)
	}
}
