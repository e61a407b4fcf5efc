package passmap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubLoader struct {
	snapshot Snapshot
	err      error
	calls    int
}

func (s *stubLoader) LoadAll(context.Context) (Snapshot, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

func newTestCache(t *testing.T, loader *stubLoader, now *time.Time) *Cache {
	t.Helper()
	cache, err := NewCache(CacheParams{
		Loader: loader,
		TTL:    30 * time.Second,
		Now:    func() time.Time { return *now },
	})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return cache
}

func TestCacheServesWithinTTL(t *testing.T) {
	passID := uuid.New()
	loader := &stubLoader{snapshot: Snapshot{"gold|fest pass": &passID}}
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, loader, &now)
	ctx := context.Background()

	first := cache.Load(ctx)
	if got := first["gold|fest pass"]; got == nil || *got != passID {
		t.Fatalf("expected snapshot entry, got %v", got)
	}

	now = now.Add(29 * time.Second)
	cache.Load(ctx)
	if loader.calls != 1 {
		t.Fatalf("expected 1 storage load within TTL, got %d", loader.calls)
	}

	now = now.Add(2 * time.Second)
	cache.Load(ctx)
	if loader.calls != 2 {
		t.Fatalf("expected reload after TTL expiry, got %d calls", loader.calls)
	}
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	loader := &stubLoader{snapshot: Snapshot{}}
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, loader, &now)
	ctx := context.Background()

	cache.Load(ctx)
	cache.Invalidate()
	cache.Load(ctx)
	if loader.calls != 2 {
		t.Fatalf("expected reload after Invalidate, got %d calls", loader.calls)
	}
}

func TestCacheLoadErrorYieldsEmptySnapshot(t *testing.T) {
	loader := &stubLoader{err: errors.New("storage down")}
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, loader, &now)
	ctx := context.Background()

	snapshot := cache.Load(ctx)
	if len(snapshot) != 0 {
		t.Fatalf("expected empty snapshot on load error, got %v", snapshot)
	}

	// error is not cached; the next call hits storage again
	loader.err = nil
	passID := uuid.New()
	loader.snapshot = Snapshot{"gold|fest pass": &passID}
	snapshot = cache.Load(ctx)
	if len(snapshot) != 1 {
		t.Fatalf("expected recovery on next load, got %v", snapshot)
	}
	if loader.calls != 2 {
		t.Fatalf("expected 2 loads, got %d", loader.calls)
	}
}

func TestCacheKeepsExplicitNullEntries(t *testing.T) {
	loader := &stubLoader{snapshot: Snapshot{"merch|t-shirt": nil}}
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, loader, &now)

	snapshot := cache.Load(context.Background())
	passID, found := snapshot["merch|t-shirt"]
	if !found {
		t.Fatal("expected explicit-null key to be present in snapshot")
	}
	if passID != nil {
		t.Fatalf("expected nil pass id, got %v", passID)
	}
}
