package cache

import (
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	c.Set("2025-07", "july")
	got, ok := c.Get("2025-07")
	if !ok || got != "july" {
		t.Fatalf("Get() = %q, %v; want july, true", got, ok)
	}
	if _, ok := c.Get("2025-08"); ok {
		t.Error("expected miss for absent key")
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Size != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a was used recently and should remain")
	}
	if c.Size() != 2 {
		t.Errorf("expected size 2, got %d", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(2 * time.Minute)
	c.Set("c", 3)

	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("fresh entry should survive cleanup")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("c"); ok {
		t.Error("expired entry should miss")
	}
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key should miss")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Errorf("expected empty cache after purge, got %d", c.Size())
	}
	c.Set("c", 3)
	if _, ok := c.Get("c"); !ok {
		t.Error("cache should be usable after purge")
	}
}

func TestManager_CleanAllAndStop(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	now = now.Add(time.Hour)

	m := NewManager(nil)
	m.Register(c)
	if n := m.CleanAll(); n != 1 {
		t.Errorf("CleanAll() = %d, want 1", n)
	}

	m.StartCleanup(10 * time.Millisecond)
	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a manager that never started")
	}
}
