package cache

import (
	"strings"
	"testing"
	"time"
)

func TestMemoryCacheBasic(t *testing.T) {
	c := NewMemoryCache[string]()
	defer c.Stop()

	// Initially empty
	if _, found := c.Get("test"); found {
		t.Error("expected cache miss for non-existent key")
	}

	c.Set("test", "<treb-spreadsheet>", time.Minute)

	result, found := c.Get("test")
	if !found {
		t.Error("expected cache hit")
	}
	if result != "<treb-spreadsheet>" {
		t.Errorf("unexpected value: %q", result)
	}
}

func TestMemoryCacheExpiration(t *testing.T) {
	c := NewMemoryCache[int]()
	defer c.Stop()

	c.Set("short", 1, 10*time.Millisecond)
	if _, found := c.Get("short"); !found {
		t.Error("expected cache hit before expiration")
	}

	time.Sleep(20 * time.Millisecond)

	if _, found := c.Get("short"); found {
		t.Error("expected cache miss after expiration")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed, Len() = %d", c.Len())
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	c := NewMemoryCache[int]()
	defer c.Stop()

	c.Set("budget:1", 1, time.Minute)
	c.Set("budget:2", 2, time.Minute)
	c.Set("forecast:1", 3, time.Minute)

	c.Invalidate("budget:1")
	if _, found := c.Get("budget:1"); found {
		t.Error("expected miss after Invalidate")
	}

	c.InvalidateFunc(func(key string) bool { return strings.HasPrefix(key, "budget:") })
	if c.Len() != 1 {
		t.Errorf("Len() = %d after InvalidateFunc, want 1", c.Len())
	}

	c.InvalidateAll()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after InvalidateAll, want 0", c.Len())
	}
}

func TestMemoryCacheCleanup(t *testing.T) {
	c := newMemoryCache[int](5 * time.Millisecond)
	defer c.Stop()

	c.Set("a", 1, time.Millisecond)
	c.Set("b", 2, time.Hour)

	deadline := time.Now().Add(time.Second)
	for c.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("background cleanup did not run, Len() = %d", c.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryCacheStopIdempotent(t *testing.T) {
	c := NewMemoryCache[int]()
	c.Stop()
	c.Stop()
}
