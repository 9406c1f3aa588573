package ttlcache

import (
	"testing"
	"time"
)

func TestGetPut(t *testing.T) {
	c := New[string, int](time.Hour)

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for absent key")
	}

	c.Put("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Errorf("Expected (1, true), got (%d, %v)", v, ok)
	}

	c.Put("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Expected overwritten value 2, got %d", v)
	}
}

func TestLazyExpiry(t *testing.T) {
	c := New[string, string](time.Hour)
	current := time.Unix(1700000000, 0)
	c.now = func() time.Time { return current }

	c.Put("pulse-1", "cached")

	current = current.Add(59 * time.Minute)
	if _, ok := c.Get("pulse-1"); !ok {
		t.Error("Entry expired before TTL elapsed")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := c.Get("pulse-1"); ok {
		t.Error("Entry still valid after TTL elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry to be removed, len=%d", c.Len())
	}
}
