package lru

import (
	"fmt"
	"sync"
	"testing"
)

func TestGetPut(t *testing.T) {
	c := New(2)
	c.Put("a", "1")

	v, ok := c.Get("a")
	if !ok || v != "1" {
		t.Errorf("expected hit with '1', got %q, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestEvictsOldest(t *testing.T) {
	c := New(2)
	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("c", "3") // evicts a

	if _, ok := c.Get("a"); ok {
		t.Error("expected 'a' to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected 'b' to survive")
	}
	if c.Len() != 2 {
		t.Errorf("expected len 2, got %d", c.Len())
	}
}

func TestGetRefreshesRecency(t *testing.T) {
	c := New(2)
	c.Put("a", "1")
	c.Put("b", "2")
	c.Get("a")      // a is now most recent
	c.Put("c", "3") // evicts b, not a

	if _, ok := c.Get("a"); !ok {
		t.Error("expected refreshed 'a' to survive")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected 'b' to be evicted")
	}
}

func TestAddAsSet(t *testing.T) {
	c := New(10)
	if !c.Add("job-1") {
		t.Error("expected first Add to return true")
	}
	if c.Add("job-1") {
		t.Error("expected repeated Add to return false")
	}
	if !c.Contains("job-1") {
		t.Error("expected Contains to report presence")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(128)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k-%d-%d", n, j)
				c.Put(key, "v")
				c.Get(key)
				c.Add(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 128 {
		t.Errorf("cache exceeded capacity: %d", c.Len())
	}
}
