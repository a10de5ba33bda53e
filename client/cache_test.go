package client

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"pkt.systems/zotmcp/internal/clock"
)

func TestReadCacheRoundTrip(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	rc := newReadCache(30*time.Second, 4, clk)

	resp := cachedResponse{
		status: 200,
		header: http.Header{"Total-Results": []string{"3"}},
		body:   []byte(`[]`),
	}
	rc.put(http.MethodGet, "GET:/users/1/items", resp)

	got, ok := rc.get("GET:/users/1/items")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.status != 200 || got.header.Get("Total-Results") != "3" || string(got.body) != `[]` {
		t.Fatalf("cached response mangled: %+v", got)
	}
}

func TestReadCacheExpiry(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	rc := newReadCache(30*time.Second, 4, clk)
	rc.put(http.MethodGet, "k", cachedResponse{status: 200})

	clk.Advance(29 * time.Second)
	if _, ok := rc.get("k"); !ok {
		t.Fatalf("entry should still be fresh")
	}
	clk.Advance(time.Second)
	if _, ok := rc.get("k"); ok {
		t.Fatalf("entry should have expired")
	}
	if rc.size() != 0 {
		t.Fatalf("expired entry should be dropped on read, size %d", rc.size())
	}
}

func TestReadCacheEvictsOldestInsertion(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	rc := newReadCache(time.Minute, 2, clk)
	rc.put(http.MethodGet, "a", cachedResponse{status: 200})
	rc.put(http.MethodGet, "b", cachedResponse{status: 200})

	// Reading a does not move it ahead of b in the eviction queue.
	if _, ok := rc.get("a"); !ok {
		t.Fatalf("expected a")
	}
	rc.put(http.MethodGet, "c", cachedResponse{status: 200})

	if _, ok := rc.get("a"); ok {
		t.Fatalf("a was inserted first and should be evicted first")
	}
	if _, ok := rc.get("b"); !ok {
		t.Fatalf("b should survive")
	}
	if _, ok := rc.get("c"); !ok {
		t.Fatalf("c should be present")
	}
}

func TestReadCacheUpdateDoesNotEvict(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	rc := newReadCache(time.Minute, 2, clk)
	rc.put(http.MethodGet, "a", cachedResponse{status: 200, body: []byte("old")})
	rc.put(http.MethodGet, "b", cachedResponse{status: 200})
	rc.put(http.MethodGet, "a", cachedResponse{status: 200, body: []byte("new")})

	got, ok := rc.get("a")
	if !ok || string(got.body) != "new" {
		t.Fatalf("update should replace in place, got %+v ok=%v", got, ok)
	}
	if _, ok := rc.get("b"); !ok {
		t.Fatalf("updating a key must not evict another")
	}
}

func TestReadCacheRefusesNonGet(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	rc := newReadCache(time.Minute, 2, clk)
	rc.put(http.MethodPost, "p", cachedResponse{status: 200})
	if _, ok := rc.get("p"); ok {
		t.Fatalf("mutating calls must never be cached")
	}
}

func TestReadCacheClear(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	rc := newReadCache(time.Minute, 4, clk)
	rc.put(http.MethodGet, "a", cachedResponse{status: 200})
	rc.put(http.MethodGet, "b", cachedResponse{status: 200})
	rc.clear()
	if rc.size() != 0 {
		t.Fatalf("clear should drop everything, size %d", rc.size())
	}
	if _, ok := rc.get("a"); ok {
		t.Fatalf("cleared entry should miss")
	}
	// The queue must restart cleanly after a clear.
	rc.put(http.MethodGet, "c", cachedResponse{status: 200})
	if _, ok := rc.get("c"); !ok {
		t.Fatalf("cache should accept entries after clear")
	}
}

func TestReadCacheNilIsDisabled(t *testing.T) {
	var rc *readCache
	rc.put(http.MethodGet, "k", cachedResponse{status: 200})
	if _, ok := rc.get("k"); ok {
		t.Fatalf("nil cache must never hit")
	}
	rc.clear()
	if rc.size() != 0 {
		t.Fatalf("nil cache has no size")
	}
}

func TestNewReadCacheDisabledForms(t *testing.T) {
	if newReadCache(0, 10, clock.System{}) != nil {
		t.Fatalf("zero ttl should disable the cache")
	}
	if newReadCache(time.Second, 0, clock.System{}) != nil {
		t.Fatalf("zero capacity should disable the cache")
	}
}

func TestReadCacheConcurrentAccess(t *testing.T) {
	clk := clock.NewManual(time.Unix(1700000000, 0))
	rc := newReadCache(time.Minute, 8, clk)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*7+i)%16)
				rc.put(http.MethodGet, key, cachedResponse{status: 200, body: []byte(key)})
				if resp, ok := rc.get(key); ok && string(resp.body) != key {
					t.Errorf("key %s returned body %q", key, resp.body)
				}
			}
		}(g)
	}
	wg.Wait()

	if rc.size() > 8 {
		t.Fatalf("cache exceeded its capacity: %d entries", rc.size())
	}
	if rc.size() == 0 {
		t.Fatalf("cache should retain entries after the burst")
	}
}
