package client

import (
	"net/http"
	"sync"
	"time"

	"pkt.systems/zotmcp/internal/clock"
)

// cachedResponse is the unit stored by the read cache: enough of a successful
// GET response to replay it, pagination headers included.
type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

type cacheSlot struct {
	resp      cachedResponse
	expiresAt time.Time
}

// readCache is a bounded TTL map for idempotent reads. Eviction is by
// insertion order (FIFO), not access order: bibliographic read patterns are
// bursty and recency predicts little. Expired entries are dropped lazily on
// get. A nil *readCache is the disabled cache; every method is a no-op.
type readCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	clk     clock.Clock
	entries map[string]cacheSlot
	order   []string
}

func newReadCache(ttl time.Duration, maxEntries int, clk clock.Clock) *readCache {
	if ttl <= 0 || maxEntries < 1 {
		return nil
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &readCache{
		ttl:     ttl,
		max:     maxEntries,
		clk:     clk,
		entries: make(map[string]cacheSlot, maxEntries),
	}
}

func (rc *readCache) get(key string) (cachedResponse, bool) {
	if rc == nil {
		return cachedResponse{}, false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	slot, ok := rc.entries[key]
	if !ok {
		return cachedResponse{}, false
	}
	if !rc.clk.Now().Before(slot.expiresAt) {
		rc.remove(key)
		return cachedResponse{}, false
	}
	return slot.resp, true
}

// put stores a successful pure-read response. Any method other than GET is
// refused; mutating calls are never cached.
func (rc *readCache) put(method, key string, resp cachedResponse) {
	if rc == nil {
		return
	}
	if method != http.MethodGet {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if _, exists := rc.entries[key]; !exists {
		for len(rc.order) >= rc.max {
			oldest := rc.order[0]
			rc.order = rc.order[1:]
			delete(rc.entries, oldest)
		}
		rc.order = append(rc.order, key)
	}
	rc.entries[key] = cacheSlot{resp: resp, expiresAt: rc.clk.Now().Add(rc.ttl)}
}

// clear drops every entry. Runs after any successful mutating call, since a
// write can stale any cached read page.
func (rc *readCache) clear() {
	if rc == nil {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	clear(rc.entries)
	rc.order = rc.order[:0]
}

// remove drops key from both the map and the insertion queue. Callers hold mu.
func (rc *readCache) remove(key string) {
	if _, ok := rc.entries[key]; !ok {
		return
	}
	delete(rc.entries, key)
	for i, k := range rc.order {
		if k == key {
			rc.order = append(rc.order[:i], rc.order[i+1:]...)
			break
		}
	}
}

func (rc *readCache) size() int {
	if rc == nil {
		return 0
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.entries)
}
