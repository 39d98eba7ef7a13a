package llm

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultCacheTTL  = time.Hour
	defaultCacheSize = 1000
)

// CacheKey derives the deterministic cache key for a request against a
// provider and model. Every field that changes the completion participates,
// joined with "|" in a fixed order; Extra parameters are appended in sorted
// key order so map iteration cannot perturb the digest. Two semantically
// identical requests always produce the same key.
func CacheKey(provider Provider, model string, req Request) string {
	var b strings.Builder
	b.WriteString("provider:")
	b.WriteString(string(provider))
	b.WriteString("|model:")
	b.WriteString(model)
	fmt.Fprintf(&b, "|temp:%g", req.Temperature)
	fmt.Fprintf(&b, "|max_tokens:%d", req.MaxTokens)
	b.WriteString("|system:")
	b.WriteString(req.SystemPrompt)
	b.WriteString("|prompt:")
	b.WriteString(req.Prompt)

	if len(req.Extra) > 0 {
		keys := make([]string, 0, len(req.Extra))
		for k := range req.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("|")
			b.WriteString(k)
			b.WriteString(":")
			b.WriteString(req.Extra[k])
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Size        int     `json:"size"`
	Capacity    int     `json:"capacity"`
	HitRate     float64 `json:"hit_rate"`
	TokensSaved int64   `json:"tokens_saved"`
}

// cacheEntry is a stored completion with the provider/model that produced
// it, kept for cost-savings accounting on hits.
type cacheEntry struct {
	expiry   time.Time
	key      string
	model    string
	provider Provider
	resp     Response
}

// modelUsage accumulates tokens served from cache per provider/model pair.
type modelUsage struct {
	inputTokens  int64
	outputTokens int64
}

type usageKey struct {
	provider Provider
	model    string
}

// ResponseCache is a thread-safe TTL+LRU cache for LLM completions. Expiry
// is lazy: an expired entry is discarded when a lookup finds it, counting as
// both a miss and an eviction. Capacity overflow evicts the least recently
// used entry.
type ResponseCache struct {
	now      func() time.Time
	items    map[string]*list.Element
	savings  map[usageKey]*modelUsage
	order    *list.List
	ttl      time.Duration
	capacity int

	hits        int64
	misses      int64
	evictions   int64
	tokensSaved int64

	mu sync.Mutex
}

// NewResponseCache creates a cache holding up to capacity completions for
// ttl each. Non-positive arguments take defaults.
func NewResponseCache(capacity int, ttl time.Duration) *ResponseCache {
	if capacity <= 0 {
		capacity = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &ResponseCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		savings:  make(map[usageKey]*modelUsage),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get retrieves a completion by key. A hit refreshes the entry's LRU
// position and credits its token usage to the savings ledger.
func (c *ResponseCache) Get(key string) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return Response{}, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiry) {
		c.remove(elem)
		c.misses++
		c.evictions++
		return Response{}, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	c.tokensSaved += int64(entry.resp.InputTokens + entry.resp.OutputTokens)

	uk := usageKey{provider: entry.provider, model: entry.model}
	u, ok := c.savings[uk]
	if !ok {
		u = &modelUsage{}
		c.savings[uk] = u
	}
	u.inputTokens += int64(entry.resp.InputTokens)
	u.outputTokens += int64(entry.resp.OutputTokens)

	return entry.resp, true
}

// Put stores a completion under key. Re-putting an existing key replaces
// the value and restarts its TTL.
func (c *ResponseCache) Put(key string, provider Provider, model string, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry := c.now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.provider = provider
		entry.model = model
		entry.resp = resp
		entry.expiry = expiry
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&cacheEntry{
		key:      key,
		provider: provider,
		model:    model,
		resp:     resp,
		expiry:   expiry,
	})
	c.items[key] = elem

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.remove(oldest)
			c.evictions++
		}
	}
}

// remove unlinks an element. Callers hold c.mu.
func (c *ResponseCache) remove(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.items, entry.key)
}

// Stats returns a snapshot of the cache's counters.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Size:        c.order.Len(),
		Capacity:    c.capacity,
		TokensSaved: c.tokensSaved,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// CostSaved totals the dollar value of completions served from cache.
// price maps a provider/model token count to dollars; the cache stays
// ignorant of price tables.
func (c *ResponseCache) CostSaved(price func(provider Provider, model string, inputTokens, outputTokens int64) float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total float64
	for uk, u := range c.savings {
		total += price(uk.provider, uk.model, u.inputTokens, u.outputTokens)
	}
	return total
}

// Clear drops all entries and resets counters.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.savings = make(map[usageKey]*modelUsage)
	c.order.Init()
	c.hits = 0
	c.misses = 0
	c.evictions = 0
	c.tokensSaved = 0
}
