package policy

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/zeebo/blake3"
)

// decisionCache is a bounded LRU of decisions with a per-entry deadline.
type decisionCache struct {
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

type cacheEntry struct {
	value     Decision
	expiresAt time.Time
}

func newDecisionCache(size int, ttl time.Duration) (*decisionCache, error) {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &decisionCache{lru: c, ttl: ttl, now: time.Now}, nil
}

func (c *decisionCache) get(key string) (Decision, bool) {
	raw, ok := c.lru.Get(key)
	if !ok {
		return Decision{}, false
	}
	entry := raw.(cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return Decision{}, false
	}
	return entry.value, true
}

func (c *decisionCache) put(key string, d Decision) {
	c.lru.Add(key, cacheEntry{value: d, expiresAt: c.now().Add(c.ttl)})
}

func (c *decisionCache) purge() { c.lru.Purge() }

func (c *decisionCache) len() int { return c.lru.Len() }

// cacheKey hashes the JSON form of input. encoding/json sorts map keys, so
// equal inputs produce equal keys.
func cacheKey(input any) (string, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("policy: input marshal: %w", err)
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
