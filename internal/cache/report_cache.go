package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ReportCache holds rendered report payloads keyed by subject. It is a pure
// optimization: a Get miss or a failed Put only costs a live aggregation.
type ReportCache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	Put(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration)
}

// ProjectSummaryKey builds the cache key shared by the project report job and
// the quick summary endpoint.
func ProjectSummaryKey(projectID int64) string {
	return fmt.Sprintf("project_report:%d", projectID)
}

type entry struct {
	payload   json.RawMessage
	createdAt time.Time
	expiresAt time.Time
}

type Config struct {
	MaxEntries int
}

// MemoryReportCache is the fallback used when Redis is not configured.
type MemoryReportCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
}

func NewMemoryReportCache(config Config) *MemoryReportCache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	return &MemoryReportCache{
		entries:    make(map[string]entry),
		maxEntries: config.MaxEntries,
	}
}

func (c *MemoryReportCache) Get(_ context.Context, key string) (json.RawMessage, bool) {
	c.mu.RLock()
	item, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Now().UTC().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return append(json.RawMessage(nil), item.payload...), true
}

func (c *MemoryReportCache) Put(_ context.Context, key string, payload json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := time.Now().UTC()
	item := entry{
		payload:   append(json.RawMessage(nil), payload...),
		createdAt: now,
		expiresAt: now.Add(ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[key] = item
}

func (c *MemoryReportCache) evictOldest() {
	if len(c.entries) == 0 {
		return
	}

	type pair struct {
		key   string
		value entry
	}
	pairs := make([]pair, 0, len(c.entries))
	for key, value := range c.entries {
		pairs = append(pairs, pair{key: key, value: value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value.createdAt.Before(pairs[j].value.createdAt)
	})
	delete(c.entries, pairs[0].key)
}
