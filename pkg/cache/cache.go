// Copyright 2025 Alibaba Group Holding Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache provides a bounded TTL cache for metric snapshots with
// LRU eviction and background prefetch refresh.
package cache

import (
	"context"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/alibaba/opensandbox/statusd/pkg/log"
	"github.com/alibaba/opensandbox/statusd/pkg/metrics"
	"github.com/alibaba/opensandbox/statusd/pkg/util/safego"
)

// Config controls cache capacity and refresh behavior.
type Config struct {
	// TTL is how long an entry stays fresh after being stored.
	TTL time.Duration
	// MaxEntries bounds the cache size. Inserting beyond it evicts the
	// least recently used quarter of the capacity.
	MaxEntries int
	// RefreshInterval is how often the background loop scans for entries
	// worth refreshing.
	RefreshInterval time.Duration
	// PrefetchThreshold is the remaining-TTL fraction at or below which
	// an entry becomes a refresh candidate. 0.2 means refresh when 20%
	// of the TTL is left.
	PrefetchThreshold float64
	// MaxConcurrentRefreshes caps in-flight background refreshes.
	MaxConcurrentRefreshes int
}

func DefaultConfig() Config {
	return Config{
		TTL:                    30 * time.Second,
		MaxEntries:             1000,
		RefreshInterval:        10 * time.Second,
		PrefetchThreshold:      0.2,
		MaxConcurrentRefreshes: 3,
	}
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits             uint64  `json:"hits"`
	Misses           uint64  `json:"misses"`
	Evictions        uint64  `json:"evictions"`
	Expirations      uint64  `json:"expirations"`
	Refreshes        uint64  `json:"refreshes"`
	FailedRefreshes  uint64  `json:"failed_refreshes"`
	Entries          int     `json:"entries"`
	HitRatio         float64 `json:"hit_ratio"`
	BackgroundActive bool    `json:"background_refresh_active"`
}

// Lookup is the outcome of a Get. Hit is authoritative: it reports
// whether the data came from the cache rather than a fresh collection.
type Lookup struct {
	Result         metrics.Result
	Hit            bool
	CollectionTime time.Duration
}

type entry struct {
	result         metrics.Result
	storedAt       time.Time
	collectionTime time.Duration
}

func (e *entry) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.storedAt) >= ttl
}

func (e *entry) remainingFraction(ttl time.Duration, now time.Time) float64 {
	remaining := ttl - now.Sub(e.storedAt)
	if remaining <= 0 {
		return 0
	}
	return float64(remaining) / float64(ttl)
}

// Cache stores metric results keyed by cache key. Entry bookkeeping is
// guarded by mu; counters live under their own lock so stat reads never
// contend with collections.
type Cache struct {
	cfg       Config
	collector metrics.Collector

	mu      sync.Mutex
	entries map[string]*entry
	// access order, least recently used first
	order []string

	statsMu sync.Mutex
	stats   Stats

	lifecycleMu sync.Mutex
	stopCh      chan struct{}

	refreshSem chan struct{}
}

func New(collector metrics.Collector, cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultConfig().RefreshInterval
	}
	if cfg.PrefetchThreshold <= 0 || cfg.PrefetchThreshold >= 1 {
		cfg.PrefetchThreshold = DefaultConfig().PrefetchThreshold
	}
	if cfg.MaxConcurrentRefreshes <= 0 {
		cfg.MaxConcurrentRefreshes = DefaultConfig().MaxConcurrentRefreshes
	}
	return &Cache{
		cfg:        cfg,
		collector:  collector,
		entries:    make(map[string]*entry),
		refreshSem: make(chan struct{}, cfg.MaxConcurrentRefreshes),
	}
}

// Get returns cached metrics for key, collecting fresh data on a miss,
// an expired entry, or when forceRefresh is set.
func (c *Cache) Get(ctx context.Context, key string, forceRefresh bool) (Lookup, error) {
	now := time.Now()

	if !forceRefresh {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok {
			if !e.expired(c.cfg.TTL, now) {
				c.touchLocked(key)
				lookup := Lookup{Result: e.result, Hit: true, CollectionTime: e.collectionTime}
				c.mu.Unlock()
				c.bumpStats(func(s *Stats) { s.Hits++ })
				return lookup, nil
			}
			c.removeLocked(key)
			c.bumpStats(func(s *Stats) { s.Expirations++ })
		}
		c.mu.Unlock()
	}

	c.bumpStats(func(s *Stats) { s.Misses++ })

	start := time.Now()
	result, err := c.collector.Collect(ctx)
	if err != nil {
		return Lookup{}, err
	}
	collectionTime := time.Since(start)

	c.store(key, result, collectionTime)
	return Lookup{Result: result, Hit: false, CollectionTime: collectionTime}, nil
}

func (c *Cache) store(key string, result metrics.Result, collectionTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		c.evictBatchLocked()
	}
	c.entries[key] = &entry{result: result, storedAt: time.Now(), collectionTime: collectionTime}
	c.touchLocked(key)
}

// evictBatchLocked drops the least recently used quarter of capacity,
// at least one entry. Batching keeps insertion cost amortized instead of
// evicting one-by-one under churn.
func (c *Cache) evictBatchLocked() {
	batch := c.cfg.MaxEntries / 4
	if batch < 1 {
		batch = 1
	}
	if batch > len(c.order) {
		batch = len(c.order)
	}
	victims := make([]string, batch)
	copy(victims, c.order[:batch])
	for _, key := range victims {
		c.removeLocked(key)
	}
	c.bumpStats(func(s *Stats) { s.Evictions += uint64(batch) })
	log.Debug("evicted %d cache entries", batch)
}

// touchLocked moves key to the most recently used position, appending it
// if absent.
func (c *Cache) touchLocked(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}

func (c *Cache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// CleanupExpired removes entries past their TTL and returns how many
// were dropped. Safe to call repeatedly.
func (c *Cache) CleanupExpired() int {
	now := time.Now()
	c.mu.Lock()
	var expired []string
	for key, e := range c.entries {
		if e.expired(c.cfg.TTL, now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		c.removeLocked(key)
	}
	c.mu.Unlock()

	if len(expired) > 0 {
		c.bumpStats(func(s *Stats) { s.Expirations += uint64(len(expired)) })
	}
	return len(expired)
}

// Clear drops every entry. Counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.order = nil
	c.mu.Unlock()
}

// Keys returns current cache keys ordered least recently used first.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	return keys
}

// EntryAge returns how long ago the keyed entry was stored.
func (c *Cache) EntryAge(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return time.Since(e.storedAt), true
}

// Stats returns a snapshot of the counters plus derived values.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	c.lifecycleMu.Lock()
	active := c.stopCh != nil
	c.lifecycleMu.Unlock()

	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	s := c.stats
	s.Entries = entries
	s.BackgroundActive = active
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *Cache) bumpStats(fn func(*Stats)) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	fn(&c.stats)
}

// StartBackgroundRefresh launches the prefetch loop. Calling it while
// the loop is running is a no-op.
func (c *Cache) StartBackgroundRefresh() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.stopCh != nil {
		return
	}
	stopCh := make(chan struct{})
	c.stopCh = stopCh
	safego.Go(func() {
		wait.Until(c.refreshPass, c.cfg.RefreshInterval, stopCh)
	})
	log.Info("cache background refresh started, interval %s", c.cfg.RefreshInterval)
}

// StopBackgroundRefresh stops the prefetch loop. Safe to call when the
// loop was never started.
func (c *Cache) StopBackgroundRefresh() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	c.stopCh = nil
	log.Info("cache background refresh stopped")
}

// refreshPass refreshes entries whose remaining TTL fraction dipped to
// the prefetch threshold, bounded by the refresh semaphore. A failed
// refresh leaves the stale entry in place so readers keep getting data.
func (c *Cache) refreshPass() {
	now := time.Now()

	c.mu.Lock()
	var candidates []string
	for key, e := range c.entries {
		if e.remainingFraction(c.cfg.TTL, now) <= c.cfg.PrefetchThreshold {
			candidates = append(candidates, key)
		}
	}
	c.mu.Unlock()

	for _, key := range candidates {
		select {
		case c.refreshSem <- struct{}{}:
		default:
			// Concurrency cap reached; remaining candidates wait for
			// the next pass.
			return
		}
		key := key
		safego.Go(func() {
			defer func() { <-c.refreshSem }()
			c.refreshKey(key)
		})
	}
}

func (c *Cache) refreshKey(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RefreshInterval)
	defer cancel()

	start := time.Now()
	result, err := c.collector.Collect(ctx)
	if err != nil {
		c.bumpStats(func(s *Stats) { s.FailedRefreshes++ })
		log.Warn("background refresh for key %q failed: %v", key, err)
		return
	}

	c.store(key, result, time.Since(start))
	c.bumpStats(func(s *Stats) { s.Refreshes++ })
	log.Debug("background refresh completed for key %q", key)
}
