// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sethvargo/go-retry"

	"github.com/assetdesk/assetdesk/internal/access"
)

// Default cache configuration values.
const (
	defaultCacheTTL         = 30 * time.Second
	defaultReconnectInitial = 100 * time.Millisecond
	defaultReconnectMax     = 30 * time.Second
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "assetdesk_override_cache_lookups_total",
	Help: "Total number of override cache lookups by result (hit or miss)",
}, []string{"result"})

// Listener delivers change notifications for stored overrides. Each payload
// is the id of the user whose override changed; an empty payload means any
// override may have changed. The channel closes when the connection is lost
// or ctx is cancelled.
type Listener interface {
	Listen(ctx context.Context) (<-chan string, error)
}

type cacheEntry struct {
	override access.Override
	found    bool
	expires  time.Time
}

// CachedStore caches LoadOverride results of the wrapped store for a bounded
// time. Writes through the CachedStore invalidate the user's entry at once;
// writes by other processes are seen after the TTL, or immediately when a
// Listener is attached with Watch.
type CachedStore struct {
	next             access.OverrideStore
	ttl              time.Duration
	now              func() time.Time
	reconnectInitial time.Duration
	reconnectMax     time.Duration
	logger           *slog.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
	// gen advances on every invalidation. A load only fills the cache if gen
	// is unchanged since it started, so an invalidation racing a slow read
	// cannot reinstate the old value.
	gen uint64

	wg sync.WaitGroup
}

// CacheOption configures a CachedStore.
type CacheOption func(*CachedStore)

// WithCacheTTL sets how long a loaded override is served from the cache.
func WithCacheTTL(d time.Duration) CacheOption {
	return func(s *CachedStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithCacheClock replaces time.Now for expiry checks.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(s *CachedStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCacheLogger sets the logger used to report listener failures.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(s *CachedStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReconnectBackoff sets the exponential backoff used when the listener
// connection fails.
func WithReconnectBackoff(initial, maxInterval time.Duration) CacheOption {
	return func(s *CachedStore) {
		if initial > 0 {
			s.reconnectInitial = initial
		}
		if maxInterval > 0 {
			s.reconnectMax = maxInterval
		}
	}
}

// NewCachedStore wraps next with a read-through cache.
func NewCachedStore(next access.OverrideStore, opts ...CacheOption) *CachedStore {
	s := &CachedStore{
		next:             next,
		ttl:              defaultCacheTTL,
		now:              time.Now,
		reconnectInitial: defaultReconnectInitial,
		reconnectMax:     defaultReconnectMax,
		logger:           slog.Default(),
		entries:          make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadOverride implements access.OverrideStore. Failed loads are not cached.
func (s *CachedStore) LoadOverride(ctx context.Context, userID string) (access.Override, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[userID]
	gen := s.gen
	s.mu.RUnlock()
	if ok && s.now().Before(e.expires) {
		cacheLookups.WithLabelValues("hit").Inc()
		return e.override.Clone(), e.found, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	o, found, err := s.next.LoadOverride(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	if s.gen == gen {
		s.entries[userID] = cacheEntry{override: o.Clone(), found: found, expires: s.now().Add(s.ttl)}
	}
	s.mu.Unlock()
	return o, found, nil
}

// SaveOverride implements access.OverrideStore.
func (s *CachedStore) SaveOverride(ctx context.Context, userID string, override access.Override) error {
	defer s.Invalidate(userID)
	return s.next.SaveOverride(ctx, userID, override)
}

// DeleteOverride implements access.OverrideStore.
func (s *CachedStore) DeleteOverride(ctx context.Context, userID string) error {
	defer s.Invalidate(userID)
	return s.next.DeleteOverride(ctx, userID)
}

// Invalidate drops the cached entry for userID.
func (s *CachedStore) Invalidate(userID string) {
	s.mu.Lock()
	delete(s.entries, userID)
	s.gen++
	s.mu.Unlock()
}

// Purge drops every cached entry.
func (s *CachedStore) Purge() {
	s.mu.Lock()
	s.entries = make(map[string]cacheEntry)
	s.gen++
	s.mu.Unlock()
}

// Len returns the number of cached entries, expired ones included.
func (s *CachedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Watch invalidates entries as l reports changes, reconnecting with
// exponential backoff until ctx is cancelled. The whole cache is purged
// whenever the connection is lost or re-established. It returns immediately; call
// Wait after cancelling ctx to wait for the goroutine to exit.
func (s *CachedStore) Watch(ctx context.Context, l Listener) {
	s.wg.Add(1)
	go s.watchLoop(ctx, l)
}

// Wait blocks until the Watch goroutine has exited.
func (s *CachedStore) Wait() {
	s.wg.Wait()
}

func (s *CachedStore) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(s.reconnectMax, retry.NewExponential(s.reconnectInitial))
}

func (s *CachedStore) watchLoop(ctx context.Context, l Listener) {
	defer s.wg.Done()

	backoff := s.newBackoff()
	for {
		ch, err := l.Listen(ctx)
		if err == nil {
			backoff = s.newBackoff()
			// Changes may have been missed while disconnected.
			s.Purge()
			s.consume(ctx, ch)
			s.Purge()
		} else {
			s.logger.Warn("override change listener failed", "error", err)
		}

		if ctx.Err() != nil {
			return
		}
		delay, _ := backoff.Next()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *CachedStore) consume(ctx context.Context, ch <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case userID, ok := <-ch:
			if !ok {
				return
			}
			if userID == "" {
				s.Purge()
			} else {
				s.Invalidate(userID)
			}
		}
	}
}
