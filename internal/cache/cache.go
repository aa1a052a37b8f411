/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cache holds externally fetched series keyed by resource and
// parameter. At most one fetch runs per key; completion is announced with a
// widget-updated event instead of being polled.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"displaydesigner/internal/domain"
	"displaydesigner/internal/events"
	applog "displaydesigner/internal/log"
)

// DefaultTTL is how long a fetched series is served without refetching.
const DefaultTTL = 60 * time.Second

// Key identifies one cached series, e.g. an entity id and a history duration.
type Key struct {
	ResourceID string
	Param      string
}

// Fetcher loads a series. datasource.Client and datasource.PGStore implement it.
type Fetcher interface {
	FetchHistory(ctx context.Context, entityID, duration string) ([]domain.Sample, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, entityID, duration string) ([]domain.Sample, error)

func (f FetcherFunc) FetchHistory(ctx context.Context, entityID, duration string) ([]domain.Sample, error) {
	return f(ctx, entityID, duration)
}

type Options struct {
	TTL time.Duration
	// Emitter receives events.WidgetUpdated with the requesting widget id.
	Emitter events.Emitter
	// Now is the clock; tests inject a fake one.
	Now func() time.Time
}

type entry struct {
	samples []domain.Sample
	at      time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	emit    events.Emitter
	now     func() time.Time
	log     *slog.Logger

	mu      sync.Mutex
	entries map[Key]entry
	errs    map[Key]error

	inflight inflightGuard
}

// New returns a cache backed by f.
func New(f Fetcher, opts Options) *Cache {
	c := &Cache{
		fetcher: f,
		ttl:     opts.TTL,
		emit:    opts.Emitter,
		now:     opts.Now,
		log:     applog.WithComponent("cache"),
		entries: map[Key]entry{},
		errs:    map[Key]error{},
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.emit == nil {
		c.emit = events.Discard
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Get returns the cached series for k and whether it is still fresh. When it
// is missing or stale and no fetch for k is running, a background fetch is
// started; stale data keeps being returned until it completes. widgetID is
// carried in the completion event.
func (c *Cache) Get(ctx context.Context, k Key, widgetID string) ([]domain.Sample, bool) {
	c.mu.Lock()
	e, ok := c.entries[k]
	c.mu.Unlock()
	if ok && c.now().Sub(e.at) < c.ttl {
		return e.samples, true
	}
	if c.fetcher != nil && c.inflight.TryLock(k) {
		go c.fetch(context.WithoutCancel(ctx), k, widgetID)
	}
	if ok {
		return e.samples, false
	}
	return nil, false
}

func (c *Cache) fetch(ctx context.Context, k Key, widgetID string) {
	defer c.inflight.Unlock(k)
	samples, err := c.fetcher.FetchHistory(ctx, k.ResourceID, k.Param)
	c.mu.Lock()
	if err != nil {
		c.errs[k] = err
		c.mu.Unlock()
		c.log.Warn("fetch failed", slog.String("resource", k.ResourceID), slog.String("param", k.Param), slog.Any("err", err))
		return
	}
	delete(c.errs, k)
	c.entries[k] = entry{samples: samples, at: c.now()}
	c.mu.Unlock()
	c.log.Debug("fetched", slog.String("resource", k.ResourceID), slog.Int("samples", len(samples)))
	c.emit.Emit(ctx, events.WidgetUpdated, widgetID)
}

// InFlight reports whether a fetch for k is running.
func (c *Cache) InFlight(k Key) bool { return c.inflight.Running(k) }

// Err returns the error of the last failed fetch for k, cleared by a later success.
func (c *Cache) Err(k Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs[k]
}

// Invalidate drops the cached series for k.
func (c *Cache) Invalidate(k Key) {
	c.mu.Lock()
	delete(c.entries, k)
	c.mu.Unlock()
}

// Wait blocks until running fetches finish or ctx is done.
func (c *Cache) Wait(ctx context.Context) { c.inflight.WaitAll(ctx) }

// inflightGuard marks keys with a fetch in progress. Each running key owns a
// channel that is closed when its fetch ends.
type inflightGuard struct {
	mu      sync.Mutex
	running map[Key]chan struct{}
}

// TryLock marks k as running; it returns false if it already was.
func (g *inflightGuard) TryLock(k Key) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[Key]chan struct{})
	}
	if _, ok := g.running[k]; ok {
		return false
	}
	g.running[k] = make(chan struct{})
	return true
}

func (g *inflightGuard) Unlock(k Key) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if done, ok := g.running[k]; ok {
		close(done)
		delete(g.running, k)
	}
}

func (g *inflightGuard) Running(k Key) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[k]
	return ok
}

// WaitAll blocks until no fetch is running or ctx is cancelled. Fetches
// started while it waits are waited for too.
func (g *inflightGuard) WaitAll(ctx context.Context) {
	for {
		g.mu.Lock()
		pending := make([]chan struct{}, 0, len(g.running))
		for _, done := range g.running {
			pending = append(pending, done)
		}
		g.mu.Unlock()
		if len(pending) == 0 {
			return
		}
		for _, done := range pending {
			select {
			case <-done:
			case <-ctx.Done():
				return
			}
		}
	}
}
