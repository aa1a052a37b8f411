/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package events is the editor's notification layer: a synchronous fan-out
// bus plus a deferred queue that models "the next turn of the event loop".
package events

import (
	"context"
	"sync"
)

// Event names.
const (
	StateChanged     = "state_changed"
	PageChanged      = "page_changed"
	WidgetUpdated    = "widget_updated"
	SelectionChanged = "selection_changed"
	SettingsChanged  = "settings_changed"
	HistoryChanged   = "history_changed"
)

// PageChange is the payload of PageChanged.
type PageChange struct {
	Index int
	// ForceFocus asks the viewport to refocus, e.g. when canvas size may have changed.
	ForceFocus bool
}

// Emitter decouples producers from whoever listens.
type Emitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Handler receives one emitted event.
type Handler func(ctx context.Context, data any)

type subscription struct {
	id int
	h  Handler
}

// Bus delivers events synchronously to subscribers and runs deferred work
// when drained. Emit must be called from the owning goroutine; Defer and
// Post are safe from any goroutine.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]subscription
	nextID int
	queue  []func()
}

// NewBus returns an empty bus.
func NewBus() *Bus { return &Bus{subs: map[string][]subscription{}} }

// Subscribe registers h for event and returns a func that removes it.
func (b *Bus) Subscribe(event string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscription{id: id, h: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[event]
		for i, s := range list {
			if s.id == id {
				b.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every subscriber of event before returning.
func (b *Bus) Emit(ctx context.Context, event string, data any) {
	b.mu.Lock()
	list := append([]subscription(nil), b.subs[event]...)
	b.mu.Unlock()
	for _, s := range list {
		s.h(ctx, data)
	}
}

// Defer queues fn to run on the next Drain.
func (b *Bus) Defer(fn func()) {
	b.mu.Lock()
	b.queue = append(b.queue, fn)
	b.mu.Unlock()
}

// Post emits event on the next turn.
func (b *Bus) Post(ctx context.Context, event string, data any) {
	b.Defer(func() { b.Emit(ctx, event, data) })
}

// Pending returns the number of queued deferred tasks.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Drain runs queued tasks turn by turn until none remain. Tasks queued while
// a turn runs execute in a later turn. It returns the number of tasks run.
func (b *Bus) Drain() int {
	n := 0
	for {
		b.mu.Lock()
		turn := b.queue
		b.queue = nil
		b.mu.Unlock()
		if len(turn) == 0 {
			return n
		}
		for _, fn := range turn {
			fn()
			n++
		}
	}
}

// Deferred returns an Emitter whose events are delivered on the next turn.
func (b *Bus) Deferred() Emitter { return deferred{b} }

type deferred struct{ b *Bus }

func (d deferred) Emit(ctx context.Context, event string, data any) { d.b.Post(ctx, event, data) }

// Discard drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(context.Context, string, any) {}

// MockEmitter records emissions for test assertions.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Count returns how many times event was emitted.
func (m *MockEmitter) Count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Events {
		if e.Event == event {
			n++
		}
	}
	return n
}

// Last returns the most recent emission of event.
func (m *MockEmitter) Last(event string) (EmittedEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Events) - 1; i >= 0; i-- {
		if m.Events[i].Event == event {
			return m.Events[i], true
		}
	}
	return EmittedEvent{}, false
}
