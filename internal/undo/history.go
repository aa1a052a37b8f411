/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps the snapshot history behind undo and redo.
package undo

import (
	"sync"

	"displaydesigner/internal/domain"
)

// DefaultLimit is the number of snapshots kept when Config.Limit is unset.
const DefaultLimit = 50

// Config controls the depth cap.
type Config struct {
	// Limit is the maximum number of entries; the oldest is dropped beyond it.
	Limit int
}

// History is a linear stack of document snapshots with a cursor.
// Entries are deep copies owned by the History; callers get copies back.
// It is safe for concurrent use.
type History struct {
	mu    sync.Mutex
	limit int
	stack []domain.Snapshot
	index int
}

// New returns an empty history.
func New(cfg Config) *History {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &History{limit: cfg.Limit, index: -1}
}

// Record pushes a copy of s unless it equals the entry at the cursor.
// Entries after the cursor are discarded. It reports whether s was pushed.
func (h *History) Record(s domain.Snapshot) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index >= 0 && h.stack[h.index].Equal(s) {
		return false
	}
	h.stack = append(h.stack[:h.index+1], s.Clone())
	h.index++
	if len(h.stack) > h.limit {
		drop := len(h.stack) - h.limit
		h.stack = append([]domain.Snapshot(nil), h.stack[drop:]...)
		h.index -= drop
	}
	return true
}

// Undo moves the cursor back and returns a copy of the entry now under it.
func (h *History) Undo() (domain.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index <= 0 {
		return domain.Snapshot{}, false
	}
	h.index--
	return h.stack[h.index].Clone(), true
}

// Redo moves the cursor forward and returns a copy of the entry now under it.
func (h *History) Redo() (domain.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index >= len(h.stack)-1 {
		return domain.Snapshot{}, false
	}
	h.index++
	return h.stack[h.index].Clone(), true
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index < len(h.stack)-1
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stack)
}

// Index returns the cursor, -1 when empty.
func (h *History) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}

// Current returns a copy of the entry under the cursor.
func (h *History) Current() (domain.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index < 0 {
		return domain.Snapshot{}, false
	}
	return h.stack[h.index].Clone(), true
}

// Entries returns copies of all entries, oldest first.
func (h *History) Entries() []domain.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Snapshot, len(h.stack))
	for i, s := range h.stack {
		out[i] = s.Clone()
	}
	return out
}

// Reset drops every entry.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = nil
	h.index = -1
}

// Limit returns the configured depth cap.
func (h *History) Limit() int { return h.limit }
