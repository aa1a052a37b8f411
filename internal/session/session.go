/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session provides EditorSession, the per-document facade that ties
// the document model, undo history, event bus, plugin registry and data
// cache together. There is no package-level state: every consumer is handed
// the *Session it works on.
//
// A Session assumes a single logical writer. Each public call is one turn of
// the editor's event loop; work deferred by earlier turns (history restore
// bookkeeping, data-fetch notifications) runs when the next top-level call
// starts, or when Tick is called.
package session

import (
	"context"
	"log/slog"
	"math"
	"time"

	"displaydesigner/internal/cache"
	"displaydesigner/internal/document"
	"displaydesigner/internal/domain"
	"displaydesigner/internal/events"
	applog "displaydesigner/internal/log"
	"displaydesigner/internal/plugin"
	"displaydesigner/internal/undo"
)

const (
	DefaultZoomMin = 0.05
	DefaultZoomMax = 5.0
)

// Options configures a Session. Zero values pick defaults.
type Options struct {
	Document     *domain.Document
	Registry     *plugin.Registry
	HistoryLimit int
	// Fetcher backs Series; without one, graph widgets get no data.
	Fetcher  cache.Fetcher
	CacheTTL time.Duration
	ZoomMin  float64
	ZoomMax  float64
	// SnapDistance is the drag snap threshold in pixels.
	SnapDistance int
	// NewID overrides id generation, mainly for tests.
	NewID func(prefix string) string
	// Now overrides the cache clock, mainly for tests.
	Now func() time.Time
}

// HistoryState is the payload of events.HistoryChanged.
type HistoryState struct {
	Len     int
	Index   int
	CanUndo bool
	CanRedo bool
}

// Session is one open document with its editing state.
type Session struct {
	bus      *events.Bus
	model    *document.Model
	history  *undo.History
	registry *plugin.Registry
	cache    *cache.Cache
	log      *slog.Logger

	// restoring suppresses RecordHistory while a snapshot is being applied.
	// It is cleared by a deferred task, i.e. after the current fan-out.
	restoring bool
	depth     int

	selection []string
	clipboard []*domain.Widget

	zoom             float64
	zoomMin, zoomMax float64
	snapDistance     int
}

// New builds a session around opts.Document (a fresh document when nil) and
// records the initial history entry.
func New(opts Options) *Session {
	s := &Session{
		bus:      events.NewBus(),
		registry: opts.Registry,
		history:  undo.New(undo.Config{Limit: opts.HistoryLimit}),
		log:      applog.WithComponent("session"),
		zoom:     1,
		zoomMin:  opts.ZoomMin,
		zoomMax:  opts.ZoomMax,

		snapDistance: opts.SnapDistance,
	}
	if s.registry == nil {
		s.registry = plugin.Builtin()
	}
	if s.zoomMin <= 0 {
		s.zoomMin = DefaultZoomMin
	}
	if s.zoomMax <= s.zoomMin {
		s.zoomMax = DefaultZoomMax
	}
	s.model = document.New(opts.Document, document.Options{Emitter: s.bus, NewID: opts.NewID})
	if opts.Fetcher != nil {
		s.cache = cache.New(opts.Fetcher, cache.Options{TTL: opts.CacheTTL, Emitter: s.bus.Deferred(), Now: opts.Now})
	}
	s.RecordHistory()
	return s
}

// enter starts a turn. The outermost call first runs work deferred by
// earlier turns; nested calls from listeners do not.
func (s *Session) enter() func() {
	s.depth++
	if s.depth == 1 {
		s.bus.Drain()
	}
	return func() { s.depth-- }
}

// Tick runs deferred work queued so far and returns how many tasks ran.
// Calls made from inside a listener do nothing.
func (s *Session) Tick() int {
	if s.depth > 0 {
		return 0
	}
	s.depth++
	defer func() { s.depth-- }()
	return s.bus.Drain()
}

// Subscribe registers h for event; the returned func unsubscribes.
func (s *Session) Subscribe(event string, h events.Handler) func() {
	return s.bus.Subscribe(event, h)
}

func (s *Session) emit(event string, data any) {
	s.bus.Emit(context.Background(), event, data)
}

// Registry returns the plugin registry used for export and compatibility.
func (s *Session) Registry() *plugin.Registry { return s.registry }

// Document returns the live document. Mutate it only through the session.
func (s *Session) Document() *domain.Document { return s.model.Document() }

func (s *Session) Pages() []*domain.Page { return s.model.Pages() }

func (s *Session) CurrentPageIndex() int { return s.model.CurrentPageIndex() }

func (s *Session) CurrentPage() *domain.Page { return s.model.CurrentPage() }

// Widget returns the live widget with id, or nil.
func (s *Session) Widget(id string) *domain.Widget { return s.model.Widget(id) }

// CanvasSize returns the drawable area for the current device.
func (s *Session) CanvasSize() (int, int) { return s.model.CanvasSize() }

// --- history ---

// RecordHistory pushes the current state unless a restore is in progress or
// nothing changed since the entry under the cursor.
func (s *Session) RecordHistory() bool {
	defer s.enter()()
	if s.restoring {
		return false
	}
	if !s.history.Record(s.model.Snapshot()) {
		return false
	}
	s.emitHistory()
	return true
}

func (s *Session) emitHistory() {
	s.emit(events.HistoryChanged, s.HistoryState())
}

// HistoryState reports the history cursor.
func (s *Session) HistoryState() HistoryState {
	return HistoryState{
		Len:     s.history.Len(),
		Index:   s.history.Index(),
		CanUndo: s.history.CanUndo(),
		CanRedo: s.history.CanRedo(),
	}
}

// HistoryEntries returns copies of every history entry, oldest first.
func (s *Session) HistoryEntries() []domain.Snapshot { return s.history.Entries() }

func (s *Session) CanUndo() bool { return s.history.CanUndo() }

func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// Undo restores the previous entry. It reports false when there is none.
func (s *Session) Undo() bool {
	defer s.enter()()
	snap, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.restore(snap)
	return true
}

// Redo restores the next entry. It reports false when there is none.
func (s *Session) Redo() bool {
	defer s.enter()()
	snap, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.restore(snap)
	return true
}

func (s *Session) restore(snap domain.Snapshot) {
	s.restoring = true
	s.model.ReplacePages(snap.Pages, snap.DeviceName)
	s.pruneSelection()
	s.emitHistory()
	s.bus.Defer(func() { s.restoring = false })
}

// Restoring reports whether a history restore has not yet been settled.
func (s *Session) Restoring() bool { return s.restoring }

// --- pages ---

// AddPage inserts a page at at (appends when out of range).
func (s *Session) AddPage(at int) *domain.Page {
	defer s.enter()()
	p := s.model.AddPage(at)
	s.RecordHistory()
	return p
}

// DeletePage removes page i; document.ErrLastPage refuses the last one.
func (s *Session) DeletePage(i int) error {
	defer s.enter()()
	n := len(s.model.Pages())
	if err := s.model.DeletePage(i); err != nil {
		s.log.Info("delete page refused", slog.Int("page", i), slog.Any("err", err))
		return err
	}
	if len(s.model.Pages()) != n {
		s.pruneSelection()
		s.RecordHistory()
	}
	return nil
}

func (s *Session) DuplicatePage(i int) *domain.Page {
	defer s.enter()()
	p := s.model.DuplicatePage(i)
	if p != nil {
		s.RecordHistory()
	}
	return p
}

func (s *Session) RenamePage(i int, name string) bool {
	defer s.enter()()
	if !s.model.RenamePage(i, name) {
		return false
	}
	s.RecordHistory()
	return true
}

func (s *Session) ReorderPage(from, to int) bool {
	defer s.enter()()
	if !s.model.ReorderPage(from, to) {
		return false
	}
	s.RecordHistory()
	return true
}

// UpdatePage applies fn to page i, e.g. refresh or dark-mode overrides.
func (s *Session) UpdatePage(i int, fn func(p *domain.Page)) bool {
	defer s.enter()()
	if !s.model.UpdatePage(i, fn) {
		return false
	}
	s.RecordHistory()
	return true
}

// SetCurrentPageIndex switches pages and clears the selection.
// Out-of-range indices are ignored.
func (s *Session) SetCurrentPageIndex(i int) bool {
	defer s.enter()()
	if !s.model.SetCurrentPageIndex(i, false) {
		return false
	}
	s.setSelection(nil)
	s.model.Touch()
	return true
}

// --- device and view ---

// SetDeviceName renames the device; the name is part of history.
func (s *Session) SetDeviceName(name string) {
	defer s.enter()()
	s.model.SetDeviceName(name)
	s.RecordHistory()
}

func (s *Session) SetDeviceModel(model string) {
	defer s.enter()()
	s.model.SetDeviceModel(model)
	s.emit(events.SettingsChanged, s.model.Document().Settings)
}

// UpdateSettings applies fn to the device settings. A rendering-mode change
// re-syncs widget visibility.
func (s *Session) UpdateSettings(fn func(st *domain.DeviceSettings)) {
	defer s.enter()()
	before := s.RenderingMode()
	s.model.UpdateSettings(fn)
	s.emit(events.SettingsChanged, s.model.Document().Settings)
	if s.RenderingMode() != before && s.syncVisibilityWithMode() > 0 {
		s.RecordHistory()
	}
}

// RenderingMode returns the document's output mode.
func (s *Session) RenderingMode() plugin.Mode {
	return plugin.ParseMode(s.model.Document().Settings.RenderingMode)
}

// SetRenderingMode switches the output mode.
func (s *Session) SetRenderingMode(mode plugin.Mode) {
	s.UpdateSettings(func(st *domain.DeviceSettings) { st.RenderingMode = string(mode) })
}

// syncVisibilityWithMode hides widgets the mode cannot render and reveals
// widgets that an earlier switch hid. Widgets the user hid stay hidden.
func (s *Session) syncVisibilityWithMode() int {
	mode := s.RenderingMode()
	changed := 0
	for _, p := range s.model.Pages() {
		for _, w := range p.Widgets {
			ok := s.registry.Compatible(w, mode)
			switch {
			case !ok && !w.Hidden:
				w.Hidden = true
				w.HiddenByMode = true
				changed++
			case ok && w.Hidden && w.HiddenByMode:
				w.Hidden = false
				w.HiddenByMode = false
				changed++
			}
		}
	}
	if changed > 0 {
		s.log.Debug("widget visibility synced", slog.String("mode", string(mode)), slog.Int("changed", changed))
		s.model.Touch()
	}
	return changed
}

// checkModeForWidget switches the rendering mode when w only exists in another one.
func (s *Session) checkModeForWidget(w *domain.Widget) {
	want, ok := plugin.ModeForType(w.Type)
	if !ok {
		return
	}
	cur := s.RenderingMode()
	if want == plugin.ModeLVGL && cur != plugin.ModeDirect {
		return
	}
	if want == cur {
		return
	}
	s.log.Info("rendering mode switched for widget", slog.String("type", w.Type), slog.String("mode", string(want)))
	s.SetRenderingMode(want)
}

// Zoom returns the canvas zoom factor.
func (s *Session) Zoom() float64 { return s.zoom }

// SetZoom clamps z into the configured range and returns the applied value.
func (s *Session) SetZoom(z float64) float64 {
	if math.IsNaN(z) {
		return s.zoom
	}
	s.zoom = min(max(z, s.zoomMin), s.zoomMax)
	return s.zoom
}
