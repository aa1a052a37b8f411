/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package plugin defines the capability interface through which widget types
// turn into generated output, and a registry of the available plugins.
package plugin

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"displaydesigner/internal/domain"
)

// Mode is an output format / rendering mode.
type Mode string

const (
	ModeDirect      Mode = "direct"
	ModeLVGL        Mode = "lvgl"
	ModeOEPL        Mode = "oepl"
	ModeOpenDisplay Mode = "opendisplay"
)

// ParseMode normalizes s, defaulting to ModeDirect.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLVGL:
		return ModeLVGL
	case ModeOEPL:
		return ModeOEPL
	case ModeOpenDisplay, "odp":
		return ModeOpenDisplay
	default:
		return ModeDirect
	}
}

// Context is what a plugin sees while exporting one widget.
type Context struct {
	Widget    *domain.Widget
	Page      *domain.Page
	PageIndex int
	Document  *domain.Document
	// Dark is true when the page renders in dark mode.
	Dark bool
}

// Plugin converts one widget type into output fragments.
type Plugin interface {
	Type() string
	// Modes lists the formats Export supports.
	Modes() []Mode
	// Export returns the fragment lines for ctx.Widget, without indentation.
	Export(mode Mode, ctx *Context) []string
}

// RequirementCollector is implemented by plugins that need fonts or glyphs.
type RequirementCollector interface {
	CollectRequirements(ctx *Context, req *Requirements)
}

// DeclarationProvider is implemented by plugins that need document-level
// declarations, emitted once per document per provider.
type DeclarationProvider interface {
	Declarations(mode Mode, doc *domain.Document, widgets []*Context) []string
}

// RefreshTriggerer is implemented by plugins whose widgets should refresh the
// display when an external entity changes.
type RefreshTriggerer interface {
	RefreshTriggers(ctx *Context) []Trigger
}

// Trigger is an external entity that refreshes the display on change.
type Trigger struct {
	EntityID string
	// Text marks entities whose state is a string.
	Text bool
}

// Registry maps widget types to plugins. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{plugins: map[string]Plugin{}} }

// Register adds p; a type can only be registered once.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := p.Type()
	if t == "" {
		return fmt.Errorf("plugin has empty type")
	}
	if _, dup := r.plugins[t]; dup {
		return fmt.Errorf("plugin %q already registered", t)
	}
	r.plugins[t] = p
	return nil
}

// MustRegister panics on registration errors.
func (r *Registry) MustRegister(ps ...Plugin) {
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

// Get returns the plugin for widgetType.
func (r *Registry) Get(widgetType string) (Plugin, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[widgetType]
	return p, ok
}

// Has reports whether widgetType is registered.
func (r *Registry) Has(widgetType string) bool {
	_, ok := r.Get(widgetType)
	return ok
}

// Types lists registered types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.plugins))
	for t := range r.plugins {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether p exports to mode.
func Supports(p Plugin, mode Mode) bool { return slices.Contains(p.Modes(), mode) }

// Compatible reports whether w can be shown in rendering mode. Widgets
// without a plugin are treated as compatible.
func (r *Registry) Compatible(w *domain.Widget, mode Mode) bool {
	p, ok := r.Get(w.Type)
	if !ok {
		return true
	}
	switch mode {
	case ModeOEPL, ModeOpenDisplay:
		return Supports(p, mode)
	case ModeLVGL:
		return strings.HasPrefix(w.Type, "lvgl_") || Supports(p, ModeLVGL)
	default:
		if strings.HasPrefix(w.Type, "lvgl_") || strings.HasPrefix(w.Type, "oepl_") {
			return false
		}
		return Supports(p, ModeDirect)
	}
}

// ModeForType returns the rendering mode a widget type forces, if any.
func ModeForType(widgetType string) (Mode, bool) {
	switch {
	case strings.HasPrefix(widgetType, "lvgl_"):
		return ModeLVGL, true
	case strings.HasPrefix(widgetType, "oepl_"):
		return ModeOEPL, true
	case strings.HasPrefix(widgetType, "odp_"), strings.HasPrefix(widgetType, "opendisplay_"):
		return ModeOpenDisplay, true
	}
	return "", false
}
