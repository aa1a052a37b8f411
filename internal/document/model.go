/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package document owns the live layout document: its pages, widgets and the
// widget id index. Every mutation notifies the attached emitter.
package document

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"displaydesigner/internal/domain"
	"displaydesigner/internal/events"
	"displaydesigner/internal/hierarchy"
)

// ErrLastPage is returned when deleting the only remaining page.
var ErrLastPage = errors.New("cannot delete the last page")

// Options configures a Model.
type Options struct {
	// Emitter receives StateChanged and PageChanged; nil discards.
	Emitter events.Emitter
	// NewID generates ids with the given prefix; nil uses random UUIDs.
	NewID func(prefix string) string
}

// Model is the document plus the widget index. It assumes a single writer.
type Model struct {
	doc   *domain.Document
	index map[string]*domain.Widget
	emit  events.Emitter
	newID func(prefix string) string
}

// NewID returns prefix followed by 12 hex chars of a random UUID.
func NewID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// New wraps doc. A nil or page-less document gets one empty page.
func New(doc *domain.Document, opts Options) *Model {
	if doc == nil {
		doc = &domain.Document{Settings: domain.DefaultSettings(), DeviceModel: domain.DefaultDeviceModel}
	}
	if len(doc.Pages) == 0 {
		doc.Pages = []*domain.Page{domain.NewPage("page_0", "Page 1")}
	}
	m := &Model{doc: doc, emit: opts.Emitter, newID: opts.NewID}
	if m.emit == nil {
		m.emit = events.Discard
	}
	if m.newID == nil {
		m.newID = NewID
	}
	if doc.CurrentPageIndex < 0 || doc.CurrentPageIndex >= len(doc.Pages) {
		doc.CurrentPageIndex = 0
	}
	m.RebuildIndex()
	return m
}

func (m *Model) changed() { m.emit.Emit(context.Background(), events.StateChanged, nil) }

func (m *Model) pageChanged(force bool) {
	m.emit.Emit(context.Background(), events.PageChanged, events.PageChange{Index: m.doc.CurrentPageIndex, ForceFocus: force})
}

// Touch emits StateChanged without mutating anything.
func (m *Model) Touch() { m.changed() }

// SetEmitter replaces the notification sink.
func (m *Model) SetEmitter(e events.Emitter) {
	if e == nil {
		e = events.Discard
	}
	m.emit = e
}

// GenerateID returns a fresh id with prefix that is not in use.
func (m *Model) GenerateID(prefix string) string {
	for {
		id := m.newID(prefix)
		if _, taken := m.index[id]; !taken && !m.pageIDTaken(id) {
			return id
		}
	}
}

func (m *Model) pageIDTaken(id string) bool {
	return slices.ContainsFunc(m.doc.Pages, func(p *domain.Page) bool { return p.ID == id })
}

// Document returns the live document. Callers must not mutate it directly.
func (m *Model) Document() *domain.Document { return m.doc }

// Pages returns the live page list.
func (m *Model) Pages() []*domain.Page { return m.doc.Pages }

// Page returns page i or nil.
func (m *Model) Page(i int) *domain.Page {
	if i < 0 || i >= len(m.doc.Pages) {
		return nil
	}
	return m.doc.Pages[i]
}

func (m *Model) CurrentPageIndex() int { return m.doc.CurrentPageIndex }

func (m *Model) CurrentPage() *domain.Page { return m.Page(m.doc.CurrentPageIndex) }

// Widget returns the live widget with id, or nil.
func (m *Model) Widget(id string) *domain.Widget { return m.index[id] }

// PageOf returns the index of the page holding widget id, or -1.
func (m *Model) PageOf(id string) int {
	for i, p := range m.doc.Pages {
		if p.IndexOf(id) >= 0 {
			return i
		}
	}
	return -1
}

// Snapshot deep-copies the undoable state.
func (m *Model) Snapshot() domain.Snapshot { return m.doc.Snapshot() }

// CanvasSize returns the drawable area for the current device and orientation.
func (m *Model) CanvasSize() (int, int) { return m.doc.CanvasSize() }

// RebuildIndex recomputes the widget id index from the pages.
func (m *Model) RebuildIndex() {
	m.index = make(map[string]*domain.Widget)
	for _, p := range m.doc.Pages {
		for _, w := range p.Widgets {
			m.index[w.ID] = w
		}
	}
}

// ReplacePages swaps in pages wholesale and rebuilds the index.
func (m *Model) ReplacePages(pages []*domain.Page, deviceName string) {
	if len(pages) == 0 {
		pages = []*domain.Page{domain.NewPage(m.GenerateID("page_"), "Page 1")}
	}
	m.doc.Pages = pages
	m.doc.DeviceName = deviceName
	if m.doc.CurrentPageIndex >= len(pages) {
		m.doc.CurrentPageIndex = len(pages) - 1
	}
	m.RebuildIndex()
	m.changed()
}

// ReplaceDocument swaps in a whole document, e.g. after loading a payload.
func (m *Model) ReplaceDocument(doc *domain.Document) {
	if doc == nil {
		return
	}
	if len(doc.Pages) == 0 {
		doc.Pages = []*domain.Page{domain.NewPage(m.GenerateID("page_"), "Page 1")}
	}
	if doc.CurrentPageIndex < 0 || doc.CurrentPageIndex >= len(doc.Pages) {
		doc.CurrentPageIndex = 0
	}
	m.doc = doc
	m.RebuildIndex()
	m.changed()
	m.pageChanged(true)
}

var pageNameRE = regexp.MustCompile(`^Page (\d+)$`)

func (m *Model) nextPageName() string {
	n := len(m.doc.Pages)
	for _, p := range m.doc.Pages {
		if mm := pageNameRE.FindStringSubmatch(p.Name); mm != nil {
			if v, err := strconv.Atoi(mm[1]); err == nil && v > n {
				n = v
			}
		}
	}
	return fmt.Sprintf("Page %d", n+1)
}

// AddPage inserts an empty page at position at (appends when at is out of
// range) and returns it. Appending selects the new page.
func (m *Model) AddPage(at int) *domain.Page {
	p := domain.NewPage(m.GenerateID("page_"), m.nextPageName())
	if at < 0 || at >= len(m.doc.Pages) {
		m.doc.Pages = append(m.doc.Pages, p)
		m.doc.CurrentPageIndex = len(m.doc.Pages) - 1
	} else {
		m.doc.Pages = slices.Insert(m.doc.Pages, at, p)
		if at <= m.doc.CurrentPageIndex {
			m.doc.CurrentPageIndex++
		}
	}
	m.changed()
	m.pageChanged(false)
	return p
}

// DeletePage removes page i. Out-of-range indices are ignored.
func (m *Model) DeletePage(i int) error {
	if i < 0 || i >= len(m.doc.Pages) {
		return nil
	}
	if len(m.doc.Pages) <= 1 {
		return ErrLastPage
	}
	for _, w := range m.doc.Pages[i].Widgets {
		delete(m.index, w.ID)
	}
	m.doc.Pages = slices.Delete(m.doc.Pages, i, i+1)
	cur := m.doc.CurrentPageIndex
	switch {
	case i < cur:
		cur--
	case cur >= len(m.doc.Pages):
		cur = len(m.doc.Pages) - 1
	}
	m.doc.CurrentPageIndex = cur
	m.changed()
	m.pageChanged(true)
	return nil
}

// DuplicatePage deep-copies page i with fresh widget ids, inserts it after
// the source and selects it. Parent references are remapped to the copies.
func (m *Model) DuplicatePage(i int) *domain.Page {
	src := m.Page(i)
	if src == nil {
		return nil
	}
	dup := src.Clone()
	dup.ID = m.GenerateID("page_")
	dup.Name = src.Name + " (Copy)"

	remap := make(map[string]string, len(dup.Widgets))
	used := make(map[string]bool, len(dup.Widgets))
	for _, w := range dup.Widgets {
		id := m.GenerateID("w_")
		for used[id] {
			id = m.GenerateID("w_")
		}
		used[id] = true
		remap[w.ID] = id
	}
	for _, w := range dup.Widgets {
		w.ID = remap[w.ID]
		if w.ParentID != "" {
			w.ParentID = remap[w.ParentID]
		}
	}
	m.doc.Pages = slices.Insert(m.doc.Pages, i+1, dup)
	for _, w := range dup.Widgets {
		m.index[w.ID] = w
	}
	m.doc.CurrentPageIndex = i + 1
	m.changed()
	m.pageChanged(false)
	return dup
}

// RenamePage sets the trimmed name of page i; empty names are ignored.
func (m *Model) RenamePage(i int, name string) bool {
	p := m.Page(i)
	name = strings.TrimSpace(name)
	if p == nil || name == "" || p.Name == name {
		return false
	}
	p.Name = name
	m.changed()
	return true
}

// UpdatePage applies fn to page i.
func (m *Model) UpdatePage(i int, fn func(p *domain.Page)) bool {
	p := m.Page(i)
	if p == nil {
		return false
	}
	fn(p)
	m.changed()
	return true
}

// ReorderPage moves page from to position to; the current page follows its page.
func (m *Model) ReorderPage(from, to int) bool {
	n := len(m.doc.Pages)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return false
	}
	p := m.doc.Pages[from]
	m.doc.Pages = slices.Delete(m.doc.Pages, from, from+1)
	m.doc.Pages = slices.Insert(m.doc.Pages, to, p)
	cur := m.doc.CurrentPageIndex
	switch {
	case cur == from:
		cur = to
	case from < cur && cur <= to:
		cur--
	case to <= cur && cur < from:
		cur++
	}
	m.doc.CurrentPageIndex = cur
	m.changed()
	m.pageChanged(true)
	return true
}

// SetCurrentPageIndex selects page i; out-of-range indices are ignored.
func (m *Model) SetCurrentPageIndex(i int, forceFocus bool) bool {
	if i < 0 || i >= len(m.doc.Pages) {
		return false
	}
	if i == m.doc.CurrentPageIndex && !forceFocus {
		return false
	}
	m.doc.CurrentPageIndex = i
	m.pageChanged(forceFocus)
	return true
}

// AddWidget appends w to page pageIndex (the current page when negative).
// Missing ids are generated and missing props are default-filled.
func (m *Model) AddWidget(w *domain.Widget, pageIndex int) bool {
	if w == nil {
		return false
	}
	if pageIndex < 0 {
		pageIndex = m.doc.CurrentPageIndex
	}
	p := m.Page(pageIndex)
	if p == nil {
		return false
	}
	if _, taken := m.index[w.ID]; w.ID == "" || taken {
		w.ID = m.GenerateID("w_")
	}
	if w.Props == nil {
		w.Props = domain.NewProps(w.Type)
	}
	p.Widgets = append(p.Widgets, w)
	m.index[w.ID] = w
	if w.ParentID != "" {
		hierarchy.SyncPage(p)
	}
	m.changed()
	return true
}

// UpdateWidget merges patch into widget id. Changing the parent re-syncs the
// page; a parent on another page or below id is refused.
func (m *Model) UpdateWidget(id string, patch domain.WidgetPatch) bool {
	w := m.index[id]
	if w == nil {
		return false
	}
	oldParent := w.ParentID
	patch.Apply(w)
	if w.ParentID == w.ID {
		w.ParentID = oldParent
	}
	if w.ParentID != oldParent {
		if pi := m.PageOf(id); pi >= 0 {
			p := m.doc.Pages[pi]
			if w.ParentID != "" && (p.IndexOf(w.ParentID) < 0 || hierarchy.CreatesCycle(id, w.ParentID, m.Widget)) {
				w.ParentID = oldParent
			}
			hierarchy.SyncPage(p)
		}
	}
	m.changed()
	return true
}

// UpdateWidgetsProps merges props into every listed widget.
func (m *Model) UpdateWidgetsProps(ids []string, props map[string]string) int {
	n := 0
	for _, id := range ids {
		w := m.index[id]
		if w == nil {
			continue
		}
		for k, v := range props {
			w.SetAttr(k, v)
		}
		n++
	}
	if n > 0 {
		m.changed()
	}
	return n
}

// DeleteWidgets removes the listed widgets; unknown ids are ignored.
// Children of a deleted widget that stay behind become top-level.
func (m *Model) DeleteWidgets(ids []string) int {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.index[id]; ok {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		return 0
	}
	for _, p := range m.doc.Pages {
		p.Widgets = slices.DeleteFunc(p.Widgets, func(w *domain.Widget) bool { return drop[w.ID] })
		for _, w := range p.Widgets {
			if drop[w.ParentID] {
				w.ParentID = ""
			}
		}
	}
	for id := range drop {
		delete(m.index, id)
	}
	m.changed()
	return len(drop)
}

// ReorderWidget moves a widget within page pageIndex from one position to another.
func (m *Model) ReorderWidget(pageIndex, from, to int) bool {
	p := m.Page(pageIndex)
	if p == nil {
		return false
	}
	n := len(p.Widgets)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return false
	}
	w := p.Widgets[from]
	p.Widgets = slices.Delete(p.Widgets, from, from+1)
	p.Widgets = slices.Insert(p.Widgets, to, w)
	m.changed()
	return true
}

// ClearPage removes every widget from page pageIndex, keeping locked ones
// when preserveLocked is set.
func (m *Model) ClearPage(pageIndex int, preserveLocked bool) (deleted, preserved int) {
	p := m.Page(pageIndex)
	if p == nil {
		return 0, 0
	}
	var keep []*domain.Widget
	for _, w := range p.Widgets {
		if preserveLocked && w.Locked {
			keep = append(keep, w)
			continue
		}
		delete(m.index, w.ID)
		deleted++
	}
	kept := make(map[string]bool, len(keep))
	for _, w := range keep {
		kept[w.ID] = true
	}
	for _, w := range keep {
		if w.ParentID != "" && !kept[w.ParentID] {
			w.ParentID = ""
		}
	}
	if keep == nil {
		keep = []*domain.Widget{}
	}
	p.Widgets = keep
	if deleted > 0 {
		m.changed()
	}
	return deleted, len(keep)
}

// SyncHierarchy normalizes widget order on page pageIndex, or on every page when negative.
func (m *Model) SyncHierarchy(pageIndex int) {
	if pageIndex < 0 {
		for _, p := range m.doc.Pages {
			hierarchy.SyncPage(p)
		}
	} else if p := m.Page(pageIndex); p != nil {
		hierarchy.SyncPage(p)
	} else {
		return
	}
	m.changed()
}

// SetDeviceName renames the device.
func (m *Model) SetDeviceName(name string) {
	if m.doc.DeviceName == name {
		return
	}
	m.doc.DeviceName = name
	m.changed()
}

// SetDeviceModel switches the hardware profile; the canvas may change size.
func (m *Model) SetDeviceModel(model string) {
	if m.doc.DeviceModel == model {
		return
	}
	m.doc.DeviceModel = model
	m.changed()
	m.pageChanged(true)
}

// UpdateSettings applies fn to the device settings.
func (m *Model) UpdateSettings(fn func(s *domain.DeviceSettings)) {
	before := m.doc.Settings
	fn(&m.doc.Settings)
	m.changed()
	if before.Orientation != m.doc.Settings.Orientation {
		m.pageChanged(true)
	}
}
