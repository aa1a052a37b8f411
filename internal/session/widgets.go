/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"log/slog"
	"math"
	"slices"
	"strconv"

	"displaydesigner/internal/codec"
	"displaydesigner/internal/domain"
	"displaydesigner/internal/hierarchy"
	"displaydesigner/internal/snap"
)

// AddWidget places w on page pageIndex (the current page when negative),
// selects it and records history. Widget types that only exist in another
// rendering mode switch the document to that mode first.
func (s *Session) AddWidget(w *domain.Widget, pageIndex int) bool {
	defer s.enter()()
	if w == nil {
		return false
	}
	s.checkModeForWidget(w)
	if !s.model.AddWidget(w, pageIndex) {
		return false
	}
	s.setSelection([]string{w.ID})
	s.RecordHistory()
	return true
}

// UpdateWidget merges patch into widget id. Locking or hiding a group
// applies to all of its descendants.
func (s *Session) UpdateWidget(id string, patch domain.WidgetPatch) bool {
	defer s.enter()()
	w := s.model.Widget(id)
	if w == nil {
		return false
	}
	if !s.model.UpdateWidget(id, patch) {
		return false
	}
	if w.IsGroup() && (patch.Locked != nil || patch.Hidden != nil) {
		sub := domain.WidgetPatch{Locked: patch.Locked, Hidden: patch.Hidden}
		for _, d := range s.descendants(id) {
			s.model.UpdateWidget(d.ID, sub)
		}
	}
	s.RecordHistory()
	return true
}

// MoveWidget places widget id at x,y, carrying its descendants along.
// With snapping on, the frame snaps to the canvas and to the other visible
// widgets on its page; the guides it snapped to are returned. Locked
// widgets stay put.
func (s *Session) MoveWidget(id string, x, y int, snapping bool) ([]snap.Guide, bool) {
	defer s.enter()()
	w := s.model.Widget(id)
	if w == nil || w.Locked {
		return nil, false
	}
	var guides []snap.Guide
	if snapping {
		skip := map[string]bool{id: true}
		for _, d := range s.descendants(id) {
			skip[d.ID] = true
		}
		var anchors []snap.Rect
		for _, o := range s.pageWidgets(id) {
			if skip[o.ID] || o.Hidden {
				continue
			}
			anchors = append(anchors, snap.Rect{X: o.X, Y: o.Y, W: o.Width, H: o.Height})
		}
		cw, ch := s.CanvasSize()
		var r snap.Rect
		r, guides = snap.Apply(snap.Rect{X: x, Y: y, W: w.Width, H: w.Height}, snap.LinesFor(cw, ch, anchors), s.snapDistance)
		x, y = r.X, r.Y
	}
	if x == w.X && y == w.Y {
		return guides, false
	}
	s.moveBy(w, x-w.X, y-w.Y)
	s.model.Touch()
	s.RecordHistory()
	return guides, true
}

// UpdateWidgetsProps merges props into the listed widgets, or the selection
// when ids is empty.
func (s *Session) UpdateWidgetsProps(ids []string, props map[string]string) int {
	defer s.enter()()
	if len(ids) == 0 {
		ids = s.Selection()
	}
	n := s.model.UpdateWidgetsProps(ids, props)
	if n > 0 {
		s.RecordHistory()
	}
	return n
}

// DeleteWidgets removes the listed widgets, or the selection when ids is
// empty. Deleting a group deletes everything inside it.
func (s *Session) DeleteWidgets(ids []string) int {
	defer s.enter()()
	if len(ids) == 0 {
		ids = s.Selection()
	}
	all := s.withDescendants(ids)
	n := s.model.DeleteWidgets(all)
	if n == 0 {
		return 0
	}
	s.pruneSelection()
	s.RecordHistory()
	return n
}

// MoveWidgetToPage moves a widget and its group to page target.
func (s *Session) MoveWidgetToPage(id string, target int, at *domain.Point) bool {
	defer s.enter()()
	if !s.model.MoveWidgetToPage(id, target, at) {
		return false
	}
	s.pruneSelection()
	s.RecordHistory()
	return true
}

// ReorderWidget changes z-order on page pageIndex. Children stay behind their parent.
func (s *Session) ReorderWidget(pageIndex, from, to int) bool {
	defer s.enter()()
	if !s.model.ReorderWidget(pageIndex, from, to) {
		return false
	}
	s.model.SyncHierarchy(pageIndex)
	s.RecordHistory()
	return true
}

// ClearCurrentPage deletes the current page's widgets, keeping locked ones
// when preserveLocked is set.
func (s *Session) ClearCurrentPage(preserveLocked bool) (deleted, preserved int) {
	defer s.enter()()
	deleted, preserved = s.model.ClearPage(s.model.CurrentPageIndex(), preserveLocked)
	if deleted > 0 {
		s.pruneSelection()
		s.RecordHistory()
	}
	return deleted, preserved
}

func (s *Session) pageWidgets(id string) []*domain.Widget {
	pi := s.model.PageOf(id)
	if pi < 0 {
		return nil
	}
	return s.model.Page(pi).Widgets
}

func (s *Session) descendants(id string) []*domain.Widget {
	return hierarchy.Descendants(s.pageWidgets(id), id)
}

// withDescendants expands ids with every descendant, keeping first-seen order.
func (s *Session) withDescendants(ids []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range ids {
		if s.model.Widget(id) == nil {
			continue
		}
		add(id)
		for _, d := range s.descendants(id) {
			add(d.ID)
		}
	}
	return out
}

// --- clipboard ---

// Copy places copies of the listed widgets (the selection when empty) and
// their descendants on the clipboard. It returns how many were copied.
func (s *Session) Copy(ids ...string) int {
	if len(ids) == 0 {
		ids = s.Selection()
	}
	all := s.withDescendants(ids)
	if len(all) == 0 {
		return 0
	}
	s.clipboard = s.clipboard[:0]
	for _, id := range all {
		s.clipboard = append(s.clipboard, s.model.Widget(id).Clone())
	}
	return len(s.clipboard)
}

// Paste adds the clipboard to the current page under fresh ids, offset by
// 10,10, selects the copies and returns their ids.
func (s *Session) Paste() []string {
	defer s.enter()()
	if len(s.clipboard) == 0 {
		return nil
	}
	remap := make(map[string]string, len(s.clipboard))
	for _, w := range s.clipboard {
		remap[w.ID] = s.model.GenerateID("w_")
	}
	page := s.model.CurrentPageIndex()
	ids := make([]string, 0, len(s.clipboard))
	for _, src := range s.clipboard {
		w := src.Clone()
		w.ID = remap[src.ID]
		w.X += 10
		w.Y += 10
		w.ParentID = remap[src.ParentID]
		if !s.model.AddWidget(w, page) {
			continue
		}
		ids = append(ids, w.ID)
	}
	s.model.SyncHierarchy(page)
	s.setSelection(ids)
	s.RecordHistory()
	return ids
}

// ClipboardLen reports how many widgets are on the clipboard.
func (s *Session) ClipboardLen() int { return len(s.clipboard) }

// --- grouping ---

// GroupSelection wraps the selected widgets in a new group sized to their
// bounding box. It needs at least two widgets, none of which is a group or
// already grouped. It returns the group id, or "" when refused.
func (s *Session) GroupSelection() string {
	defer s.enter()()
	ws := s.selectedWidgets()
	if len(ws) < 2 {
		return ""
	}
	page := s.model.PageOf(ws[0].ID)
	for _, w := range ws {
		if w.IsGroup() || w.ParentID != "" || s.model.PageOf(w.ID) != page {
			return ""
		}
	}
	x0, y0, x1, y1 := bounds(ws)
	g := domain.NewWidget(s.model.GenerateID("group_"), domain.TypeGroup)
	g.Title = "Group"
	g.X, g.Y, g.Width, g.Height = x0, y0, x1-x0, y1-y0
	if !s.model.AddWidget(g, page) {
		return ""
	}
	for _, w := range ws {
		w.ParentID = g.ID
	}
	s.model.SyncHierarchy(page)
	s.setSelection(append([]string{g.ID}, widgetIDs(ws)...))
	s.RecordHistory()
	s.log.Debug("grouped widgets", slog.String("group", g.ID), slog.Int("children", len(ws)))
	return g.ID
}

// UngroupSelection dissolves the listed groups, or the groups in the
// selection. Selected children dissolve their parent group. The former
// children become selected.
func (s *Session) UngroupSelection(ids ...string) int {
	defer s.enter()()
	if len(ids) == 0 {
		ids = s.Selection()
	}
	var groups []string
	for _, id := range ids {
		w := s.model.Widget(id)
		if w == nil {
			continue
		}
		if !w.IsGroup() {
			w = s.model.Widget(w.ParentID)
		}
		if w.IsGroup() && !slices.Contains(groups, w.ID) {
			groups = append(groups, w.ID)
		}
	}
	if len(groups) == 0 {
		return 0
	}
	var freed []string
	for _, gid := range groups {
		for _, c := range hierarchy.Children(s.pageWidgets(gid), gid) {
			freed = append(freed, c.ID)
		}
	}
	s.model.DeleteWidgets(groups)
	s.setSelection(freed)
	s.RecordHistory()
	return len(groups)
}

// --- layout tools ---

// Alignment edges accepted by Align.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
	AlignTop    = "top"
	AlignMiddle = "middle"
	AlignBottom = "bottom"
)

// Align lines up the selected widgets on one edge or center of their
// bounding box. Groups move with their contents. It needs two widgets.
func (s *Session) Align(edge string) bool {
	defer s.enter()()
	ws := s.selectedRoots()
	if len(ws) < 2 {
		return false
	}
	x0, y0, x1, y1 := bounds(ws)
	cx, cy := float64(x0+x1)/2, float64(y0+y1)/2
	for _, w := range ws {
		x, y := w.X, w.Y
		switch edge {
		case AlignLeft:
			x = x0
		case AlignCenter:
			x = round(cx - float64(w.Width)/2)
		case AlignRight:
			x = x1 - w.Width
		case AlignTop:
			y = y0
		case AlignMiddle:
			y = round(cy - float64(w.Height)/2)
		case AlignBottom:
			y = y1 - w.Height
		default:
			return false
		}
		s.moveBy(w, x-w.X, y-w.Y)
	}
	s.model.Touch()
	s.RecordHistory()
	return true
}

// Distribute spaces the selected widgets evenly between the outermost two,
// horizontally or vertically. It needs three widgets.
func (s *Session) Distribute(direction string) bool {
	defer s.enter()()
	ws := s.selectedRoots()
	if len(ws) < 3 {
		return false
	}
	horizontal := direction == "horizontal"
	if !horizontal && direction != "vertical" {
		return false
	}
	pos := func(w *domain.Widget) int {
		if horizontal {
			return w.X
		}
		return w.Y
	}
	size := func(w *domain.Widget) int {
		if horizontal {
			return w.Width
		}
		return w.Height
	}
	slices.SortStableFunc(ws, func(a, b *domain.Widget) int { return pos(a) - pos(b) })
	first, last := ws[0], ws[len(ws)-1]
	span := pos(last) + size(last) - pos(first)
	total := 0
	for _, w := range ws {
		total += size(w)
	}
	gap := float64(span-total) / float64(len(ws)-1)
	cur := float64(pos(first) + size(first))
	for _, w := range ws[1 : len(ws)-1] {
		cur += gap
		at := round(cur)
		if horizontal {
			s.moveBy(w, at-w.X, 0)
		} else {
			s.moveBy(w, 0, at-w.Y)
		}
		cur += float64(size(w))
	}
	s.model.Touch()
	s.RecordHistory()
	return true
}

// CreateDropShadow puts a filled shadow shape 5px down-right behind each
// listed widget (the selection when empty) and fills the widget so it
// covers the shadow. Colors follow the page's effective dark mode.
func (s *Session) CreateDropShadow(ids ...string) int {
	defer s.enter()()
	if len(ids) == 0 {
		ids = s.Selection()
	}
	shadowColor, fillColor := "black", "white"
	if s.currentPageDark() {
		shadowColor, fillColor = "white", "black"
	}
	n := 0
	for _, id := range ids {
		w := s.model.Widget(id)
		if w == nil || w.IsGroup() {
			continue
		}
		pi := s.model.PageOf(id)
		shadow := s.shadowFor(w, shadowColor)
		if !s.model.AddWidget(shadow, pi) {
			continue
		}

		if attrEmpty(w, "border_color") {
			fg := shadowColor
			if c, ok := w.Attr("color"); ok && c != "" {
				fg = c
			}
			w.SetAttr("border_color", fg)
		}
		w.SetAttr("fill", "true")
		w.SetAttr("bg_color", fillColor)
		if isShape(w.Type) {
			w.SetAttr("color", fillColor)
			w.SetAttr("show_border", "true")
		}

		p := s.model.Page(pi)
		if from, to := p.IndexOf(shadow.ID), p.IndexOf(id); from >= 0 && to >= 0 {
			s.model.ReorderWidget(pi, from, to)
		}
		n++
	}
	if n > 0 {
		s.model.Touch()
		s.RecordHistory()
	}
	return n
}

func (s *Session) shadowFor(w *domain.Widget, color string) *domain.Widget {
	r := domain.PropInt(w.Props, "radius", 0)
	for _, k := range []string{"border_radius", "corner_radius"} {
		if v, ok := w.Extra[k]; ok && r == 0 {
			r, _ = strconv.Atoi(v)
		}
	}
	typ := "shape_rect"
	switch {
	case w.Type == "shape_circle":
		typ = "shape_circle"
	case r > 0:
		typ = "rounded_rect"
	}
	sh := domain.NewWidget(s.model.GenerateID("w_"), typ)
	sh.X, sh.Y = w.X+5, w.Y+5
	sh.Width, sh.Height = w.Width, w.Height
	name := w.Title
	if name == "" {
		name = w.Type
	}
	sh.Title = name + " Shadow"
	sh.SetAttr("color", color)
	sh.SetAttr("fill", "true")
	if typ == "rounded_rect" {
		sh.SetAttr("radius", strconv.Itoa(r))
	}
	return sh
}

func (s *Session) currentPageDark() bool {
	return codec.IsDark(s.model.CurrentPage(), s.model.Document().Settings)
}

func isShape(t string) bool {
	return t == "shape_rect" || t == "rounded_rect" || t == "shape_circle"
}

func attrEmpty(w *domain.Widget, key string) bool {
	v, _ := w.Attr(key)
	return v == ""
}

// moveBy shifts w and everything inside it.
func (s *Session) moveBy(w *domain.Widget, dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	w.X += dx
	w.Y += dy
	for _, d := range s.descendants(w.ID) {
		d.X += dx
		d.Y += dy
	}
}

func bounds(ws []*domain.Widget) (x0, y0, x1, y1 int) {
	x0, y0 = ws[0].X, ws[0].Y
	x1, y1 = ws[0].X+ws[0].Width, ws[0].Y+ws[0].Height
	for _, w := range ws[1:] {
		x0, y0 = min(x0, w.X), min(y0, w.Y)
		x1, y1 = max(x1, w.X+w.Width), max(y1, w.Y+w.Height)
	}
	return
}

func round(f float64) int { return int(math.Round(f)) }

func widgetIDs(ws []*domain.Widget) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}
