/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"slices"

	"displaydesigner/internal/domain"
	"displaydesigner/internal/hierarchy"
)

// clampFallbackSize stands in for a zero width or height when clamping.
const clampFallbackSize = 50

// MoveWidgetToPage moves the group containing widget id, as a whole, to
// page target. With at set, the group root lands at that point and the rest
// of the group keeps its offset. Root-level widgets are clamped to the canvas
// and the clamp shift is carried to their descendants. Widgets already on the
// target page stay where they are. It reports false when target is out of
// range or nothing had to move.
func (m *Model) MoveWidgetToPage(id string, target int, at *domain.Point) bool {
	dst := m.Page(target)
	w := m.index[id]
	if dst == nil || w == nil {
		return false
	}
	root := hierarchy.Root(w, func(pid string) *domain.Widget { return m.index[pid] })

	children := map[string][]*domain.Widget{}
	for _, p := range m.doc.Pages {
		for _, c := range p.Widgets {
			if c.ParentID != "" {
				children[c.ParentID] = append(children[c.ParentID], c)
			}
		}
	}
	onTarget := func(x *domain.Widget) bool { return dst.IndexOf(x.ID) >= 0 }

	var moving []*domain.Widget
	inSet := map[string]bool{}
	visited := map[string]bool{}
	var collect func(x *domain.Widget)
	collect = func(x *domain.Widget) {
		if visited[x.ID] {
			return
		}
		visited[x.ID] = true
		if !onTarget(x) {
			moving = append(moving, x)
			inSet[x.ID] = true
		}
		for _, c := range children[x.ID] {
			collect(c)
		}
	}
	collect(root)
	if len(moving) == 0 {
		return false
	}

	for _, p := range m.doc.Pages {
		if p == dst {
			continue
		}
		p.Widgets = slices.DeleteFunc(p.Widgets, func(x *domain.Widget) bool { return inSet[x.ID] })
	}
	if inSet[root.ID] && root.ParentID != "" && !inSet[root.ParentID] {
		root.ParentID = ""
	}

	if at != nil && inSet[root.ID] {
		dx, dy := at.X-root.X, at.Y-root.Y
		for _, x := range moving {
			x.X += dx
			x.Y += dy
		}
	}

	dst.Widgets = append(dst.Widgets, moving...)

	cw, ch := m.CanvasSize()
	for _, x := range moving {
		if x.ParentID != "" && inSet[x.ParentID] {
			continue
		}
		ww, wh := x.Width, x.Height
		if ww == 0 {
			ww = clampFallbackSize
		}
		if wh == 0 {
			wh = clampFallbackSize
		}
		nx := max(0, min(cw-ww, x.X))
		ny := max(0, min(ch-wh, x.Y))
		dx, dy := nx-x.X, ny-x.Y
		if dx == 0 && dy == 0 {
			continue
		}
		x.X, x.Y = nx, ny
		for _, d := range hierarchy.Descendants(moving, x.ID) {
			d.X += dx
			d.Y += dy
		}
	}

	hierarchy.SyncPage(dst)
	m.changed()
	return true
}
