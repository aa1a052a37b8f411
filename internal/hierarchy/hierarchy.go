/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package hierarchy keeps a page's flat widget order consistent with its
// parent/child grouping: every parent precedes its descendants and siblings
// keep their relative order.
package hierarchy

import "displaydesigner/internal/domain"

// Sync returns widgets reordered so each parent precedes its descendants.
// Top-level widgets (no parent, or a parent that is not in the slice) keep
// their relative order, and children follow their parent in their original
// relative order. Widgets reachable only through a parent cycle are appended
// in their original order. Sync is idempotent and does not modify its input.
func Sync(widgets []*domain.Widget) []*domain.Widget {
	present := make(map[string]bool, len(widgets))
	for _, w := range widgets {
		present[w.ID] = true
	}
	children := map[string][]*domain.Widget{}
	var top []*domain.Widget
	for _, w := range widgets {
		if isTopLevel(w, present) {
			top = append(top, w)
			continue
		}
		children[w.ParentID] = append(children[w.ParentID], w)
	}

	out := make([]*domain.Widget, 0, len(widgets))
	emitted := make(map[*domain.Widget]bool, len(widgets))
	var emit func(w *domain.Widget)
	emit = func(w *domain.Widget) {
		if emitted[w] {
			return
		}
		emitted[w] = true
		out = append(out, w)
		for _, c := range children[w.ID] {
			emit(c)
		}
	}
	for _, w := range top {
		emit(w)
	}
	for _, w := range widgets {
		emit(w)
	}
	return out
}

func isTopLevel(w *domain.Widget, present map[string]bool) bool {
	return w.ParentID == "" || w.ParentID == w.ID || !present[w.ParentID]
}

// SyncPage reorders p.Widgets in place.
func SyncPage(p *domain.Page) {
	if p == nil {
		return
	}
	p.Widgets = Sync(p.Widgets)
}

// Sanitize clears parent references that point outside the slice or that
// close a cycle. It returns the number of references dropped.
func Sanitize(widgets []*domain.Widget) int {
	byID := make(map[string]*domain.Widget, len(widgets))
	for _, w := range widgets {
		byID[w.ID] = w
	}
	dropped := 0
	for _, w := range widgets {
		if w.ParentID == "" {
			continue
		}
		if _, ok := byID[w.ParentID]; !ok || w.ParentID == w.ID {
			w.ParentID = ""
			dropped++
			continue
		}
		path := map[*domain.Widget]bool{w: true}
		cur := w
		for cur.ParentID != "" {
			p, ok := byID[cur.ParentID]
			if !ok {
				break
			}
			if path[p] {
				cur.ParentID = ""
				dropped++
				break
			}
			path[p] = true
			cur = p
		}
	}
	return dropped
}

// Root walks parent links up to the top-level ancestor of w.
// lookup resolves ids; a missing parent ends the walk.
func Root(w *domain.Widget, lookup func(id string) *domain.Widget) *domain.Widget {
	seen := map[*domain.Widget]bool{}
	for w != nil && w.ParentID != "" && !seen[w] {
		seen[w] = true
		p := lookup(w.ParentID)
		if p == nil {
			break
		}
		w = p
	}
	return w
}

// CreatesCycle reports whether making parentID the parent of id would put
// id among its own ancestors.
func CreatesCycle(id, parentID string, lookup func(id string) *domain.Widget) bool {
	seen := map[string]bool{}
	for cur := parentID; cur != "" && !seen[cur]; {
		if cur == id {
			return true
		}
		seen[cur] = true
		p := lookup(cur)
		if p == nil {
			return false
		}
		cur = p.ParentID
	}
	return false
}

// Descendants returns every widget below rootID, depth first, children in slice order.
func Descendants(widgets []*domain.Widget, rootID string) []*domain.Widget {
	children := map[string][]*domain.Widget{}
	for _, w := range widgets {
		if w.ParentID != "" {
			children[w.ParentID] = append(children[w.ParentID], w)
		}
	}
	var out []*domain.Widget
	seen := map[string]bool{rootID: true}
	var walk func(id string)
	walk = func(id string) {
		for _, c := range children[id] {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
			walk(c.ID)
		}
	}
	walk(rootID)
	return out
}

// Children returns the direct children of id in slice order.
func Children(widgets []*domain.Widget, id string) []*domain.Widget {
	var out []*domain.Widget
	for _, w := range widgets {
		if w.ParentID == id && w.ID != id {
			out = append(out, w)
		}
	}
	return out
}
