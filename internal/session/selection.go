/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"slices"

	"displaydesigner/internal/domain"
	"displaydesigner/internal/events"
	"displaydesigner/internal/hierarchy"
)

// Selection returns the selected widget ids in selection order.
func (s *Session) Selection() []string { return slices.Clone(s.selection) }

// Select selects the group that id belongs to (the widget alone when it is
// ungrouped). With multi, the group is toggled in or out of the selection.
func (s *Session) Select(id string, multi bool) {
	defer s.enter()()
	w := s.model.Widget(id)
	if w == nil {
		if !multi {
			s.setSelection(nil)
		}
		return
	}
	root := hierarchy.Root(w, s.model.Widget)
	unit := append([]string{root.ID}, widgetIDs(s.descendants(root.ID))...)
	if !multi {
		s.setSelection(unit)
		return
	}
	all := true
	for _, u := range unit {
		if !slices.Contains(s.selection, u) {
			all = false
			break
		}
	}
	next := slices.Clone(s.selection)
	if all {
		next = slices.DeleteFunc(next, func(x string) bool { return slices.Contains(unit, x) })
	} else {
		for _, u := range unit {
			if !slices.Contains(next, u) {
				next = append(next, u)
			}
		}
	}
	s.setSelection(next)
}

// SelectWidgets replaces the selection with the known ids in ids.
func (s *Session) SelectWidgets(ids []string) {
	defer s.enter()()
	var keep []string
	for _, id := range ids {
		if s.model.Widget(id) != nil && !slices.Contains(keep, id) {
			keep = append(keep, id)
		}
	}
	s.setSelection(keep)
}

// SelectAll selects every widget on the current page.
func (s *Session) SelectAll() {
	defer s.enter()()
	s.setSelection(widgetIDs(s.model.CurrentPage().Widgets))
}

func (s *Session) ClearSelection() {
	defer s.enter()()
	s.setSelection(nil)
}

func (s *Session) setSelection(next []string) {
	if slices.Equal(next, s.selection) {
		return
	}
	s.selection = slices.Clone(next)
	s.emit(events.SelectionChanged, s.Selection())
}

// pruneSelection drops ids that no longer resolve, e.g. after undo or delete.
func (s *Session) pruneSelection() {
	next := slices.DeleteFunc(slices.Clone(s.selection), func(id string) bool {
		return s.model.Widget(id) == nil
	})
	s.setSelection(next)
}

func (s *Session) selectedWidgets() []*domain.Widget {
	var out []*domain.Widget
	for _, id := range s.selection {
		if w := s.model.Widget(id); w != nil {
			out = append(out, w)
		}
	}
	return out
}

// selectedRoots returns selected widgets that have no selected ancestor.
func (s *Session) selectedRoots() []*domain.Widget {
	var out []*domain.Widget
	for _, w := range s.selectedWidgets() {
		if !s.ancestorSelected(w) {
			out = append(out, w)
		}
	}
	return out
}

func (s *Session) ancestorSelected(w *domain.Widget) bool {
	seen := map[string]bool{w.ID: true}
	for p := s.model.Widget(w.ParentID); p != nil && !seen[p.ID]; p = s.model.Widget(p.ParentID) {
		if slices.Contains(s.selection, p.ID) {
			return true
		}
		seen[p.ID] = true
	}
	return false
}
