/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"fmt"
	"testing"

	"displaydesigner/internal/domain"
)

func snap(name string) domain.Snapshot {
	p := domain.NewPage("page_0", "Page 1")
	w := domain.NewWidget("w1", "text")
	w.Title = name
	p.Widgets = append(p.Widgets, w)
	return domain.Snapshot{Pages: []*domain.Page{p}, DeviceName: "dev"}
}

func title(s domain.Snapshot) string { return s.Pages[0].Widgets[0].Title }

func TestRecordIsIdempotent(t *testing.T) {
	h := New(Config{})
	h.Record(snap("a"))
	if h.Record(snap("a")) {
		t.Fatalf("identical snapshot must not be pushed")
	}
	if h.Len() != 1 || h.Index() != 0 {
		t.Fatalf("len=%d index=%d", h.Len(), h.Index())
	}
}

func TestUndoRedoInverse(t *testing.T) {
	h := New(Config{})
	const n = 6
	for i := 0; i < n; i++ {
		h.Record(snap(fmt.Sprint(i)))
	}
	for i := 0; i < n-1; i++ {
		if _, ok := h.Undo(); !ok {
			t.Fatalf("undo %d failed", i)
		}
	}
	if h.CanUndo() {
		t.Fatalf("CanUndo at bottom")
	}
	if _, ok := h.Undo(); ok {
		t.Fatalf("undo past bottom succeeded")
	}
	var last domain.Snapshot
	for i := 0; i < n-1; i++ {
		s, ok := h.Redo()
		if !ok {
			t.Fatalf("redo %d failed", i)
		}
		last = s
	}
	if title(last) != fmt.Sprint(n-1) {
		t.Fatalf("redo did not reach top: %q", title(last))
	}
	if h.CanRedo() {
		t.Fatalf("CanRedo at top")
	}
}

func TestRecordTruncatesRedoBranch(t *testing.T) {
	h := New(Config{})
	h.Record(snap("a"))
	h.Record(snap("b"))
	h.Record(snap("c"))
	h.Undo()
	h.Undo()
	h.Record(snap("x"))
	if h.Len() != 2 || h.CanRedo() {
		t.Fatalf("redo branch not discarded: len=%d", h.Len())
	}
	s, _ := h.Current()
	if title(s) != "x" {
		t.Fatalf("current = %q", title(s))
	}
}

func TestLimitDropsOldest(t *testing.T) {
	h := New(Config{Limit: 3})
	for i := 0; i < 5; i++ {
		h.Record(snap(fmt.Sprint(i)))
	}
	if h.Len() != 3 || h.Index() != 2 {
		t.Fatalf("len=%d index=%d", h.Len(), h.Index())
	}
	if e := h.Entries(); title(e[0]) != "2" {
		t.Fatalf("oldest kept = %q", title(e[0]))
	}
}

func TestEntriesAreIsolatedFromCaller(t *testing.T) {
	h := New(Config{})
	s := snap("a")
	h.Record(s)
	s.Pages[0].Widgets[0].Title = "mutated"
	cur, _ := h.Current()
	if title(cur) != "a" {
		t.Fatalf("history shares memory with caller")
	}
	cur.Pages[0].Widgets[0].Title = "mutated again"
	again, _ := h.Current()
	if title(again) != "a" {
		t.Fatalf("history returned shared memory")
	}
}
