/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package codec

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"displaydesigner/internal/domain"
)

var (
	errNotMarker = errors.New("not a widget marker")
	typeRe       = regexp.MustCompile(`^\w+$`)
)

// IsMarker reports whether line is a widget marker comment.
func IsMarker(line string) bool {
	_, ok := markerPayload(line)
	return ok
}

func markerPayload(line string) (string, bool) {
	s := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(s, "//"):
		s = s[2:]
	case strings.HasPrefix(s, "#"):
		s = s[1:]
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "widget:") {
		return "", false
	}
	return s, true
}

// FormatMarker renders the marker line for w.
func FormatMarker(w *domain.Widget) string {
	var b strings.Builder
	b.WriteString("// widget:")
	b.WriteString(w.Type)
	add := func(k, v string) {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(quote(v))
	}
	add("id", w.ID)
	add("x", strconv.Itoa(w.X))
	add("y", strconv.Itoa(w.Y))
	add("w", strconv.Itoa(w.Width))
	add("h", strconv.Itoa(w.Height))
	if w.Title != "" {
		add("title", w.Title)
	}
	if w.EntityID != "" {
		add("entity", w.EntityID)
	}
	if w.EntityID2 != "" {
		add("entity_2", w.EntityID2)
	}
	if w.ParentID != "" {
		add("parent", w.ParentID)
	}
	if w.Hidden {
		add("hidden", "true")
	}
	if w.Locked {
		add("locked", "true")
	}
	if w.HiddenByMode {
		add("hidden_by_mode", "true")
	}
	for _, kv := range domain.FlattenProps(w.Props) {
		add(kv.Key, fmt.Sprint(kv.Value))
	}
	keys := make([]string, 0, len(w.Extra))
	for k := range w.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, w.Extra[k])
	}
	c := w.Condition
	for _, kv := range [][2]string{{"cond_ent", c.Entity}, {"cond_op", c.Operator}, {"cond_state", c.State}, {"cond_min", c.Min}, {"cond_max", c.Max}} {
		if kv[1] != "" {
			add(kv[0], kv[1])
		}
	}
	return b.String()
}

// ParseMarker decodes one marker line into a widget with default-filled props.
// It fails when the line is not a marker, or lacks a type or id.
func ParseMarker(line string) (*domain.Widget, error) {
	payload, ok := markerPayload(line)
	if !ok {
		return nil, errNotMarker
	}
	pairs, err := Tokenize(payload)
	if err != nil {
		return nil, fmt.Errorf("tokenize marker: %w", err)
	}
	if len(pairs) == 0 || pairs[0].Key != "widget" || !typeRe.MatchString(pairs[0].Value) {
		return nil, errors.New("marker without widget type")
	}
	w := domain.NewWidget("", pairs[0].Value)
	for _, p := range pairs[1:] {
		decodePair(w, p)
	}
	if w.ID == "" {
		return nil, errors.New("marker without id")
	}
	return w, nil
}

func decodePair(w *domain.Widget, p Pair) {
	v := p.Value
	switch p.Key {
	case "type":
	case "id":
		w.ID = v
	case "x":
		w.X = atoi(v, w.X)
	case "y":
		w.Y = atoi(v, w.Y)
	case "w", "width":
		w.Width = atoi(v, w.Width)
	case "h", "height":
		w.Height = atoi(v, w.Height)
	case "title":
		w.Title = v
	case "entity", "ent", "entity_id":
		w.EntityID = v
	case "entity_2", "entity_id_2":
		w.EntityID2 = v
	case "parent", "parent_id":
		w.ParentID = v
	case "hidden":
		w.Hidden = domain.ParseBool(v)
	case "locked":
		w.Locked = domain.ParseBool(v)
	case "hidden_by_mode":
		w.HiddenByMode = domain.ParseBool(v)
	case "cond_ent", "cond_entity":
		w.Condition.Entity = v
	case "cond_op", "cond_operator":
		w.Condition.Operator = v
	case "cond_state":
		w.Condition.State = v
	case "cond_min":
		w.Condition.Min = v
	case "cond_max":
		w.Condition.Max = v
	default:
		w.SetAttr(p.Key, v)
	}
}

// atoi parses integers and truncates decimals; def is kept on failure.
func atoi(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return def
}
