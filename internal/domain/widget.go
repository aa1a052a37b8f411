/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// TypeGroup is the widget type that acts as a group header.
const TypeGroup = "group"

// Condition gates a widget's visibility on an entity state.
type Condition struct {
	Entity   string `json:"entity,omitempty"`
	Operator string `json:"operator,omitempty"`
	State    string `json:"state,omitempty"`
	Min      string `json:"min,omitempty"`
	Max      string `json:"max,omitempty"`
}

// IsZero reports whether no condition is set.
func (c Condition) IsZero() bool { return c == Condition{} }

// Widget is a positioned, typed element on a page.
type Widget struct {
	ID        string
	Type      string
	X, Y      int
	Width     int
	Height    int
	Title     string
	EntityID  string
	EntityID2 string
	// ParentID references a widget on the same page, usually a group.
	ParentID string
	Hidden   bool
	Locked   bool
	// HiddenByMode is set when a rendering-mode switch hid the widget, so a
	// later switch only reveals widgets it hid itself.
	HiddenByMode bool
	Condition    Condition
	Props        Props
	// Extra holds plugin-private keys the core never interprets.
	Extra map[string]string
}

// NewWidget returns a widget of widgetType with default size and props.
func NewWidget(id, widgetType string) *Widget {
	w, h := DefaultSize(widgetType)
	return &Widget{ID: id, Type: widgetType, Width: w, Height: h, Props: NewProps(widgetType)}
}

// IsGroup reports whether w is a group header.
func (w *Widget) IsGroup() bool { return w != nil && w.Type == TypeGroup }

// Clone returns a deep copy of w.
func (w *Widget) Clone() *Widget {
	if w == nil {
		return nil
	}
	c := *w
	if w.Props != nil {
		c.Props = w.Props.Clone()
	}
	if w.Extra != nil {
		c.Extra = maps.Clone(w.Extra)
	}
	return &c
}

// Equal reports structural equality, including props and extras.
func (w *Widget) Equal(o *Widget) bool {
	if w == nil || o == nil {
		return w == o
	}
	if w.ID != o.ID || w.Type != o.Type || w.X != o.X || w.Y != o.Y ||
		w.Width != o.Width || w.Height != o.Height || w.Title != o.Title ||
		w.EntityID != o.EntityID || w.EntityID2 != o.EntityID2 || w.ParentID != o.ParentID ||
		w.Hidden != o.Hidden || w.Locked != o.Locked || w.HiddenByMode != o.HiddenByMode ||
		w.Condition != o.Condition {
		return false
	}
	if len(w.Extra) != len(o.Extra) || !maps.Equal(w.Extra, o.Extra) {
		return false
	}
	return propsEqual(w.Props, o.Props)
}

// SetAttr assigns a prop by key; keys the variant does not have go to Extra.
func (w *Widget) SetAttr(key, raw string) {
	if w.Props == nil {
		w.Props = NewProps(w.Type)
	}
	if SetProp(w.Props, key, raw) {
		return
	}
	if HasProp(w.Props, key) {
		return
	}
	if w.Extra == nil {
		w.Extra = map[string]string{}
	}
	w.Extra[key] = raw
}

// Attr returns a prop or extra value by key.
func (w *Widget) Attr(key string) (string, bool) {
	if v, ok := PropText(w.Props, key); ok {
		return v, true
	}
	v, ok := w.Extra[key]
	return v, ok
}

// WidgetPatch is a shallow update; nil fields are left unchanged.
type WidgetPatch struct {
	X, Y          *int
	Width, Height *int
	Title         *string
	EntityID      *string
	EntityID2     *string
	ParentID      *string
	Hidden        *bool
	Locked        *bool
	Condition     *Condition
	// Props are merged key by key through SetAttr.
	Props map[string]string
}

// Apply merges p into w.
func (p WidgetPatch) Apply(w *Widget) {
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setStr := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&w.X, p.X)
	setInt(&w.Y, p.Y)
	setInt(&w.Width, p.Width)
	setInt(&w.Height, p.Height)
	setStr(&w.Title, p.Title)
	setStr(&w.EntityID, p.EntityID)
	setStr(&w.EntityID2, p.EntityID2)
	setStr(&w.ParentID, p.ParentID)
	if p.Hidden != nil {
		w.Hidden = *p.Hidden
		if !*p.Hidden {
			w.HiddenByMode = false
		}
	}
	if p.Locked != nil {
		w.Locked = *p.Locked
	}
	if p.Condition != nil {
		w.Condition = *p.Condition
	}
	for k, v := range p.Props {
		w.SetAttr(k, v)
	}
}

// Ptr is a helper for building patches.
func Ptr[T any](v T) *T { return &v }

type widgetJSON struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	X            int            `json:"x"`
	Y            int            `json:"y"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	Title        string         `json:"title,omitempty"`
	EntityID     string         `json:"entity_id,omitempty"`
	EntityID2    string         `json:"entity_id_2,omitempty"`
	ParentID     string         `json:"parentId,omitempty"`
	Hidden       bool           `json:"hidden,omitempty"`
	Locked       bool           `json:"locked,omitempty"`
	HiddenByMode bool           `json:"hiddenByMode,omitempty"`
	Condition    *Condition     `json:"condition,omitempty"`
	Props        map[string]any `json:"props"`
}

// MarshalJSON writes props as one flat object; extras are merged in as strings.
func (w *Widget) MarshalJSON() ([]byte, error) {
	j := widgetJSON{
		ID: w.ID, Type: w.Type, X: w.X, Y: w.Y, Width: w.Width, Height: w.Height,
		Title: w.Title, EntityID: w.EntityID, EntityID2: w.EntityID2, ParentID: w.ParentID,
		Hidden: w.Hidden, Locked: w.Locked, HiddenByMode: w.HiddenByMode,
		Props: map[string]any{},
	}
	if !w.Condition.IsZero() {
		c := w.Condition
		j.Condition = &c
	}
	for k, v := range w.Extra {
		j.Props[k] = v
	}
	for _, kv := range FlattenProps(w.Props) {
		j.Props[kv.Key] = kv.Value
	}
	return json.Marshal(j)
}

// UnmarshalJSON fills per-type defaults before applying the stored props.
func (w *Widget) UnmarshalJSON(b []byte) error {
	var j widgetJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	if j.Type == "" {
		return fmt.Errorf("widget %q: missing type", j.ID)
	}
	*w = Widget{
		ID: j.ID, Type: j.Type, X: j.X, Y: j.Y, Width: j.Width, Height: j.Height,
		Title: j.Title, EntityID: j.EntityID, EntityID2: j.EntityID2, ParentID: j.ParentID,
		Hidden: j.Hidden, Locked: j.Locked, HiddenByMode: j.HiddenByMode,
		Props: NewProps(j.Type),
	}
	if j.Condition != nil {
		w.Condition = *j.Condition
	}
	for k, v := range j.Props {
		if SetPropValue(w.Props, k, v) {
			continue
		}
		if w.Extra == nil {
			w.Extra = map[string]string{}
		}
		w.Extra[k] = scalarText(v)
	}
	return nil
}

func scalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
