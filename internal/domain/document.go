/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain defines the layout document: pages of positioned widgets,
// their typed properties, device settings, and the persisted payload.
package domain

import "slices"

// Page dark-mode and refresh-type values.
const (
	DarkModeInherit = "inherit"
	DarkModeLight   = "light"
	DarkModeDark    = "dark"

	RefreshInterval = "interval"
	RefreshDaily    = "daily"
	RefreshManual   = "manual"
)

// Page is an ordered, named collection of widgets.
type Page struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// RefreshSeconds overrides the device refresh interval for this page; nil inherits.
	RefreshSeconds *int      `json:"refresh_s"`
	RefreshType    string    `json:"refresh_type,omitempty"`
	RefreshTime    string    `json:"refresh_time,omitempty"`
	DarkMode       string    `json:"dark_mode,omitempty"`
	Widgets        []*Widget `json:"widgets"`
}

// NewPage returns an empty page with default refresh and dark-mode settings.
func NewPage(id, name string) *Page {
	return &Page{ID: id, Name: name, RefreshType: RefreshInterval, DarkMode: DarkModeInherit, Widgets: []*Widget{}}
}

// Clone deep-copies the page and its widgets.
func (p *Page) Clone() *Page {
	if p == nil {
		return nil
	}
	c := *p
	if p.RefreshSeconds != nil {
		v := *p.RefreshSeconds
		c.RefreshSeconds = &v
	}
	c.Widgets = make([]*Widget, len(p.Widgets))
	for i, w := range p.Widgets {
		c.Widgets[i] = w.Clone()
	}
	return &c
}

// Equal compares pages structurally; widget order matters.
func (p *Page) Equal(o *Page) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.ID != o.ID || p.Name != o.Name || p.RefreshType != o.RefreshType ||
		p.RefreshTime != o.RefreshTime || p.DarkMode != o.DarkMode {
		return false
	}
	if (p.RefreshSeconds == nil) != (o.RefreshSeconds == nil) {
		return false
	}
	if p.RefreshSeconds != nil && *p.RefreshSeconds != *o.RefreshSeconds {
		return false
	}
	return slices.EqualFunc(p.Widgets, o.Widgets, (*Widget).Equal)
}

// IndexOf returns the position of widget id on the page, or -1.
func (p *Page) IndexOf(id string) int {
	return slices.IndexFunc(p.Widgets, func(w *Widget) bool { return w.ID == id })
}

// Find returns the widget with id, or nil.
func (p *Page) Find(id string) *Widget {
	if i := p.IndexOf(id); i >= 0 {
		return p.Widgets[i]
	}
	return nil
}

// ClonePages deep-copies a page list.
func ClonePages(pages []*Page) []*Page {
	out := make([]*Page, len(pages))
	for i, p := range pages {
		out[i] = p.Clone()
	}
	return out
}

// Snapshot is one undo/redo history entry.
type Snapshot struct {
	Pages      []*Page `json:"pages"`
	DeviceName string  `json:"deviceName"`
}

// Clone returns a structural deep copy.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Pages: ClonePages(s.Pages), DeviceName: s.DeviceName}
}

// Equal is order-preserving deep equality.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.DeviceName == o.DeviceName && slices.EqualFunc(s.Pages, o.Pages, (*Page).Equal)
}

// CustomHardware describes a user-defined display profile.
type CustomHardware struct {
	Name      string `json:"name,omitempty"`
	Chip      string `json:"chip,omitempty"`
	Tech      string `json:"tech,omitempty"`
	ResWidth  int    `json:"resWidth,omitempty"`
	ResHeight int    `json:"resHeight,omitempty"`
	Shape     string `json:"shape,omitempty"`
}

// DeviceSettings are the per-document device options. They are flattened
// into the top level of the persisted payload.
type DeviceSettings struct {
	Orientation         string `json:"orientation"`
	DarkMode            bool   `json:"dark_mode"`
	InvertedColors      bool   `json:"inverted_colors,omitempty"`
	Shape               string `json:"shape,omitempty"`
	RenderingMode       string `json:"renderingMode,omitempty"`
	RefreshInterval     int    `json:"refresh_interval"`
	SleepEnabled        bool   `json:"sleep_enabled"`
	SleepStartHour      int    `json:"sleep_start_hour"`
	SleepEndHour        int    `json:"sleep_end_hour"`
	ManualRefreshOnly   bool   `json:"manual_refresh_only"`
	DeepSleepEnabled    bool   `json:"deep_sleep_enabled"`
	DeepSleepInterval   int    `json:"deep_sleep_interval"`
	DailyRefreshEnabled bool   `json:"daily_refresh_enabled"`
	DailyRefreshTime    string `json:"daily_refresh_time"`
	NoRefreshStartHour  *int   `json:"no_refresh_start_hour,omitempty"`
	NoRefreshEndHour    *int   `json:"no_refresh_end_hour,omitempty"`
}

// DefaultSettings returns the settings of a fresh document.
func DefaultSettings() DeviceSettings {
	return DeviceSettings{
		Orientation:       OrientationLandscape,
		SleepEndHour:      5,
		DeepSleepInterval: 600,
		DailyRefreshTime:  "08:00",
		RefreshInterval:   600,
	}
}

// Document is the live editable layout.
type Document struct {
	Pages            []*Page
	CurrentPageIndex int
	DeviceName       string
	DeviceModel      string
	CurrentLayoutID  string
	CustomHardware   CustomHardware
	Settings         DeviceSettings
}

// Snapshot captures the undoable part of the document.
func (d *Document) Snapshot() Snapshot {
	return Snapshot{Pages: ClonePages(d.Pages), DeviceName: d.DeviceName}
}

// Payload is the persisted form of a document.
type Payload struct {
	Pages            []*Page        `json:"pages"`
	DeviceName       string         `json:"deviceName"`
	DeviceModel      string         `json:"deviceModel"`
	CurrentLayoutID  string         `json:"currentLayoutId,omitempty"`
	CustomHardware   CustomHardware `json:"customHardware"`
	CurrentPageIndex int            `json:"currentPageIndex"`
	DeviceSettings
}

// ToPayload deep-copies d into its persisted form.
func (d *Document) ToPayload() *Payload {
	return &Payload{
		Pages:            ClonePages(d.Pages),
		DeviceName:       d.DeviceName,
		DeviceModel:      d.DeviceModel,
		CurrentLayoutID:  d.CurrentLayoutID,
		CustomHardware:   d.CustomHardware,
		CurrentPageIndex: d.CurrentPageIndex,
		DeviceSettings:   d.Settings,
	}
}

// Document converts a payload into a live document, guaranteeing at least one page.
func (p *Payload) Document() *Document {
	d := &Document{
		Pages:            ClonePages(p.Pages),
		CurrentPageIndex: p.CurrentPageIndex,
		DeviceName:       p.DeviceName,
		DeviceModel:      p.DeviceModel,
		CurrentLayoutID:  p.CurrentLayoutID,
		CustomHardware:   p.CustomHardware,
		Settings:         p.DeviceSettings,
	}
	if len(d.Pages) == 0 {
		d.Pages = []*Page{NewPage("page_0", "Page 1")}
	}
	for _, pg := range d.Pages {
		if pg.Widgets == nil {
			pg.Widgets = []*Widget{}
		}
	}
	if d.CurrentPageIndex < 0 || d.CurrentPageIndex >= len(d.Pages) {
		d.CurrentPageIndex = 0
	}
	if d.Settings.Orientation == "" {
		d.Settings.Orientation = OrientationLandscape
	}
	return d
}

// Sample is one point of an entity's history.
type Sample struct {
	TS    int64   `json:"ts"`
	Value float64 `json:"value"`
}

// Point is a canvas position.
type Point struct{ X, Y int }
