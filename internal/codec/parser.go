/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"displaydesigner/internal/domain"
	"displaydesigner/internal/hierarchy"
	applog "displaydesigner/internal/log"
	"displaydesigner/internal/plugin"
)

// Error is a recoverable problem found while parsing; the offending line is skipped.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string { return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message) }

// Options configures Parse.
type Options struct {
	// Registry supplies the plugin-provided widget types accepted besides the core ones.
	Registry *plugin.Registry
}

// Result is a parsed document plus the settings recovered from the header.
type Result struct {
	Pages        []*domain.Page
	Settings     domain.DeviceSettings
	TargetDevice string
	DeviceName   string
	DeviceModel  string
	LayoutID     string
	// Width and Height come from the Resolution header line, 0 when absent.
	Width, Height int
	// Header is true when at least one settings line was recognized.
	Header bool
	// Markers counts the widget markers decoded.
	Markers int
	// Fallback is true when the text had no markers and widgets were
	// recovered from raw drawing calls.
	Fallback bool
}

// Document builds a live document from the result.
func (r *Result) Document() *domain.Document {
	doc := &domain.Document{
		Pages:           r.Pages,
		DeviceName:      r.DeviceName,
		DeviceModel:     r.DeviceModel,
		CurrentLayoutID: r.LayoutID,
		Settings:        r.Settings,
	}
	if doc.DeviceModel == "" {
		for _, p := range domain.Profiles() {
			if p.Name == r.TargetDevice {
				doc.DeviceModel = p.ID
			}
		}
	}
	if _, ok := domain.Profile(doc.DeviceModel); !ok && r.Width > 0 && r.Height > 0 {
		doc.CustomHardware = domain.CustomHardware{Name: r.TargetDevice, ResWidth: r.Width, ResHeight: r.Height, Shape: r.Settings.Shape}
		if doc.DeviceModel == "" {
			doc.DeviceModel = "custom"
		}
	}
	if doc.DeviceModel == "" {
		doc.DeviceModel = domain.DefaultDeviceModel
	}
	return doc
}

type pageState struct {
	id, name, darkMode, refreshType, refreshTime string
	interval                                     *int
	widgets                                      []*domain.Widget
}

type parser struct {
	opts   Options
	res    *Result
	pages  map[int]*pageState
	errs   []Error
	seen   map[string]bool
	cur    int
	lineNo int
}

func (p *parser) page(i int) *pageState {
	ps, ok := p.pages[i]
	if !ok {
		ps = &pageState{}
		p.pages[i] = ps
	}
	return ps
}

func (p *parser) fail(col int, format string, args ...any) {
	p.errs = append(p.errs, Error{Line: p.lineNo, Column: col, Message: fmt.Sprintf(format, args...)})
}

func (p *parser) known(widgetType string) bool {
	return domain.KnownType(widgetType) || p.opts.Registry.Has(widgetType)
}

// Parse reconstructs pages, widgets and device settings from generated text.
// It never fails as a whole: problems are returned as Errors and the
// offending lines are skipped. Empty input yields a single empty page.
func Parse(text string, opts Options) (*Result, []Error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	p := &parser{
		opts:  opts,
		res:   &Result{Settings: domain.DefaultSettings()},
		pages: map[int]*pageState{},
		seen:  map[string]bool{},
		cur:   -1,
	}
	markers := false
	for _, l := range lines {
		if IsMarker(l) {
			markers = true
			break
		}
	}

	p.res.Fallback = !markers
	skipping := false
	for i, raw := range lines {
		p.lineNo = i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if markers && IsMarker(line) {
			p.marker(raw)
			skipping = true
			continue
		}
		if m := pageSelectorRe.FindStringSubmatch(line); m != nil {
			idx, err := strconv.Atoi(m[1])
			if err != nil {
				p.fail(1, "page index %q: %v", m[1], err)
				continue
			}
			p.cur = idx
			p.page(p.cur)
			skipping = false
			continue
		}
		if skipping {
			if startsIndented(raw) {
				continue
			}
			skipping = false
		}
		if strings.HasPrefix(line, "#") {
			if parseHeaderLine(line, p.res) {
				p.res.Header = true
			}
			continue
		}
		if ms := intervalRe.FindAllStringSubmatch(line, -1); ms != nil {
			for _, m := range ms {
				idx, err := strconv.Atoi(m[1])
				if err != nil {
					p.fail(1, "page index %q: %v", m[1], err)
					continue
				}
				v, err := strconv.Atoi(m[2])
				if err != nil {
					p.fail(1, "interval %q: %v", m[2], err)
					continue
				}
				p.page(idx).interval = &v
			}
			continue
		}
		if m := pageCommentRe.FindStringSubmatch(line); m != nil && p.cur >= 0 {
			p.pageComment(m[1], unquoteLoose(m[2]))
			continue
		}
		if !markers {
			p.primitive(line)
		}
	}
	p.finish()
	if len(p.errs) > 0 {
		applog.WithComponent("codec").Debug("parse finished with skipped lines", "errors", len(p.errs), "markers", p.res.Markers)
	}
	return p.res, p.errs
}

// ImportSnippet parses text into a live document. It falls back to raw
// drawing-call recovery when the text carries no markers.
func ImportSnippet(text string, reg *plugin.Registry) (*domain.Document, []Error) {
	res, errs := Parse(text, Options{Registry: reg})
	return res.Document(), errs
}

func startsIndented(raw string) bool {
	return raw != "" && (raw[0] == ' ' || raw[0] == '\t')
}

func unquoteLoose(s string) string {
	s = strings.TrimSpace(s)
	if v, err := strconv.Unquote(s); err == nil {
		return v
	}
	return strings.Trim(s, `"`)
}

func (p *parser) pageComment(key, v string) {
	ps := p.page(p.cur)
	switch key {
	case "id":
		ps.id = v
	case "name":
		ps.name = v
	case "dark_mode":
		ps.darkMode = v
	case "refresh_type":
		ps.refreshType = v
	case "refresh_time":
		ps.refreshTime = v
	}
}

func (p *parser) marker(raw string) {
	col := strings.Index(raw, "widget:") + 1
	w, err := ParseMarker(raw)
	if err != nil {
		p.fail(col, "%v", err)
		return
	}
	p.res.Markers++
	if !p.known(w.Type) {
		p.fail(col, "unknown widget type %q", w.Type)
		return
	}
	if p.seen[w.ID] {
		p.fail(col, "duplicate widget id %q", w.ID)
		return
	}
	p.addWidget(w)
}

func (p *parser) primitive(line string) {
	pageIdx, n := max(p.cur, 0), 0
	if ps, ok := p.pages[pageIdx]; ok {
		n = len(ps.widgets)
	}
	w := matchPrimitive(line, n)
	if w == nil {
		return
	}
	for base, k := w.ID, 2; p.seen[w.ID]; k++ {
		w.ID = fmt.Sprintf("%s_p%d_%d", base, pageIdx, k)
	}
	p.addWidget(w)
}

// addWidget places w on the current page; widgets before any page selector go to page 0.
func (p *parser) addWidget(w *domain.Widget) {
	p.seen[w.ID] = true
	ps := p.page(max(p.cur, 0))
	ps.widgets = append(ps.widgets, w)
}

func (p *parser) finish() {
	if len(p.pages) == 0 {
		p.page(0)
	}
	idx := make([]int, 0, len(p.pages))
	for i := range p.pages {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	usedIDs := map[string]bool{}
	for _, i := range idx {
		ps := p.pages[i]
		id := ps.id
		if id == "" || usedIDs[id] {
			id = fmt.Sprintf("page_%d", i)
		}
		usedIDs[id] = true
		name := ps.name
		if name == "" {
			name = fmt.Sprintf("Page %d", i+1)
		}
		pg := domain.NewPage(id, name)
		pg.RefreshSeconds = ps.interval
		if ps.refreshType != "" {
			pg.RefreshType = ps.refreshType
		}
		pg.RefreshTime = ps.refreshTime
		if ps.darkMode != "" {
			pg.DarkMode = ps.darkMode
		}
		if ps.widgets != nil {
			if n := hierarchy.Sanitize(ps.widgets); n > 0 {
				p.errs = append(p.errs, Error{Message: fmt.Sprintf("page %d: dropped %d invalid parent references", i, n)})
			}
			pg.Widgets = hierarchy.Sync(ps.widgets)
		}
		p.res.Pages = append(p.res.Pages, pg)
	}
}
