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
	"displaydesigner/internal/plugin"
)

const (
	widgetSeparator = "// ────────────────────────────────────────"
	unsupported     = "// status:unsupported"
	lambdaIndent    = "      "
	pageIndent      = "        "
)

// IsDark reports whether page p renders dark under settings s.
func IsDark(p *domain.Page, s domain.DeviceSettings) bool {
	switch p.DarkMode {
	case domain.DarkModeDark:
		return true
	case domain.DarkModeLight:
		return false
	}
	return s.DarkMode
}

type serializer struct {
	doc   *domain.Document
	reg   *plugin.Registry
	mode  plugin.Mode
	ctxs  [][]*plugin.Context
	lines []string
}

func (s *serializer) add(lines ...string) { s.lines = append(s.lines, lines...) }

func (s *serializer) indented(prefix string, lines []string) {
	for _, l := range lines {
		s.add(prefix + l)
	}
}

// Serialize renders doc as generated display text. Fragments come from reg;
// every widget, including groups and hidden widgets, gets a marker line.
func Serialize(doc *domain.Document, reg *plugin.Registry) string {
	s := &serializer{doc: doc, reg: reg, mode: plugin.ParseMode(doc.Settings.RenderingMode)}
	for i, p := range doc.Pages {
		dark := IsDark(p, doc.Settings)
		row := make([]*plugin.Context, 0, len(p.Widgets))
		for _, w := range p.Widgets {
			row = append(row, &plugin.Context{Widget: w, Page: p, PageIndex: i, Document: doc, Dark: dark})
		}
		s.ctxs = append(s.ctxs, row)
	}

	s.add(formatHeader(doc)...)
	s.add("")
	s.globals()
	s.fonts()
	s.triggers()
	s.declarations()
	s.script()
	s.display()
	return strings.Join(s.lines, "\n") + "\n"
}

// rendered yields the contexts whose widget produces a fragment.
func (s *serializer) rendered(fn func(p plugin.Plugin, c *plugin.Context)) {
	for _, row := range s.ctxs {
		for _, c := range row {
			if c.Widget.Hidden {
				continue
			}
			if p, ok := s.reg.Get(c.Widget.Type); ok && plugin.Supports(p, s.mode) {
				fn(p, c)
			}
		}
	}
}

func (s *serializer) globals() {
	s.add(
		"globals:",
		"  - id: display_page",
		"    type: int",
		"    restore_value: true",
		"    initial_value: '0'",
		"  - id: page_refresh_s",
		"    type: int",
		"    restore_value: false",
		fmt.Sprintf("    initial_value: '%d'", s.doc.Settings.RefreshInterval),
		"",
	)
}

func (s *serializer) fonts() {
	req := plugin.NewRequirements()
	s.rendered(func(p plugin.Plugin, c *plugin.Context) {
		if rc, ok := p.(plugin.RequirementCollector); ok {
			rc.CollectRequirements(c, req)
		}
	})
	fonts := req.Fonts()
	if len(fonts) == 0 {
		return
	}
	s.add("font:")
	for _, f := range fonts {
		if f.Icon {
			s.add(
				`  - file: "fonts/materialdesignicons-webfont.ttf"`,
				"    id: "+f.ID(),
				fmt.Sprintf("    size: %d", f.Size),
				"    glyphs:",
			)
			for _, g := range req.Glyphs(f.Size) {
				s.add(fmt.Sprintf(`      - "\U000%s"`, g))
			}
			continue
		}
		s.add(
			"  - file:",
			"      type: gfonts",
			"      family: "+f.Family,
			fmt.Sprintf("      weight: %d", f.Weight),
		)
		if f.Italic {
			s.add("      italic: true")
		}
		s.add("    id: "+f.ID(), fmt.Sprintf("    size: %d", f.Size))
	}
	s.add("")
}

func (s *serializer) triggers() {
	numeric, text := map[string]bool{}, map[string]bool{}
	s.rendered(func(p plugin.Plugin, c *plugin.Context) {
		rt, ok := p.(plugin.RefreshTriggerer)
		if !ok {
			return
		}
		for _, t := range rt.RefreshTriggers(c) {
			if t.Text {
				text[t.EntityID] = true
			} else {
				numeric[t.EntityID] = true
			}
		}
	})
	emit := func(section string, set map[string]bool) {
		if len(set) == 0 {
			return
		}
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		s.add(section + ":")
		for _, id := range ids {
			s.add(
				"  - platform: homeassistant",
				"    id: "+plugin.SanitizeID(id),
				"    entity_id: "+id,
				"    internal: true",
				"    on_value:",
				"      then:",
				"        - component.update: epaper_display",
			)
		}
		s.add("")
	}
	emit("sensor", numeric)
	emit("text_sensor", text)
}

func (s *serializer) declarations() {
	byType := map[string][]*plugin.Context{}
	s.rendered(func(p plugin.Plugin, c *plugin.Context) {
		if _, ok := p.(plugin.DeclarationProvider); ok {
			byType[c.Widget.Type] = append(byType[c.Widget.Type], c)
		}
	})
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		p, _ := s.reg.Get(t)
		lines := p.(plugin.DeclarationProvider).Declarations(s.mode, s.doc, byType[t])
		if len(lines) == 0 {
			continue
		}
		s.add(lines...)
		s.add("")
	}
}

func (s *serializer) script() {
	s.add(
		"script:",
		"  - id: select_page_interval",
		"    then:",
		"      - lambda: |-",
		fmt.Sprintf("          int interval = %d;", s.doc.Settings.RefreshInterval),
		"          switch (id(display_page)) {",
	)
	for i, p := range s.doc.Pages {
		if p.RefreshSeconds != nil {
			s.add(fmt.Sprintf("            case %d: interval = %d; break;", i, *p.RefreshSeconds))
		}
	}
	s.add(
		"          }",
		"          id(page_refresh_s) = interval;",
		"",
	)
}

func (s *serializer) display() {
	s.add(
		"display:",
		"  - id: epaper_display",
		"    update_interval: never",
		"    lambda: |-",
	)
	s.indented(lambdaIndent, plugin.ColorConstants())
	s.add(lambdaIndent + "int currentPage = id(display_page);")
	for i, p := range s.doc.Pages {
		s.add(lambdaIndent + fmt.Sprintf("if (currentPage == %d) {", i))
		s.indented(pageIndent, pageComments(p))
		s.add(pageIndent + fmt.Sprintf("it.fill(%s);", plugin.ColorExpr("white", IsDark(p, s.doc.Settings))))
		for j, c := range s.ctxs[i] {
			if j > 0 {
				s.add(pageIndent + widgetSeparator)
			}
			s.add(pageIndent + FormatMarker(c.Widget))
			s.indented(pageIndent, s.fragment(c))
		}
		s.add(lambdaIndent + "}")
	}
}

func pageComments(p *domain.Page) []string {
	out := []string{
		"// page:id " + strconv.Quote(p.ID),
		"// page:name " + strconv.Quote(p.Name),
		"// page:dark_mode " + strconv.Quote(p.DarkMode),
		"// page:refresh_type " + strconv.Quote(p.RefreshType),
	}
	if p.RefreshTime != "" {
		out = append(out, "// page:refresh_time "+strconv.Quote(p.RefreshTime))
	}
	return out
}

// fragment returns the rendering lines following a widget's marker.
func (s *serializer) fragment(c *plugin.Context) []string {
	w := c.Widget
	if w.Hidden || w.IsGroup() {
		return nil
	}
	p, ok := s.reg.Get(w.Type)
	if !ok || !plugin.Supports(p, s.mode) {
		return []string{unsupported}
	}
	return p.Export(s.mode, c)
}
