/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package codec

import (
	"strings"
	"testing"

	"displaydesigner/internal/domain"
	"displaydesigner/internal/plugin"
)

func TestTokenizeQuotedAndBare(t *testing.T) {
	pairs, err := Tokenize(`widget:text id:w1 title:"Hello \"World\"" url:http://x/y?a=b note:two words here x:5`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	got := map[string]string{}
	for _, p := range pairs {
		got[p.Key] = p.Value
	}
	want := map[string]string{
		"widget": "text",
		"id":     "w1",
		"title":  `Hello "World"`,
		"url":    "http://x/y?a=b",
		"note":   "two words here",
		"x":      "5",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %q, want %q (all: %#v)", k, got[k], v, got)
		}
	}
	if len(pairs) != len(want) {
		t.Fatalf("pairs = %#v", pairs)
	}
}

func TestMarkerQuotingEdgeCases(t *testing.T) {
	w := domain.NewWidget("w1", "text")
	w.Title = "a\\b \"c\"\nd"
	domain.SetProp(w.Props, "text", "")
	w.Extra = map[string]string{"zeta": "tab\there", "alpha": "plain"}
	line := FormatMarker(w)
	if !strings.Contains(line, "alpha:plain") || strings.Index(line, "alpha:") > strings.Index(line, "zeta:") {
		t.Fatalf("extras not sorted: %s", line)
	}
	back, err := ParseMarker(line)
	if err != nil {
		t.Fatalf("ParseMarker: %v", err)
	}
	if !back.Equal(w) {
		t.Fatalf("round trip mismatch:\n%s\n%#v", line, back)
	}
}

func TestParseMarkerRejectsMalformed(t *testing.T) {
	for _, line := range []string{
		"// widget:text x:1 y:2",
		"// widget: id:a",
		"// widget:bad-type id:a",
		"// just a comment",
	} {
		if _, err := ParseMarker(line); err == nil {
			t.Fatalf("expected error for %q", line)
		}
	}
	w, err := ParseMarker(`# widget:label id:l1 x:3.7 ent:sensor.a size:32 text:"two words"`)
	if err != nil {
		t.Fatalf("ParseMarker: %v", err)
	}
	if w.X != 3 || w.EntityID != "sensor.a" || domain.PropInt(w.Props, "font_size", 0) != 32 {
		t.Fatalf("decoded widget = %#v", w)
	}
	if v, _ := domain.PropText(w.Props, "text"); v != "two words" {
		t.Fatalf("text = %q", v)
	}
}

func sampleDocument() *domain.Document {
	g := domain.NewWidget("g1", domain.TypeGroup)
	g.X, g.Y, g.Width, g.Height = 10, 10, 300, 200
	g.Title = "Group"
	title := domain.NewWidget("t1", "text")
	title.X, title.Y, title.ParentID = 20, 20, "g1"
	title.Title = "Living room"
	domain.SetProp(title.Props, "text", `Temp: 21 "C"`)
	temp := domain.NewWidget("s1", "sensor_text")
	temp.X, temp.Y, temp.ParentID, temp.EntityID = 20, 60, "g1", "sensor.living_temp"
	temp.Condition = domain.Condition{Entity: "binary_sensor.home", Operator: "==", State: "on"}
	hidden := domain.NewWidget("r1", "shape_rect")
	hidden.Hidden, hidden.Locked = true, true
	custom := domain.NewWidget("c1", "shape_circle")
	custom.Extra = map[string]string{"plugin_note": "keep me"}

	p0 := domain.NewPage("page_0", "Main view")
	p0.Widgets = []*domain.Widget{g, title, temp, hidden, custom}
	refresh := 300
	p0.RefreshSeconds = &refresh

	gr := domain.NewWidget("gr1", "graph")
	gr.EntityID, gr.X, gr.Y, gr.Width, gr.Height = "sensor.power", 0, 100, 400, 150
	gr.Title = "Power"
	dt := domain.NewWidget("d1", "datetime")
	p1 := domain.NewPage("page_abc", "Stats")
	p1.DarkMode = domain.DarkModeDark
	p1.RefreshType = domain.RefreshDaily
	p1.RefreshTime = "06:30"
	p1.Widgets = []*domain.Widget{gr, dt}

	return &domain.Document{
		Pages:       []*domain.Page{p0, p1},
		DeviceName:  "Kitchen Panel",
		DeviceModel: "reterminal_e1001",
		Settings:    domain.DefaultSettings(),
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	doc := sampleDocument()
	text := Serialize(doc, plugin.Builtin())
	res, errs := Parse(text, Options{Registry: plugin.Builtin()})
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v\n%s", errs, text)
	}
	if res.Fallback {
		t.Fatalf("markers not detected")
	}
	if len(res.Pages) != len(doc.Pages) {
		t.Fatalf("pages = %d, want %d", len(res.Pages), len(doc.Pages))
	}
	for i, want := range doc.Pages {
		got := res.Pages[i]
		if got.ID != want.ID || got.Name != want.Name || got.DarkMode != want.DarkMode ||
			got.RefreshType != want.RefreshType || got.RefreshTime != want.RefreshTime {
			t.Fatalf("page %d = %#v, want %#v", i, got, want)
		}
		if (got.RefreshSeconds == nil) != (want.RefreshSeconds == nil) ||
			(want.RefreshSeconds != nil && *got.RefreshSeconds != *want.RefreshSeconds) {
			t.Fatalf("page %d refresh mismatch", i)
		}
		if len(got.Widgets) != len(want.Widgets) {
			t.Fatalf("page %d widgets = %d, want %d", i, len(got.Widgets), len(want.Widgets))
		}
		for j := range want.Widgets {
			if !got.Widgets[j].Equal(want.Widgets[j]) {
				t.Fatalf("widget %d/%d:\n got %#v\nwant %#v", i, j, got.Widgets[j], want.Widgets[j])
			}
		}
	}
	if res.DeviceName != "Kitchen Panel" || res.DeviceModel != "reterminal_e1001" || !res.Header {
		t.Fatalf("header = %q %q %v", res.DeviceName, res.DeviceModel, res.Header)
	}
}

func TestSerializeEmitsFragmentsAndDeclarations(t *testing.T) {
	text := Serialize(sampleDocument(), plugin.Builtin())
	for _, want := range []string{
		"if (currentPage == 0) {",
		"if (currentPage == 1) {",
		"case 0: interval = 300; break;",
		"// widget:group id:g1",
		"// widget:shape_rect id:r1",
		"graph:",
		"  - id: graph_gr1",
		"    entity_id: sensor.living_temp",
		"    id: ha_time",
		"it.fill(COLOR_BLACK);",
		"family: Roboto",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if strings.Contains(l, "// widget:shape_rect id:r1") {
			next := strings.TrimSpace(lines[i+1])
			if strings.HasPrefix(next, "it.") {
				t.Fatalf("hidden widget rendered: %q", next)
			}
		}
	}
}

func TestUnsupportedTypeGetsStatusLine(t *testing.T) {
	doc := sampleDocument()
	doc.Pages[0].Widgets = append(doc.Pages[0].Widgets, domain.NewWidget("x1", "lvgl_button"))
	reg := plugin.Builtin()
	text := Serialize(doc, reg)
	if !strings.Contains(text, "// widget:lvgl_button id:x1") || !strings.Contains(text, unsupported) {
		t.Fatalf("unsupported widget not marked:\n%s", text)
	}
	res, errs := Parse(text, Options{Registry: reg})
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "unknown widget type") {
		t.Fatalf("errs = %v", errs)
	}
	if len(res.Pages[0].Widgets) != 5 {
		t.Fatalf("widgets = %d", len(res.Pages[0].Widgets))
	}
}

type stubPlugin struct{ typ string }

func (s stubPlugin) Type() string                                 { return s.typ }
func (s stubPlugin) Modes() []plugin.Mode                         { return []plugin.Mode{plugin.ModeLVGL} }
func (s stubPlugin) Export(plugin.Mode, *plugin.Context) []string { return []string{"lv_obj();"} }

func TestRegisteredPluginTypesAreAccepted(t *testing.T) {
	reg := plugin.NewRegistry()
	reg.MustRegister(stubPlugin{typ: "lvgl_button"})
	text := "// widget:lvgl_button id:b1 x:1 y:2 w:3 h:4 label:\"Press me\" radius:6\n"
	res, errs := Parse(text, Options{Registry: reg})
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	w := res.Pages[0].Widgets[0]
	if w.Extra["label"] != "Press me" || w.Extra["radius"] != "6" {
		t.Fatalf("extras = %#v", w.Extra)
	}
}

func TestFallbackRecoversPrimitives(t *testing.T) {
	text := strings.Join([]string{
		"display:",
		"  lambda: |-",
		"    it.rectangle(10, 20, 30, 40);",
		"    it.filled_rectangle(0,0,5,5, COLOR_OFF);",
		"    it.circle(50, 50, 10);",
		"    it.filled_circle(100, 100, 20, COLOR_ON)",
		"    it.line(0, 0, 0, 100);",
		"    it.print(0, 0, id(font), \"ignored\");",
	}, "\n")
	res, errs := Parse(text, Options{})
	if len(errs) != 0 || !res.Fallback {
		t.Fatalf("errs = %v fallback = %v", errs, res.Fallback)
	}
	ws := res.Pages[0].Widgets
	if len(ws) != 5 {
		t.Fatalf("widgets = %d", len(ws))
	}
	type geo struct {
		id, typ    string
		x, y, w, h int
	}
	want := []geo{
		{"w_rect_0", "shape_rect", 10, 20, 30, 40},
		{"w_frect_1", "shape_rect", 0, 0, 5, 5},
		{"w_circle_2", "shape_circle", 40, 40, 20, 20},
		{"w_fcircle_3", "shape_circle", 80, 80, 40, 40},
		{"w_line_4", "line", 0, 0, 0, 100},
	}
	for i, g := range want {
		w := ws[i]
		if w.ID != g.id || w.Type != g.typ || w.X != g.x || w.Y != g.y || w.Width != g.w || w.Height != g.h {
			t.Fatalf("widget %d = %#v, want %#v", i, w, g)
		}
	}
	if c, _ := domain.PropText(ws[1].Props, "color"); c != "white" {
		t.Fatalf("filled rect color = %q", c)
	}
	if f, _ := domain.PropText(ws[3].Props, "fill"); f != "true" {
		t.Fatalf("filled circle fill = %q", f)
	}
	if o, _ := domain.PropText(ws[4].Props, "orientation"); o != "vertical" {
		t.Fatalf("line orientation = %q", o)
	}
}

func TestRoundTripKeepsCodeLookingText(t *testing.T) {
	a := domain.NewWidget("a", "text")
	a.X, a.Y, a.Title = 10, 10, "if (page == 1) {"
	domain.SetProp(a.Props, "text", "case 3: interval = 9;")
	b := domain.NewWidget("b", "text")
	b.X, b.Y, b.Title = 10, 40, "// page:name x"
	domain.SetProp(b.Props, "text", "if (currentPage == 2) {")
	c := domain.NewWidget("c", "text")
	p0 := domain.NewPage("page_0", "Main")
	p0.Widgets = []*domain.Widget{a, b}
	p1 := domain.NewPage("page_1", "Other")
	p1.Widgets = []*domain.Widget{c}
	doc := &domain.Document{
		Pages:       []*domain.Page{p0, p1},
		DeviceModel: "reterminal_e1001",
		Settings:    domain.DefaultSettings(),
	}

	text := Serialize(doc, plugin.Builtin())
	res, errs := Parse(text, Options{Registry: plugin.Builtin()})
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v\n%s", errs, text)
	}
	if len(res.Pages) != 2 {
		t.Fatalf("pages = %d, want 2\n%s", len(res.Pages), text)
	}
	if res.Pages[0].Name != "Main" || res.Pages[0].RefreshSeconds != nil {
		t.Fatalf("page 0 = %#v", res.Pages[0])
	}
	if len(res.Pages[0].Widgets) != 2 || len(res.Pages[1].Widgets) != 1 {
		t.Fatalf("widget distribution = %d/%d\n%s", len(res.Pages[0].Widgets), len(res.Pages[1].Widgets), text)
	}
	for i, want := range []*domain.Widget{a, b} {
		if got := res.Pages[0].Widgets[i]; !got.Equal(want) {
			t.Fatalf("widget %d:\n got %#v\nwant %#v", i, got, want)
		}
	}
}

func TestOverflowingPageIndexIsReported(t *testing.T) {
	text := strings.Join([]string{
		"if (page == 99999999999999999999999) {",
		"  it.line(0, 0, 10, 0);",
		"}",
		"switch (page) { case 99999999999999999999999: interval = 5; }",
	}, "\n")
	res, errs := Parse(text, Options{})
	if len(errs) != 2 {
		t.Fatalf("errors = %v", errs)
	}
	if len(res.Pages) != 1 || res.Pages[0].RefreshSeconds != nil {
		t.Fatalf("pages = %#v", res.Pages)
	}
}

func TestFallbackPageSelectorAndIntervals(t *testing.T) {
	text := strings.Join([]string{
		"switch (id(display_page)) { case 1: interval = 120; break; }",
		"if (id(display_page) == 0) {",
		"  it.rectangle(1, 1, 2, 2);",
		"}",
		"if (page == 1) {",
		"  it.line(0, 0, 10, 0);",
		"}",
	}, "\n")
	res, _ := Parse(text, Options{})
	if len(res.Pages) != 2 {
		t.Fatalf("pages = %d", len(res.Pages))
	}
	if res.Pages[0].RefreshSeconds != nil || res.Pages[1].RefreshSeconds == nil || *res.Pages[1].RefreshSeconds != 120 {
		t.Fatalf("refresh = %v %v", res.Pages[0].RefreshSeconds, res.Pages[1].RefreshSeconds)
	}
	if res.Pages[1].Name != "Page 2" || res.Pages[1].ID != "page_1" {
		t.Fatalf("page 1 = %#v", res.Pages[1])
	}
	if len(res.Pages[0].Widgets) != 1 || len(res.Pages[1].Widgets) != 1 {
		t.Fatalf("widget distribution mismatch")
	}
	if res.Pages[0].Widgets[0].ID == res.Pages[1].Widgets[0].ID {
		t.Fatalf("fallback ids collide")
	}
}

func TestEmptyInputYieldsSinglePage(t *testing.T) {
	for _, text := range []string{"", "  \n\t\n"} {
		res, errs := Parse(text, Options{})
		if len(errs) != 0 || len(res.Pages) != 1 || len(res.Pages[0].Widgets) != 0 {
			t.Fatalf("Parse(%q) = %#v, %v", text, res.Pages, errs)
		}
	}
}

func TestMalformedMarkersAreSkipped(t *testing.T) {
	text := strings.Join([]string{
		"if (currentPage == 0) {",
		"  // widget:text x:1 y:1",
		"  it.rectangle(0, 0, 10, 10);",
		"  // widget:bogus id:b1",
		"  // widget:text id:ok x:5 y:6",
		"  // widget:text id:ok x:7 y:8",
		"  // widget:text id:child parent:ghost",
		"}",
	}, "\n")
	res, errs := Parse(text, Options{})
	if len(errs) != 4 {
		t.Fatalf("errs = %v", errs)
	}
	if errs[0].Line != 2 || errs[0].Column != 6 {
		t.Fatalf("first error position = %d:%d", errs[0].Line, errs[0].Column)
	}
	ws := res.Pages[0].Widgets
	if len(ws) != 2 || ws[0].ID != "ok" || ws[0].X != 5 || ws[1].ParentID != "" {
		t.Fatalf("widgets = %#v", ws)
	}
}

func TestHeaderSettingsRoundTrip(t *testing.T) {
	doc := sampleDocument()
	start, end := 1, 6
	doc.Settings.DarkMode = true
	doc.Settings.SleepEnabled = true
	doc.Settings.SleepStartHour = 23
	doc.Settings.Orientation = domain.OrientationPortrait
	doc.Settings.NoRefreshStartHour, doc.Settings.NoRefreshEndHour = &start, &end
	doc.CurrentLayoutID = "kitchen"
	res, _ := Parse(Serialize(doc, plugin.Builtin()), Options{})
	s := res.Settings
	if !s.DarkMode || !s.SleepEnabled || s.SleepStartHour != 23 || s.Orientation != "portrait" {
		t.Fatalf("settings = %#v", s)
	}
	if s.NoRefreshStartHour == nil || *s.NoRefreshStartHour != 1 || *s.NoRefreshEndHour != 6 {
		t.Fatalf("silent hours lost")
	}
	if res.LayoutID != "kitchen" {
		t.Fatalf("layout = %q", res.LayoutID)
	}
	got := res.Document()
	if got.DeviceModel != "reterminal_e1001" || got.CustomHardware.ResWidth != 0 {
		t.Fatalf("document device = %q %#v", got.DeviceModel, got.CustomHardware)
	}
}

func TestImportSnippetCustomResolution(t *testing.T) {
	text := "# TARGET DEVICE: Bench rig\n# Resolution: 320x240\n"
	doc, errs := ImportSnippet(text, nil)
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if doc.DeviceModel != "custom" || doc.CustomHardware.ResWidth != 320 || doc.CustomHardware.Name != "Bench rig" {
		t.Fatalf("custom hardware = %#v", doc.CustomHardware)
	}
	if w, h := doc.CanvasSize(); w != 320 || h != 240 || len(doc.Pages) != 1 {
		t.Fatalf("canvas %dx%d pages %d", w, h, len(doc.Pages))
	}
}
