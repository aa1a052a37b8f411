/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package plugin

import (
	"strings"
	"testing"

	"displaydesigner/internal/domain"
)

func ctxFor(w *domain.Widget) *Context {
	return &Context{Widget: w, Page: domain.NewPage("page_0", "Page 1")}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&builtin{typ: "text"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&builtin{typ: "text"}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if err := r.Register(&builtin{}); err == nil {
		t.Fatalf("expected empty type error")
	}
	var nilReg *Registry
	if nilReg.Has("text") {
		t.Fatalf("nil registry should have nothing")
	}
}

func TestBuiltinCoversCoreTypes(t *testing.T) {
	r := Builtin()
	for _, typ := range domain.KnownTypes() {
		if typ == domain.TypeGroup {
			continue
		}
		if !r.Has(typ) {
			t.Fatalf("no builtin plugin for %q", typ)
		}
	}
}

func TestTextExportUsesRequestedFont(t *testing.T) {
	w := domain.NewWidget("w1", "text")
	w.X, w.Y, w.Width, w.Height = 10, 20, 100, 30
	domain.SetProp(w.Props, "text", `say "hi"`)
	domain.SetProp(w.Props, "font_size", "24")
	p, _ := Builtin().Get("text")

	req := NewRequirements()
	p.(RequirementCollector).CollectRequirements(ctxFor(w), req)
	fonts := req.Fonts()
	if len(fonts) != 1 || fonts[0].ID() != "font_roboto_400_24" {
		t.Fatalf("fonts = %#v", fonts)
	}
	lines := p.Export(ModeDirect, ctxFor(w))
	want := `it.print(10, 20, id(font_roboto_400_24), COLOR_BLACK, TextAlign::TOP_LEFT, "say \"hi\"");`
	if len(lines) != 1 || lines[0] != want {
		t.Fatalf("export = %q", lines)
	}
	if got := p.Export(ModeLVGL, ctxFor(w)); got != nil {
		t.Fatalf("lvgl export should be empty, got %q", got)
	}
}

func TestSensorTextTriggers(t *testing.T) {
	w := domain.NewWidget("s1", "sensor_text")
	w.EntityID = "sensor.temp"
	p, _ := Builtin().Get("sensor_text")
	trig := p.(RefreshTriggerer).RefreshTriggers(ctxFor(w))
	if len(trig) != 1 || trig[0].EntityID != "sensor.temp" || trig[0].Text {
		t.Fatalf("triggers = %#v", trig)
	}
	lines := p.Export(ModeDirect, ctxFor(w))
	if len(lines) == 0 || !strings.Contains(lines[len(lines)-1], "id(sensor_temp).has_state()") {
		t.Fatalf("export = %q", lines)
	}

	domain.SetProp(w.Props, "is_local_sensor", "true")
	if trig := p.(RefreshTriggerer).RefreshTriggers(ctxFor(w)); len(trig) != 0 {
		t.Fatalf("local sensor should not trigger: %#v", trig)
	}
}

func TestShapesAndDarkMode(t *testing.T) {
	w := domain.NewWidget("r", "shape_rect")
	w.X, w.Y, w.Width, w.Height = 1, 2, 30, 40
	domain.SetProp(w.Props, "fill", "true")
	domain.SetProp(w.Props, "show_border", "false")
	p, _ := Builtin().Get("shape_rect")
	ctx := ctxFor(w)
	ctx.Dark = true
	lines := p.Export(ModeDirect, ctx)
	if len(lines) != 1 || lines[0] != "it.filled_rectangle(1, 2, 30, 40, COLOR_WHITE);" {
		t.Fatalf("export = %q", lines)
	}

	c := domain.NewWidget("c", "shape_circle")
	c.X, c.Y, c.Width, c.Height = 0, 0, 20, 20
	p, _ = Builtin().Get("shape_circle")
	if got := p.Export(ModeDirect, ctxFor(c)); got[0] != "it.circle(10, 10, 10, COLOR_BLACK);" {
		t.Fatalf("circle = %q", got)
	}
}

func TestGraphDeclarations(t *testing.T) {
	w := domain.NewWidget("g1", "graph")
	w.EntityID = "sensor.power"
	w.Width, w.Height = 200, 100
	p, _ := Builtin().Get("graph")
	decl := p.(DeclarationProvider).Declarations(ModeDirect, nil, []*Context{ctxFor(w)})
	joined := strings.Join(decl, "\n")
	for _, want := range []string{"graph:", "  - id: graph_g1", "    sensor: sensor_power", "    duration: 1h"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("declarations missing %q:\n%s", want, joined)
		}
	}
}

func TestCompatibilityAndModeForType(t *testing.T) {
	r := Builtin()
	w := domain.NewWidget("t", "text")
	if !r.Compatible(w, ModeDirect) {
		t.Fatalf("text should be direct-compatible")
	}
	if r.Compatible(w, ModeOEPL) {
		t.Fatalf("text has no oepl export")
	}
	unknown := domain.NewWidget("u", "custom_thing")
	if !r.Compatible(unknown, ModeLVGL) {
		t.Fatalf("unregistered types are compatible")
	}
	if m, ok := ModeForType("lvgl_button"); !ok || m != ModeLVGL {
		t.Fatalf("ModeForType = %v %v", m, ok)
	}
	if m, ok := ModeForType("odp_text"); !ok || m != ModeOpenDisplay {
		t.Fatalf("ModeForType = %v %v", m, ok)
	}
	if ParseMode("ODP") != ModeOpenDisplay || ParseMode("") != ModeDirect {
		t.Fatalf("ParseMode mismatch")
	}
}

func TestColorExprAndIDs(t *testing.T) {
	if got := ColorExpr("#ff8000", false); got != "Color(255, 128, 0)" {
		t.Fatalf("ColorExpr = %q", got)
	}
	if ColorExpr("white", true) != "COLOR_BLACK" || ColorExpr("nonsense", false) != "COLOR_BLACK" {
		t.Fatalf("ColorExpr named mismatch")
	}
	if r, g, b := ColorRGB("#ff8000", false); r != 255 || g != 128 || b != 0 {
		t.Fatalf("ColorRGB hex = %d,%d,%d", r, g, b)
	}
	if r, _, _ := ColorRGB("black", true); r != 255 {
		t.Fatalf("ColorRGB did not swap black on dark pages")
	}
	if got := SanitizeID("sensor.Living-Room"); got != "sensor_living_room" {
		t.Fatalf("SanitizeID = %q", got)
	}
	req := NewRequirements()
	req.AddGlyph("f0595", 48)
	req.AddGlyph("F0079", 48)
	if g := req.Glyphs(48); len(g) != 2 || g[0] != "F0079" {
		t.Fatalf("glyphs = %v", g)
	}
	if f := (Font{Family: "Open Sans", Weight: 700, Size: 12, Italic: true}); f.ID() != "font_open_sans_700_12_italic" {
		t.Fatalf("font id = %q", f.ID())
	}
}
