/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"displaydesigner/internal/domain"
)

func previewDoc() *domain.Document {
	rect := domain.NewWidget("r", "shape_rect")
	rect.X, rect.Y, rect.Width, rect.Height = 10, 10, 40, 20
	rect.SetAttr("fill", "true")
	rect.SetAttr("color", "red")

	txt := domain.NewWidget("t", "text")
	txt.X, txt.Y, txt.Width, txt.Height = 60, 10, 100, 20
	txt.SetAttr("text", "Hello")

	hidden := domain.NewWidget("h", "shape_rect")
	hidden.X, hidden.Y, hidden.Width, hidden.Height = 0, 80, 20, 20
	hidden.Hidden = true

	p0 := domain.NewPage("page_0", "Main")
	p0.Widgets = []*domain.Widget{rect, txt, hidden}
	p1 := domain.NewPage("page_1", "Night")
	p1.DarkMode = domain.DarkModeDark
	return &domain.Document{
		Pages:          []*domain.Page{p0, p1},
		DeviceName:     "Preview",
		DeviceModel:    "custom",
		CustomHardware: domain.CustomHardware{ResWidth: 200, ResHeight: 100},
		Settings:       domain.DefaultSettings(),
	}
}

func TestPlanSkipsHiddenAndResolvesColors(t *testing.T) {
	pl, err := planPage(previewDoc(), 0)
	if err != nil {
		t.Fatalf("planPage: %v", err)
	}
	if len(pl.items) != 2 {
		t.Fatalf("items = %d", len(pl.items))
	}
	r := pl.items[0]
	if r.kind != kindRect || r.fill == nil || *r.fill != (rgb{255, 0, 0}) {
		t.Fatalf("rect item = %+v", r)
	}
	if pl.items[1].kind != kindText || pl.items[1].label != "Hello" {
		t.Fatalf("text item = %+v", pl.items[1])
	}
}

func TestPlanDarkPageSwapsColors(t *testing.T) {
	pl, err := planPage(previewDoc(), 1)
	if err != nil {
		t.Fatalf("planPage: %v", err)
	}
	if pl.bg != (rgb{0, 0, 0}) || pl.fg != (rgb{255, 255, 255}) {
		t.Fatalf("dark page colors = %+v %+v", pl.bg, pl.fg)
	}
}

func TestFitLabel(t *testing.T) {
	if got := fitLabel("short", 100); got != "short" {
		t.Fatalf("fitLabel = %q", got)
	}
	got := fitLabel("a rather long label that does not fit", 50)
	if !strings.HasSuffix(got, "...") || len(got) >= len("a rather long label that does not fit") {
		t.Fatalf("fitLabel = %q", got)
	}
	if fitLabel("x", 0) != "" {
		t.Fatalf("zero width should give an empty label")
	}
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPNG(previewDoc(), 0, &buf); err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("bounds = %v", b)
	}
	if c := color.RGBAModel.Convert(img.At(20, 20)).(color.RGBA); c.R != 255 || c.G != 0 {
		t.Fatalf("rect fill pixel = %v", c)
	}
	if c := color.RGBAModel.Convert(img.At(5, 90)).(color.RGBA); c.R != 255 || c.G != 255 {
		t.Fatalf("hidden widget drawn: %v", c)
	}
}

func TestRenderPNGPageRange(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPNG(previewDoc(), 5, &buf); !errors.Is(err, ErrPageRange) {
		t.Fatalf("err = %v", err)
	}
}

func TestRenderPDFCreatesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "exports", "layout.pdf")
	if err := RenderPDF(previewDoc(), out); err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF")) {
		t.Fatalf("not a pdf")
	}
}
