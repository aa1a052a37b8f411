/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders wireframe previews of layout pages: outlines for
// shapes, lines, and labelled boxes for everything else, at the device's
// canvas resolution.
package export

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"displaydesigner/internal/codec"
	"displaydesigner/internal/domain"
	"displaydesigner/internal/plugin"
)

// ErrPageRange is returned for a page index outside the document.
var ErrPageRange = errors.New("page index out of range")

type kind int

const (
	kindBox kind = iota
	kindRect
	kindCircle
	kindLine
	kindText
)

type rgb struct{ R, G, B uint8 }

// item is one drawable primitive in canvas pixels.
type item struct {
	kind       kind
	x, y, w, h int
	radius     int
	stroke     rgb
	fill       *rgb
	width      int
	label      string
}

type plan struct {
	width, height int
	bg, fg        rgb
	items         []item
}

var labelFace = basicfont.Face7x13

// planPage lays out page i of doc. Hidden widgets and groups are skipped.
func planPage(doc *domain.Document, i int) (*plan, error) {
	if doc == nil || i < 0 || i >= len(doc.Pages) {
		return nil, fmt.Errorf("page %d: %w", i, ErrPageRange)
	}
	page := doc.Pages[i]
	dark := codec.IsDark(page, doc.Settings)
	w, h := doc.CanvasSize()
	pl := &plan{width: w, height: h, bg: rgb{255, 255, 255}, fg: rgb{0, 0, 0}}
	if dark {
		pl.bg, pl.fg = pl.fg, pl.bg
	}
	color := func(wd *domain.Widget, key string) rgb {
		v, _ := wd.Attr(key)
		if v == "" || v == "theme_auto" {
			return pl.fg
		}
		r, g, b := plugin.ColorRGB(v, dark)
		return rgb{r, g, b}
	}
	for _, wd := range page.Widgets {
		if wd.Hidden || wd.IsGroup() {
			continue
		}
		it := item{kind: kindBox, x: wd.X, y: wd.Y, w: wd.Width, h: wd.Height, stroke: color(wd, "color"), width: 1}
		switch wd.Type {
		case "shape_rect", "rounded_rect", "shape_circle":
			it.kind = kindRect
			if wd.Type == "shape_circle" {
				it.kind = kindCircle
			}
			it.radius = domain.PropInt(wd.Props, "radius", 0)
			it.width = max(1, domain.PropInt(wd.Props, "border_width", 1))
			if v, _ := wd.Attr("fill"); domain.ParseBool(v) {
				f := color(wd, "color")
				it.fill = &f
				if bc, _ := wd.Attr("border_color"); bc != "" {
					it.stroke = color(wd, "border_color")
				}
			}
		case "line":
			it.kind = kindLine
			it.width = max(1, domain.PropInt(wd.Props, "stroke_width", 1))
		case "text", "label", "sensor_text", "datetime":
			it.kind = kindText
			it.label = fitLabel(labelFor(wd), wd.Width)
		default:
			it.label = fitLabel(labelFor(wd), wd.Width-4)
		}
		pl.items = append(pl.items, it)
	}
	return pl, nil
}

// labelFor picks the text shown for a widget in a preview.
func labelFor(w *domain.Widget) string {
	switch w.Type {
	case "text", "label":
		if v, _ := w.Attr("text"); v != "" {
			return v
		}
	case "sensor_text":
		if w.EntityID != "" {
			if w.Title != "" {
				return w.Title + ": " + w.EntityID
			}
			return w.EntityID
		}
	case "datetime":
		return "12:34"
	}
	if w.Title != "" {
		return w.Title
	}
	return w.Type
}

// fitLabel cuts s so it fits into width pixels of the label face.
func fitLabel(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	d := &font.Drawer{Face: labelFace}
	if d.MeasureString(s).Ceil() <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && d.MeasureString(string(r)+"...").Ceil() > width {
		r = r[:len(r)-1]
	}
	if len(r) == 0 {
		return ""
	}
	return string(r) + "..."
}
