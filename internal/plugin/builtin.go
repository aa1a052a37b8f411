/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package plugin

import (
	"fmt"
	"strings"

	"displaydesigner/internal/domain"
)

// builtin is a direct-mode plugin backed by plain functions.
type builtin struct {
	typ     string
	export  func(ctx *Context) []string
	require func(ctx *Context, req *Requirements)
	trigger func(ctx *Context) []Trigger
	declare func(widgets []*Context) []string
}

func (b *builtin) Type() string  { return b.typ }
func (b *builtin) Modes() []Mode { return []Mode{ModeDirect} }

func (b *builtin) Export(mode Mode, ctx *Context) []string {
	if mode != ModeDirect || b.export == nil {
		return nil
	}
	return b.export(ctx)
}

func (b *builtin) CollectRequirements(ctx *Context, req *Requirements) {
	if b.require != nil {
		b.require(ctx, req)
	}
}

func (b *builtin) RefreshTriggers(ctx *Context) []Trigger {
	if b.trigger == nil {
		return nil
	}
	return b.trigger(ctx)
}

func (b *builtin) Declarations(mode Mode, _ *domain.Document, widgets []*Context) []string {
	if mode != ModeDirect || b.declare == nil {
		return nil
	}
	return b.declare(widgets)
}

// Builtin returns a registry with the direct-mode plugins for every core widget type.
func Builtin() *Registry {
	r := NewRegistry()
	r.MustRegister(
		&builtin{typ: "text", export: exportText, require: requireText},
		&builtin{typ: "label", export: exportText, require: requireText},
		&builtin{typ: "sensor_text", export: exportSensorText, require: requireSensorText, trigger: entityTriggers},
		&builtin{typ: "datetime", export: exportDateTime, require: requireDateTime, declare: declareClock},
		&builtin{typ: "progress_bar", export: exportProgressBar, require: requireProgressBar, trigger: entityTriggers},
		&builtin{typ: "battery_icon", export: exportIndicator("F0079"), require: requireIndicator("F0079"), trigger: entityTriggers},
		&builtin{typ: "wifi_signal", export: exportIndicator("F0928"), require: requireIndicator("F0928"), trigger: entityTriggers},
		&builtin{typ: "icon", export: exportIcon, require: requireIcon},
		&builtin{typ: "qr_code", export: exportQRCode, declare: declareQRCodes},
		&builtin{typ: "image", export: exportImage, declare: declareImages},
		&builtin{typ: "online_image", export: exportImage, declare: declareOnlineImages},
		&builtin{typ: "shape_rect", export: exportRect},
		&builtin{typ: "rounded_rect", export: exportRoundedRect},
		&builtin{typ: "shape_circle", export: exportCircle},
		&builtin{typ: "line", export: exportLine},
		&builtin{typ: "graph", export: exportGraph, trigger: entityTriggers, declare: declareGraphs},
	)
	return r
}

// fontID names the font AddFont would register for the same arguments.
func fontID(family string, weight, size int, italic bool) string {
	return NewRequirements().AddFont(family, weight, size, italic).ID()
}

func align(s string) string {
	if s == "" {
		s = "TOP_LEFT"
	}
	return "TextAlign::" + strings.ToUpper(s)
}

// anchor returns the point inside the widget box matching a TextAlign value.
func anchor(w *domain.Widget, a string) (int, int) {
	a = strings.ToUpper(a)
	x, y := w.X, w.Y
	switch {
	case strings.HasSuffix(a, "RIGHT"):
		x = w.X + w.Width
	case strings.HasSuffix(a, "CENTER") || a == "CENTER":
		x = w.X + w.Width/2
	}
	switch {
	case strings.HasPrefix(a, "BOTTOM"):
		y = w.Y + w.Height
	case strings.HasPrefix(a, "CENTER"):
		y = w.Y + w.Height/2
	}
	return x, y
}

func requireText(ctx *Context, req *Requirements) {
	if p, ok := ctx.Widget.Props.(*domain.TextProps); ok {
		req.AddFont(p.FontFamily, p.FontWeight, p.FontSize, p.Italic)
	}
}

func exportText(ctx *Context) []string {
	w := ctx.Widget
	p, ok := w.Props.(*domain.TextProps)
	if !ok {
		return nil
	}
	x, y := anchor(w, p.TextAlign)
	return []string{fmt.Sprintf("it.print(%d, %d, id(%s), %s, %s, %s);",
		x, y, fontID(p.FontFamily, p.FontWeight, p.FontSize, p.Italic), ColorExpr(p.Color, ctx.Dark), align(p.TextAlign), CString(p.Text))}
}

func requireSensorText(ctx *Context, req *Requirements) {
	if p, ok := ctx.Widget.Props.(*domain.SensorTextProps); ok {
		req.AddFont(p.FontFamily, p.FontWeight, p.ValueFontSize, p.Italic)
		req.AddFont(p.FontFamily, p.FontWeight, p.LabelFontSize, p.Italic)
	}
}

func exportSensorText(ctx *Context) []string {
	w := ctx.Widget
	p, ok := w.Props.(*domain.SensorTextProps)
	if !ok || w.EntityID == "" {
		return []string{"// sensor_text without entity"}
	}
	valueFont := fontID(p.FontFamily, p.FontWeight, p.ValueFontSize, p.Italic)
	labelFont := fontID(p.FontFamily, p.FontWeight, p.LabelFontSize, p.Italic)
	color := ColorExpr(p.Color, ctx.Dark)
	sid := SanitizeID(w.EntityID)
	unit := p.Unit
	if p.HideUnit {
		unit = ""
	}
	var out []string
	x, y := anchor(w, p.TextAlign)
	if w.Title != "" && strings.HasPrefix(p.ValueFormat, "label") {
		out = append(out, fmt.Sprintf("it.print(%d, %d, id(%s), %s, %s, %s);", x, y, labelFont, color, align(p.LabelAlign), CString(w.Title)))
		y += p.LabelFontSize + 4
	}
	if p.IsTextSensor {
		out = append(out, fmt.Sprintf("if (id(%s).has_state()) it.printf(%d, %d, id(%s), %s, %s, \"%%s%%s%%s\", %s, id(%s).state.c_str(), %s);",
			sid, x, y, valueFont, color, align(p.ValueAlign), CString(p.Prefix), sid, CString(p.Postfix+unit)))
		return out
	}
	prec := p.Precision
	if prec < 0 {
		prec = 1
	}
	out = append(out, fmt.Sprintf("if (id(%s).has_state()) it.printf(%d, %d, id(%s), %s, %s, \"%%s%%.%df%%s\", %s, id(%s).state, %s);",
		sid, x, y, valueFont, color, align(p.ValueAlign), prec, CString(p.Prefix), sid, CString(p.Postfix+unit)))
	return out
}

func entityTriggers(ctx *Context) []Trigger {
	w := ctx.Widget
	if local, _ := w.Attr("is_local_sensor"); domain.ParseBool(local) {
		return nil
	}
	text := false
	if p, ok := w.Props.(*domain.SensorTextProps); ok {
		text = p.IsTextSensor
	}
	var out []Trigger
	for _, e := range []string{w.EntityID, w.EntityID2} {
		if e != "" {
			out = append(out, Trigger{EntityID: e, Text: text})
		}
	}
	return out
}

func requireDateTime(ctx *Context, req *Requirements) {
	if p, ok := ctx.Widget.Props.(*domain.DateTimeProps); ok {
		req.AddFont(p.FontFamily, 400, p.TimeFontSize, p.Italic)
		req.AddFont(p.FontFamily, 400, p.DateFontSize, p.Italic)
	}
}

func exportDateTime(ctx *Context) []string {
	w := ctx.Widget
	p, ok := w.Props.(*domain.DateTimeProps)
	if !ok {
		return nil
	}
	tf := fontID(p.FontFamily, 400, p.TimeFontSize, p.Italic)
	df := fontID(p.FontFamily, 400, p.DateFontSize, p.Italic)
	color := ColorExpr(p.Color, ctx.Dark)
	x, y := anchor(w, p.TextAlign)
	var out []string
	if p.Format != "date_only" {
		out = append(out, fmt.Sprintf("it.strftime(%d, %d, id(%s), %s, %s, \"%%H:%%M\", id(ha_time).now());", x, y, tf, color, align(p.TextAlign)))
		y += p.TimeFontSize + 4
	}
	if p.Format != "time_only" {
		out = append(out, fmt.Sprintf("it.strftime(%d, %d, id(%s), %s, %s, \"%%a, %%b %%d\", id(ha_time).now());", x, y, df, color, align(p.TextAlign)))
	}
	return out
}

func declareClock([]*Context) []string {
	return []string{"time:", "  - platform: homeassistant", "    id: ha_time"}
}

func requireProgressBar(ctx *Context, req *Requirements) {
	if p, ok := ctx.Widget.Props.(*domain.ProgressBarProps); ok && (p.ShowLabel || p.ShowPercentage) {
		req.AddFont("Roboto", 400, 12, false)
	}
}

func exportProgressBar(ctx *Context) []string {
	w := ctx.Widget
	p, ok := w.Props.(*domain.ProgressBarProps)
	if !ok {
		return nil
	}
	color := ColorExpr(p.Color, ctx.Dark)
	barY := w.Y + w.Height - p.BarHeight
	out := []string{fmt.Sprintf("it.rectangle(%d, %d, %d, %d, %s);", w.X, barY, w.Width, p.BarHeight, color)}
	if w.EntityID != "" {
		sid := SanitizeID(w.EntityID)
		b := p.BorderWidth
		out = append(out, fmt.Sprintf("if (id(%s).has_state()) { float pct = std::max(0.0f, std::min(100.0f, (float) id(%s).state)); it.filled_rectangle(%d, %d, (int) (%d * pct / 100.0f), %d, %s); }",
			sid, sid, w.X+b, barY+b, w.Width-2*b, p.BarHeight-2*b, color))
		if p.ShowPercentage {
			out = append(out, fmt.Sprintf("if (id(%s).has_state()) it.printf(%d, %d, id(font_roboto_400_12), %s, TextAlign::TOP_RIGHT, \"%%.0f%%%%\", id(%s).state);",
				sid, w.X+w.Width, w.Y, color, sid))
		}
	}
	if p.ShowLabel && w.Title != "" {
		out = append(out, fmt.Sprintf("it.print(%d, %d, id(font_roboto_400_12), %s, TextAlign::TOP_LEFT, %s);", w.X, w.Y, color, CString(w.Title)))
	}
	return out
}

func requireIndicator(code string) func(*Context, *Requirements) {
	return func(ctx *Context, req *Requirements) {
		if p, ok := ctx.Widget.Props.(*domain.IndicatorProps); ok {
			req.AddGlyph(code, p.Size)
			req.AddFont("Roboto", 400, p.FontSize, false)
		}
	}
}

func exportIndicator(code string) func(*Context) []string {
	return func(ctx *Context) []string {
		w := ctx.Widget
		p, ok := w.Props.(*domain.IndicatorProps)
		if !ok {
			return nil
		}
		color := ColorExpr(p.Color, ctx.Dark)
		out := []string{fmt.Sprintf("it.print(%d, %d, id(font_mdi_%d), %s, \"\\U000%s\");", w.X, w.Y, p.Size, color, code)}
		if w.EntityID != "" {
			sid := SanitizeID(w.EntityID)
			out = append(out, fmt.Sprintf("if (id(%s).has_state()) it.printf(%d, %d, id(font_roboto_400_%d), %s, TextAlign::TOP_CENTER, \"%%.0f\", id(%s).state);",
				sid, w.X+p.Size/2, w.Y+p.Size+2, p.FontSize, color, sid))
		}
		return out
	}
}

func requireIcon(ctx *Context, req *Requirements) {
	if p, ok := ctx.Widget.Props.(*domain.IconProps); ok {
		req.AddGlyph(p.Code, p.Size)
	}
}

func exportIcon(ctx *Context) []string {
	w := ctx.Widget
	p, ok := w.Props.(*domain.IconProps)
	if !ok {
		return nil
	}
	return []string{fmt.Sprintf("it.print(%d, %d, id(font_mdi_%d), %s, \"\\U000%s\");", w.X, w.Y, p.Size, ColorExpr(p.Color, ctx.Dark), strings.ToUpper(p.Code))}
}

func exportQRCode(ctx *Context) []string {
	w := ctx.Widget
	p, ok := w.Props.(*domain.QRCodeProps)
	if !ok {
		return nil
	}
	return []string{fmt.Sprintf("it.qr_code(%d, %d, id(qr_%s), %s, %d);", w.X, w.Y, SanitizeID(w.ID), ColorExpr(p.Color, ctx.Dark), p.Scale)}
}

func declareQRCodes(widgets []*Context) []string {
	out := []string{"qr_code:"}
	for _, c := range widgets {
		p, ok := c.Widget.Props.(*domain.QRCodeProps)
		if !ok {
			continue
		}
		out = append(out,
			fmt.Sprintf("  - id: qr_%s", SanitizeID(c.Widget.ID)),
			fmt.Sprintf("    value: %q", p.Value),
			fmt.Sprintf("    ecc: %s", strings.ToUpper(p.ECC)))
	}
	return out
}

func exportImage(ctx *Context) []string {
	w := ctx.Widget
	return []string{fmt.Sprintf("it.image(%d, %d, id(img_%s));", w.X, w.Y, SanitizeID(w.ID))}
}

func declareImages(widgets []*Context) []string {
	out := []string{"image:"}
	for _, c := range widgets {
		p, ok := c.Widget.Props.(*domain.ImageProps)
		if !ok {
			continue
		}
		out = append(out,
			fmt.Sprintf("  - file: %q", p.Path),
			fmt.Sprintf("    id: img_%s", SanitizeID(c.Widget.ID)),
			fmt.Sprintf("    resize: %dx%d", c.Widget.Width, c.Widget.Height),
			fmt.Sprintf("    type: %s", p.ImageType),
			fmt.Sprintf("    dither: %s", p.Dither))
	}
	return out
}

func declareOnlineImages(widgets []*Context) []string {
	out := []string{"online_image:"}
	for _, c := range widgets {
		p, ok := c.Widget.Props.(*domain.OnlineImageProps)
		if !ok {
			continue
		}
		out = append(out,
			fmt.Sprintf("  - url: %q", p.URL),
			fmt.Sprintf("    id: img_%s", SanitizeID(c.Widget.ID)),
			fmt.Sprintf("    resize: %dx%d", c.Widget.Width, c.Widget.Height),
			"    format: PNG",
			"    type: BINARY",
			fmt.Sprintf("    update_interval: %ds", p.IntervalS))
	}
	return out
}

func shapeProps(w *domain.Widget) *domain.ShapeProps {
	if p, ok := w.Props.(*domain.ShapeProps); ok {
		return p
	}
	return &domain.ShapeProps{Color: "black", BorderWidth: 1}
}

func borderColor(p *domain.ShapeProps) string {
	if p.BorderColor != "" {
		return p.BorderColor
	}
	return p.Color
}

func exportRect(ctx *Context) []string {
	w := ctx.Widget
	p := shapeProps(w)
	var out []string
	if p.Fill {
		out = append(out, fmt.Sprintf("it.filled_rectangle(%d, %d, %d, %d, %s);", w.X, w.Y, w.Width, w.Height, ColorExpr(p.Color, ctx.Dark)))
	}
	if !p.Fill || p.ShowBorder {
		bc := ColorExpr(borderColor(p), ctx.Dark)
		for i := 0; i < max(1, p.BorderWidth); i++ {
			out = append(out, fmt.Sprintf("it.rectangle(%d, %d, %d, %d, %s);", w.X+i, w.Y+i, w.Width-2*i, w.Height-2*i, bc))
		}
	}
	return out
}

func exportRoundedRect(ctx *Context) []string {
	w := ctx.Widget
	p := shapeProps(w)
	r := min(p.Radius, w.Width/2, w.Height/2)
	color := ColorExpr(p.Color, ctx.Dark)
	var out []string
	if p.Fill {
		out = append(out,
			fmt.Sprintf("it.filled_rectangle(%d, %d, %d, %d, %s);", w.X+r, w.Y, w.Width-2*r, w.Height, color),
			fmt.Sprintf("it.filled_rectangle(%d, %d, %d, %d, %s);", w.X, w.Y+r, w.Width, w.Height-2*r, color))
		for _, c := range corners(w, r) {
			out = append(out, fmt.Sprintf("it.filled_circle(%d, %d, %d, %s);", c[0], c[1], r, color))
		}
	}
	if p.ShowBorder {
		bc := ColorExpr(borderColor(p), ctx.Dark)
		out = append(out,
			fmt.Sprintf("it.line(%d, %d, %d, %d, %s);", w.X+r, w.Y, w.X+w.Width-r, w.Y, bc),
			fmt.Sprintf("it.line(%d, %d, %d, %d, %s);", w.X+r, w.Y+w.Height, w.X+w.Width-r, w.Y+w.Height, bc),
			fmt.Sprintf("it.line(%d, %d, %d, %d, %s);", w.X, w.Y+r, w.X, w.Y+w.Height-r, bc),
			fmt.Sprintf("it.line(%d, %d, %d, %d, %s);", w.X+w.Width, w.Y+r, w.X+w.Width, w.Y+w.Height-r, bc))
	}
	return out
}

func corners(w *domain.Widget, r int) [][2]int {
	return [][2]int{
		{w.X + r, w.Y + r},
		{w.X + w.Width - r, w.Y + r},
		{w.X + r, w.Y + w.Height - r},
		{w.X + w.Width - r, w.Y + w.Height - r},
	}
}

func exportCircle(ctx *Context) []string {
	w := ctx.Widget
	p := shapeProps(w)
	r := min(w.Width, w.Height) / 2
	cx, cy := w.X+r, w.Y+r
	if p.Fill {
		return []string{fmt.Sprintf("it.filled_circle(%d, %d, %d, %s);", cx, cy, r, ColorExpr(p.Color, ctx.Dark))}
	}
	return []string{fmt.Sprintf("it.circle(%d, %d, %d, %s);", cx, cy, r, ColorExpr(borderColor(p), ctx.Dark))}
}

func exportLine(ctx *Context) []string {
	w := ctx.Widget
	p, ok := w.Props.(*domain.LineProps)
	if !ok {
		p = &domain.LineProps{StrokeWidth: 1, Color: "black"}
	}
	color := ColorExpr(p.Color, ctx.Dark)
	if p.StrokeWidth <= 1 {
		return []string{fmt.Sprintf("it.line(%d, %d, %d, %d, %s);", w.X, w.Y, w.X+w.Width, w.Y+w.Height, color)}
	}
	if p.Orientation == "vertical" {
		return []string{fmt.Sprintf("it.filled_rectangle(%d, %d, %d, %d, %s);", w.X, w.Y, p.StrokeWidth, w.Height, color)}
	}
	return []string{fmt.Sprintf("it.filled_rectangle(%d, %d, %d, %d, %s);", w.X, w.Y, w.Width, p.StrokeWidth, color)}
}

func exportGraph(ctx *Context) []string {
	w := ctx.Widget
	p, ok := w.Props.(*domain.GraphProps)
	if !ok {
		return nil
	}
	out := []string{fmt.Sprintf("it.graph(%d, %d, id(graph_%s), %s);", w.X, w.Y, SanitizeID(w.ID), ColorExpr(p.Color, ctx.Dark))}
	if w.Title != "" {
		out = append(out, fmt.Sprintf("it.print(%d, %d, id(font_roboto_400_12), %s, TextAlign::BOTTOM_LEFT, %s);", w.X, w.Y-2, ColorExpr(p.Color, ctx.Dark), CString(w.Title)))
	}
	return out
}

func declareGraphs(widgets []*Context) []string {
	out := []string{"graph:"}
	for _, c := range widgets {
		w := c.Widget
		p, ok := w.Props.(*domain.GraphProps)
		if !ok || w.EntityID == "" {
			continue
		}
		out = append(out,
			fmt.Sprintf("  - id: graph_%s", SanitizeID(w.ID)),
			fmt.Sprintf("    sensor: %s", SanitizeID(w.EntityID)),
			fmt.Sprintf("    duration: %s", p.Duration),
			fmt.Sprintf("    width: %d", w.Width),
			fmt.Sprintf("    height: %d", w.Height),
			fmt.Sprintf("    border: %t", p.Border))
		if p.XGrid != "" {
			out = append(out, fmt.Sprintf("    x_grid: %s", p.XGrid))
		}
		if p.YGrid != "" {
			out = append(out, fmt.Sprintf("    y_grid: %s", p.YGrid))
		}
		if p.MinValue != "" {
			out = append(out, fmt.Sprintf("    min_value: %s", p.MinValue))
		}
		if p.MaxValue != "" {
			out = append(out, fmt.Sprintf("    max_value: %s", p.MaxValue))
		}
	}
	return out
}
