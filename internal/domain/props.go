/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Props is the typed, per-widget-type property set. The set of variants is
// closed; plugin-private keys travel in Widget.Extra instead.
type Props interface {
	// Kind names the variant, e.g. "text" or "shape".
	Kind() string
	Clone() Props
	fields() []field
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindBool
)

// field binds a canonical key (plus accepted aliases) to a struct member.
type field struct {
	key     string
	aliases []string
	kind    fieldKind
	s       *string
	n       *int
	b       *bool
}

func str(key string, p *string, aliases ...string) field {
	return field{key: key, aliases: aliases, kind: kindString, s: p}
}
func num(key string, p *int, aliases ...string) field {
	return field{key: key, aliases: aliases, kind: kindInt, n: p}
}
func flag(key string, p *bool, aliases ...string) field {
	return field{key: key, aliases: aliases, kind: kindBool, b: p}
}

func (f field) matches(key string) bool {
	if f.key == key {
		return true
	}
	for _, a := range f.aliases {
		if a == key {
			return true
		}
	}
	return false
}

func (f field) value() any {
	switch f.kind {
	case kindInt:
		return *f.n
	case kindBool:
		return *f.b
	default:
		return *f.s
	}
}

func (f field) text() string {
	switch f.kind {
	case kindInt:
		return strconv.Itoa(*f.n)
	case kindBool:
		return strconv.FormatBool(*f.b)
	default:
		return *f.s
	}
}

func (f field) set(raw string) bool {
	switch f.kind {
	case kindInt:
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			fv, ferr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if ferr != nil {
				return false
			}
			v = int(fv)
		}
		*f.n = v
	case kindBool:
		*f.b = ParseBool(raw)
	default:
		*f.s = raw
	}
	return true
}

// ParseBool accepts the boolean spellings found in generated text.
func ParseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// KV is one flattened property.
type KV struct {
	Key   string
	Value any
}

// FlattenProps lists the props of p under their canonical keys, in a stable order.
func FlattenProps(p Props) []KV {
	if p == nil {
		return nil
	}
	fs := p.fields()
	out := make([]KV, 0, len(fs))
	for _, f := range fs {
		out = append(out, KV{Key: f.key, Value: f.value()})
	}
	return out
}

// PropText returns the textual value of key, and whether p has it.
func PropText(p Props, key string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, f := range p.fields() {
		if f.matches(key) {
			return f.text(), true
		}
	}
	return "", false
}

// PropInt returns the integer value of key, or def.
func PropInt(p Props, key string, def int) int {
	s, ok := PropText(p, key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// SetProp assigns raw to the field named key (canonical or alias).
// It reports false when the variant has no such field or the value does not parse.
func SetProp(p Props, key, raw string) bool {
	if p == nil {
		return false
	}
	for _, f := range p.fields() {
		if f.matches(key) {
			return f.set(raw)
		}
	}
	return false
}

// HasProp reports whether key (canonical or alias) belongs to p.
func HasProp(p Props, key string) bool {
	_, ok := PropText(p, key)
	return ok
}

// SetPropValue assigns a JSON-decoded value.
func SetPropValue(p Props, key string, v any) bool {
	switch x := v.(type) {
	case nil:
		return HasProp(p, key)
	case string:
		return SetProp(p, key, x)
	case bool:
		return SetProp(p, key, strconv.FormatBool(x))
	case float64:
		return SetProp(p, key, strconv.FormatFloat(x, 'f', -1, 64))
	case int:
		return SetProp(p, key, strconv.Itoa(x))
	default:
		return false
	}
}

func propsEqual(a, b Props) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	fa, fb := a.fields(), b.fields()
	if len(fa) != len(fb) {
		return false
	}
	for i := range fa {
		if fa[i].key != fb[i].key || fa[i].value() != fb[i].value() {
			return false
		}
	}
	return true
}

// TextProps covers "text" and "label".
type TextProps struct {
	Text       string
	FontSize   int
	FontFamily string
	FontWeight int
	Italic     bool
	BPP        int
	Color      string
	TextAlign  string
}

func (*TextProps) Kind() string { return "text" }
func (p *TextProps) Clone() Props { c := *p; return &c }
func (p *TextProps) fields() []field {
	return []field{
		str("text", &p.Text),
		num("font_size", &p.FontSize, "size"),
		str("font_family", &p.FontFamily, "font"),
		num("font_weight", &p.FontWeight, "weight"),
		flag("italic", &p.Italic),
		num("bpp", &p.BPP),
		str("color", &p.Color),
		str("text_align", &p.TextAlign, "align"),
	}
}

// SensorTextProps formats a live entity value with an optional label.
type SensorTextProps struct {
	LabelFontSize int
	ValueFontSize int
	ValueFormat   string
	Color         string
	Italic        bool
	FontFamily    string
	FontWeight    int
	Prefix        string
	Postfix       string
	Unit          string
	HideUnit      bool
	Precision     int
	TextAlign     string
	LabelAlign    string
	ValueAlign    string
	IsLocalSensor bool
	IsTextSensor  bool
	Separator     string
}

func (*SensorTextProps) Kind() string { return "sensor_text" }
func (p *SensorTextProps) Clone() Props { c := *p; return &c }
func (p *SensorTextProps) fields() []field {
	return []field{
		num("label_font_size", &p.LabelFontSize, "label_font"),
		num("value_font_size", &p.ValueFontSize, "value_font"),
		str("value_format", &p.ValueFormat, "format"),
		str("color", &p.Color),
		flag("italic", &p.Italic),
		str("font_family", &p.FontFamily, "font"),
		num("font_weight", &p.FontWeight, "weight"),
		str("prefix", &p.Prefix),
		str("postfix", &p.Postfix),
		str("unit", &p.Unit),
		flag("hide_unit", &p.HideUnit),
		num("precision", &p.Precision),
		str("text_align", &p.TextAlign, "align"),
		str("label_align", &p.LabelAlign),
		str("value_align", &p.ValueAlign),
		flag("is_local_sensor", &p.IsLocalSensor, "local"),
		flag("is_text_sensor", &p.IsTextSensor, "text_sensor"),
		str("separator", &p.Separator),
	}
}

// DateTimeProps renders the device clock.
type DateTimeProps struct {
	Format       string
	TimeFontSize int
	DateFontSize int
	Color        string
	Italic       bool
	FontFamily   string
	TextAlign    string
}

func (*DateTimeProps) Kind() string { return "datetime" }
func (p *DateTimeProps) Clone() Props { c := *p; return &c }
func (p *DateTimeProps) fields() []field {
	return []field{
		str("format", &p.Format),
		num("time_font_size", &p.TimeFontSize, "time_size", "time_font"),
		num("date_font_size", &p.DateFontSize, "date_size", "date_font"),
		str("color", &p.Color),
		flag("italic", &p.Italic),
		str("font_family", &p.FontFamily, "font"),
		str("text_align", &p.TextAlign, "align"),
	}
}

type ProgressBarProps struct {
	ShowLabel      bool
	ShowPercentage bool
	BarHeight      int
	BorderWidth    int
	Color          string
	IsLocalSensor  bool
}

func (*ProgressBarProps) Kind() string { return "progress_bar" }
func (p *ProgressBarProps) Clone() Props { c := *p; return &c }
func (p *ProgressBarProps) fields() []field {
	return []field{
		flag("show_label", &p.ShowLabel),
		flag("show_percentage", &p.ShowPercentage, "show_pct"),
		num("bar_height", &p.BarHeight, "bar_h"),
		num("border_width", &p.BorderWidth, "border_w", "border"),
		str("color", &p.Color),
		flag("is_local_sensor", &p.IsLocalSensor, "local"),
	}
}

// IndicatorProps covers "battery_icon" and "wifi_signal".
type IndicatorProps struct {
	Size           int
	FontSize       int
	Color          string
	IsLocalSensor  bool
	ShowDBM        bool
	FitIconToFrame bool
}

func (*IndicatorProps) Kind() string { return "indicator" }
func (p *IndicatorProps) Clone() Props { c := *p; return &c }
func (p *IndicatorProps) fields() []field {
	return []field{
		num("size", &p.Size),
		num("font_size", &p.FontSize),
		str("color", &p.Color),
		flag("is_local_sensor", &p.IsLocalSensor, "local"),
		flag("show_dbm", &p.ShowDBM),
		flag("fit_icon_to_frame", &p.FitIconToFrame, "fit"),
	}
}

type IconProps struct {
	Code           string
	Size           int
	Color          string
	FitIconToFrame bool
}

func (*IconProps) Kind() string { return "icon" }
func (p *IconProps) Clone() Props { c := *p; return &c }
func (p *IconProps) fields() []field {
	return []field{
		str("code", &p.Code),
		num("size", &p.Size),
		str("color", &p.Color),
		flag("fit_icon_to_frame", &p.FitIconToFrame, "fit"),
	}
}

type QRCodeProps struct {
	Value string
	Scale int
	ECC   string
	Color string
}

func (*QRCodeProps) Kind() string { return "qr_code" }
func (p *QRCodeProps) Clone() Props { c := *p; return &c }
func (p *QRCodeProps) fields() []field {
	return []field{
		str("value", &p.Value),
		num("scale", &p.Scale),
		str("ecc", &p.ECC),
		str("color", &p.Color),
	}
}

// ImageProps is a local image file.
type ImageProps struct {
	Path         string
	Invert       bool
	Dither       string
	Transparency string
	ImageType    string
	RenderMode   string
}

func (*ImageProps) Kind() string { return "image" }
func (p *ImageProps) Clone() Props { c := *p; return &c }
func (p *ImageProps) fields() []field {
	return []field{
		str("path", &p.Path),
		flag("invert", &p.Invert),
		str("dither", &p.Dither),
		str("transparency", &p.Transparency),
		str("image_type", &p.ImageType, "img_type"),
		str("render_mode", &p.RenderMode),
	}
}

// OnlineImageProps is an image downloaded by the device.
type OnlineImageProps struct {
	URL        string
	Invert     bool
	IntervalS  int
	RenderMode string
}

func (*OnlineImageProps) Kind() string { return "online_image" }
func (p *OnlineImageProps) Clone() Props { c := *p; return &c }
func (p *OnlineImageProps) fields() []field {
	return []field{
		str("url", &p.URL),
		flag("invert", &p.Invert),
		num("interval_s", &p.IntervalS, "interval"),
		str("render_mode", &p.RenderMode),
	}
}

// ShapeProps covers "shape_rect", "rounded_rect" and "shape_circle".
type ShapeProps struct {
	Fill        bool
	ShowBorder  bool
	BorderWidth int
	Radius      int
	Color       string
	BorderColor string
	Opacity     int
}

func (*ShapeProps) Kind() string { return "shape" }
func (p *ShapeProps) Clone() Props { c := *p; return &c }
func (p *ShapeProps) fields() []field {
	return []field{
		flag("fill", &p.Fill),
		flag("show_border", &p.ShowBorder),
		num("border_width", &p.BorderWidth, "border"),
		num("radius", &p.Radius),
		str("color", &p.Color),
		str("border_color", &p.BorderColor),
		num("opacity", &p.Opacity),
	}
}

type LineProps struct {
	StrokeWidth int
	Color       string
	Orientation string
}

func (*LineProps) Kind() string { return "line" }
func (p *LineProps) Clone() Props { c := *p; return &c }
func (p *LineProps) fields() []field {
	return []field{
		num("stroke_width", &p.StrokeWidth, "stroke"),
		str("color", &p.Color),
		str("orientation", &p.Orientation),
	}
}

// GraphProps plots an entity's history; bounds are kept as text so "auto" survives.
type GraphProps struct {
	Duration      string
	Border        bool
	Grid          bool
	Color         string
	XGrid         string
	YGrid         string
	LineThickness int
	LineType      string
	Continuous    bool
	MinValue      string
	MaxValue      string
	MinRange      string
	MaxRange      string
	IsLocalSensor bool
}

func (*GraphProps) Kind() string { return "graph" }
func (p *GraphProps) Clone() Props { c := *p; return &c }
func (p *GraphProps) fields() []field {
	return []field{
		str("duration", &p.Duration),
		flag("border", &p.Border),
		flag("grid", &p.Grid),
		str("color", &p.Color),
		str("x_grid", &p.XGrid),
		str("y_grid", &p.YGrid),
		num("line_thickness", &p.LineThickness),
		str("line_type", &p.LineType),
		flag("continuous", &p.Continuous),
		str("min_value", &p.MinValue),
		str("max_value", &p.MaxValue),
		str("min_range", &p.MinRange),
		str("max_range", &p.MaxRange),
		flag("is_local_sensor", &p.IsLocalSensor, "local"),
	}
}

// GroupProps is empty; a group is positioned by its own geometry only.
type GroupProps struct{}

func (*GroupProps) Kind() string { return "group" }
func (*GroupProps) Clone() Props { return &GroupProps{} }
func (*GroupProps) fields() []field { return nil }

// GenericProps is used for plugin-provided types the core does not model.
// All their keys live in Widget.Extra.
type GenericProps struct{}

func (*GenericProps) Kind() string { return "generic" }
func (*GenericProps) Clone() Props { return &GenericProps{} }
func (*GenericProps) fields() []field { return nil }

var propFactories = map[string]func() Props{
	"text":  newTextProps,
	"label": newTextProps,
	"sensor_text": func() Props {
		return &SensorTextProps{
			LabelFontSize: 14, ValueFontSize: 20, ValueFormat: "label_value", Color: "black",
			FontFamily: "Roboto", FontWeight: 400, Precision: -1,
			TextAlign: "TOP_LEFT", LabelAlign: "TOP_LEFT", ValueAlign: "TOP_LEFT", Separator: " ~ ",
		}
	},
	"datetime": func() Props {
		return &DateTimeProps{Format: "time_date", TimeFontSize: 28, DateFontSize: 16, Color: "black", FontFamily: "Roboto", TextAlign: "CENTER"}
	},
	"progress_bar": func() Props {
		return &ProgressBarProps{ShowLabel: true, ShowPercentage: true, BarHeight: 15, BorderWidth: 1, Color: "black"}
	},
	"battery_icon": func() Props {
		return &IndicatorProps{Size: 32, FontSize: 12, Color: "black"}
	},
	"wifi_signal": func() Props {
		return &IndicatorProps{Size: 24, FontSize: 12, Color: "black", IsLocalSensor: true, ShowDBM: true}
	},
	"icon": func() Props {
		return &IconProps{Code: "F0595", Size: 48, Color: "black"}
	},
	"qr_code": func() Props {
		return &QRCodeProps{Value: "https://esphome.io", Scale: 2, ECC: "LOW", Color: "black"}
	},
	"image": func() Props {
		return &ImageProps{Dither: "FLOYDSTEINBERG", ImageType: "BINARY", RenderMode: "Auto"}
	},
	"online_image": func() Props {
		return &OnlineImageProps{IntervalS: 300, RenderMode: "Auto"}
	},
	"shape_rect":   newShapeProps,
	"shape_circle": newShapeProps,
	"rounded_rect": func() Props {
		return &ShapeProps{ShowBorder: true, BorderWidth: 4, Radius: 10, Color: "black", BorderColor: "black", Opacity: 100}
	},
	"line": func() Props {
		return &LineProps{StrokeWidth: 3, Color: "black", Orientation: "horizontal"}
	},
	"graph": func() Props {
		return &GraphProps{Duration: "1h", Border: true, Grid: true, Color: "black", LineThickness: 3, LineType: "SOLID", Continuous: true}
	},
	TypeGroup: func() Props { return &GroupProps{} },
}

func newTextProps() Props {
	return &TextProps{FontSize: 20, FontFamily: "Roboto", FontWeight: 400, BPP: 1, Color: "black", TextAlign: "TOP_LEFT"}
}

func newShapeProps() Props {
	return &ShapeProps{ShowBorder: true, BorderWidth: 1, Color: "black", BorderColor: "black", Opacity: 100}
}

// NewProps returns default-filled props for the widget type.
// Types the core does not model get GenericProps.
func NewProps(widgetType string) Props {
	if f, ok := propFactories[widgetType]; ok {
		return f()
	}
	return &GenericProps{}
}

// KnownType reports whether the core has a typed props variant for widgetType.
func KnownType(widgetType string) bool {
	_, ok := propFactories[widgetType]
	return ok
}

// KnownTypes lists the modelled widget types, sorted.
func KnownTypes() []string {
	out := make([]string, 0, len(propFactories))
	for k := range propFactories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultSize returns the initial width and height for a new widget of widgetType.
func DefaultSize(widgetType string) (int, int) {
	switch {
	case widgetType == "template_nav_bar":
		return 200, 50
	case widgetType == "touch_area":
		return 100, 100
	case strings.HasPrefix(widgetType, "nav_"):
		return 80, 80
	case widgetType == "battery_icon", widgetType == "wifi_signal", widgetType == "icon":
		return 60, 60
	case widgetType == "datetime":
		return 200, 60
	default:
		return 100, 30
	}
}
