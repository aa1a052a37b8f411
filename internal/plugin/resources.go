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
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Font identifies one rasterized font resource.
type Font struct {
	Family string
	Weight int
	Size   int
	Italic bool
	// Icon fonts are loaded from a local file and carry an explicit glyph list.
	Icon bool
}

var nonIdent = regexp.MustCompile(`[^a-z0-9]+`)

// ID is the resource id used in generated text, e.g. font_roboto_400_20.
func (f Font) ID() string {
	if f.Icon {
		return fmt.Sprintf("font_mdi_%d", f.Size)
	}
	fam := strings.Trim(nonIdent.ReplaceAllString(strings.ToLower(f.Family), "_"), "_")
	if fam == "" {
		fam = "roboto"
	}
	id := fmt.Sprintf("font_%s_%d_%d", fam, f.Weight, f.Size)
	if f.Italic {
		id += "_italic"
	}
	return id
}

// Requirements accumulates document resources requested by plugins.
type Requirements struct {
	fonts  map[string]Font
	glyphs map[int]map[string]bool
}

// NewRequirements returns an empty set.
func NewRequirements() *Requirements {
	return &Requirements{fonts: map[string]Font{}, glyphs: map[int]map[string]bool{}}
}

// AddFont requests a text font.
func (r *Requirements) AddFont(family string, weight, size int, italic bool) Font {
	if weight <= 0 {
		weight = 400
	}
	if size <= 0 {
		size = 20
	}
	f := Font{Family: family, Weight: weight, Size: size, Italic: italic}
	if f.Family == "" {
		f.Family = "Roboto"
	}
	r.fonts[f.ID()] = f
	return f
}

// AddGlyph requests an icon glyph (hex code point such as F0595) at size.
func (r *Requirements) AddGlyph(code string, size int) Font {
	f := Font{Family: "Material Design Icons", Size: size, Icon: true}
	r.fonts[f.ID()] = f
	if r.glyphs[size] == nil {
		r.glyphs[size] = map[string]bool{}
	}
	r.glyphs[size][strings.ToUpper(code)] = true
	return f
}

// Fonts returns requested fonts sorted by id.
func (r *Requirements) Fonts() []Font {
	out := make([]Font, 0, len(r.fonts))
	for _, f := range r.fonts {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Glyphs returns the sorted glyph codes requested for an icon font size.
func (r *Requirements) Glyphs(size int) []string {
	out := make([]string, 0, len(r.glyphs[size]))
	for g := range r.glyphs[size] {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

var namedColors = map[string]string{
	"black":  "COLOR_BLACK",
	"white":  "COLOR_WHITE",
	"red":    "COLOR_RED",
	"green":  "COLOR_GREEN",
	"blue":   "COLOR_BLUE",
	"yellow": "COLOR_YELLOW",
	"orange": "COLOR_ORANGE",
	"gray":   "COLOR_GRAY",
	"grey":   "COLOR_GRAY",
}

// ColorConstants returns the color declarations placed at the top of the display lambda.
func ColorConstants() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range namedColors {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	lines := make([]string, 0, len(out))
	for _, c := range out {
		rgb := colorRGB[c]
		lines = append(lines, fmt.Sprintf("const auto %s = Color(%d, %d, %d);", c, rgb[0], rgb[1], rgb[2]))
	}
	return lines
}

var colorRGB = map[string][3]int{
	"COLOR_BLACK":  {0, 0, 0},
	"COLOR_WHITE":  {255, 255, 255},
	"COLOR_RED":    {255, 0, 0},
	"COLOR_GREEN":  {0, 255, 0},
	"COLOR_BLUE":   {0, 0, 255},
	"COLOR_YELLOW": {255, 255, 0},
	"COLOR_ORANGE": {255, 165, 0},
	"COLOR_GRAY":   {128, 128, 128},
}

// ColorExpr turns a color name or #rrggbb into an expression for the display lambda.
// On dark pages black and white swap.
func ColorExpr(name string, dark bool) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if dark {
		switch n {
		case "black":
			n = "white"
		case "white":
			n = "black"
		}
	}
	if c, ok := namedColors[n]; ok {
		return c
	}
	if strings.HasPrefix(n, "#") && len(n) == 7 {
		v, err := strconv.ParseUint(n[1:], 16, 32)
		if err == nil {
			return fmt.Sprintf("Color(%d, %d, %d)", v>>16&0xff, v>>8&0xff, v&0xff)
		}
	}
	return "COLOR_BLACK"
}

// ColorRGB resolves a color name or #rrggbb to RGB, swapping black and white
// on dark pages. Unknown names resolve to black.
func ColorRGB(name string, dark bool) (r, g, b uint8) {
	expr := ColorExpr(name, dark)
	if rgb, ok := colorRGB[expr]; ok {
		return uint8(rgb[0]), uint8(rgb[1]), uint8(rgb[2])
	}
	var ri, gi, bi int
	if _, err := fmt.Sscanf(expr, "Color(%d, %d, %d)", &ri, &gi, &bi); err == nil {
		return uint8(ri), uint8(gi), uint8(bi)
	}
	return 0, 0, 0
}

// SanitizeID turns an entity id like sensor.living_room into a local id.
func SanitizeID(entity string) string {
	s := strings.Trim(nonIdent.ReplaceAllString(strings.ToLower(entity), "_"), "_")
	if s == "" {
		return "unnamed"
	}
	return s
}

// CString quotes s as a C string literal.
func CString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
