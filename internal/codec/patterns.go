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
	"regexp"
	"strconv"
	"strings"

	"displaydesigner/internal/domain"
)

var (
	pageSelectorRe = regexp.MustCompile(`^\s*(?:\}\s*)?(?:else\s+)?if\s*\(\s*(?:id\s*\(\s*display_page\s*\)|page|currentPage)\s*==\s*(\d+)\s*\)\s*\{`)
	intervalRe     = regexp.MustCompile(`(?:^|[{;])\s*case\s+(\d+):\s*interval\s*=\s*(\d+);`)
	pageCommentRe  = regexp.MustCompile(`^//\s*page:(id|name|dark_mode|refresh_type|refresh_time)\s+(.*)$`)
)

// primitive is one fallback drawing call with a fixed positional shape.
type primitive struct {
	call  string
	arity int
	re    *regexp.Regexp
	build func(args []int, color string) (typ, prefix string, x, y, w, h int, props map[string]string)
}

func newPrimitive(call string, arity int, build func([]int, string) (string, string, int, int, int, int, map[string]string)) primitive {
	ints := strings.Repeat(`\s*,\s*(-?\d+)`, arity-1)
	re := regexp.MustCompile(`^\s*it\.` + call + `\s*\(\s*(-?\d+)` + ints + `(?:\s*,\s*([A-Za-z_][\w:]*))?\s*\)\s*;?`)
	return primitive{call: call, arity: arity, re: re, build: build}
}

// fallbackColor maps a drawing color argument to a widget color name.
func fallbackColor(arg string) string {
	switch arg {
	case "COLOR_OFF", "COLOR_WHITE":
		return "white"
	}
	return "black"
}

var primitives = []primitive{
	newPrimitive("rectangle", 4, func(a []int, c string) (string, string, int, int, int, int, map[string]string) {
		return "shape_rect", "w_rect", a[0], a[1], a[2], a[3], map[string]string{"fill": "false", "color": fallbackColor(c)}
	}),
	newPrimitive("filled_rectangle", 4, func(a []int, c string) (string, string, int, int, int, int, map[string]string) {
		return "shape_rect", "w_frect", a[0], a[1], a[2], a[3], map[string]string{"fill": "true", "color": fallbackColor(c)}
	}),
	newPrimitive("circle", 3, func(a []int, c string) (string, string, int, int, int, int, map[string]string) {
		r := a[2]
		return "shape_circle", "w_circle", a[0] - r, a[1] - r, 2 * r, 2 * r, map[string]string{"fill": "false", "color": fallbackColor(c)}
	}),
	newPrimitive("filled_circle", 3, func(a []int, c string) (string, string, int, int, int, int, map[string]string) {
		r := a[2]
		return "shape_circle", "w_fcircle", a[0] - r, a[1] - r, 2 * r, 2 * r, map[string]string{"fill": "true", "color": fallbackColor(c)}
	}),
	newPrimitive("line", 4, func(a []int, c string) (string, string, int, int, int, int, map[string]string) {
		dx, dy := a[2]-a[0], a[3]-a[1]
		orient := "horizontal"
		if abs(dy) > abs(dx) {
			orient = "vertical"
		}
		return "line", "w_line", a[0], a[1], dx, dy, map[string]string{"stroke_width": "1", "color": fallbackColor(c), "orientation": orient}
	}),
}

// matchPrimitive recognizes a raw drawing call. n numbers the synthesized id.
func matchPrimitive(line string, n int) *domain.Widget {
	for _, p := range primitives {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		args := make([]int, p.arity)
		for i := range args {
			args[i], _ = strconv.Atoi(m[i+1])
		}
		typ, prefix, x, y, w, h, props := p.build(args, m[p.arity+1])
		wd := domain.NewWidget(fmt.Sprintf("%s_%d", prefix, n), typ)
		wd.X, wd.Y, wd.Width, wd.Height = x, y, w, h
		for k, v := range props {
			wd.SetAttr(k, v)
		}
		return wd
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
