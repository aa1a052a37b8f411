/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package snap computes drag snapping for widgets against the canvas and
// the other widgets on a page. It is UI-agnostic and deterministic.
package snap

// DefaultDistance is the snap threshold in canvas pixels.
const DefaultDistance = 10

// Rect is a widget frame in canvas pixels.
type Rect struct{ X, Y, W, H int }

// Guide is a line the moving frame snapped to. Vertical guides sit at
// x = Position, horizontal ones at y = Position.
type Guide struct {
	Vertical bool
	Kind     string // "edge" or "center"
	Position float64
}

// Lines are the candidate positions for each axis.
type Lines struct {
	Vertical   []line
	Horizontal []line
}

type line struct {
	pos  float64
	kind string
}

// LinesFor collects canvas edges and center plus the edges and centers of
// every anchor frame.
func LinesFor(canvasW, canvasH int, anchors []Rect) Lines {
	var l Lines
	l.Vertical = append(l.Vertical, line{0, "edge"}, line{float64(canvasW) / 2, "center"}, line{float64(canvasW), "edge"})
	l.Horizontal = append(l.Horizontal, line{0, "edge"}, line{float64(canvasH) / 2, "center"}, line{float64(canvasH), "edge"})
	for _, a := range anchors {
		l.Vertical = append(l.Vertical,
			line{float64(a.X), "edge"},
			line{float64(a.X) + float64(a.W)/2, "center"},
			line{float64(a.X + a.W), "edge"})
		l.Horizontal = append(l.Horizontal,
			line{float64(a.Y), "edge"},
			line{float64(a.Y) + float64(a.H)/2, "center"},
			line{float64(a.Y + a.H), "edge"})
	}
	return l
}

// Apply snaps moving to the nearest line on each axis independently. The
// left, center and right of the frame are candidates on X (top, middle and
// bottom on Y). Ties keep the first match. A threshold <= 0 uses
// DefaultDistance.
func Apply(moving Rect, lines Lines, threshold int) (Rect, []Guide) {
	if threshold <= 0 {
		threshold = DefaultDistance
	}
	var guides []Guide
	out := moving
	if x, g, ok := axis(float64(moving.X), float64(moving.W), lines.Vertical, float64(threshold)); ok {
		out.X = x
		g.Vertical = true
		guides = append(guides, g)
	}
	if y, g, ok := axis(float64(moving.Y), float64(moving.H), lines.Horizontal, float64(threshold)); ok {
		out.Y = y
		guides = append(guides, g)
	}
	return out, guides
}

func axis(start, size float64, lines []line, threshold float64) (int, Guide, bool) {
	offsets := [3]float64{0, size / 2, size}
	best := threshold + 1
	var pos float64
	var g Guide
	found := false
	for _, off := range offsets {
		for _, l := range lines {
			d := abs(start + off - l.pos)
			if d <= threshold && d < best {
				best = d
				pos = l.pos - off
				g = Guide{Kind: l.kind, Position: l.pos}
				found = true
			}
		}
	}
	return roundInt(pos), g, found
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func roundInt(v float64) int {
	if v < 0 {
		return -int(-v + 0.5)
	}
	return int(v + 0.5)
}
