/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log/slog"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"displaydesigner/internal/domain"
	applog "displaydesigner/internal/log"
)

// RenderPNG writes a wireframe preview of page pageIndex to w.
func RenderPNG(doc *domain.Document, pageIndex int, w io.Writer) error {
	pl, err := planPage(doc, pageIndex)
	if err != nil {
		return err
	}
	img := image.NewRGBA(image.Rect(0, 0, pl.width, pl.height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: toRGBA(pl.bg)}, image.Point{}, draw.Src)

	for _, it := range pl.items {
		x0, y0, x1, y1 := it.x, it.y, it.x+it.w-1, it.y+it.h-1
		switch it.kind {
		case kindRect:
			if it.fill != nil {
				fillRect(img, x0, y0, x1, y1, toRGBA(*it.fill))
			}
			for i := 0; i < it.width; i++ {
				strokeRect(img, x0+i, y0+i, x1-i, y1-i, toRGBA(it.stroke))
			}
		case kindCircle:
			strokeEllipse(img, it, toRGBA(it.stroke))
		case kindLine:
			drawLine(img, it, toRGBA(it.stroke))
		case kindText:
			drawLabel(img, it.x, it.y, it.label, toRGBA(it.stroke))
		default:
			strokeRect(img, x0, y0, x1, y1, toRGBA(it.stroke))
			drawLabel(img, it.x+2, it.y+2, it.label, toRGBA(it.stroke))
		}
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	applog.WithComponent("export").Debug("png rendered",
		slog.Int("page", pageIndex), slog.Int("items", len(pl.items)))
	return nil
}

func toRGBA(c rgb) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

func drawLabel(img *image.RGBA, x, y int, s string, col color.RGBA) {
	if s == "" {
		return
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: labelFace,
		Dot:  fixed.P(x, y+labelFace.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 || y1 < y0 {
		return
	}
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	draw.Draw(img, image.Rect(x0, y0, x1+1, y1+1), &image.Uniform{C: col}, image.Point{}, draw.Src)
}

func strokeEllipse(img *image.RGBA, it item, col color.RGBA) {
	rx, ry := float64(it.w)/2, float64(it.h)/2
	if rx <= 0 || ry <= 0 {
		return
	}
	cx, cy := float64(it.x)+rx, float64(it.y)+ry
	inside := func(px, py, shrink float64) bool {
		a, b := rx-shrink, ry-shrink
		if a <= 0 || b <= 0 {
			return false
		}
		dx, dy := (px-cx)/a, (py-cy)/b
		return dx*dx+dy*dy <= 1
	}
	bw := float64(max(1, it.width))
	for y := it.y; y < it.y+it.h; y++ {
		for x := it.x; x < it.x+it.w; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			if !inside(px, py, 0) {
				continue
			}
			if it.fill != nil {
				img.SetRGBA(x, y, toRGBA(*it.fill))
			}
			if !inside(px, py, bw) {
				img.SetRGBA(x, y, col)
			}
		}
	}
}

// drawLine draws a horizontal or vertical line across the widget box,
// whichever the box is longer in.
func drawLine(img *image.RGBA, it item, col color.RGBA) {
	if it.w >= it.h {
		fillRect(img, it.x, it.y, it.x+it.w-1, it.y+it.width-1, col)
		return
	}
	fillRect(img, it.x, it.y, it.x+it.width-1, it.y+it.h-1, col)
}
