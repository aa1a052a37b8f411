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
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"displaydesigner/internal/domain"
	applog "displaydesigner/internal/log"
)

// RenderPDF writes one wireframe page per layout page to path. Units are
// canvas pixels mapped 1:1 to points.
func RenderPDF(doc *domain.Document, path string) error {
	if doc == nil || len(doc.Pages) == 0 {
		return fmt.Errorf("render pdf: %w", ErrPageRange)
	}
	w, h := doc.CanvasSize()
	size := gofpdf.SizeType{Wd: float64(w), Ht: float64(h)}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	pdf.SetTitle(doc.DeviceName+" layout", false)
	pdf.SetCreator("displaydesigner", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 10)

	for i, page := range doc.Pages {
		pl, err := planPage(doc, i)
		if err != nil {
			return err
		}
		pdf.AddPageFormat("", size)
		setFillColor(pdf, pl.bg)
		pdf.Rect(0, 0, size.Wd, size.Ht, "F")
		for _, it := range pl.items {
			drawItem(pdf, it)
		}
		setTextColor(pdf, pl.fg)
		pdf.SetFont("Helvetica", "", 8)
		pdf.Text(4, size.Ht-4, page.Name)
		pdf.SetFont("Helvetica", "", 10)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	applog.WithComponent("export").Info("pdf rendered", slog.String("path", path), slog.Int("pages", len(doc.Pages)))
	return nil
}

func drawItem(pdf *gofpdf.Fpdf, it item) {
	x, y, w, h := float64(it.x), float64(it.y), float64(it.w), float64(it.h)
	setDrawColor(pdf, it.stroke)
	pdf.SetLineWidth(float64(max(1, it.width)))
	style := "D"
	if it.fill != nil {
		setFillColor(pdf, *it.fill)
		style = "FD"
	}
	switch it.kind {
	case kindRect:
		if it.radius > 0 {
			pdf.RoundedRect(x, y, w, h, float64(it.radius), "1234", style)
			return
		}
		pdf.Rect(x, y, w, h, style)
	case kindCircle:
		pdf.Ellipse(x+w/2, y+h/2, w/2, h/2, 0, style)
	case kindLine:
		if it.w >= it.h {
			pdf.Line(x, y, x+w, y)
		} else {
			pdf.Line(x, y, x, y+h)
		}
	case kindText:
		setTextColor(pdf, it.stroke)
		pdf.Text(x, y+10, it.label)
	default:
		pdf.SetLineWidth(1)
		pdf.Rect(x, y, w, h, "D")
		setTextColor(pdf, it.stroke)
		pdf.Text(x+2, y+10, it.label)
	}
}

func setDrawColor(pdf *gofpdf.Fpdf, c rgb) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c rgb) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}

func setTextColor(pdf *gofpdf.Fpdf, c rgb) {
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
}
