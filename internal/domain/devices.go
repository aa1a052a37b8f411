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
	"strings"
)

// Orientation values.
const (
	OrientationLandscape = "landscape"
	OrientationPortrait  = "portrait"
)

// DefaultDeviceModel is used when a document names no model.
const DefaultDeviceModel = "reterminal_e1001"

// DeviceProfile describes a supported display.
type DeviceProfile struct {
	ID     string
	Name   string
	Width  int
	Height int
	Shape  string
	// Color is true for multi-color panels.
	Color bool
	LVGL  bool
	Touch bool
}

var profiles = map[string]DeviceProfile{
	"reterminal_e1001":                 {ID: "reterminal_e1001", Name: "Seeedstudio reTerminal E1001 (Monochrome)", Width: 800, Height: 480, Shape: "rect"},
	"reterminal_e1002":                 {ID: "reterminal_e1002", Name: "Seeedstudio reTerminal E1002 (6-Color)", Width: 800, Height: 480, Shape: "rect", Color: true},
	"trmnl_diy_esp32s3":                {ID: "trmnl_diy_esp32s3", Name: "Seeed Studio Trmnl DIY Kit (ESP32-S3)", Width: 800, Height: 480, Shape: "rect"},
	"trmnl":                            {ID: "trmnl", Name: "TRMNL (ESP32-C3)", Width: 800, Height: 480, Shape: "rect"},
	"esp32_s3_photopainter":            {ID: "esp32_s3_photopainter", Name: "Waveshare PhotoPainter (6-Color)", Width: 800, Height: 480, Shape: "rect", Color: true},
	"waveshare_esp32_s3_touch_lcd_7":   {ID: "waveshare_esp32_s3_touch_lcd_7", Name: `Waveshare Touch LCD 7 7.0" 800x480`, Width: 800, Height: 480, Shape: "rect", Color: true, LVGL: true, Touch: true},
	"waveshare_esp32_s3_touch_lcd_4_3": {ID: "waveshare_esp32_s3_touch_lcd_4_3", Name: `Waveshare Touch LCD 4.3 4.3" 800x480`, Width: 800, Height: 480, Shape: "rect", Color: true, Touch: true},
	"m5stack_coreink":                  {ID: "m5stack_coreink", Name: "M5Stack M5Core Ink (200x200)", Width: 200, Height: 200, Shape: "rect"},
	"m5stack_paper":                    {ID: "m5stack_paper", Name: "M5Paper (540x960)", Width: 960, Height: 540, Shape: "rect", Touch: true},
}

// DefaultCanvas is the fallback resolution.
const (
	DefaultCanvasWidth  = 800
	DefaultCanvasHeight = 480
)

// Profile returns the profile for model.
func Profile(model string) (DeviceProfile, bool) {
	p, ok := profiles[model]
	return p, ok
}

// Profiles lists all known profiles sorted by id.
func Profiles() []DeviceProfile {
	out := make([]DeviceProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CanvasSize resolves the drawable area for a model and orientation. Custom
// hardware resolution is used for models without a profile; otherwise 800x480.
func CanvasSize(model string, custom CustomHardware, orientation string) (int, int) {
	w, h := DefaultCanvasWidth, DefaultCanvasHeight
	if p, ok := profiles[model]; ok {
		w, h = p.Width, p.Height
	} else if custom.ResWidth > 0 && custom.ResHeight > 0 {
		w, h = custom.ResWidth, custom.ResHeight
	}
	lo, hi := min(w, h), max(w, h)
	if strings.EqualFold(orientation, OrientationPortrait) {
		return lo, hi
	}
	return hi, lo
}

// CanvasSize returns the document's canvas dimensions.
func (d *Document) CanvasSize() (int, int) {
	return CanvasSize(d.DeviceModel, d.CustomHardware, d.Settings.Orientation)
}
