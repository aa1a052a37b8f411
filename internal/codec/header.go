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

const headerRule = "# ===================================="

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func powerStrategy(s domain.DeviceSettings) string {
	switch {
	case s.DeepSleepEnabled:
		return "Ultra Low Power (Deep Sleep)"
	case s.ManualRefreshOnly:
		return "Manual Refresh Only"
	case s.DailyRefreshEnabled:
		return "Daily Refresh"
	case s.SleepEnabled:
		return "Night Mode (Sleep)"
	}
	return "Standard (Always On)"
}

// formatHeader renders the device settings comment block.
func formatHeader(doc *domain.Document) []string {
	s := doc.Settings
	w, h := doc.CanvasSize()
	target := doc.DeviceModel
	shape := s.Shape
	if p, ok := domain.Profile(doc.DeviceModel); ok {
		target = p.Name
		if shape == "" {
			shape = p.Shape
		}
	} else if doc.CustomHardware.Name != "" {
		target = doc.CustomHardware.Name
	}
	if shape == "" {
		shape = "rect"
	}
	lines := []string{
		headerRule,
		"# TARGET DEVICE: " + target,
		"# Name: " + doc.DeviceName,
		"# Model: " + doc.DeviceModel,
	}
	if doc.CurrentLayoutID != "" {
		lines = append(lines, "# Layout: "+doc.CurrentLayoutID)
	}
	lines = append(lines,
		fmt.Sprintf("# Resolution: %dx%d", w, h),
		"# Shape: "+shape,
		"# Inverted: "+strconv.FormatBool(s.InvertedColors),
		"# Orientation: "+s.Orientation,
		"# Dark Mode: "+enabled(s.DarkMode),
		fmt.Sprintf("# Refresh Interval: %d", s.RefreshInterval),
		"# Power Strategy: "+powerStrategy(s),
		"# Sleep Mode: "+enabled(s.SleepEnabled),
		fmt.Sprintf("# Sleep Start Hour: %d", s.SleepStartHour),
		fmt.Sprintf("# Sleep End Hour: %d", s.SleepEndHour),
		"# Manual Refresh: "+enabled(s.ManualRefreshOnly),
		"# Deep Sleep: "+enabled(s.DeepSleepEnabled),
		fmt.Sprintf("# Deep Sleep Interval: %d", s.DeepSleepInterval),
		"# Refresh Time: "+s.DailyRefreshTime,
	)
	if s.NoRefreshStartHour != nil && s.NoRefreshEndHour != nil {
		lines = append(lines, fmt.Sprintf("# Disable updates from %d to %d", *s.NoRefreshStartHour, *s.NoRefreshEndHour))
	}
	return append(lines, headerRule)
}

type settingRule struct {
	re    *regexp.Regexp
	apply func(r *Result, m []string)
}

func hdr(pattern string, apply func(r *Result, m []string)) settingRule {
	return settingRule{re: regexp.MustCompile(`(?i)^#\s*` + pattern), apply: apply}
}

func hour(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

var headerRules = []settingRule{
	hdr(`TARGET DEVICE:\s*(.*)$`, func(r *Result, m []string) { r.TargetDevice = strings.TrimSpace(m[1]) }),
	hdr(`Name:\s*(.*)$`, func(r *Result, m []string) { r.DeviceName = strings.TrimSpace(m[1]) }),
	hdr(`Model:\s*(\S+)`, func(r *Result, m []string) { r.DeviceModel = m[1] }),
	hdr(`Layout:\s*(\S+)`, func(r *Result, m []string) { r.LayoutID = m[1] }),
	hdr(`Resolution:\s*(\d+)x(\d+)`, func(r *Result, m []string) { r.Width, r.Height = hour(m[1]), hour(m[2]) }),
	hdr(`Shape:\s*(rect|round|circle)`, func(r *Result, m []string) {
		if strings.EqualFold(m[1], "rect") {
			r.Settings.Shape = "rect"
		} else {
			r.Settings.Shape = "round"
		}
	}),
	hdr(`Inverted:\s*(true|false)`, func(r *Result, m []string) { r.Settings.InvertedColors = strings.EqualFold(m[1], "true") }),
	hdr(`Orientation:\s*(landscape|portrait)`, func(r *Result, m []string) { r.Settings.Orientation = strings.ToLower(m[1]) }),
	hdr(`Dark Mode:\s*(enabled|disabled)`, func(r *Result, m []string) { r.Settings.DarkMode = strings.EqualFold(m[1], "enabled") }),
	hdr(`Refresh Interval:\s*(\d+)`, func(r *Result, m []string) { r.Settings.RefreshInterval = hour(m[1]) }),
	hdr(`Power Strategy:\s*(.*)$`, func(r *Result, m []string) {
		s := strings.ToLower(m[1])
		r.Settings.SleepEnabled = strings.Contains(s, "night")
		r.Settings.ManualRefreshOnly = strings.Contains(s, "manual")
		r.Settings.DeepSleepEnabled = strings.Contains(s, "ultra") || strings.Contains(s, "deep")
		r.Settings.DailyRefreshEnabled = strings.Contains(s, "daily")
	}),
	hdr(`Sleep Mode:\s*(enabled|disabled)`, func(r *Result, m []string) { r.Settings.SleepEnabled = strings.EqualFold(m[1], "enabled") }),
	hdr(`Sleep Start Hour:\s*(\d+)`, func(r *Result, m []string) { r.Settings.SleepStartHour = hour(m[1]) }),
	hdr(`Sleep End Hour:\s*(\d+)`, func(r *Result, m []string) { r.Settings.SleepEndHour = hour(m[1]) }),
	hdr(`Manual Refresh:\s*(enabled|disabled)`, func(r *Result, m []string) { r.Settings.ManualRefreshOnly = strings.EqualFold(m[1], "enabled") }),
	hdr(`Deep Sleep:\s*(enabled|disabled)`, func(r *Result, m []string) { r.Settings.DeepSleepEnabled = strings.EqualFold(m[1], "enabled") }),
	hdr(`Deep Sleep Interval:\s*(\d+)`, func(r *Result, m []string) { r.Settings.DeepSleepInterval = hour(m[1]) }),
	hdr(`Refresh Time:\s*(\d{2}:\d{2})`, func(r *Result, m []string) { r.Settings.DailyRefreshTime = m[1] }),
	hdr(`Disable updates from\s*(\d+)\s*to\s*(\d+)`, func(r *Result, m []string) {
		start, end := hour(m[1]), hour(m[2])
		r.Settings.NoRefreshStartHour, r.Settings.NoRefreshEndHour = &start, &end
	}),
}

// parseHeaderLine applies a settings comment to r and reports whether one matched.
func parseHeaderLine(line string, r *Result) bool {
	matched := false
	for _, h := range headerRules {
		if m := h.re.FindStringSubmatch(line); m != nil {
			h.apply(r, m)
			matched = true
		}
	}
	return matched
}
