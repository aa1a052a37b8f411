/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package schedule previews when a device will refresh its display, given
// the document's power and refresh settings.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"displaydesigner/internal/domain"
)

// DefaultInterval applies when the refresh interval is unset.
const DefaultInterval = 600 * time.Second

// ErrManualOnly is returned by Build for devices that only refresh on demand.
var ErrManualOnly = errors.New("device refreshes manually only")

var dailyTimeRE = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// Window is a half-open span of hours [Start, End) that may wrap midnight.
type Window struct {
	Start, End int
}

// Contains reports whether t's hour lies in the window.
func (w Window) Contains(t time.Time) bool {
	h := t.Hour()
	if w.Start == w.End {
		return false
	}
	if w.Start < w.End {
		return h >= w.Start && h < w.End
	}
	return h >= w.Start || h < w.End
}

// Plan is a refresh schedule plus the windows in which refreshes are skipped.
type Plan struct {
	Spec  string
	sched cron.Schedule
	Quiet []Window
}

// Build derives the refresh plan. A daily refresh becomes a cron spec
// "M H * * *"; otherwise the device wakes every refresh interval (or deep
// sleep interval). Sleep and silent-hour windows are skipped.
func Build(s domain.DeviceSettings) (*Plan, error) {
	if s.ManualRefreshOnly {
		return nil, ErrManualOnly
	}
	p := &Plan{}
	switch {
	case s.DailyRefreshEnabled:
		m := dailyTimeRE.FindStringSubmatch(s.DailyRefreshTime)
		if m == nil {
			return nil, fmt.Errorf("daily refresh time %q: want HH:MM", s.DailyRefreshTime)
		}
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		p.Spec = fmt.Sprintf("%d %d * * *", mm, h)
		sched, err := cron.ParseStandard(p.Spec)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p.Spec, err)
		}
		p.sched = sched
	default:
		secs := s.RefreshInterval
		if s.DeepSleepEnabled && s.DeepSleepInterval > 0 {
			secs = s.DeepSleepInterval
		}
		every := time.Duration(secs) * time.Second
		if every <= 0 {
			every = DefaultInterval
		}
		p.Spec = "@every " + every.String()
		p.sched = cron.Every(every)
	}
	if s.SleepEnabled {
		p.Quiet = append(p.Quiet, Window{Start: s.SleepStartHour, End: s.SleepEndHour})
	}
	if s.NoRefreshStartHour != nil && s.NoRefreshEndHour != nil {
		p.Quiet = append(p.Quiet, Window{Start: *s.NoRefreshStartHour, End: *s.NoRefreshEndHour})
	}
	return p, nil
}

// maxSteps bounds the search when quiet windows swallow most activations.
const maxSteps = 100000

// Next lists up to n refresh times after from.
func (p *Plan) Next(from time.Time, n int) []time.Time {
	var out []time.Time
	t := from
	for step := 0; len(out) < n && step < maxSteps; step++ {
		t = p.sched.Next(t)
		if t.IsZero() {
			break
		}
		if p.quiet(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (p *Plan) quiet(t time.Time) bool {
	for _, w := range p.Quiet {
		if w.Contains(t) {
			return true
		}
	}
	return false
}
