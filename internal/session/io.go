/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"context"
	"log/slog"

	"displaydesigner/internal/cache"
	"displaydesigner/internal/codec"
	"displaydesigner/internal/domain"
)

// ImportSnippet replaces the layout with the one parsed from generated text.
// Text carrying a settings header replaces the whole document; bare widget
// markers or drawing calls only replace the pages. Parse problems are
// returned, the lines they concern are skipped.
func (s *Session) ImportSnippet(text string) []codec.Error {
	defer s.enter()()
	res, errs := codec.Parse(text, codec.Options{Registry: s.registry})
	if res.Header {
		s.model.ReplaceDocument(res.Document())
	} else {
		s.model.ReplacePages(res.Pages, s.model.Document().DeviceName)
	}
	s.setSelection(nil)
	s.RecordHistory()
	s.log.Info("snippet imported",
		slog.Int("pages", len(res.Pages)),
		slog.Int("markers", res.Markers),
		slog.Bool("fallback", res.Fallback),
		slog.Int("errors", len(errs)))
	return errs
}

// ExportText renders the document as generated display text.
func (s *Session) ExportText() string {
	return codec.Serialize(s.model.Document(), s.registry)
}

// Payload returns the persisted form of the document.
func (s *Session) Payload() *domain.Payload {
	return s.model.Document().ToPayload()
}

// LoadPayload replaces the document with p and starts a fresh history.
func (s *Session) LoadPayload(p *domain.Payload) {
	defer s.enter()()
	if p == nil {
		return
	}
	s.model.ReplaceDocument(p.Document())
	s.setSelection(nil)
	s.history.Reset()
	s.RecordHistory()
}

// Series returns the cached history for graph widget widgetID and whether it
// is fresh. Missing or stale data starts a background fetch whose completion
// is announced as events.WidgetUpdated on a later turn.
func (s *Session) Series(widgetID string) ([]domain.Sample, bool) {
	w := s.model.Widget(widgetID)
	if s.cache == nil || w == nil || w.EntityID == "" {
		return nil, false
	}
	duration := "1h"
	if d, ok := w.Attr("duration"); ok && d != "" {
		duration = d
	}
	return s.cache.Get(context.Background(), cache.Key{ResourceID: w.EntityID, Param: duration}, widgetID)
}

// Wait blocks until every running data fetch has finished or ctx is done.
func (s *Session) Wait(ctx context.Context) {
	if s.cache != nil {
		s.cache.Wait(ctx)
	}
}
