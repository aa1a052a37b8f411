/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"displaydesigner/internal/cache"
	"displaydesigner/internal/config"
	"displaydesigner/internal/datasource"
	"displaydesigner/internal/domain"
	applog "displaydesigner/internal/log"
	"displaydesigner/internal/session"
	"displaydesigner/internal/storage"
)

// App carries state shared by all commands.
type App struct {
	cfg   config.AppConfig
	token string
	// dh is the open design, if any; the crash handler autosaves it.
	dh  *storage.DesignHandle
	log *slog.Logger
}

func (a *App) logger() *slog.Logger {
	if a.log == nil {
		a.log = applog.WithComponent("cli")
	}
	return a.log
}

// open loads the design at dir and wraps it in an editing session.
func (a *App) open(dir string, fetcher cache.Fetcher) (*session.Session, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", dir, err)
	}
	dh, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	a.dh = dh
	if dh.Recovered {
		a.logger().Warn("design recovered from backup", slog.String("root", abs))
	}
	return a.newSession(dh, fetcher), nil
}

func (a *App) newSession(dh *storage.DesignHandle, fetcher cache.Fetcher) *session.Session {
	s := session.New(session.Options{
		HistoryLimit: a.cfg.Editor.HistoryLimit,
		ZoomMin:      a.cfg.Editor.ZoomMin,
		ZoomMax:      a.cfg.Editor.ZoomMax,
		SnapDistance: a.cfg.Editor.SnapDistance,
		Fetcher:      fetcher,
		CacheTTL:     a.cfg.DataSource.CacheTTL(),
	})
	if dh != nil && dh.Payload != nil {
		s.LoadPayload(dh.Payload)
	}
	return s
}

// commit writes the session's document back to the open design and keeps a
// labelled history snapshot in the design index.
func (a *App) commit(ctx context.Context, s *session.Session, label string) error {
	ctx = applog.WithDesign(ctx, a.dh.Root)
	a.dh.Payload = s.Payload()
	if err := storage.Save(a.dh); err != nil {
		return err
	}
	if err := storage.SaveHistorySnapshot(ctx, a.dh, s.Document().Snapshot(), label, time.Now()); err != nil {
		a.logger().WarnContext(ctx, "history snapshot not stored", slog.Any("err", err))
		return nil
	}
	if _, err := storage.PruneHistorySnapshots(ctx, a.dh, a.cfg.Editor.HistoryLimit); err != nil {
		a.logger().WarnContext(ctx, "history snapshot prune failed", slog.Any("err", err))
	}
	a.logger().DebugContext(ctx, "design committed", slog.String("label", label))
	return nil
}

// fetcher picks the history source: the Postgres store when a DSN is
// configured, else the HTTP API when a token is available.
func (a *App) fetcher(ctx context.Context) (cache.Fetcher, io.Closer, error) {
	ds := a.cfg.DataSource
	if ds.PGDSN != "" {
		st, err := datasource.OpenPG(ctx, ds.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	}
	if ds.BaseURL == "" || a.token == "" {
		return nil, nil, nil
	}
	return a.client(), nil, nil
}

func (a *App) client() *datasource.Client {
	ds := a.cfg.DataSource
	return datasource.NewClient(ds.BaseURL, a.token, datasource.ClientOptions{Timeout: ds.Timeout(), TLSInsecure: ds.TLSInsecure})
}

// mirror copies the widget's API history into the Postgres store so the
// store can serve it later without the API.
func (a *App) mirror(ctx context.Context, fetcher cache.Fetcher, w *domain.Widget) error {
	st, ok := fetcher.(*datasource.PGStore)
	if !ok {
		return errors.New("mirroring needs a Postgres store (datasource.pg_dsn)")
	}
	if a.cfg.DataSource.BaseURL == "" || a.token == "" {
		return errors.New("mirroring needs the data source API and token")
	}
	duration := "1h"
	if d, ok := w.Attr("duration"); ok && d != "" {
		duration = d
	}
	n, err := st.Mirror(ctx, a.client(), w.EntityID, duration)
	if err != nil {
		return fmt.Errorf("mirror %s: %w", w.EntityID, err)
	}
	a.logger().Info("history mirrored", slog.String("entity", w.EntityID), slog.Int("samples", n))
	return nil
}
