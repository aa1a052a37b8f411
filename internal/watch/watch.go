/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package watch re-reads a generated text file when it is edited outside
// the editor, so hand edits can be re-imported.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	applog "displaydesigner/internal/log"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 500 * time.Millisecond

// Func receives the file's new contents.
type Func func(ctx context.Context, contents []byte)

// Watcher watches one file through its directory, since editors often
// replace files instead of writing them in place.
type Watcher struct {
	path     string
	debounce time.Duration
	fn       Func
	log      *slog.Logger

	w *fsnotify.Watcher

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
	runs   sync.WaitGroup
}

// New prepares a watcher for path. debounce <= 0 selects DefaultDebounce.
func New(path string, debounce time.Duration, fn Func) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch dir %q: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		debounce: debounce,
		fn:       fn,
		log:      applog.WithComponent("watch").With(slog.String("path", abs)),
		w:        fw,
	}, nil
}

// Run delivers changes until ctx is done, then closes the watcher and waits
// for a callback in progress.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		w.mu.Lock()
		w.closed = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		_ = w.w.Close()
		w.runs.Wait()
	}()
	w.log.Info("watching")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if abs, _ := filepath.Abs(ev.Name); abs != w.path {
				continue
			}
			w.schedule(ctx)
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", slog.Any("err", err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.closed || ctx.Err() != nil {
			w.mu.Unlock()
			return
		}
		w.runs.Add(1)
		w.mu.Unlock()
		defer w.runs.Done()
		b, err := os.ReadFile(w.path)
		if err != nil {
			w.log.Warn("read changed file", slog.Any("err", err))
			return
		}
		w.log.Debug("file changed", slog.Int("bytes", len(b)))
		w.fn(ctx, b)
	})
}
