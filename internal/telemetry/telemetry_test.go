/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	events  [][]byte
	crashes [][]byte
}

func (r *recorder) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.events = append(r.events, b)
		r.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.crashes = append(r.crashes, b)
		r.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientEventAndUploadCrash(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}
	long := strings.Repeat("x", 100)
	c.Event("widget_added", map[string]any{"type": "graph", "count": 2, "entity": long, "nested": map[string]any{"a": 1}})
	c.UploadCrash([]byte("STACKTRACE"))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Flush(ctx)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 || len(rec.crashes) != 1 {
		t.Fatalf("want 1 event and 1 crash, got %d/%d", len(rec.events), len(rec.crashes))
	}
	var m map[string]any
	if err := json.Unmarshal(rec.events[0], &m); err != nil {
		t.Fatalf("bad event json: %v", err)
	}
	if m["name"] != "widget_added" || m["type"] != "graph" {
		t.Fatalf("event mismatch: %v", m)
	}
	if s, _ := m["entity"].(string); len(s) != 64 {
		t.Fatalf("long strings must be cut, got %d bytes", len(s))
	}
	if _, ok := m["nested"]; ok {
		t.Fatalf("non-scalar props must be dropped")
	}
	if string(rec.crashes[0]) != "STACKTRACE" {
		t.Fatalf("crash body mismatch")
	}
}

func TestDisabledClientSendsNothing(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	c := New(Config{OptIn: false, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: time.Second})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	c.Event("ignored", nil)
	c.UploadCrash([]byte("ignored"))

	c2 := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: time.Second})
	defer c2.Close()
	c2.Event("", nil)
	c.Flush(context.Background())
	c2.Flush(nil)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events)+len(rec.crashes) != 0 {
		t.Fatalf("expected no requests")
	}
}

func TestSendErrorsAreSwallowed(t *testing.T) {
	c := New(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events", CrashURL: "http://127.0.0.1:1/crash", Timeout: 50 * time.Millisecond, DebugLogging: true})
	defer c.Close()
	c.Event("err", map[string]any{"a": 1})
	c.UploadCrash([]byte("oops"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Flush(ctx)
}

func TestFromEnvAndDefaultClient(t *testing.T) {
	t.Setenv("DSD_TELEMETRY_OPT_IN", "")
	t.Setenv("DSD_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("DSD_CRASH_UPLOAD_URL", "")
	t.Setenv("DSD_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}
	NewDefault(cfg)
	if Enabled() {
		t.Fatalf("default client must stay disabled without opt-in")
	}
	NewDefault(cfg.WithOptIn(true))
	if !Enabled() {
		t.Fatalf("persisted opt-in should enable the default client")
	}
	NewDefault(Config{})
}
