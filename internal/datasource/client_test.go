/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package datasource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchHistoryParsesNumericStates(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotPath, gotAuth, gotFilter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAuth = r.URL.Path, r.Header.Get("Authorization")
		gotFilter = r.URL.Query().Get("filter_entity_id")
		_ = json.NewEncoder(w).Encode([][]map[string]any{{
			{"state": "21.5", "last_changed": "2025-03-01T11:00:00Z"},
			{"state": "unavailable", "last_changed": "2025-03-01T11:10:00Z"},
			{"state": "22", "last_changed": "2025-03-01T11:30:00Z"},
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", ClientOptions{Now: func() time.Time { return now }})
	samples, err := c.FetchHistory(context.Background(), "sensor.temp", "2h")
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if gotPath != "/api/history/period/2025-03-01T10:00:00Z" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" || gotFilter != "sensor.temp" {
		t.Fatalf("auth=%q filter=%q", gotAuth, gotFilter)
	}
	if len(samples) != 2 || samples[0].Value != 21.5 || samples[1].Value != 22 {
		t.Fatalf("samples = %#v", samples)
	}
	if samples[0].TS != time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC).UnixMilli() {
		t.Fatalf("ts = %d", samples[0].TS)
	}
}

func TestClientReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", ClientOptions{})
	if _, err := c.FetchHistory(context.Background(), "sensor.x", "1h"); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if _, err := c.ListStates(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestListAndGetStates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/states":
			_, _ = w.Write([]byte(`[{"entity_id":"sensor.a","state":"1","attributes":{"friendly_name":"Power","unit_of_measurement":"W"}},{"entity_id":"light.b","state":"on","attributes":{}}]`))
		case "/api/states/sensor.a":
			_, _ = w.Write([]byte(`{"entity_id":"sensor.a","state":"1","attributes":{}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", ClientOptions{Timeout: time.Second})
	list, err := c.ListStates(context.Background())
	if err != nil {
		t.Fatalf("ListStates: %v", err)
	}
	if len(list) != 2 || list[0].FriendlyName() != "Power" || list[0].Unit() != "W" || list[1].FriendlyName() != "light.b" {
		t.Fatalf("states = %#v", list)
	}
	st, err := c.GetState(context.Background(), "sensor.a")
	if err != nil || st.State != "1" {
		t.Fatalf("GetState = %#v, %v", st, err)
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"90":   90 * time.Second,
		"30s":  30 * time.Second,
		"15m":  15 * time.Minute,
		"24h":  24 * time.Hour,
		"7d":   7 * 24 * time.Hour,
		"1.5h": 90 * time.Minute,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		if err != nil || got != want {
			t.Fatalf("ParseDuration(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "h", "-1h", "abc"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Fatalf("ParseDuration(%q) should fail", bad)
		}
	}
}
