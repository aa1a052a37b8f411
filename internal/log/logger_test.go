/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func lastJSONLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	scanner := bufio.NewScanner(bytes.NewReader(b))
	var last string
	for scanner.Scan() {
		if s := strings.TrimSpace(scanner.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	return m
}

func TestInitWritesStructuredFileLog(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "dsd.log")
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "json", File: fpath, Console: &console})

	l := WithOperation(WithComponent("codec"), "parse")
	l.Info("parsed", slog.Int("widgets", 3))

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	m := lastJSONLine(t, b)
	if m["app"] != AppName {
		t.Fatalf("missing app attr: %v", m["app"])
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if m["component"] != "codec" || m["op"] != "parse" {
		t.Fatalf("context attrs mismatch: %v", m)
	}
	if m["widgets"] != float64(3) {
		t.Fatalf("widgets attr mismatch: %v", m["widgets"])
	}
	if c := lastJSONLine(t, console.Bytes()); c["msg"] != "parsed" {
		t.Fatalf("console json mismatch: %v", c)
	}
}

func TestDesignDirFromContext(t *testing.T) {
	var console bytes.Buffer
	Init(Options{Level: "info", Format: "json", Console: &console})

	ctx := WithDesign(context.Background(), "/tmp/kitchen")
	if DesignFrom(ctx) != "/tmp/kitchen" {
		t.Fatalf("DesignFrom mismatch")
	}
	WithComponent("storage").InfoContext(ctx, "saved")

	m := lastJSONLine(t, console.Bytes())
	if m["design"] != "/tmp/kitchen" {
		t.Fatalf("design attr missing: %v", m)
	}
}
