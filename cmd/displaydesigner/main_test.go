/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"displaydesigner/internal/config"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	app := &App{cfg: config.Defaults()}
	cmd := newRootCmd(app)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, errOut.String())
	}
	return out.String()
}

const snippet = `# Name: Hall
# Model: reterminal_e1001
# Orientation: landscape
      // widget:text id:t1 type:text x:10 y:20 w:100 h:20 text:"Hello"
      // widget:sensor_text id:s1 type:sensor_text x:10 y:60 w:200 h:30 ent:sensor.temp title:"Temp"
`

func TestCLIWorkflow(t *testing.T) {
	t.Setenv(config.EnvConfigDir, t.TempDir())
	dir := filepath.Join(t.TempDir(), "design")

	if out := run(t, "init", dir, "--name", "Hall"); !strings.Contains(out, "Created design") {
		t.Fatalf("init output: %q", out)
	}
	src := filepath.Join(t.TempDir(), "display.yaml")
	if err := os.WriteFile(src, []byte(snippet), 0o644); err != nil {
		t.Fatal(err)
	}
	if out := run(t, "import", dir, src); !strings.Contains(out, "2 widgets") {
		t.Fatalf("import output: %q", out)
	}
	if out := run(t, "open", dir); !strings.Contains(out, ": 2 widgets") {
		t.Fatalf("open output: %q", out)
	}
	if out := run(t, "find", dir, "sensor.temp"); !strings.Contains(out, "s1") {
		t.Fatalf("find output: %q", out)
	}
	if out := run(t, "history", dir); !strings.Contains(out, "import") {
		t.Fatalf("history output: %q", out)
	}
	if out := run(t, "move", dir, "t1", "13", "150"); !strings.Contains(out, "t1 moved to 10,150") {
		t.Fatalf("move output: %q", out)
	}
	if out := run(t, "export", dir); !strings.Contains(out, "id:t1") {
		t.Fatalf("export output: %q", out)
	}
	run(t, "preview", dir, "--format", "png")
	if _, err := os.Stat(filepath.Join(dir, "exports", "preview-0.png")); err != nil {
		t.Fatalf("png preview missing: %v", err)
	}
	if out := run(t, "schedule", dir, "--count", "3"); !strings.Contains(out, "@every") {
		t.Fatalf("schedule output: %q", out)
	}
}

func TestVersionCommand(t *testing.T) {
	if out := run(t, "version"); !strings.HasPrefix(out, "displaydesigner ") {
		t.Fatalf("version output: %q", out)
	}
}
