/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"displaydesigner/internal/domain"
)

func samplePayload() *domain.Payload {
	doc := &domain.Document{
		DeviceName:  "Kitchen",
		DeviceModel: domain.DefaultDeviceModel,
		Settings:    domain.DefaultSettings(),
	}
	p0 := domain.NewPage("page_0", "Main")
	t := domain.NewWidget("t1", "text")
	t.X, t.Y = 10, 20
	s := domain.NewWidget("s1", "sensor_text")
	s.EntityID = "sensor.temp"
	s.Condition = domain.Condition{Entity: "binary_sensor.door", Operator: "=", State: "on"}
	p0.Widgets = append(p0.Widgets, t, s)
	p1 := domain.NewPage("page_1", "Graphs")
	g := domain.NewWidget("g1", "graph")
	g.EntityID = "sensor.power"
	g.EntityID2 = "sensor.temp"
	p1.Widgets = append(p1.Widgets, g)
	doc.Pages = []*domain.Page{p0, p1}
	return doc.ToPayload()
}

func TestInitDesignCreatesStructureAndPayload(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDesign(root, samplePayload())
	if err != nil {
		t.Fatalf("InitDesign error: %v", err)
	}
	for _, d := range []string{ExportsDirName, BackupsDirName, IndexDirName} {
		if fi, err := os.Stat(filepath.Join(root, d)); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", d)
		}
	}
	got, err := LoadPayload(root)
	if err != nil || got == nil {
		t.Fatalf("LoadPayload: %v %v", got, err)
	}
	if !got.Document().Snapshot().Equal(dh.Payload.Document().Snapshot()) {
		t.Fatalf("payload round trip mismatch")
	}
	if got.DeviceName != "Kitchen" || got.RefreshInterval != 600 {
		t.Fatalf("settings lost: %+v", got)
	}
}

func TestLoadPayloadAbsentIsNil(t *testing.T) {
	p, err := LoadPayload(t.TempDir())
	if err != nil || p != nil {
		t.Fatalf("expected nil, nil; got %v, %v", p, err)
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDesign(root, samplePayload())
	if err != nil {
		t.Fatalf("InitDesign error: %v", err)
	}
	dh.Payload.DeviceName = "changed"
	if err := Save(dh); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	baks, err := Backups(root)
	if err != nil {
		t.Fatalf("Backups: %v", err)
	}
	if len(baks) != 1 {
		t.Fatalf("expected one backup, got %d", len(baks))
	}
	b, _ := os.ReadFile(baks[0])
	if !bytes.Contains(b, []byte(`"Kitchen"`)) {
		t.Fatalf("backup should hold the previous payload")
	}
}

func TestOpenFallsBackToLatestBackupOnCorruption(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDesign(root, samplePayload())
	if err != nil {
		t.Fatalf("InitDesign error: %v", err)
	}
	if err := Save(dh); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(dh.PayloadPath, []byte("{ this is not json"), 0o644); err != nil {
		t.Fatalf("corrupt payload: %v", err)
	}
	opened, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !opened.Recovered || opened.Payload.DeviceName != "Kitchen" {
		t.Fatalf("expected recovered payload, got %+v", opened)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, ErrNotDesign) {
		t.Fatalf("empty dir: want ErrNotDesign, got %v", err)
	}
	root := t.TempDir()
	if _, err := InitDesign(root, samplePayload()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, PayloadFileName), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(root); !errors.Is(err, ErrNoBackups) {
		t.Fatalf("corrupt without backups: want ErrNoBackups, got %v", err)
	}
}

func TestSaveAsMovesHandle(t *testing.T) {
	dh, err := InitDesign(t.TempDir(), samplePayload())
	if err != nil {
		t.Fatal(err)
	}
	next := filepath.Join(t.TempDir(), "copy")
	if err := SaveAs(dh, next); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if dh.Root != next || dh.PayloadPath != filepath.Join(next, PayloadFileName) {
		t.Fatalf("handle not updated: %+v", dh)
	}
	if p, err := LoadPayload(next); err != nil || p == nil {
		t.Fatalf("payload missing in new root: %v", err)
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDesign(root, samplePayload())
	if err != nil {
		t.Fatal(err)
	}
	dh.Payload.DeviceName = "unsaved"
	path, err := AutosaveCrashSnapshot(dh)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	if !strings.Contains(filepath.Base(path), ".crash-") {
		t.Fatalf("unexpected snapshot name %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got domain.Payload
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.DeviceName != "unsaved" {
		t.Fatalf("snapshot content mismatch: %q", got.DeviceName)
	}
	// crash snapshots are not regular backups
	if baks, _ := Backups(root); len(baks) != 0 {
		t.Fatalf("crash snapshot listed as backup: %v", baks)
	}
	if p, _ := LoadPayload(root); p.DeviceName != "Kitchen" {
		t.Fatalf("design.json must be untouched")
	}
}

func TestFindWidgetsByEntity(t *testing.T) {
	root := t.TempDir()
	if _, err := InitDesign(root, samplePayload()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	refs, err := FindWidgetsByEntity(ctx, root, "sensor.temp")
	if err != nil {
		t.Fatalf("FindWidgetsByEntity: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("want 2 refs, got %+v", refs)
	}
	if refs[0].WidgetID != "s1" || refs[0].Field != "entity_id" || refs[0].PageIndex != 0 {
		t.Fatalf("first ref mismatch: %+v", refs[0])
	}
	if refs[1].WidgetID != "g1" || refs[1].Field != "entity_id_2" || refs[1].PageID != "page_1" {
		t.Fatalf("second ref mismatch: %+v", refs[1])
	}
	refs, err = FindWidgetsByEntity(ctx, root, "binary_sensor.door")
	if err != nil || len(refs) != 1 || refs[0].Field != "cond_entity" {
		t.Fatalf("condition lookup: %+v %v", refs, err)
	}
}

func TestHistorySnapshotsSaveListPrune(t *testing.T) {
	dh, err := InitDesign(t.TempDir(), samplePayload())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	snap := dh.Payload.Document().Snapshot()
	for i := 0; i < 4; i++ {
		snap.DeviceName = string(rune('a' + i))
		if err := SaveHistorySnapshot(ctx, dh, snap, "save", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("SaveHistorySnapshot: %v", err)
		}
	}
	n, err := PruneHistorySnapshots(ctx, dh, 2)
	if err != nil || n != 2 {
		t.Fatalf("prune: %d %v", n, err)
	}
	list, err := ListHistorySnapshots(ctx, dh, 10)
	if err != nil {
		t.Fatalf("ListHistorySnapshots: %v", err)
	}
	if len(list) != 2 || list[0].Snapshot.DeviceName != "d" || list[1].Snapshot.DeviceName != "c" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list[0].Pages != 2 || list[0].Widgets != 3 || !list[0].TS.Equal(base.Add(3*time.Minute)) {
		t.Fatalf("metadata mismatch: %+v", list[0])
	}
	if len(list[0].Snapshot.Pages[0].Widgets) != 2 {
		t.Fatalf("snapshot body not restored")
	}
}

func TestDetectAndRebuildIndexOnCorruption(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDesign(root, samplePayload())
	if err != nil {
		t.Fatal(err)
	}
	removeIndexFiles(IndexPath(root))
	if err := os.WriteFile(IndexPath(root), []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rebuilt, err := DetectAndRebuildIndex(ctx, root, dh.Payload)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected rebuild to occur")
	}
	entries, _ := os.ReadDir(filepath.Join(root, IndexDirName, "backups"))
	if len(entries) == 0 {
		t.Fatalf("expected index backup")
	}
	refs, err := FindWidgetsByEntity(ctx, root, "sensor.power")
	if err != nil || len(refs) != 1 {
		t.Fatalf("index not repopulated: %+v %v", refs, err)
	}
	if rebuilt, err := DetectAndRebuildIndex(ctx, root, dh.Payload); err != nil || rebuilt {
		t.Fatalf("healthy index should not rebuild: %v %v", rebuilt, err)
	}
}
