/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"displaydesigner/internal/domain"
)

// language=SQL
// dialect=SQLite
const insertHistorySnapshotSQL = `INSERT INTO history_snapshots(ts, label, pages, widgets, body) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const listHistorySnapshotsSQL = `SELECT id, ts, COALESCE(label, ''), pages, widgets, body FROM history_snapshots ORDER BY id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneHistorySnapshotsSQL = `DELETE FROM history_snapshots WHERE id NOT IN (
	SELECT id FROM history_snapshots ORDER BY id DESC LIMIT ?
)`

// HistorySnapshot is a persisted undo entry.
type HistorySnapshot struct {
	ID       int64
	TS       time.Time
	Label    string
	Pages    int
	Widgets  int
	Snapshot domain.Snapshot
}

// SaveHistorySnapshot persists snap as JSON with a timestamp and label.
func SaveHistorySnapshot(ctx context.Context, dh *DesignHandle, snap domain.Snapshot, label string, ts time.Time) error {
	if dh == nil {
		return errors.New("nil DesignHandle")
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	widgets := 0
	for _, p := range snap.Pages {
		widgets += len(p.Widgets)
	}
	db, err := InitOrOpenIndex(dh.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertHistorySnapshotSQL, ts.UTC().Format(time.RFC3339Nano), label, len(snap.Pages), widgets, body)
	return err
}

// ListHistorySnapshots returns up to limit most recent snapshots, newest first.
func ListHistorySnapshots(ctx context.Context, dh *DesignHandle, limit int) ([]HistorySnapshot, error) {
	if dh == nil {
		return nil, errors.New("nil DesignHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(dh.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listHistorySnapshotsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []HistorySnapshot
	for rows.Next() {
		var hs HistorySnapshot
		var tsStr string
		var body []byte
		if err := rows.Scan(&hs.ID, &tsStr, &hs.Label, &hs.Pages, &hs.Widgets, &body); err != nil {
			return nil, err
		}
		hs.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
		if err := json.Unmarshal(body, &hs.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot %d: %w", hs.ID, err)
		}
		out = append(out, hs)
	}
	return out, rows.Err()
}

// PruneHistorySnapshots keeps at most keepLast snapshots and deletes older ones.
func PruneHistorySnapshots(ctx context.Context, dh *DesignHandle, keepLast int) (int64, error) {
	if dh == nil {
		return 0, errors.New("nil DesignHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(dh.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneHistorySnapshotsSQL, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
