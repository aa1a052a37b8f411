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
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"displaydesigner/internal/domain"
	applog "displaydesigner/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGStore keeps entity samples in Postgres. It serves history for widgets
// when the live API is unreachable or slow.
type PGStore struct {
	db  *sql.DB
	now func() time.Time
	log *slog.Logger
}

// OpenPG connects to dsn, pings the server and applies embedded migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s, err := NewPGStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPGStore wraps an open database handle.
func NewPGStore(ctx context.Context, db *sql.DB) (*PGStore, error) {
	s := &PGStore{db: db, now: time.Now, log: applog.WithComponent("datasource")}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := s.applyMigrations(pctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *PGStore) Close() error { return s.db.Close() }

// FetchHistory returns the samples of entityID within the trailing duration, oldest first.
func (s *PGStore) FetchHistory(ctx context.Context, entityID, duration string) ([]domain.Sample, error) {
	d, err := ParseDuration(duration)
	if err != nil {
		return nil, err
	}
	since := s.now().Add(-d)
	rows, err := s.db.QueryContext(ctx, `SELECT ts, value FROM samples WHERE entity_id = $1 AND ts >= $2 ORDER BY ts`, entityID, since)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.log.Warn("rows close", slog.Any("err", err))
		}
	}()
	var out []domain.Sample
	for rows.Next() {
		var (
			ts time.Time
			v  float64
		)
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, err
		}
		out = append(out, domain.Sample{TS: ts.UnixMilli(), Value: v})
	}
	return out, rows.Err()
}

// InsertSamples stores samples for entityID; existing timestamps are overwritten.
func (s *PGStore) InsertSamples(ctx context.Context, entityID string, samples []domain.Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples(entity_id, ts, value) VALUES($1, $2, $3)
		ON CONFLICT (entity_id, ts) DO UPDATE SET value = EXCLUDED.value`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, smp := range samples {
		if _, err := stmt.ExecContext(ctx, entityID, time.UnixMilli(smp.TS).UTC(), smp.Value); err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}
	return tx.Commit()
}

// HistorySource is anything that can produce an entity's history.
type HistorySource interface {
	FetchHistory(ctx context.Context, entityID, duration string) ([]domain.Sample, error)
}

// Mirror copies the trailing history of entityID from src into the store.
func (s *PGStore) Mirror(ctx context.Context, src HistorySource, entityID, duration string) (int, error) {
	samples, err := src.FetchHistory(ctx, entityID, duration)
	if err != nil {
		return 0, err
	}
	if err := s.InsertSamples(ctx, entityID, samples); err != nil {
		return 0, err
	}
	return len(samples), nil
}

// applyMigrations applies embedded SQL migrations in filename order.
func (s *PGStore) applyMigrations(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		s.log.Info("applying migration", slog.String("file", fname))
		if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, fname); err != nil {
			return fmt.Errorf("record %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	parts := strings.SplitN(path.Base(name), "_", 2)
	if len(parts) < 2 {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
