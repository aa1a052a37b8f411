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
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"displaydesigner/internal/domain"
	applog "displaydesigner/internal/log"
)

const (
	PayloadFileName = "design.json"
	BackupsDirName  = "backups"
	ExportsDirName  = "exports"
)

var (
	// ErrNotDesign is returned by Open when root holds neither a payload nor backups.
	ErrNotDesign = errors.New("not a design directory")
	// ErrNoBackups is returned when the payload is unreadable and no backup can replace it.
	ErrNoBackups = errors.New("no backups found")
)

var standardSubDirs = []string{
	ExportsDirName,
	BackupsDirName,
}

// DesignHandle keeps track of a design directory loaded from or saved to disk.
type DesignHandle struct {
	Root        string
	PayloadPath string
	Payload     *domain.Payload
	// Recovered is set when Open had to fall back to a backup.
	Recovered bool
}

// InitDesign creates a new design directory at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes the payload transactionally.
func InitDesign(root string, p *domain.Payload) (*DesignHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if p == nil {
		return nil, errors.New("payload is required")
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	dh := &DesignHandle{
		Root:        root,
		PayloadPath: filepath.Join(root, PayloadFileName),
		Payload:     p,
	}
	if err := Save(dh); err != nil {
		return nil, err
	}
	return dh, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create design root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing design from root.
// If the payload cannot be read or parsed, the latest backup is used instead.
func Open(root string) (*DesignHandle, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	ppath := filepath.Join(root, PayloadFileName)
	p, err := LoadPayload(root)
	if err == nil && p != nil {
		return &DesignHandle{Root: root, PayloadPath: ppath, Payload: p}, nil
	}
	if err == nil {
		if _, serr := os.Stat(filepath.Join(root, BackupsDirName)); serr != nil {
			return nil, fmt.Errorf("open %s: %w", root, ErrNotDesign)
		}
		err = fmt.Errorf("%s missing", PayloadFileName)
	}
	bp, bpath, berr := openFromLatestBackup(root)
	if berr != nil {
		return nil, fmt.Errorf("open payload: %v; backup attempt: %w", err, berr)
	}
	l.Warn("payload unreadable, recovered from backup", slog.Any("err", err), slog.String("backup", bpath))
	return &DesignHandle{Root: root, PayloadPath: ppath, Payload: bp, Recovered: true}, nil
}

// Save writes the handle's payload to disk with transactional semantics
// and a timestamped backup of the previous payload (if present).
// The widget index is refreshed afterwards; index failures are logged, not returned.
func Save(dh *DesignHandle) error {
	if dh == nil {
		return errors.New("nil DesignHandle")
	}
	if dh.Root == "" || dh.PayloadPath == "" {
		return errors.New("invalid DesignHandle: missing paths")
	}
	if dh.Payload == nil {
		return errors.New("invalid DesignHandle: missing payload")
	}
	bdir := filepath.Join(dh.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(dh.PayloadPath); statErr == nil {
		bpath := filepath.Join(bdir, backupName(time.Now()))
		if cerr := copyFile(dh.PayloadPath, bpath); cerr != nil {
			return fmt.Errorf("backup current payload: %w", cerr)
		}
	}
	if err := SavePayload(dh.Root, dh.Payload); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := UpdateIndex(ctx, dh.Root, dh.Payload); err != nil {
		applog.WithComponent("storage").Warn("widget index update failed", slog.String("root", dh.Root), slog.Any("err", err))
	}
	return nil
}

// backupName includes nanoseconds so saves within one second keep distinct backups.
func backupName(t time.Time) string {
	return fmt.Sprintf("%s.%s.bak", PayloadFileName, t.Format("20060102-150405.000000000"))
}

// SaveAs writes the payload to a new root folder, scaffolding structure if needed, and updates the handle.
func SaveAs(dh *DesignHandle, newRoot string) error {
	if dh == nil {
		return errors.New("nil DesignHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	dh.Root = newRoot
	dh.PayloadPath = filepath.Join(newRoot, PayloadFileName)
	return Save(dh)
}

// AutosaveCrashSnapshot writes the in-memory payload next to the regular backups
// without touching design.json. It returns the written path.
func AutosaveCrashSnapshot(dh *DesignHandle) (string, error) {
	if dh == nil || dh.Payload == nil {
		return "", errors.New("nil DesignHandle")
	}
	data, err := marshalPayload(dh.Payload)
	if err != nil {
		return "", err
	}
	bdir := filepath.Join(dh.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.bak", PayloadFileName, time.Now().Format("20060102-150405")))
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

// SavePayload atomically replaces <dir>/design.json with p.
func SavePayload(dir string, p *domain.Payload) error {
	if p == nil {
		return errors.New("nil payload")
	}
	data, err := marshalPayload(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create design dir: %w", err)
	}
	target := filepath.Join(dir, PayloadFileName)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", PayloadFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp payload: %w", werr)
	}
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(target); err == nil {
		_ = os.Remove(target)
	}
	if rerr := os.Rename(temp, target); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace payload: %w", rerr)
	}
	return nil
}

// LoadPayload reads <dir>/design.json. It returns nil, nil when the file does not exist.
func LoadPayload(dir string) (*domain.Payload, error) {
	b, err := os.ReadFile(filepath.Join(dir, PayloadFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return decodePayload(b)
}

func decodePayload(b []byte) (*domain.Payload, error) {
	var p domain.Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return &p, nil
}

func marshalPayload(p *domain.Payload) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return append(data, '\n'), nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// Backups lists regular payload backups, oldest first. Crash snapshots are excluded.
func Backups(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, PayloadFileName+".") && strings.HasSuffix(name, ".bak") && !strings.Contains(name, ".crash-") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	// timestamp in name yields lexicographic order
	sort.Strings(out)
	return out, nil
}

// openFromLatestBackup walks backups newest first and returns the first that parses.
func openFromLatestBackup(root string) (*domain.Payload, string, error) {
	candidates, err := Backups(root)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoBackups, err)
	}
	if len(candidates) == 0 {
		return nil, "", ErrNoBackups
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			lastErr = err
			continue
		}
		p, err := decodePayload(b)
		if err != nil {
			lastErr = err
			continue
		}
		return p, candidates[i], nil
	}
	return nil, "", fmt.Errorf("%w: every backup unreadable: %v", ErrNoBackups, lastErr)
}
