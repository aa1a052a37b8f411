/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration of displaydesigner from a YAML
// file in the user scope. Environment variables are read-only runtime
// overrides; the data source token lives in the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
}

// EditorConfig holds editing defaults applied to every new session.
type EditorConfig struct {
	HistoryLimit       int     `yaml:"history_limit"`
	RenderingMode      string  `yaml:"rendering_mode"`
	DefaultDeviceModel string  `yaml:"default_device_model"`
	ZoomMin            float64 `yaml:"zoom_min"`
	ZoomMax            float64 `yaml:"zoom_max"`
	SnapDistance       int     `yaml:"snap_distance"`
}

// DataSourceConfig points at the service that supplies live values and history.
type DataSourceConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	CacheTTLMs  int    `yaml:"cache_ttl_ms"`
	// PGDSN enables the Postgres sample store instead of the HTTP API.
	PGDSN string `yaml:"pg_dsn"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the user-editable configuration.
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	General       GeneralConfig    `yaml:"general"`
	Editor        EditorConfig     `yaml:"editor"`
	DataSource    DataSourceConfig `yaml:"datasource"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{Theme: "system"},
		Editor: EditorConfig{
			HistoryLimit:       50,
			RenderingMode:      "direct",
			DefaultDeviceModel: "reterminal_e1001",
			ZoomMin:            0.05,
			ZoomMax:            5,
			SnapDistance:       10,
		},
		DataSource: DataSourceConfig{BaseURL: "http://homeassistant.local:8123", TimeoutMs: 15000, CacheTTLMs: 60000},
		Logging:    LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir         = "DSD_CONFIG_DIR"
	EnvDataSourceURL     = "DSD_DATASOURCE_URL"
	EnvDataSourceTimeout = "DSD_DATASOURCE_TIMEOUT_MS"
	EnvTLSInsecure       = "DSD_TLS_INSECURE"
	EnvCacheTTLMs        = "DSD_CACHE_TTL_MS"
	EnvPGDSN             = "DSD_PG_DSN"
	EnvHistoryLimit      = "DSD_HISTORY_LIMIT"
	EnvRenderingMode     = "DSD_RENDERING_MODE"
	EnvTelemetryOptIn    = "DSD_TELEMETRY_OPT_IN"
	EnvLogLevel          = "DSD_LOG_LEVEL"
	EnvLogFormat         = "DSD_LOG_FORMAT"
	EnvLogSource         = "DSD_LOG_SOURCE"
	EnvLogFile           = "DSD_LOG_FILE"
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Join(dir, "config.yaml"), nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "DisplayDesigner")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "DisplayDesigner")
	default:
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(home, ".config", "displaydesigner")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides. The token is read from the keyring and returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn

	if src.Editor.HistoryLimit > 0 {
		dst.Editor.HistoryLimit = src.Editor.HistoryLimit
	}
	if v := strings.TrimSpace(src.Editor.RenderingMode); v != "" {
		dst.Editor.RenderingMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Editor.DefaultDeviceModel); v != "" {
		dst.Editor.DefaultDeviceModel = v
	}
	if src.Editor.ZoomMin > 0 {
		dst.Editor.ZoomMin = src.Editor.ZoomMin
	}
	if src.Editor.ZoomMax > 0 {
		dst.Editor.ZoomMax = src.Editor.ZoomMax
	}
	if src.Editor.SnapDistance > 0 {
		dst.Editor.SnapDistance = src.Editor.SnapDistance
	}

	if src.DataSource.BaseURL != "" {
		dst.DataSource.BaseURL = src.DataSource.BaseURL
	}
	if src.DataSource.TimeoutMs != 0 {
		dst.DataSource.TimeoutMs = src.DataSource.TimeoutMs
	}
	if src.DataSource.CacheTTLMs != 0 {
		dst.DataSource.CacheTTLMs = src.DataSource.CacheTTLMs
	}
	dst.DataSource.TLSInsecure = src.DataSource.TLSInsecure
	if v := strings.TrimSpace(src.DataSource.PGDSN); v != "" {
		dst.DataSource.PGDSN = v
	}

	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
}

func envBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvDataSourceURL)); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataSourceTimeout)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DataSource.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTLSInsecure)); v != "" {
		cfg.DataSource.TLSInsecure = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheTTLMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DataSource.CacheTTLMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvPGDSN)); v != "" {
		cfg.DataSource.PGDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryLimit)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Editor.HistoryLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRenderingMode)); v != "" {
		cfg.Editor.RenderingMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"datasource.base_url":       EnvDataSourceURL,
	"datasource.timeout_ms":     EnvDataSourceTimeout,
	"datasource.tls_insecure":   EnvTLSInsecure,
	"datasource.cache_ttl_ms":   EnvCacheTTLMs,
	"datasource.pg_dsn":         EnvPGDSN,
	"editor.history_limit":      EnvHistoryLimit,
	"editor.rendering_mode":     EnvRenderingMode,
	"general.telemetry_opt_in":  EnvTelemetryOptIn,
	"logging.level":             EnvLogLevel,
	"logging.format":            EnvLogFormat,
	"logging.source":            EnvLogSource,
	"logging.file":              EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the data source request timeout.
func (d DataSourceConfig) Timeout() time.Duration {
	if d.TimeoutMs <= 0 {
		return time.Duration(Defaults().DataSource.TimeoutMs) * time.Millisecond
	}
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// CacheTTL returns the history cache freshness window.
func (d DataSourceConfig) CacheTTL() time.Duration {
	if d.CacheTTLMs <= 0 {
		return time.Duration(Defaults().DataSource.CacheTTLMs) * time.Millisecond
	}
	return time.Duration(d.CacheTTLMs) * time.Millisecond
}
