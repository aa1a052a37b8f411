/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package datasource fetches entity state and history for data-driven
// widgets, either from the home automation HTTP API or from a Postgres
// sample store.
package datasource

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"displaydesigner/internal/domain"
	applog "displaydesigner/internal/log"
)

// Client is a minimal HTTP client for the entity state and history API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
	now     func() time.Time
	log     *slog.Logger
}

// ClientOptions tune the HTTP transport.
type ClientOptions struct {
	Timeout     time.Duration
	TLSInsecure bool
	// Now overrides the clock used to compute history windows.
	Now func() time.Time
}

// NewClient creates a new client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL, token string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	hc := &http.Client{Timeout: opts.Timeout}
	if opts.TLSInsecure {
		hc.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec // user opt-in for self-signed hubs
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  hc,
		now:     opts.Now,
		log:     applog.WithComponent("datasource"),
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	if q != nil {
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// EntityState is one entity as reported by the states endpoint.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
}

// FriendlyName returns the display name attribute, or the entity id.
func (e EntityState) FriendlyName() string {
	if s, ok := e.Attributes["friendly_name"].(string); ok && s != "" {
		return s
	}
	return e.EntityID
}

// Unit returns the unit_of_measurement attribute.
func (e EntityState) Unit() string {
	s, _ := e.Attributes["unit_of_measurement"].(string)
	return s
}

// ListStates returns all entities.
func (c *Client) ListStates(ctx context.Context) ([]EntityState, error) {
	var list []EntityState
	if err := c.doJSON(ctx, http.MethodGet, "/api/states", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetState returns a single entity.
func (c *Client) GetState(ctx context.Context, entityID string) (*EntityState, error) {
	var st EntityState
	if err := c.doJSON(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

type historyPoint struct {
	State       string    `json:"state"`
	LastChanged time.Time `json:"last_changed"`
}

// FetchHistory returns numeric samples of entityID over the trailing duration
// (e.g. "1h", "24h", "7d"). Non-numeric states are skipped.
func (c *Client) FetchHistory(ctx context.Context, entityID, duration string) ([]domain.Sample, error) {
	d, err := ParseDuration(duration)
	if err != nil {
		return nil, err
	}
	end := c.now().UTC()
	start := end.Add(-d)
	q := url.Values{}
	q.Set("filter_entity_id", entityID)
	q.Set("end_time", end.Format(time.RFC3339))
	q.Set("minimal_response", "")
	q.Set("no_attributes", "")
	var series [][]historyPoint
	if err := c.doJSON(ctx, http.MethodGet, "/api/history/period/"+start.Format(time.RFC3339), q, &series); err != nil {
		return nil, fmt.Errorf("history %s: %w", entityID, err)
	}
	var out []domain.Sample
	for _, s := range series {
		for _, p := range s {
			v, err := strconv.ParseFloat(p.State, 64)
			if err != nil {
				continue
			}
			out = append(out, domain.Sample{TS: p.LastChanged.UnixMilli(), Value: v})
		}
	}
	c.log.Debug("history fetched", slog.String("entity", entityID), slog.String("duration", duration), slog.Int("samples", len(out)))
	return out, nil
}

// ParseDuration accepts a number followed by s, m, h or d. A bare number means seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	unit := time.Second
	switch s[len(s)-1] {
	case 's':
		s = s[:len(s)-1]
	case 'm':
		unit, s = time.Minute, s[:len(s)-1]
	case 'h':
		unit, s = time.Hour, s[:len(s)-1]
	case 'd':
		unit, s = 24*time.Hour, s[:len(s)-1]
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(n * float64(unit)), nil
}
