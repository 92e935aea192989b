// Package remote is the client for the realtime store the dashboard mirrors.
// The store is addressed by slash-separated paths; point reads return a clean
// exists/absent outcome, and a subscription delivers the full value at a path
// on every cycle rather than deltas.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parking-monitor-backend/config"
)

// Snapshot is the result of a point read or a subscription delivery.
type Snapshot struct {
	Exists bool
	Raw    json.RawMessage
}

// Decode unmarshals the snapshot value into v. Decoding an absent snapshot
// is an error in the caller; check Exists first.
func (s Snapshot) Decode(v any) error {
	return json.Unmarshal(s.Raw, v)
}

// Gateway exposes the point operations and change subscription of the
// realtime store.
type Gateway interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	// Subscribe delivers a full snapshot of path to fn once per interval
	// until ctx is cancelled. Fetch failures are reported to onErr (if
	// non-nil) and otherwise absorbed: the view simply does not advance
	// until the channel recovers.
	Subscribe(ctx context.Context, path string, fn func(Snapshot), onErr func(error))
}

// httpGateway talks to a JSON-over-HTTP realtime store: GET/PUT/PATCH of
// "<base><path>.json".
type httpGateway struct {
	baseURL   string
	authToken string
	interval  time.Duration
	client    *http.Client
}

// NewGateway creates a Gateway for the configured store.
func NewGateway(cfg *config.RemoteConfig) Gateway {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Gateway will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &httpGateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		interval:  cfg.Interval,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

func (g *httpGateway) endpoint(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := g.baseURL + path + ".json"
	if g.authToken != "" {
		u += "?auth=" + url.QueryEscape(g.authToken)
	}
	return u
}

// Get performs a point read. A missing value (404 or JSON null) is a clean
// absent outcome, not an error.
func (g *httpGateway) Get(ctx context.Context, path string) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint(path), nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Snapshot{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read response body: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Snapshot{}, nil
	}
	return Snapshot{Exists: true, Raw: trimmed}, nil
}

// Set replaces the value at path.
func (g *httpGateway) Set(ctx context.Context, path string, value any) error {
	return g.write(ctx, http.MethodPut, path, value)
}

// Update merges fields into the value at path.
func (g *httpGateway) Update(ctx context.Context, path string, fields map[string]any) error {
	return g.write(ctx, http.MethodPatch, path, fields)
}

func (g *httpGateway) write(ctx context.Context, method, path string, value any) error {
	jsonBody, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.endpoint(path), bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("received non-2xx status code: %d", resp.StatusCode)
	}
	return nil
}

// Subscribe polls path and delivers the full snapshot each cycle. The first
// delivery happens immediately.
func (g *httpGateway) Subscribe(ctx context.Context, path string, fn func(Snapshot), onErr func(error)) {
	deliver := func() {
		snap, err := g.Get(ctx, path)
		if err != nil {
			log.Printf("subscription fetch for %s failed: %v", path, err)
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(snap)
	}

	deliver()

	timer := time.NewTimer(g.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("subscription for %s shutting down", path)
			return
		case <-timer.C:
			deliver()
			timer.Reset(g.interval)
		}
	}
}
