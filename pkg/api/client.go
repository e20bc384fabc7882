// Package api talks to the remote presence store.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Veraticus/online-status/pkg/logging"
	"github.com/Veraticus/online-status/pkg/presence"
	"github.com/Veraticus/online-status/pkg/settings"
	"go.uber.org/zap"
)

const (
	onlineStatusPath = "/online_status/"
	heartbeatPath    = "/heartbeat/"
	healthPath       = "/healthz"

	// maxErrorBody bounds how much of a failed response ends up in an error.
	maxErrorBody = 512
)

// SettingsSource supplies the base URL and token at request time.
type SettingsSource interface {
	Snapshot() settings.Settings
}

// Client is a remote presence store client.
type Client struct {
	settings SettingsSource
	http     *http.Client
	logger   *zap.Logger
}

// NewClient creates a client. Settings are read per request so edits take effect on the next call.
func NewClient(source SettingsSource, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		settings: source,
		http:     httpClient,
		logger:   logging.OrNop(logger),
	}
}

// FetchFriends returns the current friend list. Later duplicates of an identity are dropped.
func (c *Client) FetchFriends(ctx context.Context) ([]presence.Record, error) {
	snap := c.settings.Snapshot()
	if !snap.HasCredential() {
		return nil, fmt.Errorf("fetch friends: base url and auth token required: %w", presence.ErrNotConfigured)
	}

	resp, err := c.do(ctx, snap, http.MethodGet, onlineStatusPath, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var body friendsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode friend list: %w", err)
	}

	records := make([]presence.Record, 0, len(body.Friends))
	seen := make(map[string]struct{}, len(body.Friends))
	for _, f := range body.Friends {
		record := f.record()
		if record.Identity == "" {
			c.logger.Warn("dropping friend without identity")
			continue
		}
		if _, dup := seen[record.Identity]; dup {
			c.logger.Warn("dropping duplicate friend", zap.String("identity", record.Identity))
			continue
		}
		seen[record.Identity] = struct{}{}
		records = append(records, record)
	}

	return records, nil
}

// SendHeartbeat posts the local user's presence. Any non-2xx answer is an error.
func (c *Client) SendHeartbeat(ctx context.Context, hb presence.Heartbeat) error {
	snap := c.settings.Snapshot()
	if strings.TrimSpace(snap.BaseURL) == "" {
		return fmt.Errorf("send heartbeat: base url required: %w", presence.ErrNotConfigured)
	}

	payload, err := json.Marshal(heartbeatRequest{
		UUID:          hb.UUID,
		Name:          hb.Name,
		ActivityState: string(hb.ActivityState),
	})
	if err != nil {
		return fmt.Errorf("failed to encode heartbeat: %w", err)
	}

	resp, err := c.do(ctx, snap, http.MethodPost, heartbeatPath, payload)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// Ping checks the store's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	snap := c.settings.Snapshot()
	if strings.TrimSpace(snap.BaseURL) == "" {
		return fmt.Errorf("ping: base url required: %w", presence.ErrNotConfigured)
	}

	resp, err := c.do(ctx, snap, http.MethodGet, healthPath, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// do performs the request and converts non-2xx responses into *StatusError.
// On success the caller owns the response body.
func (c *Client) do(ctx context.Context, snap settings.Settings, method, path string, body []byte) (*http.Response, error) {
	url := strings.TrimRight(snap.BaseURL, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := strings.TrimSpace(snap.AuthToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	return resp, nil
}
