// Package settings persists the local user's identity between runs.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Settings is the operator's own identity and remote store coordinates.
type Settings struct {
	UUID        string `yaml:"uuid"`
	DisplayName string `yaml:"display_name"`
	AuthToken   string `yaml:"auth_token,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
}

// HasIdentity reports whether a heartbeat may be sent with these settings.
func (s Settings) HasIdentity() bool {
	return strings.TrimSpace(s.UUID) != "" && strings.TrimSpace(s.DisplayName) != ""
}

// HasCredential reports whether the friend list may be fetched with these settings.
func (s Settings) HasCredential() bool {
	return strings.TrimSpace(s.AuthToken) != "" && strings.TrimSpace(s.BaseURL) != ""
}

// Store holds the current settings and writes every change to disk. Changes
// written to the file by another process are picked up on the next read.
type Store struct {
	path           string
	defaultBaseURL string

	mu      sync.Mutex
	current Settings
	// loaded describes the file last read or written.
	loaded os.FileInfo
}

// Open loads settings from path. A missing file is created with a fresh UUID,
// and defaultBaseURL is used when the stored base URL is empty.
func Open(path, defaultBaseURL string) (*Store, error) {
	if path == "" {
		return nil, errors.New("settings path is required")
	}

	s := &Store{path: path, defaultBaseURL: defaultBaseURL}

	// #nosec G304 - path comes from a flag, env var or the standard config location
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &s.current); err != nil {
			return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
		}
		s.loaded, _ = os.Stat(path)
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
	}

	dirty := false
	if strings.TrimSpace(s.current.UUID) == "" {
		s.current.UUID = uuid.NewString()
		dirty = true
	}
	if s.current.BaseURL == "" && defaultBaseURL != "" {
		s.current.BaseURL = defaultBaseURL
		dirty = true
	}

	if dirty {
		if err := s.write(s.current); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns a consistent copy of the current settings, re-reading the
// file first if it changed since it was last seen.
func (s *Store) Snapshot() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	return s.current
}

// refresh reloads the file when it was replaced or modified. A file that
// cannot be read or parsed leaves the current settings in place. Callers
// hold mu.
func (s *Store) refresh() {
	info, err := os.Stat(s.path)
	if err != nil || !changed(s.loaded, info) {
		return
	}

	// #nosec G304 - same path that Open accepted
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var next Settings
	if err := yaml.Unmarshal(data, &next); err != nil {
		return
	}
	if strings.TrimSpace(next.UUID) == "" {
		next.UUID = s.current.UUID
	}
	if next.BaseURL == "" {
		next.BaseURL = s.defaultBaseURL
	}

	s.current = next
	s.loaded = info
}

func changed(prev, next os.FileInfo) bool {
	if prev == nil {
		return true
	}
	return !os.SameFile(prev, next) || !prev.ModTime().Equal(next.ModTime()) || prev.Size() != next.Size()
}

// Update applies mutate to a copy of the settings, persists it and then
// publishes it. On any error the stored settings are left unchanged.
func (s *Store) Update(mutate func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()

	next := s.current
	if err := mutate(&next); err != nil {
		return s.current, err
	}

	next.DisplayName = strings.TrimSpace(next.DisplayName)
	next.AuthToken = strings.TrimSpace(next.AuthToken)
	next.BaseURL = strings.TrimRight(strings.TrimSpace(next.BaseURL), "/")
	if strings.TrimSpace(next.UUID) == "" {
		return s.current, errors.New("uuid cannot be cleared")
	}

	if err := s.write(next); err != nil {
		return s.current, err
	}

	s.current = next
	return next, nil
}

// write saves settings through a temp file and rename so a crash never leaves a partial file.
func (s *Store) write(settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set settings permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		s.loaded = info
	}
	return nil
}
