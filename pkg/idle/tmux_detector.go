package idle

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TmuxSource reads idle time from the activity timestamps of tmux clients.
type TmuxSource struct {
	sessionName string
	cmdExecutor cmdExecutor
	getenv      func(string) string
	now         func() time.Time
}

// NewTmuxSource creates a tmux idle source.
// If sessionName is empty, the current session is used.
func NewTmuxSource(sessionName string) *TmuxSource {
	return &TmuxSource{
		sessionName: sessionName,
		cmdExecutor: defaultCmdExecutor,
		getenv:      getenv,
		now:         time.Now,
	}
}

// IdleTime returns the time since the most recently active client touched the session.
func (d *TmuxSource) IdleTime() (time.Duration, error) {
	if !d.inTmux() {
		return 0, errors.New("not in a tmux session")
	}

	sessionName := d.sessionName
	if sessionName == "" {
		name, err := d.currentSessionName()
		if err != nil {
			return 0, fmt.Errorf("failed to get current session name: %w", err)
		}
		sessionName = name
	}

	output, err := d.cmdExecutor("tmux", "list-clients", "-t", sessionName, "-F", "#{client_activity}")
	if err != nil {
		return 0, fmt.Errorf("failed to list tmux clients: %w", err)
	}

	return d.parseClientActivity(output)
}

// parseClientActivity returns the idle time of the most recent client.
// Each line holds a client_activity value in seconds since the epoch.
func (d *TmuxSource) parseClientActivity(output []byte) (time.Duration, error) {
	var latest time.Time
	for _, line := range bytes.Split(bytes.TrimSpace(output), []byte("\n")) {
		secs, err := strconv.ParseInt(strings.TrimSpace(string(line)), 10, 64)
		if err != nil {
			continue
		}
		if at := time.Unix(secs, 0); at.After(latest) {
			latest = at
		}
	}

	if latest.IsZero() {
		return 0, errors.New("no tmux client activity found")
	}

	idle := d.now().Sub(latest)
	if idle < 0 {
		idle = 0
	}
	return idle, nil
}

// FullscreenActive has no meaning inside a terminal multiplexer.
func (d *TmuxSource) FullscreenActive() (bool, error) {
	return false, nil
}

func (d *TmuxSource) inTmux() bool {
	return d.getenv("TMUX") != ""
}

func (d *TmuxSource) currentSessionName() (string, error) {
	output, err := d.cmdExecutor("tmux", "display-message", "-p", "#{session_name}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// IsAvailable checks that we run inside tmux and the tmux binary answers.
func (d *TmuxSource) IsAvailable() bool {
	if !d.inTmux() {
		return false
	}
	_, err := d.cmdExecutor("tmux", "-V")
	return err == nil
}

// Source implements Sourced.
func (d *TmuxSource) Source() string {
	return "tmux"
}
