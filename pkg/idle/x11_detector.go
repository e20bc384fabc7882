//go:build linux

package idle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const netWMStateFullscreen = "_NET_WM_STATE_FULLSCREEN"

// X11Source reads idle time from xprintidle and the focused window's
// fullscreen state from xprop.
type X11Source struct {
	cmdExecutor cmdExecutor
	getenv      func(string) string
	hasBinary   func(string) bool
}

// NewX11Source creates an X11 idle source.
func NewX11Source() *X11Source {
	return &X11Source{
		cmdExecutor: defaultCmdExecutor,
		getenv:      getenv,
		hasBinary:   lookPath,
	}
}

// IdleTime returns the X server's input idle time.
func (x *X11Source) IdleTime() (time.Duration, error) {
	output, err := x.cmdExecutor("xprintidle")
	if err != nil {
		return 0, fmt.Errorf("failed to execute xprintidle: %w", err)
	}

	millis, err := strconv.ParseInt(strings.TrimSpace(string(output)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse xprintidle output: %w", err)
	}
	if millis < 0 {
		return 0, fmt.Errorf("negative idle time %d", millis)
	}

	return time.Duration(millis) * time.Millisecond, nil
}

// FullscreenActive reports whether the focused window carries _NET_WM_STATE_FULLSCREEN.
func (x *X11Source) FullscreenActive() (bool, error) {
	output, err := x.cmdExecutor("xprop", "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		return false, fmt.Errorf("failed to query active window: %w", err)
	}

	window, err := parseActiveWindow(string(output))
	if err != nil {
		return false, err
	}
	if window == "" {
		return false, nil
	}

	state, err := x.cmdExecutor("xprop", "-id", window, "_NET_WM_STATE")
	if err != nil {
		return false, fmt.Errorf("failed to query window state: %w", err)
	}

	return strings.Contains(string(state), netWMStateFullscreen), nil
}

// parseActiveWindow extracts the window id from
// "_NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007". An id of 0x0 means
// nothing has focus and yields "".
func parseActiveWindow(output string) (string, error) {
	i := strings.LastIndex(output, "#")
	if i < 0 {
		return "", errors.New("unexpected xprop output")
	}

	fields := strings.FieldsFunc(output[i+1:], func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t'
	})
	if len(fields) == 0 {
		return "", errors.New("unexpected xprop output")
	}

	id := fields[0]
	if _, err := strconv.ParseUint(strings.TrimPrefix(id, "0x"), 16, 64); err != nil {
		return "", fmt.Errorf("invalid window id %q", id)
	}
	if id == "0x0" {
		return "", nil
	}
	return id, nil
}

// IsAvailable checks for an X display and the xprintidle binary.
func (x *X11Source) IsAvailable() bool {
	return x.getenv("DISPLAY") != "" && x.hasBinary("xprintidle")
}

// Source implements Sourced.
func (x *X11Source) Source() string {
	return "x11"
}
