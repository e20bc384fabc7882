//go:build darwin

package idle

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DarwinCapability reads the HID idle time from ioreg, falling back to
// manual tracking when that fails. Fullscreen detection is not supported.
type DarwinCapability struct {
	fallback    *ManualTracker
	cmdExecutor cmdExecutor
}

// NewDarwinCapability creates a new Darwin (macOS) idle capability.
func NewDarwinCapability() *DarwinCapability {
	return &DarwinCapability{
		fallback:    NewManualTracker(),
		cmdExecutor: defaultCmdExecutor,
	}
}

// IdleTime returns the system idle time.
func (d *DarwinCapability) IdleTime() (time.Duration, error) {
	idle, err := d.systemIdleTime()
	if err != nil {
		return d.fallback.IdleTime()
	}
	return idle, nil
}

// FullscreenActive is not detectable without native APIs.
func (d *DarwinCapability) FullscreenActive() (bool, error) {
	return false, nil
}

// RecordActivity feeds the manual fallback.
func (d *DarwinCapability) RecordActivity() {
	d.fallback.RecordActivity()
}

func (d *DarwinCapability) systemIdleTime() (time.Duration, error) {
	output, err := d.cmdExecutor("ioreg", "-c", "IOHIDSystem", "-d", "4")
	if err != nil {
		return 0, fmt.Errorf("failed to execute ioreg: %w", err)
	}

	nanos, err := parseHIDIdleTime(output)
	if err != nil {
		return 0, fmt.Errorf("failed to parse HIDIdleTime: %w", err)
	}
	return time.Duration(nanos), nil
}

// parseHIDIdleTime finds `"HIDIdleTime" = 123456789` (nanoseconds) in ioreg output.
func parseHIDIdleTime(output []byte) (int64, error) {
	for _, line := range bytes.Split(output, []byte("\n")) {
		text := string(bytes.TrimSpace(line))
		if !strings.Contains(text, "HIDIdleTime") {
			continue
		}
		parts := strings.Split(text, "=")
		if len(parts) != 2 {
			continue
		}
		value := strings.TrimSpace(strings.Trim(strings.TrimSpace(parts[1]), "\""))
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse idle time value: %w", err)
		}
		return n, nil
	}
	return 0, errors.New("HIDIdleTime not found in ioreg output")
}

// Source implements Sourced.
func (d *DarwinCapability) Source() string {
	if _, err := d.systemIdleTime(); err != nil {
		return d.fallback.Source()
	}
	return "ioreg"
}
