//go:build linux

package idle

import (
	"time"
)

// LinuxCapability measures idle time with X11 when a display is available,
// then tmux, then the manual tracker. Fullscreen detection needs X11.
type LinuxCapability struct {
	x11      *X11Source
	tmux     *TmuxSource
	fallback *ManualTracker
	useX11   bool
	useTmux  bool
}

// NewLinuxCapability probes the available sources once.
func NewLinuxCapability() *LinuxCapability {
	x11 := NewX11Source()
	tmux := NewTmuxSource("")

	return &LinuxCapability{
		x11:      x11,
		tmux:     tmux,
		fallback: NewManualTracker(),
		useX11:   x11.IsAvailable(),
		useTmux:  tmux.IsAvailable(),
	}
}

// IdleTime returns the idle time from the first source that answers.
func (d *LinuxCapability) IdleTime() (time.Duration, error) {
	if d.useX11 {
		if idle, err := d.x11.IdleTime(); err == nil {
			return idle, nil
		}
	}
	if d.useTmux {
		if idle, err := d.tmux.IdleTime(); err == nil {
			return idle, nil
		}
	}
	return d.fallback.IdleTime()
}

// FullscreenActive asks X11; without a display it is always false.
func (d *LinuxCapability) FullscreenActive() (bool, error) {
	if !d.useX11 {
		return false, nil
	}
	return d.x11.FullscreenActive()
}

// RecordActivity feeds the manual fallback.
func (d *LinuxCapability) RecordActivity() {
	d.fallback.RecordActivity()
}

// Source implements Sourced.
func (d *LinuxCapability) Source() string {
	switch {
	case d.useX11:
		return d.x11.Source()
	case d.useTmux:
		return d.tmux.Source()
	default:
		return d.fallback.Source()
	}
}
