// Package idle measures how long the local user has been inactive.
package idle

import (
	"os"
	"os/exec"

	"github.com/Veraticus/online-status/pkg/interfaces"
)

// NewCapability creates the platform-appropriate idle capability:
// - LinuxCapability on Linux (X11, then tmux, then manual tracking)
// - DarwinCapability on macOS (ioreg)
// - ManualTracker everywhere else.
func NewCapability() interfaces.IdleCapability {
	return newPlatformCapability()
}

// Sourced is implemented by capabilities that can name the backend in use.
type Sourced interface {
	Source() string
}

// Source names the backend a capability measures with, for diagnostics.
func Source(c interfaces.IdleCapability) string {
	if s, ok := c.(Sourced); ok {
		return s.Source()
	}
	return "unknown"
}

// cmdExecutor runs a command and returns its standard output.
type cmdExecutor func(name string, args ...string) ([]byte, error)

// defaultCmdExecutor executes a command and returns its output.
func defaultCmdExecutor(name string, args ...string) ([]byte, error) {
	// #nosec G204 - only fixed tool names are executed
	cmd := exec.Command(name, args...)
	return cmd.Output()
}

// lookPath reports whether a binary is on PATH.
func lookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

var getenv = os.Getenv
