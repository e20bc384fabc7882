//go:build linux

package idle

import (
	"github.com/Veraticus/online-status/pkg/interfaces"
)

// newPlatformCapability creates a Linux-specific idle capability.
func newPlatformCapability() interfaces.IdleCapability {
	return NewLinuxCapability()
}
