//go:build darwin

package idle

import (
	"github.com/Veraticus/online-status/pkg/interfaces"
)

// newPlatformCapability creates a Darwin-specific idle capability.
func newPlatformCapability() interfaces.IdleCapability {
	return NewDarwinCapability()
}
