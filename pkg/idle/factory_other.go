//go:build !linux && !darwin

package idle

import (
	"github.com/Veraticus/online-status/pkg/interfaces"
)

// newPlatformCapability falls back to manual tracking on unsupported platforms.
func newPlatformCapability() interfaces.IdleCapability {
	return NewManualTracker()
}
