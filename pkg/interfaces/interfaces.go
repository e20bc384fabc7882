// Package interfaces defines the core interfaces used throughout the application.
package interfaces

import "time"

// IdleCapability reports how long the local user has been inactive and
// whether a fullscreen window has focus.
type IdleCapability interface {
	IdleTime() (time.Duration, error)
	FullscreenActive() (bool, error)
}

// ActivityRecorder is implemented by capabilities that rely on the
// application to report user activity.
type ActivityRecorder interface {
	RecordActivity()
}

// RateLimiter limits notification frequency.
type RateLimiter interface {
	Allow() bool
	Reset()
}
