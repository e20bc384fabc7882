// Package activity classifies the local user's presence for heartbeats.
package activity

import (
	"time"

	"github.com/Veraticus/online-status/pkg/interfaces"
	"github.com/Veraticus/online-status/pkg/logging"
	"github.com/Veraticus/online-status/pkg/presence"
	"go.uber.org/zap"
)

// DefaultIdleThreshold is used when Classifier.IdleThreshold is not positive.
const DefaultIdleThreshold = 5 * time.Minute

// Classifier derives an activity from an idle capability:
// a fullscreen window means busy, idle time at or past the threshold means
// idle, anything else is online. When idle time cannot be read the result is unknown.
type Classifier struct {
	Capability    interfaces.IdleCapability
	IdleThreshold time.Duration
	Logger        *zap.Logger
}

// NewClassifier creates a classifier over capability.
func NewClassifier(capability interfaces.IdleCapability, threshold time.Duration, logger *zap.Logger) *Classifier {
	return &Classifier{
		Capability:    capability,
		IdleThreshold: threshold,
		Logger:        logger,
	}
}

// Classify reads the capability now.
func (c *Classifier) Classify() presence.Activity {
	logger := logging.OrNop(c.Logger)
	if c.Capability == nil {
		return presence.ActivityUnknown
	}

	fullscreen, err := c.Capability.FullscreenActive()
	if err != nil {
		logger.Debug("fullscreen query failed", zap.Error(err))
	} else if fullscreen {
		return presence.ActivityBusy
	}

	idle, err := c.Capability.IdleTime()
	if err != nil {
		logger.Debug("idle time query failed", zap.Error(err))
		return presence.ActivityUnknown
	}

	threshold := c.IdleThreshold
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	if idle >= threshold {
		return presence.ActivityIdle
	}
	return presence.ActivityOnline
}

// Static always reports the same activity.
type Static presence.Activity

// Classify returns s.
func (s Static) Classify() presence.Activity {
	return presence.Activity(s)
}
