package idle

import (
	"sync"
	"time"
)

// ManualTracker measures idle time from activity reported by the application.
// It serves as a fallback when no platform source is available.
type ManualTracker struct {
	mu           sync.RWMutex
	lastActivity time.Time
	now          func() time.Time
}

// NewManualTracker creates a tracker that considers the user active now.
func NewManualTracker() *ManualTracker {
	return &ManualTracker{
		lastActivity: time.Now(),
		now:          time.Now,
	}
}

// IdleTime returns the time since the last recorded activity.
func (m *ManualTracker) IdleTime() (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idle := m.now().Sub(m.lastActivity)
	if idle < 0 {
		idle = 0
	}
	return idle, nil
}

// FullscreenActive is never known to a manual tracker.
func (m *ManualTracker) FullscreenActive() (bool, error) {
	return false, nil
}

// RecordActivity marks the user active now.
func (m *ManualTracker) RecordActivity() {
	m.RecordActivityAt(m.now())
}

// RecordActivityAt marks the user active at t.
func (m *ManualTracker) RecordActivityAt(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = t
}

// LastActivity returns the last recorded activity.
func (m *ManualTracker) LastActivity() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastActivity
}

// Source implements Sourced.
func (m *ManualTracker) Source() string {
	return "manual"
}
