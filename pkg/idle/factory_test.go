package idle

import (
	"testing"
	"time"
)

type plainCapability struct{}

func (plainCapability) IdleTime() (time.Duration, error) { return 0, nil }
func (plainCapability) FullscreenActive() (bool, error)  { return false, nil }

func TestNewCapability(t *testing.T) {
	c := NewCapability()
	if c == nil {
		t.Fatal("NewCapability() returned nil")
	}

	idle, err := c.IdleTime()
	if err != nil {
		// A platform source may be present but fail; the fallback must still answer.
		t.Fatalf("IdleTime() error = %v", err)
	}
	if idle < 0 {
		t.Errorf("IdleTime() = %v, want non-negative", idle)
	}

	if Source(c) == "" {
		t.Error("Source() returned empty name")
	}
}

func TestSource(t *testing.T) {
	if got := Source(NewManualTracker()); got != "manual" {
		t.Errorf("Source(ManualTracker) = %q, want manual", got)
	}
	if got := Source(plainCapability{}); got != "unknown" {
		t.Errorf("Source(plain) = %q, want unknown", got)
	}
}
