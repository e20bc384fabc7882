// Package presence defines the presence records exchanged with the remote store.
package presence

import (
	"fmt"
	"strings"
	"time"
)

// State is a friend's presence as reported by the remote store.
type State string

const (
	StateOnline  State = "online"
	StateIdle    State = "idle"
	StateBusy    State = "busy"
	StateOffline State = "offline"
)

// ParseState maps a wire value onto a State. Unrecognised values are offline.
func ParseState(s string) State {
	switch State(strings.ToLower(strings.TrimSpace(s))) {
	case StateOnline:
		return StateOnline
	case StateIdle:
		return StateIdle
	case StateBusy:
		return StateBusy
	default:
		return StateOffline
	}
}

// Reachable reports whether the state counts as reachable for notifications.
func (s State) Reachable() bool {
	switch s {
	case StateOnline, StateIdle, StateBusy:
		return true
	default:
		return false
	}
}

// Rank orders states for display: online first, offline last.
func (s State) Rank() int {
	switch s {
	case StateOnline:
		return 0
	case StateBusy:
		return 1
	case StateIdle:
		return 2
	default:
		return 3
	}
}

func (s State) String() string {
	if s == "" {
		return string(StateOffline)
	}
	return string(s)
}

// Record is one friend's last known status.
type Record struct {
	Identity string
	Name     string
	State    State
	LastSeen time.Time
}

// DisplayName returns the name to show for the record.
func (r Record) DisplayName() string {
	if strings.TrimSpace(r.Name) != "" {
		return r.Name
	}
	return r.Identity
}

// ValidateSnapshot checks that identities are non-empty and unique within one fetch result.
func ValidateSnapshot(records []Record) error {
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if r.Identity == "" {
			return fmt.Errorf("record %d has an empty identity", i)
		}
		if _, ok := seen[r.Identity]; ok {
			return fmt.Errorf("duplicate identity %q in snapshot", r.Identity)
		}
		seen[r.Identity] = struct{}{}
	}
	return nil
}

// Activity is the local user's activity state sent with each heartbeat.
type Activity string

const (
	ActivityOnline  Activity = "online"
	ActivityIdle    Activity = "idle"
	ActivityBusy    Activity = "busy"
	ActivityUnknown Activity = "unknown"
)

// ParseActivity maps a string onto an Activity, returning false when it is not one.
func ParseActivity(s string) (Activity, bool) {
	switch a := Activity(strings.ToLower(strings.TrimSpace(s))); a {
	case ActivityOnline, ActivityIdle, ActivityBusy, ActivityUnknown:
		return a, true
	default:
		return ActivityUnknown, false
	}
}

// Heartbeat announces the local user to the remote store.
type Heartbeat struct {
	UUID          string
	Name          string
	ActivityState Activity
}
