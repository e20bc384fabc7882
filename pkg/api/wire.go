package api

import (
	"strings"
	"time"

	"github.com/Veraticus/online-status/pkg/presence"
)

// friendsResponse is the body of GET /online_status/.
type friendsResponse struct {
	Friends []wireFriend `json:"friends"`
}

type wireFriend struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	State    string `json:"state"`
	LastSeen string `json:"last_seen"`
}

// heartbeatRequest is the body of POST /heartbeat/.
type heartbeatRequest struct {
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	ActivityState string `json:"activity_state"`
}

// lastSeenLayouts are tried in order; the reference backend emits naive ISO timestamps with a Z suffix.
var lastSeenLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseLastSeen returns the zero time for empty or unparseable values.
func parseLastSeen(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range lastSeenLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (f wireFriend) record() presence.Record {
	identity := strings.TrimSpace(f.Identity)
	if identity == "" {
		identity = strings.TrimSpace(f.Name)
	}
	return presence.Record{
		Identity: identity,
		Name:     strings.TrimSpace(f.Name),
		State:    presence.ParseState(f.State),
		LastSeen: parseLastSeen(f.LastSeen),
	}
}
