// Package transition turns consecutive friend-list snapshots into "friend became reachable" notifications.
package transition

import (
	"fmt"
	"time"

	"github.com/Veraticus/online-status/pkg/logging"
	"github.com/Veraticus/online-status/pkg/notification"
	"github.com/Veraticus/online-status/pkg/presence"
	"go.uber.org/zap"
)

// Transition is one friend going from not reachable to reachable.
type Transition struct {
	Identity string
	Name     string
	From     presence.State
	To       presence.State
	At       time.Time
}

// Notification renders the transition for the operator, e.g. "bob is online".
func (t Transition) Notification() notification.Notification {
	return notification.Notification{
		Title:    fmt.Sprintf("%s is %s", t.Name, t.To),
		Message:  fmt.Sprintf("was %s", t.From),
		Time:     t.At,
		Kind:     notification.KindArrival,
		Identity: t.Identity,
		State:    t.To.String(),
	}
}

// Detector keeps the last known state per identity. It is not safe for
// concurrent use; one consumer owns it.
type Detector struct {
	sink   notification.Notifier
	logger *zap.Logger
	now    func() time.Time

	known map[string]presence.State
	// present holds the identities in the previous snapshot.
	present map[string]bool
}

// NewDetector creates a detector with an empty cache. sink may be nil, in
// which case transitions are only returned.
func NewDetector(sink notification.Notifier, logger *zap.Logger) *Detector {
	return &Detector{
		sink:   sink,
		logger: logging.OrNop(logger),
		now:    time.Now,
		known:   make(map[string]presence.State),
		present: make(map[string]bool),
	}
}

// Process compares records against the cache in snapshot order, notifies
// for each known friend that became reachable, and records every current
// state. The first sighting of a friend only seeds the cache. Friends
// missing from records keep their cached state, and a known friend that
// reappears reachable after missing a snapshot counts as arriving.
func (d *Detector) Process(records []presence.Record) []Transition {
	var transitions []Transition
	at := d.now()
	present := make(map[string]bool, len(records))

	for _, r := range records {
		previous, had := d.known[r.Identity]
		arrived := !previous.Reachable() || !d.present[r.Identity]

		if had && arrived && r.State.Reachable() {
			t := Transition{
				Identity: r.Identity,
				Name:     r.DisplayName(),
				From:     previous,
				To:       r.State,
				At:       at,
			}
			transitions = append(transitions, t)
			d.notify(t)
		}

		d.known[r.Identity] = r.State
		present[r.Identity] = true
	}

	d.present = present
	return transitions
}

func (d *Detector) notify(t Transition) {
	d.logger.Info("friend became reachable",
		zap.String("identity", t.Identity),
		zap.String("from", t.From.String()),
		zap.String("to", t.To.String()))

	if d.sink == nil {
		return
	}
	if err := d.sink.Send(t.Notification()); err != nil {
		d.logger.Warn("failed to send notification", zap.String("identity", t.Identity), zap.Error(err))
	}
}

// Known returns a copy of the cache.
func (d *Detector) Known() map[string]presence.State {
	out := make(map[string]presence.State, len(d.known))
	for k, v := range d.known {
		out[k] = v
	}
	return out
}

// Reset forgets every identity.
func (d *Detector) Reset() {
	d.known = make(map[string]presence.State)
	d.present = make(map[string]bool)
}
