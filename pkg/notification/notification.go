// Package notification delivers presence alerts to the operator.
package notification

import "time"

// Kind tags what raised a notification.
type Kind string

const (
	// KindArrival is raised when a friend becomes reachable.
	KindArrival Kind = "arrival"
	// KindAuth is raised when the remote store rejects the credential.
	KindAuth Kind = "auth"
	// KindBatch is a summary of several arrivals.
	KindBatch Kind = "batch"
)

// Notification represents a notification to be sent.
type Notification struct {
	Title    string
	Message  string
	Time     time.Time
	Kind     Kind
	Identity string
	// State is the presence state an arrival moved to, e.g. "idle".
	State string
}

// Notifier sends notifications.
type Notifier interface {
	Send(notification Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification) error

// Send calls f.
func (f NotifierFunc) Send(n Notification) error {
	return f(n)
}
