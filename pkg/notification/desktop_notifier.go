package notification

import (
	"github.com/gen2brain/beeep"
)

// DesktopNotifier raises a native desktop notification through beeep
// (libnotify/D-Bus on Linux, Notification Center on macOS, toasts on Windows).
type DesktopNotifier struct {
	notify func(title, message string) error
}

// NewDesktopNotifier creates a notifier backed by the OS notification service
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Send shows the notification. An empty message repeats the title so the popup is never blank.
func (d *DesktopNotifier) Send(n Notification) error {
	message := n.Message
	if message == "" {
		message = n.Title
	}
	return d.notify(n.Title, message)
}
