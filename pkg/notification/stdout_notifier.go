package notification

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// StdoutNotifier writes notifications to a writer, for headless sessions
type StdoutNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdoutNotifier creates a notifier writing to out, or stdout when out is nil
func NewStdoutNotifier(out io.Writer) *StdoutNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &StdoutNotifier{out: out}
}

// Send prints the notification as one line, with the message after a colon when present
func (n *StdoutNotifier) Send(notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	stamp := ""
	if !notification.Time.IsZero() {
		stamp = notification.Time.Format("15:04:05") + " "
	}

	var err error
	if notification.Message == "" {
		_, err = fmt.Fprintf(n.out, "%s[NOTIFICATION] %s\n", stamp, notification.Title)
	} else {
		_, err = fmt.Fprintf(n.out, "%s[NOTIFICATION] %s: %s\n", stamp, notification.Title, notification.Message)
	}
	return err
}
