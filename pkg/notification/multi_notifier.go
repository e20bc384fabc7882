package notification

import "errors"

// MultiNotifier fans each notification out to every sink. A failing sink
// does not prevent delivery to the others.
type MultiNotifier struct {
	sinks []Notifier
}

// NewMultiNotifier creates a notifier over the non-nil sinks
func NewMultiNotifier(sinks ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Send delivers to every sink and joins their errors
func (m *MultiNotifier) Send(n Notification) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Send(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks
func (m *MultiNotifier) Len() int {
	return len(m.sinks)
}
