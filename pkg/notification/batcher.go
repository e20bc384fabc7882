package notification

import (
	"sync"
	"time"
)

// Batcher groups notifications raised within a time window. The window opens
// on the first Add and the callback receives everything collected when it closes.
type Batcher struct {
	window   time.Duration
	callback func([]Notification)

	mu      sync.Mutex
	pending []Notification
	timer   *time.Timer
}

// NewBatcher creates a new notification batcher
func NewBatcher(window time.Duration, callback func([]Notification)) *Batcher {
	return &Batcher{
		window:   window,
		callback: callback,
	}
}

// Add adds a notification to the current window
func (b *Batcher) Add(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, n)

	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
}

// Pending returns how many notifications wait for the window to close
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// take empties the window and returns its contents.
func (b *Batcher) take() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	out := b.pending
	b.pending = nil
	return out
}

func (b *Batcher) flush() {
	batch := b.take()
	if len(batch) == 0 {
		return
	}
	b.callback(batch)
}

// Flush immediately sends any pending notifications
func (b *Batcher) Flush() {
	b.flush()
}
