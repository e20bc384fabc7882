// Package poller fetches the friend list on a fixed interval and streams the outcome of every attempt.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/online-status/pkg/logging"
	"github.com/Veraticus/online-status/pkg/presence"
	"go.uber.org/zap"
)

// DefaultInterval is used when Options.Interval is not positive.
const DefaultInterval = 30 * time.Second

// ErrAlreadyRunning is returned by Start on a running poller.
var ErrAlreadyRunning = errors.New("poller already running")

// Fetcher retrieves the current friend list.
type Fetcher interface {
	Fetch(ctx context.Context) ([]presence.Record, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]presence.Record, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context) ([]presence.Record, error) {
	return f(ctx)
}

// Options configures a Poller.
type Options struct {
	Interval time.Duration
	// Precondition is checked before every fetch. A non-nil result skips the
	// fetch and is reported as a configuration error.
	Precondition func() error
	Logger       *zap.Logger
}

// Kind classifies an Event.
type Kind int

const (
	KindSnapshot Kind = iota
	KindConfiguration
	KindAuthentication
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	default:
		return "transient"
	}
}

// Event is the outcome of one poll attempt. Exactly one of Records or Err is meaningful.
type Event struct {
	Time    time.Time
	Records []presence.Record
	Err     error
}

// Kind reports whether the event carries a snapshot or which class of error it carries.
func (e Event) Kind() Kind {
	switch {
	case e.Err == nil:
		return KindSnapshot
	case errors.Is(e.Err, presence.ErrNotConfigured):
		return KindConfiguration
	case errors.Is(e.Err, presence.ErrUnauthorized):
		return KindAuthentication
	default:
		return KindTransient
	}
}

// Poller runs one fetch immediately on Start and then one per interval,
// measured from the end of the previous attempt, so attempts never overlap.
type Poller struct {
	fetch        Fetcher
	interval     time.Duration
	precondition func() error
	logger       *zap.Logger

	mu   sync.Mutex
	stop chan struct{}
}

// New creates a poller. It does nothing until Start.
func New(fetch Fetcher, opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		fetch:        fetch,
		interval:     interval,
		precondition: opts.Precondition,
		logger:       logging.OrNop(opts.Logger),
	}
}

// Start begins polling and returns the event stream. The channel is closed
// once the loop exits after Stop or cancellation of ctx.
func (p *Poller) Start(ctx context.Context) (<-chan Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		return nil, ErrAlreadyRunning
	}

	stop := make(chan struct{})
	p.stop = stop

	events := make(chan Event, 1)
	go p.loop(ctx, stop, events)

	p.logger.Debug("poller started", zap.Duration("interval", p.interval))
	return events, nil
}

// Stop halts scheduling. An in-flight fetch is allowed to finish but its
// result is discarded. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop == nil {
		return
	}
	close(p.stop)
	p.stop = nil
	p.logger.Debug("poller stopped")
}

// Running reports whether the poller is scheduled.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// release marks the poller idle if stop still belongs to the current run.
func (p *Poller) release(stop chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == stop {
		close(p.stop)
		p.stop = nil
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func (p *Poller) loop(ctx context.Context, stop chan struct{}, events chan<- Event) {
	defer close(events)
	defer p.release(stop)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-timer.C:
		}

		event := p.attempt(ctx)

		if stopped(stop) || ctx.Err() != nil {
			p.logger.Debug("discarding poll result after stop")
			return
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return
		case <-stop:
			return
		}

		timer.Reset(p.interval)
	}
}

// attempt runs one tick body. It never panics.
func (p *Poller) attempt(ctx context.Context) (event Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("fetch panicked", zap.Any("panic", r))
			event = Event{Time: time.Now(), Err: fmt.Errorf("fetch panicked: %v", r)}
		}
	}()

	if p.precondition != nil {
		if err := p.precondition(); err != nil {
			if !errors.Is(err, presence.ErrNotConfigured) {
				err = fmt.Errorf("%w: %w", presence.ErrNotConfigured, err)
			}
			p.logger.Debug("skipping fetch", zap.Error(err))
			return Event{Time: time.Now(), Err: err}
		}
	}

	records, err := p.fetch.Fetch(ctx)
	if err != nil {
		p.logger.Warn("fetch failed", zap.Error(err))
		return Event{Time: time.Now(), Err: err}
	}

	if err := presence.ValidateSnapshot(records); err != nil {
		p.logger.Warn("fetch returned an invalid snapshot", zap.Error(err))
		return Event{Time: time.Now(), Err: err}
	}

	return Event{Time: time.Now(), Records: records}
}
