// Package heartbeat announces the local user to the remote store on a fixed interval.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/online-status/pkg/logging"
	"github.com/Veraticus/online-status/pkg/presence"
	"github.com/Veraticus/online-status/pkg/settings"
	"go.uber.org/zap"
)

// DefaultInterval is used when Options.Interval is not positive.
const DefaultInterval = 60 * time.Second

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("heartbeat scheduler already running")

// Sender delivers one heartbeat.
type Sender interface {
	SendHeartbeat(ctx context.Context, hb presence.Heartbeat) error
}

// IdentitySource returns a consistent copy of the local user's settings.
type IdentitySource interface {
	Snapshot() settings.Settings
}

// ActivityClassifier reports the local user's activity at send time.
type ActivityClassifier interface {
	Classify() presence.Activity
}

// Options configures a Scheduler.
type Options struct {
	Interval time.Duration
	Logger   *zap.Logger
}

// Stats counts send outcomes since the scheduler was created.
type Stats struct {
	Sent        int
	Failed      int
	Skipped     int
	LastSuccess time.Time
	LastError   string
}

// Scheduler sends a heartbeat on Start and then every interval after the
// previous send resolves. Failures never cancel the schedule.
type Scheduler struct {
	sender     Sender
	identity   IdentitySource
	classifier ActivityClassifier
	interval   time.Duration
	logger     *zap.Logger

	mu    sync.Mutex
	stop  chan struct{}
	stats Stats

	// sendMu serializes scheduled sends with SendNow.
	sendMu sync.Mutex
}

// New creates a scheduler. It does nothing until Start.
func New(sender Sender, identity IdentitySource, classifier ActivityClassifier, opts Options) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		sender:     sender,
		identity:   identity,
		classifier: classifier,
		interval:   interval,
		logger:     logging.OrNop(opts.Logger),
	}
}

// Start sends immediately and schedules subsequent sends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return ErrAlreadyRunning
	}
	stop := make(chan struct{})
	s.stop = stop

	go s.loop(ctx, stop)
	s.logger.Debug("heartbeat scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels future sends. A send already in progress completes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	s.logger.Debug("heartbeat scheduler stopped")
}

// Running reports whether sends are scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// SendNow performs one send outside the schedule and reports whether the store accepted it.
func (s *Scheduler) SendNow(ctx context.Context) bool {
	return s.send(ctx)
}

// Stats returns a copy of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) loop(ctx context.Context, stop chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.stop == stop {
			close(s.stop)
			s.stop = nil
		}
		s.mu.Unlock()
	}()

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

		select {
		case <-stop:
			return
		default:
		}

		s.send(ctx)
		timer.Reset(s.interval)
	}
}

func (s *Scheduler) send(ctx context.Context) (ok bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("heartbeat panicked", zap.Any("panic", r))
			s.record(fmt.Errorf("heartbeat panicked: %v", r))
			ok = false
		}
	}()

	snap := s.identity.Snapshot()
	name := strings.TrimSpace(snap.DisplayName)
	id := strings.TrimSpace(snap.UUID)
	if name == "" || id == "" {
		s.logger.Warn("skipping heartbeat: display name or uuid not set")
		s.mu.Lock()
		s.stats.Skipped++
		s.mu.Unlock()
		return false
	}

	activity := presence.ActivityUnknown
	if s.classifier != nil {
		activity = s.classifier.Classify()
	}

	hb := presence.Heartbeat{UUID: id, Name: name, ActivityState: activity}
	if err := s.sender.SendHeartbeat(ctx, hb); err != nil {
		s.logger.Warn("heartbeat failed", zap.String("activity", string(activity)), zap.Error(err))
		s.record(err)
		return false
	}

	s.logger.Debug("heartbeat sent", zap.String("activity", string(activity)))
	s.record(nil)
	return true
}

func (s *Scheduler) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.stats.Failed++
		s.stats.LastError = err.Error()
		return
	}
	s.stats.Sent++
	s.stats.LastSuccess = time.Now()
}
