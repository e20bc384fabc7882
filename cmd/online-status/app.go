package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Veraticus/online-status/pkg/activity"
	"github.com/Veraticus/online-status/pkg/api"
	"github.com/Veraticus/online-status/pkg/config"
	"github.com/Veraticus/online-status/pkg/heartbeat"
	"github.com/Veraticus/online-status/pkg/idle"
	"github.com/Veraticus/online-status/pkg/interfaces"
	"github.com/Veraticus/online-status/pkg/logging"
	"github.com/Veraticus/online-status/pkg/notification"
	"github.com/Veraticus/online-status/pkg/poller"
	"github.com/Veraticus/online-status/pkg/presence"
	"github.com/Veraticus/online-status/pkg/settings"
	"github.com/Veraticus/online-status/pkg/status"
	"github.com/Veraticus/online-status/pkg/transition"
	"go.uber.org/zap"
)

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Config              *config.Config
	Settings            *settings.Store
	Logger              *zap.Logger
	Client              *api.Client
	Capability          interfaces.IdleCapability
	Classifier          heartbeat.ActivityClassifier
	Notifier            notification.Notifier
	RateLimiter         interfaces.RateLimiter
	NotificationManager *notification.Manager
	Detector            *transition.Detector
	Poller              *poller.Poller
	Scheduler           *heartbeat.Scheduler
	Board               *status.Board
	Reporter            *status.Reporter
}

// NewDependencies creates all dependencies with the given configuration.
// The board and the stdout notifier write to out.
func NewDependencies(cfg *config.Config, store *settings.Store, logger *zap.Logger, out io.Writer) (*Dependencies, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("config and settings are required")
	}
	logger = logging.OrNop(logger)

	deps := &Dependencies{
		Config:   cfg,
		Settings: store,
		Logger:   logger,
	}

	httpClient, err := api.NewHTTPClient(api.TransportOptions{
		Timeout:            cfg.RequestTimeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}
	deps.Client = api.NewClient(store, httpClient, logger.Named("api"))

	// Activity classification
	deps.Capability = idle.NewCapability()
	deps.Classifier = activity.NewClassifier(deps.Capability, cfg.IdleThreshold, logger.Named("activity"))

	// Notification chain: manager -> every enabled sink
	sinks := []notification.Notifier{notification.NewStdoutNotifier(out)}
	if cfg.DesktopNotifications {
		sinks = append(sinks, notification.NewDesktopNotifier())
	}
	deps.Notifier = notification.NewMultiNotifier(sinks...)
	deps.RateLimiter = notification.NewRateLimiter(cfg.RateLimit)
	deps.NotificationManager = notification.NewManager(cfg, deps.Notifier, deps.RateLimiter, logger.Named("notify"))

	deps.Detector = transition.NewDetector(deps.NotificationManager, logger.Named("transition"))

	deps.Poller = poller.New(poller.FetcherFunc(deps.Client.FetchFriends), poller.Options{
		Interval:     cfg.PollInterval,
		Precondition: credentialCheck(store),
		Logger:       logger.Named("poller"),
	})
	deps.Scheduler = heartbeat.New(deps.Client, store, deps.Classifier, heartbeat.Options{
		Interval: cfg.HeartbeatInterval,
		Logger:   logger.Named("heartbeat"),
	})

	deps.Board = status.NewBoard(out, status.ColorEnabled(out))
	deps.Reporter = status.NewReporter(deps.Board)

	return deps, nil
}

// credentialCheck gates each poll on a base URL and token being present.
func credentialCheck(store *settings.Store) func() error {
	return func() error {
		if !store.Snapshot().HasCredential() {
			return fmt.Errorf("auth token or base url not set: %w", presence.ErrNotConfigured)
		}
		return nil
	}
}

// Close cleans up all dependencies
func (d *Dependencies) Close() {
	if d.Poller != nil {
		d.Poller.Stop()
	}
	if d.Scheduler != nil {
		d.Scheduler.Stop()
	}
	if d.NotificationManager != nil {
		_ = d.NotificationManager.Close()
	}
	_ = d.Logger.Sync()
}

// Application represents the main application
type Application struct {
	deps *Dependencies

	// authFailing is set while consecutive polls are rejected. A snapshot or
	// missing settings end the streak.
	authFailing bool
}

// NewApplication creates a new application with the given dependencies
func NewApplication(deps *Dependencies) *Application {
	return &Application{
		deps: deps,
	}
}

// Run polls, heartbeats and notifies until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	events, err := a.deps.Poller.Start(ctx)
	if err != nil {
		return err
	}
	defer a.deps.Poller.Stop()

	if err := a.deps.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.deps.Scheduler.Stop()

	a.deps.Logger.Info("online-status started",
		zap.Duration("poll_interval", a.deps.Config.PollInterval),
		zap.Duration("heartbeat_interval", a.deps.Config.HeartbeatInterval),
		zap.String("idle_source", idle.Source(a.deps.Capability)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			a.handle(event)
		}
	}
}

// handle is the single consumer of poll events and the only writer of the
// detector cache.
func (a *Application) handle(event poller.Event) {
	a.deps.Reporter.Report(event)
	if err := a.deps.Board.Draw(true); err != nil {
		a.deps.Logger.Debug("failed to draw status board", zap.Error(err))
	}

	switch event.Kind() {
	case poller.KindSnapshot:
		a.authFailing = false
		a.deps.Detector.Process(event.Records)
	case poller.KindAuthentication:
		if a.authFailing {
			return
		}
		a.authFailing = true
		a.deps.Logger.Error("remote store rejected the auth token", zap.Error(event.Err))
		err := a.deps.NotificationManager.Send(notification.Notification{
			Title:   "Authentication failed",
			Message: "Update the token with `online-status settings set --token`",
			Time:    event.Time,
			Kind:    notification.KindAuth,
		})
		if err != nil {
			a.deps.Logger.Warn("failed to send notification", zap.Error(err))
		}
	case poller.KindConfiguration:
		a.authFailing = false
		a.deps.Logger.Debug("waiting for settings", zap.Error(event.Err))
	default:
		a.deps.Logger.Debug("poll failed, retrying next tick", zap.Error(event.Err))
	}
}

// Status performs one fetch and draws the board once.
func (a *Application) Status(ctx context.Context) error {
	a.recordActivity()

	event := poller.Event{Time: time.Now()}
	if err := credentialCheck(a.deps.Settings)(); err != nil {
		event.Err = err
	} else {
		event.Records, event.Err = a.deps.Client.FetchFriends(ctx)
	}

	a.deps.Reporter.Report(event)
	if err := a.deps.Board.Draw(false); err != nil {
		return err
	}
	return event.Err
}

// Heartbeat sends a single heartbeat outside the schedule.
func (a *Application) Heartbeat(ctx context.Context) error {
	a.recordActivity()
	if a.deps.Scheduler.SendNow(ctx) {
		return nil
	}
	stats := a.deps.Scheduler.Stats()
	if stats.Skipped > 0 && stats.Failed == 0 {
		return fmt.Errorf("heartbeat skipped: %w", presence.ErrNotConfigured)
	}
	return fmt.Errorf("heartbeat failed: %s", stats.LastError)
}

// recordActivity counts a command typed by the user as input for
// capabilities that cannot observe input themselves.
func (a *Application) recordActivity() {
	if recorder, ok := a.deps.Capability.(interfaces.ActivityRecorder); ok {
		recorder.RecordActivity()
	}
}
