package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Veraticus/online-status/pkg/idle"
)

// Doctor prints what the client would run with and whether the store answers.
// It returns an error only when the health check fails.
func (a *Application) Doctor(ctx context.Context, w io.Writer, configPath string) error {
	snap := a.deps.Settings.Snapshot()
	cfg := a.deps.Config

	fmt.Fprintf(w, "config file:    %s\n", orNone(configPath))
	fmt.Fprintf(w, "settings file:  %s\n", a.deps.Settings.Path())
	fmt.Fprintf(w, "uuid:           %s\n", orNone(snap.UUID))
	fmt.Fprintf(w, "display name:   %s\n", orNone(snap.DisplayName))
	fmt.Fprintf(w, "auth token:     %s\n", setOrMissing(snap.AuthToken != ""))
	fmt.Fprintf(w, "base url:       %s\n", orNone(snap.BaseURL))
	fmt.Fprintf(w, "poll interval:  %s\n", cfg.PollInterval)
	fmt.Fprintf(w, "heartbeat:      %s\n", cfg.HeartbeatInterval)

	source := idle.Source(a.deps.Capability)
	if d, err := a.deps.Capability.IdleTime(); err != nil {
		fmt.Fprintf(w, "idle source:    %s (error: %v)\n", source, err)
	} else {
		fmt.Fprintf(w, "idle source:    %s (idle %s)\n", source, d.Round(time.Second))
	}
	fmt.Fprintf(w, "activity:       %s\n", a.deps.Classifier.Classify())

	if snap.BaseURL == "" {
		fmt.Fprintln(w, "health:         skipped, no base url")
		return nil
	}
	if err := a.deps.Client.Ping(ctx); err != nil {
		fmt.Fprintf(w, "health:         failed: %v\n", err)
		return fmt.Errorf("health check failed: %w", err)
	}
	fmt.Fprintln(w, "health:         ok")
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func setOrMissing(set bool) string {
	if set {
		return "set"
	}
	return "missing"
}
