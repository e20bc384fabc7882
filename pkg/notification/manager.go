package notification

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/online-status/pkg/config"
	"github.com/Veraticus/online-status/pkg/interfaces"
	"github.com/Veraticus/online-status/pkg/logging"
	"go.uber.org/zap"
)

// Manager applies quiet mode, rate limiting and arrival batching in front of a Notifier.
type Manager struct {
	notifier    Notifier
	rateLimiter interfaces.RateLimiter
	batcher     *Batcher
	logger      *zap.Logger

	mu    sync.Mutex
	quiet bool
}

// NewManager creates a new notification manager
func NewManager(cfg *config.Config, notifier Notifier, rateLimiter interfaces.RateLimiter, logger *zap.Logger) *Manager {
	m := &Manager{
		notifier:    notifier,
		rateLimiter: rateLimiter,
		logger:      logging.OrNop(logger),
		quiet:       cfg.Quiet,
	}

	if cfg.BatchWindow > 0 {
		m.batcher = NewBatcher(cfg.BatchWindow, m.sendBatch)
	}

	return m
}

// SetQuiet toggles quiet mode. While quiet every notification is dropped.
func (m *Manager) SetQuiet(quiet bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quiet = quiet
}

// Send delivers, batches or drops a notification.
func (m *Manager) Send(n Notification) error {
	m.mu.Lock()
	quiet := m.quiet
	m.mu.Unlock()

	if quiet {
		m.logger.Debug("quiet mode, dropping notification", zap.String("title", n.Title))
		return nil
	}

	// Only arrivals are folded together; auth failures go out on their own.
	if m.batcher != nil && n.Kind == KindArrival {
		m.batcher.Add(n)
		return nil
	}

	return m.deliver(n)
}

func (m *Manager) deliver(n Notification) error {
	if m.rateLimiter != nil && !m.rateLimiter.Allow() {
		m.logger.Debug("rate limited, dropping notification", zap.String("title", n.Title))
		return nil
	}
	return m.notifier.Send(n)
}

// sendBatch delivers a closed window. A single arrival is delivered unchanged.
func (m *Manager) sendBatch(notifications []Notification) {
	if len(notifications) == 0 {
		return
	}

	n := notifications[0]
	if len(notifications) > 1 {
		n = Notification{
			Title:   fmt.Sprintf("%d friends are %s", len(notifications), batchState(notifications)),
			Message: formatBatchMessage(notifications),
			Time:    time.Now(),
			Kind:    KindBatch,
		}
	}

	if err := m.deliver(n); err != nil {
		m.logger.Warn("failed to deliver notification", zap.String("title", n.Title), zap.Error(err))
	}
}

// Close flushes any pending batch.
func (m *Manager) Close() error {
	if m.batcher != nil {
		m.batcher.Flush()
	}
	return nil
}

// batchState is the state every arrival shares, or "reachable" when they differ.
func batchState(notifications []Notification) string {
	state := notifications[0].State
	for _, n := range notifications[1:] {
		if n.State != state {
			return "reachable"
		}
	}
	if state == "" {
		return "reachable"
	}
	return state
}

// formatBatchMessage joins the individual titles, e.g. "bob is online, carol is idle".
func formatBatchMessage(notifications []Notification) string {
	titles := make([]string, 0, len(notifications))
	for _, n := range notifications {
		titles = append(titles, n.Title)
	}
	return strings.Join(titles, ", ")
}
