// Package testutil provides thread-safe mocks shared by package tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/online-status/pkg/notification"
	"github.com/Veraticus/online-status/pkg/presence"
	"github.com/Veraticus/online-status/pkg/settings"
)

// MockNotifier is a thread-safe mock implementation of notification.Notifier for testing
type MockNotifier struct {
	mu            sync.Mutex
	notifications []notification.Notification
	attempts      []notification.Notification // Track all send attempts
	sendErr       error
	sendDelay     time.Duration
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		notifications: []notification.Notification{},
		attempts:      []notification.Notification{},
	}
}

// Send implements the Notifier interface
func (m *MockNotifier) Send(n notification.Notification) error {
	m.mu.Lock()
	delay := m.sendDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts = append(m.attempts, n)

	if m.sendErr != nil {
		return m.sendErr
	}

	m.notifications = append(m.notifications, n)
	return nil
}

// GetNotifications returns a copy of successfully sent notifications
func (m *MockNotifier) GetNotifications() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]notification.Notification, len(m.notifications))
	copy(result, m.notifications)
	return result
}

// GetAttempts returns a copy of all attempted sends (including failures)
func (m *MockNotifier) GetAttempts() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]notification.Notification, len(m.attempts))
	copy(result, m.attempts)
	return result
}

// SetError sets the error to return on Send calls
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetDelay sets a delay before each Send call
func (m *MockNotifier) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendDelay = delay
}

// Clear resets the mock state
func (m *MockNotifier) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = []notification.Notification{}
	m.attempts = []notification.Notification{}
	m.sendErr = nil
	m.sendDelay = 0
}

// MockCapability is a mock implementation of interfaces.IdleCapability for testing
type MockCapability struct {
	mu            sync.Mutex
	idle          time.Duration
	idleErr       error
	fullscreen    bool
	fullscreenErr error
	idleCalls     int
	activityCalls int
}

// NewMockCapability creates a mock reporting the given idle time
func NewMockCapability(idle time.Duration) *MockCapability {
	return &MockCapability{idle: idle}
}

// IdleTime implements the IdleCapability interface
func (m *MockCapability) IdleTime() (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleCalls++
	return m.idle, m.idleErr
}

// FullscreenActive implements the IdleCapability interface
func (m *MockCapability) FullscreenActive() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullscreen, m.fullscreenErr
}

// RecordActivity implements the ActivityRecorder interface
func (m *MockCapability) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activityCalls++
	m.idle = 0
}

// SetIdle sets the reported idle time and error
func (m *MockCapability) SetIdle(idle time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idle = idle
	m.idleErr = err
}

// SetFullscreen sets the reported fullscreen state and error
func (m *MockCapability) SetFullscreen(fullscreen bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fullscreen = fullscreen
	m.fullscreenErr = err
}

// GetIdleCallCount returns how many times IdleTime was called
func (m *MockCapability) GetIdleCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idleCalls
}

// GetActivityCallCount returns how many times RecordActivity was called
func (m *MockCapability) GetActivityCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activityCalls
}

// MockSender records heartbeats handed to it
type MockSender struct {
	mu         sync.Mutex
	heartbeats []presence.Heartbeat
	sendErr    error
	panicValue any
	block      chan struct{}
}

// NewMockSender creates a new mock heartbeat sender
func NewMockSender() *MockSender {
	return &MockSender{}
}

// SendHeartbeat implements heartbeat.Sender
func (m *MockSender) SendHeartbeat(ctx context.Context, hb presence.Heartbeat) error {
	m.mu.Lock()
	m.heartbeats = append(m.heartbeats, hb)
	err := m.sendErr
	p := m.panicValue
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p != nil {
		panic(p)
	}
	return err
}

// SetError sets the error returned by SendHeartbeat
func (m *MockSender) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetPanic makes SendHeartbeat panic with v
func (m *MockSender) SetPanic(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicValue = v
}

// SetBlock makes SendHeartbeat wait until ch is closed
func (m *MockSender) SetBlock(ch chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = ch
}

// GetHeartbeats returns a copy of every heartbeat attempted
func (m *MockSender) GetHeartbeats() []presence.Heartbeat {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]presence.Heartbeat, len(m.heartbeats))
	copy(result, m.heartbeats)
	return result
}

// MockIdentity is an in-memory settings source
type MockIdentity struct {
	mu       sync.Mutex
	settings settings.Settings
}

// NewMockIdentity creates a source returning s
func NewMockIdentity(s settings.Settings) *MockIdentity {
	return &MockIdentity{settings: s}
}

// Snapshot implements heartbeat.IdentitySource and api.SettingsSource
func (m *MockIdentity) Snapshot() settings.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Set replaces the returned settings
func (m *MockIdentity) Set(s settings.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
}

// MockClassifier returns a settable activity
type MockClassifier struct {
	mu       sync.Mutex
	activity presence.Activity
	calls    int
}

// NewMockClassifier creates a classifier returning a
func NewMockClassifier(a presence.Activity) *MockClassifier {
	return &MockClassifier{activity: a}
}

// Classify implements heartbeat.ActivityClassifier
func (m *MockClassifier) Classify() presence.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.activity
}

// SetActivity changes the returned activity
func (m *MockClassifier) SetActivity(a presence.Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = a
}

// GetCallCount returns how many times Classify was called
func (m *MockClassifier) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
