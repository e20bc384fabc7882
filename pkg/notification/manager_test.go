package notification

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/online-status/pkg/config"
	"github.com/Veraticus/online-status/pkg/interfaces"
)

// MockNotifier for testing
type MockNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	attempts      []Notification // Track all send attempts
	sendErr       error
	sendDelay     time.Duration
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		notifications: []Notification{},
		attempts:      []Notification{},
	}
}

func (m *MockNotifier) Send(n Notification) error {
	if m.sendDelay > 0 {
		time.Sleep(m.sendDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Always track the attempt
	m.attempts = append(m.attempts, n)

	if m.sendErr != nil {
		return m.sendErr
	}

	m.notifications = append(m.notifications, n)
	return nil
}

func (m *MockNotifier) GetNotifications() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Notification, len(m.notifications))
	copy(result, m.notifications)
	return result
}

func (m *MockNotifier) GetAttempts() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Notification, len(m.attempts))
	copy(result, m.attempts)
	return result
}

func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// MockRateLimiter for testing
type MockRateLimiter struct {
	mu          sync.Mutex
	allowResult bool
	callCount   int
	resetCount  int
}

func NewMockRateLimiter(allowResult bool) *MockRateLimiter {
	return &MockRateLimiter{
		allowResult: allowResult,
	}
}

func (m *MockRateLimiter) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	return m.allowResult
}

func (m *MockRateLimiter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCount++
}

func (m *MockRateLimiter) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *MockRateLimiter) GetResetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetCount
}

func TestManager_Send(t *testing.T) {
	tests := []struct {
		name                  string
		config                *config.Config
		rateLimiterAllows     bool
		notifierError         error
		notification          Notification
		wantNotificationSent  bool
		wantRateLimiterCalled bool
	}{
		{
			name: "successful send without batching",
			config: &config.Config{
				BatchWindow: 0, // No batching
			},
			rateLimiterAllows: true,
			notification: Notification{
				Title:   "Test",
				Message: "Test message",
			},
			wantNotificationSent:  true,
			wantRateLimiterCalled: true,
		},
		{
			name: "rate limited",
			config: &config.Config{
				BatchWindow: 0,
			},
			rateLimiterAllows: false,
			notification: Notification{
				Title:   "Test",
				Message: "Test message",
			},
			wantNotificationSent:  false,
			wantRateLimiterCalled: true,
		},
		{
			name: "notifier error",
			config: &config.Config{
				BatchWindow: 0,
			},
			rateLimiterAllows: true,
			notifierError:     errors.New("send failed"),
			notification: Notification{
				Title:   "Test",
				Message: "Test message",
			},
			wantNotificationSent:  true, // Still attempted
			wantRateLimiterCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockNotifier := NewMockNotifier()
			mockNotifier.SetError(tt.notifierError)

			mockRateLimiter := NewMockRateLimiter(tt.rateLimiterAllows)

			manager := NewManager(tt.config, mockNotifier, mockRateLimiter, nil)
			defer func() { _ = manager.Close() }()

			_ = manager.Send(tt.notification)

			// Allow time for async processing
			time.Sleep(50 * time.Millisecond)

			// Check if notification was sent
			// For error cases, check attempts rather than successful sends
			if tt.notifierError != nil {
				attempts := mockNotifier.GetAttempts()
				if tt.wantNotificationSent && len(attempts) == 0 {
					t.Error("Expected notification to be attempted, but none were attempted")
				}
			} else {
				notifications := mockNotifier.GetNotifications()
				if tt.wantNotificationSent && len(notifications) == 0 {
					t.Error("Expected notification to be sent, but none were sent")
				}
				if !tt.wantNotificationSent && len(notifications) > 0 {
					t.Errorf("Expected no notifications, but got %d", len(notifications))
				}
			}

			// Check if rate limiter was called
			if tt.wantRateLimiterCalled && mockRateLimiter.GetCallCount() == 0 {
				t.Error("Expected rate limiter to be called, but it wasn't")
			}
		})
	}
}

func TestManager_SendWithBatching(t *testing.T) {
	mockNotifier := NewMockNotifier()
	mockRateLimiter := NewMockRateLimiter(true)

	cfg := &config.Config{
		BatchWindow: 100 * time.Millisecond,
	}

	manager := NewManager(cfg, mockNotifier, mockRateLimiter, nil)
	defer func() { _ = manager.Close() }()

	_ = manager.Send(Notification{Title: "bob is online", Kind: KindArrival, Identity: "bob", State: "online"})
	_ = manager.Send(Notification{Title: "carol is idle", Kind: KindArrival, Identity: "carol", State: "idle"})
	_ = manager.Send(Notification{Title: "dave is online", Kind: KindArrival, Identity: "dave", State: "online"})

	time.Sleep(50 * time.Millisecond)
	if len(mockNotifier.GetNotifications()) != 0 {
		t.Error("Notifications sent before batch window")
	}

	time.Sleep(100 * time.Millisecond)

	notifications := mockNotifier.GetNotifications()
	if len(notifications) != 1 {
		t.Fatalf("Expected 1 batched notification, got %d", len(notifications))
	}

	batch := notifications[0]
	if batch.Title != "3 friends are reachable" {
		t.Errorf("batch title = %q", batch.Title)
	}
	if batch.Kind != KindBatch {
		t.Errorf("batch kind = %q, want %q", batch.Kind, KindBatch)
	}
	if batch.Message != "bob is online, carol is idle, dave is online" {
		t.Errorf("batch message = %q", batch.Message)
	}
}

func TestBatchState(t *testing.T) {
	tests := []struct {
		name   string
		states []string
		want   string
	}{
		{name: "shared state", states: []string{"idle", "idle"}, want: "idle"},
		{name: "mixed states", states: []string{"idle", "busy"}, want: "reachable"},
		{name: "no state", states: []string{"", ""}, want: "reachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifications := make([]Notification, 0, len(tt.states))
			for _, state := range tt.states {
				notifications = append(notifications, Notification{Kind: KindArrival, State: state})
			}
			if got := batchState(notifications); got != tt.want {
				t.Errorf("batchState() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestManager_BatchTitleUsesSharedState(t *testing.T) {
	mockNotifier := NewMockNotifier()
	manager := NewManager(&config.Config{BatchWindow: 20 * time.Millisecond}, mockNotifier, nil, nil)
	defer func() { _ = manager.Close() }()

	_ = manager.Send(Notification{Title: "bob is busy", Kind: KindArrival, State: "busy"})
	_ = manager.Send(Notification{Title: "carol is busy", Kind: KindArrival, State: "busy"})
	time.Sleep(80 * time.Millisecond)

	notifications := mockNotifier.GetNotifications()
	if len(notifications) != 1 || notifications[0].Title != "2 friends are busy" {
		t.Errorf("notifications = %+v, want one \"2 friends are busy\" batch", notifications)
	}
}

func TestManager_SingleArrivalInWindowUnchanged(t *testing.T) {
	mockNotifier := NewMockNotifier()
	manager := NewManager(&config.Config{BatchWindow: 20 * time.Millisecond}, mockNotifier, nil, nil)
	defer func() { _ = manager.Close() }()

	_ = manager.Send(Notification{Title: "bob is online", Kind: KindArrival, Identity: "bob"})
	time.Sleep(60 * time.Millisecond)

	notifications := mockNotifier.GetNotifications()
	if len(notifications) != 1 || notifications[0].Title != "bob is online" || notifications[0].Identity != "bob" {
		t.Errorf("notifications = %+v, want the original arrival", notifications)
	}
}

func TestManager_AuthBypassesBatching(t *testing.T) {
	mockNotifier := NewMockNotifier()
	manager := NewManager(&config.Config{BatchWindow: time.Hour}, mockNotifier, nil, nil)
	defer func() { _ = manager.Close() }()

	_ = manager.Send(Notification{Title: "Authentication failed", Kind: KindAuth})

	if got := mockNotifier.GetNotifications(); len(got) != 1 || got[0].Kind != KindAuth {
		t.Errorf("notifications = %+v, want immediate auth notification", got)
	}
}

func TestManager_Quiet(t *testing.T) {
	mockNotifier := NewMockNotifier()
	mockRateLimiter := NewMockRateLimiter(true)
	manager := NewManager(&config.Config{Quiet: true}, mockNotifier, mockRateLimiter, nil)
	defer func() { _ = manager.Close() }()

	_ = manager.Send(Notification{Title: "bob is online", Kind: KindArrival})
	if len(mockNotifier.GetAttempts()) != 0 {
		t.Error("quiet manager delivered a notification")
	}
	if mockRateLimiter.GetCallCount() != 0 {
		t.Error("quiet manager consumed a rate limit token")
	}

	manager.SetQuiet(false)
	_ = manager.Send(Notification{Title: "bob is online", Kind: KindArrival})
	if len(mockNotifier.GetNotifications()) != 1 {
		t.Error("notification not delivered after leaving quiet mode")
	}
}

func TestManager_Close(t *testing.T) {
	tests := []struct {
		name         string
		withBatching bool
		pendingCount int
	}{
		{
			name:         "close without batching",
			withBatching: false,
			pendingCount: 0,
		},
		{
			name:         "close with batching and pending notifications",
			withBatching: true,
			pendingCount: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockNotifier := NewMockNotifier()
			mockRateLimiter := NewMockRateLimiter(true)

			batchWindow := time.Duration(0)
			if tt.withBatching {
				batchWindow = time.Hour // Long window so notifications stay pending
			}

			cfg := &config.Config{
				BatchWindow: batchWindow,
			}

			manager := NewManager(cfg, mockNotifier, mockRateLimiter, nil)

			// Add pending notifications
			for i := 0; i < tt.pendingCount; i++ {
				_ = manager.Send(Notification{Title: string(rune('A' + i)), Kind: KindArrival})
			}

			// Close should flush pending notifications
			_ = manager.Close()

			// Allow time for processing
			time.Sleep(50 * time.Millisecond)

			if tt.withBatching {
				// Should have flushed all pending as a single batch
				notifications := mockNotifier.GetNotifications()
				if tt.pendingCount > 0 && len(notifications) != 1 {
					t.Errorf("Expected 1 batched notification, got %d", len(notifications))
				}
				if tt.pendingCount == 0 && len(notifications) != 0 {
					t.Errorf("Expected no notifications, got %d", len(notifications))
				}
			}

			// Closing again should be safe
			_ = manager.Close()
		})
	}
}

func TestManager_ConcurrentSend(t *testing.T) {
	mockNotifier := NewMockNotifier()
	mockRateLimiter := NewMockRateLimiter(true)

	cfg := &config.Config{
		BatchWindow: 0, // No batching for simpler test
	}

	manager := NewManager(cfg, mockNotifier, mockRateLimiter, nil)
	defer func() { _ = manager.Close() }()

	// Send notifications concurrently
	numGoroutines := 10
	notificationsPerGoroutine := 5
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < notificationsPerGoroutine; j++ {
				_ = manager.Send(Notification{
					Title: string(rune('A' + id)),
				})
			}
		}(i)
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond) // Allow processing

	notifications := mockNotifier.GetNotifications()
	expectedTotal := numGoroutines * notificationsPerGoroutine
	if len(notifications) != expectedTotal {
		t.Errorf("Expected %d notifications, got %d", expectedTotal, len(notifications))
	}
}

// CountingRateLimiter that allows first N calls
type CountingRateLimiter struct {
	mu           sync.Mutex
	maxAllowed   int
	currentCount int
}

func (c *CountingRateLimiter) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentCount++
	return c.currentCount <= c.maxAllowed
}

func (c *CountingRateLimiter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentCount = 0
}

func TestManager_RateLimitingWithBatching(t *testing.T) {
	mockNotifier := NewMockNotifier()

	// Rate limiter that allows one delivery only
	rateLimiter := &CountingRateLimiter{
		maxAllowed: 1,
	}

	cfg := &config.Config{
		BatchWindow: 50 * time.Millisecond,
	}

	manager := NewManager(cfg, mockNotifier, rateLimiter, nil)
	defer func() { _ = manager.Close() }()

	// Five arrivals fold into one delivery and cost one token
	for i := 0; i < 5; i++ {
		_ = manager.Send(Notification{Title: string(rune('A' + i)), Kind: KindArrival})
	}
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 3; i++ {
		_ = manager.Send(Notification{Title: string(rune('X' + i)), Kind: KindArrival})
	}
	time.Sleep(100 * time.Millisecond)

	notifications := mockNotifier.GetNotifications()
	if len(notifications) != 1 {
		t.Fatalf("Expected 1 batch notification due to rate limiting, got %d", len(notifications))
	}
	if notifications[0].Title != "5 friends are reachable" {
		t.Errorf("batch title = %q", notifications[0].Title)
	}
}

func TestNewManager(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.Config
		notifier    Notifier
		rateLimiter interfaces.RateLimiter
	}{
		{
			name: "with batching",
			config: &config.Config{
				BatchWindow: 100 * time.Millisecond,
			},
			notifier:    NewMockNotifier(),
			rateLimiter: NewMockRateLimiter(true),
		},
		{
			name: "without batching",
			config: &config.Config{
				BatchWindow: 0,
			},
			notifier:    NewMockNotifier(),
			rateLimiter: NewMockRateLimiter(true),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager(tt.config, tt.notifier, tt.rateLimiter, nil)
			if manager == nil {
				t.Error("NewManager() returned nil")
			}
			_ = manager.Close()
		})
	}
}
