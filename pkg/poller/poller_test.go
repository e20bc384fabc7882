package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/online-status/pkg/presence"
)

// scriptedFetcher returns one scripted result per call and then repeats the last.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
	block   chan struct{}
}

type fetchResult struct {
	records []presence.Record
	err     error
}

func (f *scriptedFetcher) Fetch(ctx context.Context) ([]presence.Record, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	if len(f.results) == 0 {
		return nil, nil
	}
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i].records, f.results[i].err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func receive(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-events:
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestPoller_EmitsSnapshotsAndErrorsInOrder(t *testing.T) {
	bob := []presence.Record{{Identity: "bob", Name: "bob", State: presence.StateOnline}}
	fetcher := &scriptedFetcher{results: []fetchResult{
		{records: bob},
		{err: errors.New("connection refused")},
		{records: bob},
	}}

	p := New(fetcher, Options{Interval: 10 * time.Millisecond})
	events, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	wantKinds := []Kind{KindSnapshot, KindTransient, KindSnapshot}
	for i, want := range wantKinds {
		e := receive(t, events)
		if e.Kind() != want {
			t.Errorf("event %d kind = %v, want %v (err %v)", i, e.Kind(), want, e.Err)
		}
		if e.Time.IsZero() {
			t.Errorf("event %d has no timestamp", i)
		}
	}
}

func TestPoller_FirstFetchIsImmediate(t *testing.T) {
	fetcher := &scriptedFetcher{}
	p := New(fetcher, Options{Interval: time.Hour})

	start := time.Now()
	events, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	receive(t, events)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("first event took %v", elapsed)
	}
}

func TestPoller_PreconditionSkipsFetch(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "sentinel", err: fmt.Errorf("no token: %w", presence.ErrNotConfigured)},
		{name: "plain error is wrapped", err: errors.New("display name missing")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &scriptedFetcher{}
			p := New(fetcher, Options{
				Interval:     time.Hour,
				Precondition: func() error { return tt.err },
			})

			events, err := p.Start(context.Background())
			if err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			defer p.Stop()

			e := receive(t, events)
			if e.Kind() != KindConfiguration {
				t.Errorf("kind = %v, want configuration", e.Kind())
			}
			if !errors.Is(e.Err, presence.ErrNotConfigured) {
				t.Errorf("err = %v, want ErrNotConfigured", e.Err)
			}
			if fetcher.Calls() != 0 {
				t.Errorf("fetch called %d times, want 0", fetcher.Calls())
			}
		})
	}
}

func TestPoller_PreconditionRecheckedEachTick(t *testing.T) {
	var mu sync.Mutex
	configured := false
	fetcher := &scriptedFetcher{}
	p := New(fetcher, Options{
		Interval: 10 * time.Millisecond,
		Precondition: func() error {
			mu.Lock()
			defer mu.Unlock()
			if !configured {
				return presence.ErrNotConfigured
			}
			return nil
		},
	})

	events, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if e := receive(t, events); e.Kind() != KindConfiguration {
		t.Fatalf("first kind = %v, want configuration", e.Kind())
	}

	mu.Lock()
	configured = true
	mu.Unlock()

	deadline := time.After(time.Second)
	for {
		select {
		case e := <-events:
			if e.Kind() == KindSnapshot {
				return
			}
		case <-deadline:
			t.Fatal("poller never recovered after configuration was fixed")
		}
	}
}

func TestPoller_AuthenticationErrorKind(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: fmt.Errorf("GET /online_status/: %w", presence.ErrUnauthorized)},
	}}
	p := New(fetcher, Options{Interval: time.Hour})

	events, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if e := receive(t, events); e.Kind() != KindAuthentication {
		t.Errorf("kind = %v, want authentication", e.Kind())
	}
}

func TestPoller_InvalidSnapshotIsTransient(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{records: []presence.Record{{Identity: "a"}, {Identity: "a"}}},
	}}
	p := New(fetcher, Options{Interval: time.Hour})

	events, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if e := receive(t, events); e.Kind() != KindTransient {
		t.Errorf("kind = %v, want transient", e.Kind())
	}
}

func TestPoller_RecoversFromPanic(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	fetcher := FetcherFunc(func(ctx context.Context) ([]presence.Record, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			panic("boom")
		}
		return nil, nil
	})

	p := New(fetcher, Options{Interval: 10 * time.Millisecond})
	events, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if e := receive(t, events); e.Kind() != KindTransient {
		t.Errorf("first kind = %v, want transient", e.Kind())
	}
	if e := receive(t, events); e.Kind() != KindSnapshot {
		t.Errorf("second kind = %v, want snapshot", e.Kind())
	}
}

func TestPoller_StopDiscardsInFlightResult(t *testing.T) {
	release := make(chan struct{})
	fetcher := &scriptedFetcher{
		results: []fetchResult{{records: []presence.Record{{Identity: "bob", State: presence.StateOnline}}}},
		block:   release,
	}
	p := New(fetcher, Options{Interval: time.Hour})

	events, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait for the fetch to be in flight.
	deadline := time.Now().Add(time.Second)
	for fetcher.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	p.Stop()
	if p.Running() {
		t.Error("Running() = true after Stop")
	}
	close(release)

	select {
	case e, ok := <-events:
		if ok {
			t.Errorf("received event after Stop: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event channel was not closed after Stop")
	}
}

func TestPoller_StartTwice(t *testing.T) {
	p := New(&scriptedFetcher{}, Options{Interval: time.Hour})

	if _, err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if _, err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start error = %v, want ErrAlreadyRunning", err)
	}
}

func TestPoller_Restart(t *testing.T) {
	fetcher := &scriptedFetcher{}
	p := New(fetcher, Options{Interval: time.Hour})

	events, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	receive(t, events)
	p.Stop()
	p.Stop()

	events, err = p.Start(context.Background())
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer p.Stop()

	if e := receive(t, events); e.Kind() != KindSnapshot {
		t.Errorf("kind after restart = %v", e.Kind())
	}
	if fetcher.Calls() != 2 {
		t.Errorf("fetch calls = %d, want 2", fetcher.Calls())
	}
}

func TestPoller_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(&scriptedFetcher{}, Options{Interval: time.Hour})

	events, err := p.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	receive(t, events)
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("unexpected event after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("event channel was not closed after cancel")
	}

	deadline := time.Now().Add(time.Second)
	for p.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if p.Running() {
		t.Error("Running() = true after context cancellation")
	}
}

func TestEvent_Kind(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{err: nil, want: KindSnapshot},
		{err: presence.ErrNotConfigured, want: KindConfiguration},
		{err: fmt.Errorf("wrapped: %w", presence.ErrUnauthorized), want: KindAuthentication},
		{err: context.DeadlineExceeded, want: KindTransient},
	}

	for _, tt := range tests {
		if got := (Event{Err: tt.err}).Kind(); got != tt.want {
			t.Errorf("Kind() for %v = %v, want %v", tt.err, got, tt.want)
		}
	}
}
