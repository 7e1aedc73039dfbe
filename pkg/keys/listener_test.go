package keys

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func idleSource() Source {
	return SourceFunc(func(ctx context.Context, watched []string, emit func(Event) error) error {
		<-ctx.Done()
		return ctx.Err()
	})
}

func TestNewListenerValidation(t *testing.T) {
	cases := []struct {
		name string
		opts Options
	}{
		{"no keys", Options{FinishKey: "space", Source: idleSource()}},
		{"blank keys only", Options{Keys: []string{" ", ""}, FinishKey: "space", Source: idleSource()}},
		{"no finish key", Options{Keys: []string{"w"}, Source: idleSource()}},
		{"finish key overlaps", Options{Keys: []string{"w", "space"}, FinishKey: "space", Source: idleSource()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewListener(tc.opts); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestNewListenerDeduplicatesAndTrimsKeys(t *testing.T) {
	listener, err := NewListener(Options{
		Keys:      []string{" w ", "a", "w", "a "},
		FinishKey: "space",
		Source:    idleSource(),
	})
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	want := []string{"w", "a"}
	if got := listener.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("keys mismatch: got %v, want %v", got, want)
	}
}

func TestListenSubscribesToRecordingAndFinishKeys(t *testing.T) {
	var subscribed []string
	source := SourceFunc(func(ctx context.Context, watched []string, emit func(Event) error) error {
		subscribed = append([]string(nil), watched...)
		return nil
	})

	listener, err := NewListener(Options{Keys: []string{"w", "a"}, FinishKey: "space", Source: source})
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	if _, err := listener.Listen(context.Background(), make(chan struct{})); err != nil {
		t.Fatalf("listen: %v", err)
	}

	want := []string{"w", "a", "space"}
	if !reflect.DeepEqual(subscribed, want) {
		t.Fatalf("subscription mismatch: got %v, want %v", subscribed, want)
	}
}

func TestListenStampsDeliveriesWithDelayOffset(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	source := SourceFunc(func(ctx context.Context, watched []string, emit func(Event) error) error {
		return emit(Event{Key: "w", Down: true})
	})

	listener, err := NewListener(Options{
		Keys:      []string{"w"},
		FinishKey: "space",
		Delay:     -10 * time.Millisecond,
		Clock:     fixedClock(base),
		Source:    source,
	})
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}

	events, err := listener.Listen(context.Background(), make(chan struct{}))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if want := base.Add(-10 * time.Millisecond); !events[0].Timestamp.Equal(want) {
		t.Fatalf("expected stamp %v, got %v", want, events[0].Timestamp)
	}
}

func TestListenRecordsOnlyWatchedKeys(t *testing.T) {
	source := SourceFunc(func(ctx context.Context, watched []string, emit func(Event) error) error {
		for _, e := range []Event{
			{Key: "w", Down: true},
			{Key: "x", Down: true},
			{Key: "x", Down: false},
			{Key: "w", Down: false},
		} {
			if err := emit(e); err != nil {
				return err
			}
		}
		return nil
	})

	listener, err := NewListener(Options{Keys: []string{"w"}, FinishKey: "space", Source: source})
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}

	events, err := listener.Listen(context.Background(), make(chan struct{}))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, event := range events {
		if event.Key != "w" {
			t.Fatalf("unexpected recorded key %q", event.Key)
		}
	}
}

func TestListenForwardsFinishKeyWithoutRecordingIt(t *testing.T) {
	release := make(chan struct{})
	source := SourceFunc(func(ctx context.Context, watched []string, emit func(Event) error) error {
		if err := emit(Event{Key: "space", Down: true}); err != nil {
			return err
		}
		// A second press while the trigger is still pending must not block.
		if err := emit(Event{Key: "space", Down: true}); err != nil {
			return err
		}
		close(release)
		<-ctx.Done()
		return ctx.Err()
	})

	listener, err := NewListener(Options{Keys: []string{"w"}, FinishKey: "space", Source: source})
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}

	done := make(chan struct{})
	type outcome struct {
		events []Event
		err    error
	}
	results := make(chan outcome, 1)
	go func() {
		events, err := listener.Listen(context.Background(), done)
		results <- outcome{events, err}
	}()

	select {
	case <-release:
	case <-time.After(time.Second):
		t.Fatalf("source did not deliver finish key presses")
	}
	select {
	case <-listener.Finish():
	case <-time.After(time.Second):
		t.Fatalf("finish trigger was not forwarded")
	}
	close(done)

	var got outcome
	select {
	case got = <-results:
	case <-time.After(time.Second):
		t.Fatalf("listen did not return after done closed")
	}
	if got.err != nil {
		t.Fatalf("listen: %v", got.err)
	}
	if len(got.events) != 0 {
		t.Fatalf("finish key must not be recorded, got %v", got.events)
	}
}

func TestListenIgnoresFinishKeyRelease(t *testing.T) {
	source := SourceFunc(func(ctx context.Context, watched []string, emit func(Event) error) error {
		return emit(Event{Key: "space", Down: false})
	})

	listener, err := NewListener(Options{Keys: []string{"w"}, FinishKey: "space", Source: source})
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	if _, err := listener.Listen(context.Background(), make(chan struct{})); err != nil {
		t.Fatalf("listen: %v", err)
	}

	select {
	case <-listener.Finish():
		t.Fatalf("finish key release must not trigger")
	default:
	}
}

func TestListenSurfacesBackendFailureWithPartialEvents(t *testing.T) {
	backendErr := errors.New("hook rejected")
	source := SourceFunc(func(ctx context.Context, watched []string, emit func(Event) error) error {
		if err := emit(Event{Key: "w", Down: true}); err != nil {
			return err
		}
		return backendErr
	})

	listener, err := NewListener(Options{Keys: []string{"w"}, FinishKey: "space", Source: source})
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}

	events, err := listener.Listen(context.Background(), make(chan struct{}))
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if !strings.Contains(err.Error(), "stream key events") {
		t.Fatalf("expected stream context in error, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected partial events to be returned, got %d", len(events))
	}
}

func TestListenReturnsCleanlyOnContextCancel(t *testing.T) {
	source := SourceFunc(func(ctx context.Context, watched []string, emit func(Event) error) error {
		if err := emit(Event{Key: "w", Down: true}); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})

	listener, err := NewListener(Options{Keys: []string{"w"}, FinishKey: "space", Source: source})
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	events, err := listener.Listen(ctx, make(chan struct{}))
	if err != nil {
		t.Fatalf("expected clean return on cancellation, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected accumulated events on cancel, got %d", len(events))
	}
}
