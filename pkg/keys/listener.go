package keys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Options controls listener behaviour.
type Options struct {
	// Keys is the set of keys whose transitions are recorded.
	Keys []string
	// FinishKey terminates the session when pressed. It is watched on
	// the same subscription but never recorded.
	FinishKey string
	// Delay is added to every delivery timestamp to compensate for hook
	// latency. Typically a small negative duration.
	Delay  time.Duration
	Clock  func() time.Time
	Source Source
}

// Listener turns a callback-driven key source into an ordered event
// sequence. Sequence order is defined as delivery order; the merge
// stage depends on delivery order being non-decreasing in timestamp.
type Listener struct {
	keys    []string
	watched map[string]struct{}
	finish  string
	delay   time.Duration
	clock   func() time.Time
	source  Source
	trigger chan struct{}
}

// NewListener validates options and constructs a listener instance.
func NewListener(opts Options) (*Listener, error) {
	watched := make(map[string]struct{}, len(opts.Keys))
	cleaned := make([]string, 0, len(opts.Keys))
	for _, key := range opts.Keys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		if _, ok := watched[trimmed]; ok {
			continue
		}
		watched[trimmed] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	if len(cleaned) == 0 {
		return nil, errors.New("at least one recording key must be provided")
	}
	finish := strings.TrimSpace(opts.FinishKey)
	if finish == "" {
		return nil, errors.New("finish key must not be empty")
	}
	if _, ok := watched[finish]; ok {
		return nil, fmt.Errorf("finish key %q must not be part of the recording keys", finish)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	source := opts.Source
	if source == nil {
		source = defaultSource()
	}
	return &Listener{
		keys:    cleaned,
		watched: watched,
		finish:  finish,
		delay:   opts.Delay,
		clock:   clock,
		source:  source,
		trigger: make(chan struct{}, 1),
	}, nil
}

// Keys returns the recording key set in configuration order.
func (l *Listener) Keys() []string {
	return append([]string(nil), l.keys...)
}

// Finish delivers one value when the finish key goes down.
func (l *Listener) Finish() <-chan struct{} {
	return l.trigger
}

// Listen subscribes to the union of the recording keys and the finish
// key and accumulates recording-key transitions until done closes, the
// context is cancelled, or the backend fails. Each delivery is stamped
// at the moment it is received plus the configured delay. The
// accumulated sequence is returned in all cases, drained up to the
// point the subscription ended.
func (l *Listener) Listen(ctx context.Context, done <-chan struct{}) ([]Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var recorded []Event
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.source.Stream(streamCtx, l.subscription(), func(event Event) error {
			event.Timestamp = l.clock().Add(l.delay)
			if event.Key == l.finish {
				if event.Down {
					select {
					case l.trigger <- struct{}{}:
					default:
					}
				}
				return nil
			}
			if _, ok := l.watched[event.Key]; !ok {
				return nil
			}
			recorded = append(recorded, event)
			return nil
		})
	}()

	var streamErr error
	returned := false
	select {
	case <-done:
	case <-ctx.Done():
	case streamErr = <-errCh:
		returned = true
	}
	cancel()
	if !returned {
		streamErr = <-errCh
	}

	if streamErr != nil && !errors.Is(streamErr, context.Canceled) && !errors.Is(streamErr, context.DeadlineExceeded) {
		return recorded, fmt.Errorf("stream key events: %w", streamErr)
	}
	return recorded, nil
}

func (l *Listener) subscription() []string {
	return append(l.Keys(), l.finish)
}
