package keys

import (
	"context"

	hook "github.com/robotn/gohook"
)

// hookSource streams transitions from the OS-global keyboard hook.
// Only one hook may be active per process, so the listener subscribes
// once with the union of all watched keys.
type hookSource struct{}

func defaultSource() Source {
	return hookSource{}
}

// Stream registers the global hook and forwards down/up transitions for
// the subscribed keys until the context is cancelled. The hook is
// unregistered on every exit path.
func (hookSource) Stream(ctx context.Context, keys []string, emit func(Event) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	watched := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		watched[key] = struct{}{}
	}

	deliveries := hook.Start()
	defer hook.End()

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks the range below by closing the delivery channel.
			hook.End()
		case <-stopped:
		}
	}()

	for delivery := range deliveries {
		var down bool
		switch delivery.Kind {
		case hook.KeyDown:
			down = true
		case hook.KeyUp:
			down = false
		default:
			// KeyHold is auto-repeat, not a transition.
			continue
		}
		name := hook.RawcodetoKeychar(delivery.Rawcode)
		if _, ok := watched[name]; !ok {
			continue
		}
		if err := emit(Event{Key: name, Down: down}); err != nil {
			return err
		}
	}
	return ctx.Err()
}
