package keys

import (
	"context"
	"time"
)

// Event describes a single key transition.
type Event struct {
	Key       string
	Timestamp time.Time
	Down      bool
}

// Source emits key transitions for a set of subscribed keys. Stream
// blocks until the context is cancelled or the backend fails; emit is
// invoked from the delivery goroutine in arrival order. Sources may
// leave Timestamp zero; the listener stamps events at receipt.
type Source interface {
	Stream(ctx context.Context, keys []string, emit func(Event) error) error
}

// SourceFunc adapts a function literal to the Source interface.
type SourceFunc func(ctx context.Context, keys []string, emit func(Event) error) error

// Stream calls the underlying function.
func (f SourceFunc) Stream(ctx context.Context, keys []string, emit func(Event) error) error {
	return f(ctx, keys, emit)
}
