package record

import "sync"

// Signal is a write-once broadcast flag shared by the capture tasks.
// Setting it is idempotent; any number of observers may block on Done
// or poll IsSet. No data is carried, only the transition.
type Signal struct {
	once sync.Once
	done chan struct{}
}

// NewSignal constructs an unset signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Set transitions the signal to its terminal state. Repeated calls are
// no-ops.
func (s *Signal) Set() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Done returns a channel closed once the signal is set.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// IsSet reports whether the signal has fired.
func (s *Signal) IsSet() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
