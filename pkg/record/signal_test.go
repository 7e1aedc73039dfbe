package record

import (
	"testing"
	"time"
)

func TestSignalSetIsIdempotent(t *testing.T) {
	signal := NewSignal()
	if signal.IsSet() {
		t.Fatalf("expected new signal to be unset")
	}

	signal.Set()
	signal.Set()

	if !signal.IsSet() {
		t.Fatalf("expected signal to be set")
	}
}

func TestSignalUnblocksAllWaiters(t *testing.T) {
	signal := NewSignal()

	const waiters = 5
	done := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			<-signal.Done()
			done <- struct{}{}
		}()
	}

	select {
	case <-done:
		t.Fatalf("expected waiters to block before Set")
	case <-time.After(50 * time.Millisecond):
	}

	signal.Set()

	for i := 0; i < waiters; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("waiter %d did not unblock after Set", i)
		}
	}
}
