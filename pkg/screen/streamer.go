package screen

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Options configure the frame streamer.
type Options struct {
	// MaxFPS bounds the pull rate from the provider.
	MaxFPS   int
	Clock    func() time.Time
	Provider Provider
	Sleeper  func(ctx context.Context, done <-chan struct{}, wait time.Duration) error
}

// Streamer pulls frames from a provider at a bounded rate, stamping
// each frame at receipt. Append order equals timestamp order.
type Streamer struct {
	interval time.Duration
	clock    func() time.Time
	provider Provider
	sleeper  func(ctx context.Context, done <-chan struct{}, wait time.Duration) error
}

// NewStreamer validates options and returns a streamer instance.
func NewStreamer(opts Options) (*Streamer, error) {
	if opts.MaxFPS <= 0 {
		return nil, errors.New("max fps must be positive")
	}
	if opts.Provider == nil {
		return nil, errors.New("frame provider must be provided")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = defaultSleeper
	}
	return &Streamer{
		interval: time.Second / time.Duration(opts.MaxFPS),
		clock:    clock,
		provider: opts.Provider,
		sleeper:  sleeper,
	}, nil
}

// Stream accumulates frames until done closes or the context is
// cancelled, returning the ordered sequence captured so far. A provider
// failure aborts the stream and surfaces the error alongside the frames
// accumulated before it.
func (s *Streamer) Stream(ctx context.Context, done <-chan struct{}) ([]Frame, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var frames []Frame
	next := s.clock()
	for {
		select {
		case <-done:
			return frames, nil
		case <-ctx.Done():
			return frames, nil
		default:
		}

		if err := s.waitForNext(ctx, done, next); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return frames, nil
			}
			return frames, err
		}

		img, err := s.provider.Grab(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return frames, nil
			}
			return frames, fmt.Errorf("grab frame: %w", err)
		}
		frames = append(frames, Frame{Image: img, Timestamp: s.clock()})
		next = next.Add(s.interval)
	}
}

func (s *Streamer) waitForNext(ctx context.Context, done <-chan struct{}, scheduled time.Time) error {
	now := s.clock()
	if !now.Before(scheduled) {
		return nil
	}
	return s.sleeper(ctx, done, scheduled.Sub(now))
}

func defaultSleeper(ctx context.Context, done <-chan struct{}, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	case <-timer.C:
		return nil
	}
}
