package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Seancheey/linea-game-ai/pkg/keys"
	"github.com/Seancheey/linea-game-ai/pkg/screen"
)

// Options controls capture orchestration.
type Options struct {
	Streamer *screen.Streamer
	Listener *keys.Listener
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Capture holds the two ordered sequences produced by one session.
type Capture struct {
	Frames     []screen.Frame
	Events     []keys.Event
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder runs the frame producer, the key producer, and the
// termination watcher concurrently, joined by one shared stop signal.
// Each producer owns its accumulation buffer exclusively; the merge
// stage runs strictly after both have returned.
type Recorder struct {
	streamer *screen.Streamer
	listener *keys.Listener
	logger   *slog.Logger
	clock    func() time.Time
}

// NewRecorder validates options and constructs a recorder instance.
func NewRecorder(opts Options) (*Recorder, error) {
	if opts.Streamer == nil {
		return nil, errors.New("frame streamer must be provided")
	}
	if opts.Listener == nil {
		return nil, errors.New("key listener must be provided")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger must be provided")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{
		streamer: opts.Streamer,
		listener: opts.Listener,
		logger:   opts.Logger,
		clock:    clock,
	}, nil
}

// Record runs one session to completion. It returns only after both
// producers have observed the stop signal and drained. If either
// producer fails, the group context stops the other and the first
// error is surfaced; no partial export happens upstream of that error.
func (r *Recorder) Record(ctx context.Context) (Capture, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	stop := NewSignal()
	defer stop.Set()

	started := r.clock()
	group, gctx := errgroup.WithContext(ctx)

	var frames []screen.Frame
	var events []keys.Event

	group.Go(func() error {
		seq, err := r.streamer.Stream(gctx, stop.Done())
		frames = seq
		if err != nil {
			return fmt.Errorf("frame capture: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		seq, err := r.listener.Listen(gctx, stop.Done())
		events = seq
		if err != nil {
			return fmt.Errorf("key capture: %w", err)
		}
		return nil
	})

	// The watcher is the only task that sets the signal under normal
	// termination.
	group.Go(func() error {
		select {
		case <-r.listener.Finish():
			r.logger.Info("finish key observed, stopping capture")
			stop.Set()
		case <-gctx.Done():
		}
		return nil
	})

	err := group.Wait()
	capture := Capture{
		Frames:     frames,
		Events:     events,
		StartedAt:  started,
		FinishedAt: r.clock(),
	}
	if err != nil {
		return capture, err
	}

	r.logger.Info("capture session complete",
		"frames", len(capture.Frames),
		"key_events", len(capture.Events),
		"duration", capture.FinishedAt.Sub(capture.StartedAt).Round(time.Millisecond).String())
	return capture, nil
}
