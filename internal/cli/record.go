package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Seancheey/linea-game-ai/internal/telemetry"
	"github.com/Seancheey/linea-game-ai/pkg/catalog"
	"github.com/Seancheey/linea-game-ai/pkg/config"
	"github.com/Seancheey/linea-game-ai/pkg/dataset"
	"github.com/Seancheey/linea-game-ai/pkg/export"
	"github.com/Seancheey/linea-game-ai/pkg/keys"
	"github.com/Seancheey/linea-game-ai/pkg/merge"
	"github.com/Seancheey/linea-game-ai/pkg/record"
	"github.com/Seancheey/linea-game-ai/pkg/screen"
)

func newRecordCmd(app *App) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Run recording sessions until interrupted",
		Long:  "Starts a capture session immediately. Pressing the finish key ends the\ncurrent session, exports it, and begins the next one. Interrupt (Ctrl+C)\nto stop recording entirely.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stopNotify := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stopNotify()
			return runRecordLoop(ctx, app, once, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Record a single session and exit")
	return cmd
}

// runRecordLoop acquires the long-lived resources and cycles sessions.
// A failed or empty session is reported and the loop moves on to the
// next one; only setup errors abort the loop.
func runRecordLoop(ctx context.Context, app *App, once bool, stdout io.Writer) error {
	cfg := app.Config

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init("linea-recorder", app.Logger)
		if err != nil {
			return fmt.Errorf("initialise telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				app.Logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}

	store, err := catalog.Open(cfg.Paths.CatalogPath)
	if err != nil {
		return fmt.Errorf("open session catalog: %w", err)
	}
	defer store.Close()

	encoder, err := dataset.NewEncoder(cfg.Capture.Keys)
	if err != nil {
		return fmt.Errorf("build key encoder: %w", err)
	}

	exporter, err := export.NewExporter(export.Options{
		DataDir: cfg.Paths.DataDir,
		Encoder: encoder,
	})
	if err != nil {
		return fmt.Errorf("build session exporter: %w", err)
	}

	provider, err := screen.NewDisplayProvider(screen.Region(cfg.Capture.Region))
	if err != nil {
		return fmt.Errorf("initialise screen capture: %w", err)
	}

	fmt.Fprintf(stdout, "Recording keys %v; press %q to finish a session, Ctrl+C to quit.\n",
		cfg.Capture.Keys, cfg.Capture.FinishKey)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := runSession(ctx, app, provider, exporter, store, stdout); err != nil {
			// Backend failures abort the session, never the loop.
			app.Logger.Error("session failed", "error", err)
			fmt.Fprintf(stdout, "session failed: %v\n", err)
		}
		if once || ctx.Err() != nil {
			return nil
		}
	}
}

func runSession(ctx context.Context, app *App, provider screen.Provider, exporter *export.Exporter, store *catalog.Store, stdout io.Writer) error {
	cfg := app.Config
	tracer := otel.Tracer("recorder")

	ctx, span := tracer.Start(ctx, "record.session")
	defer span.End()

	streamer, err := screen.NewStreamer(screen.Options{
		MaxFPS:   cfg.Capture.MaxFPS,
		Provider: provider,
	})
	if err != nil {
		return fmt.Errorf("build frame streamer: %w", err)
	}
	listener, err := keys.NewListener(keys.Options{
		Keys:      cfg.Capture.Keys,
		FinishKey: cfg.Capture.FinishKey,
		Delay:     cfg.Capture.KeyDelay(),
	})
	if err != nil {
		return fmt.Errorf("build key listener: %w", err)
	}
	recorder, err := record.NewRecorder(record.Options{
		Streamer: streamer,
		Listener: listener,
		Logger:   app.Logger,
	})
	if err != nil {
		return fmt.Errorf("build recorder: %w", err)
	}

	captureCtx, captureSpan := tracer.Start(ctx, "record.capture")
	capture, err := recorder.Record(captureCtx)
	captureSpan.SetAttributes(
		attribute.Int("frames", len(capture.Frames)),
		attribute.Int("key_events", len(capture.Events)),
	)
	captureSpan.End()
	if err != nil {
		recordOutcome(ctx, app, store, catalog.Session{
			StartedAt:     capture.StartedAt,
			EndedAt:       capture.FinishedAt,
			FrameCount:    len(capture.Frames),
			KeyEventCount: len(capture.Events),
			Status:        catalog.StatusFailed,
			Message:       err.Error(),
		})
		return err
	}
	if ctx.Err() != nil {
		app.Logger.Info("interrupted, discarding session")
		recordOutcome(ctx, app, store, discardedSession(capture, 0, "interrupted"))
		return nil
	}

	aligned, err := alignCapture(ctx, tracer, cfg.Capture, capture)
	if err != nil {
		recordOutcome(ctx, app, store, discardedSession(capture, 0, err.Error()))
		return err
	}
	if aligned.Resorted {
		app.Logger.Warn("capture sequences arrived out of timestamp order, sorted defensively")
	}
	if aligned.UnmatchedReleases > 0 {
		app.Logger.Warn("ignored key releases without a matching press", "count", aligned.UnmatchedReleases)
	}

	if len(aligned.Items) == 0 {
		app.Logger.Info("session discarded (too short / empty)", "frames", len(capture.Frames))
		fmt.Fprintln(stdout, "session discarded: no content left after tail discard")
		recordOutcome(ctx, app, store, discardedSession(capture, 0, "empty merged dataset"))
		return nil
	}

	exportCtx, exportSpan := tracer.Start(ctx, "record.export")
	result, err := exporter.Export(exportCtx, aligned.Items)
	exportSpan.End()
	if err != nil {
		if errors.Is(err, dataset.ErrDegenerateRate) {
			app.Logger.Info("session discarded (too short / empty)", "items", len(aligned.Items))
			fmt.Fprintln(stdout, "session discarded: too short to derive a frame rate")
			recordOutcome(ctx, app, store, discardedSession(capture, len(aligned.Items), err.Error()))
			return nil
		}
		recordOutcome(ctx, app, store, catalog.Session{
			StartedAt:     capture.StartedAt,
			EndedAt:       capture.FinishedAt,
			FrameCount:    len(capture.Frames),
			KeyEventCount: len(capture.Events),
			ItemCount:     len(aligned.Items),
			Status:        catalog.StatusFailed,
			Message:       err.Error(),
		})
		return fmt.Errorf("export session: %w", err)
	}

	recordOutcome(ctx, app, store, catalog.Session{
		StartedAt:     capture.StartedAt,
		EndedAt:       capture.FinishedAt,
		FrameCount:    len(capture.Frames),
		KeyEventCount: len(capture.Events),
		ItemCount:     result.Items,
		AverageFPS:    result.AverageFPS,
		Status:        catalog.StatusExported,
		ExportDir:     result.Dir,
	})

	app.Logger.Info("session exported",
		"dir", result.Dir,
		"items", result.Items,
		"average_fps", fmt.Sprintf("%.2f", result.AverageFPS),
		"tail_dropped", aligned.TailDropped,
		"trailing_events", aligned.TrailingEvents)
	fmt.Fprintf(stdout, "saved %d items to %s (average fps %.2f)\n", result.Items, result.Dir, result.AverageFPS)
	return nil
}

func alignCapture(ctx context.Context, tracer trace.Tracer, cfg config.CaptureConfig, capture record.Capture) (merge.Result, error) {
	_, span := tracer.Start(ctx, "record.merge")
	defer span.End()

	aligned, err := merge.Align(capture.Events, capture.Frames, cfg.DiscardTail())
	if err != nil {
		return merge.Result{}, fmt.Errorf("align capture streams: %w", err)
	}
	span.SetAttributes(
		attribute.Int("items", len(aligned.Items)),
		attribute.Int("tail_dropped", aligned.TailDropped),
		attribute.Int("unmatched_releases", aligned.UnmatchedReleases),
	)
	return aligned, nil
}

func discardedSession(capture record.Capture, items int, message string) catalog.Session {
	return catalog.Session{
		StartedAt:     capture.StartedAt,
		EndedAt:       capture.FinishedAt,
		FrameCount:    len(capture.Frames),
		KeyEventCount: len(capture.Events),
		ItemCount:     items,
		Status:        catalog.StatusDiscarded,
		Message:       message,
	}
}

// recordOutcome writes the catalog row on a best-effort basis: a
// catalog hiccup must not turn a finished session into a failure.
func recordOutcome(ctx context.Context, app *App, store *catalog.Store, session catalog.Session) {
	writeCtx := ctx
	if writeCtx.Err() != nil {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if _, err := store.RecordSession(writeCtx, session); err != nil {
		app.Logger.Warn("failed to record session in catalog", "error", err)
	}
}
