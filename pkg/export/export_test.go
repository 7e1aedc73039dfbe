package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Seancheey/linea-game-ai/pkg/dataset"
	"github.com/Seancheey/linea-game-ai/pkg/screen"
)

func testEncoder(t *testing.T) *dataset.Encoder {
	t.Helper()
	encoder, err := dataset.NewEncoder([]string{"w", "a"})
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	return encoder
}

func testImage(fill color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	return img
}

func testItems() dataset.Dataset {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return dataset.Dataset{
		{
			Frame:     screen.Frame{Image: testImage(color.RGBA{R: 255, A: 255}), Timestamp: base},
			Keys:      []string{"w"},
			Timestamp: base,
		},
		{
			Frame:     screen.Frame{Image: testImage(color.RGBA{G: 255, A: 255}), Timestamp: base.Add(100 * time.Millisecond)},
			Keys:      nil,
			Timestamp: base.Add(100 * time.Millisecond),
		},
	}
}

func TestNewExporterValidation(t *testing.T) {
	if _, err := NewExporter(Options{Encoder: testEncoder(t)}); err == nil {
		t.Fatalf("expected error for missing data directory")
	}
	if _, err := NewExporter(Options{DataDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for missing encoder")
	}
}

func TestExportWritesSessionDirectory(t *testing.T) {
	dataDir := t.TempDir()
	stamp := time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC)

	exporter, err := NewExporter(Options{
		DataDir: dataDir,
		Encoder: testEncoder(t),
		Clock:   func() time.Time { return stamp },
	})
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	result, err := exporter.Export(context.Background(), testItems())
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	wantDir := filepath.Join(dataDir, "20240601-123045")
	if result.Dir != wantDir {
		t.Fatalf("expected session dir %q, got %q", wantDir, result.Dir)
	}
	if result.Items != 2 {
		t.Fatalf("expected 2 items, got %d", result.Items)
	}
	// 2 rows spanning 100ms: one 100ms interval.
	if result.AverageFPS != 10.0 {
		t.Fatalf("expected 10 fps, got %v", result.AverageFPS)
	}

	for _, path := range []string{result.ScreensPath, result.KeysPath} {
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if !bytes.HasPrefix(raw, []byte("\x93NUMPY")) {
			t.Fatalf("%s is not a npy file", path)
		}
	}

	info, err := os.Stat(result.VideoPath)
	if err != nil {
		t.Fatalf("stat video: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected non-empty video file")
	}
}

func TestExportRefusesEmptyDataset(t *testing.T) {
	exporter, err := NewExporter(Options{DataDir: t.TempDir(), Encoder: testEncoder(t)})
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if _, err := exporter.Export(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty dataset")
	}
}

func TestExportDegenerateRateLeavesNoSessionBehind(t *testing.T) {
	dataDir := t.TempDir()
	exporter, err := NewExporter(Options{DataDir: dataDir, Encoder: testEncoder(t)})
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	single := testItems()[:1]
	if _, err := exporter.Export(context.Background(), single); !errors.Is(err, dataset.ErrDegenerateRate) {
		t.Fatalf("expected ErrDegenerateRate, got %v", err)
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		t.Fatalf("read data dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no session directory, found %d entries", len(entries))
	}
}

func TestExportRejectsMixedFrameDimensions(t *testing.T) {
	exporter, err := NewExporter(Options{DataDir: t.TempDir(), Encoder: testEncoder(t)})
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	items := testItems()
	items[1].Frame.Image = image.NewRGBA(image.Rect(0, 0, 8, 8))
	if _, err := exporter.Export(context.Background(), items); err == nil {
		t.Fatalf("expected error for mixed frame dimensions")
	}
}
