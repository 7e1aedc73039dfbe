package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/icza/mjpeg"
	"github.com/kshedden/gonpy"

	"github.com/Seancheey/linea-game-ai/pkg/dataset"
)

const (
	screensFileName = "screens.npy"
	keysFileName    = "keys.npy"
	videoFileName   = "video.avi"

	jpegQuality = 90
)

// Options configure the session exporter.
type Options struct {
	// DataDir is the root under which each session gets its own
	// timestamped directory.
	DataDir string
	// Encoder renders active key sets into fixed-width rows.
	Encoder *dataset.Encoder
	Clock   func() time.Time
}

// Exporter persists an aligned dataset as stacked arrays plus a video
// preview encoded at the dataset's computed average frame rate.
type Exporter struct {
	dataDir string
	encoder *dataset.Encoder
	clock   func() time.Time
}

// Result summarises where a session was written.
type Result struct {
	Dir         string
	ScreensPath string
	KeysPath    string
	VideoPath   string
	AverageFPS  float64
	Items       int
}

// NewExporter validates options and constructs an exporter instance.
func NewExporter(opts Options) (*Exporter, error) {
	if opts.DataDir == "" {
		return nil, errors.New("data directory must not be empty")
	}
	if opts.Encoder == nil {
		return nil, errors.New("key encoder must be provided")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Exporter{dataDir: opts.DataDir, encoder: opts.Encoder, clock: clock}, nil
}

// Export writes the dataset into a fresh session directory. The rate
// guard runs before any file is created so a degenerate dataset never
// leaves a half-written session behind.
func (e *Exporter) Export(ctx context.Context, items dataset.Dataset) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(items) == 0 {
		return Result{}, errors.New("refusing to export an empty dataset")
	}

	fps, err := items.AverageFPS()
	if err != nil {
		return Result{}, fmt.Errorf("derive export frame rate: %w", err)
	}

	width, height, err := frameDimensions(items)
	if err != nil {
		return Result{}, err
	}

	dir := filepath.Join(e.dataDir, e.clock().Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("ensure session directory: %w", err)
	}

	result := Result{
		Dir:         dir,
		ScreensPath: filepath.Join(dir, screensFileName),
		KeysPath:    filepath.Join(dir, keysFileName),
		VideoPath:   filepath.Join(dir, videoFileName),
		AverageFPS:  fps,
		Items:       len(items),
	}

	if err := e.writeScreens(ctx, result.ScreensPath, items, width, height); err != nil {
		return Result{}, err
	}
	if err := e.writeKeys(result.KeysPath, items); err != nil {
		return Result{}, err
	}
	if err := e.writeVideo(ctx, result.VideoPath, items, width, height, fps); err != nil {
		return Result{}, err
	}
	return result, nil
}

// writeScreens stacks the frames into one (N,H,W,4) uint8 RGBA array.
func (e *Exporter) writeScreens(ctx context.Context, path string, items dataset.Dataset, width, height int) error {
	rowBytes := width * 4
	stacked := make([]uint8, 0, len(items)*height*rowBytes)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		img := item.Frame.Image
		for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
			offset := img.PixOffset(img.Rect.Min.X, y)
			stacked = append(stacked, img.Pix[offset:offset+rowBytes]...)
		}
	}

	writer, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("create screens array: %w", err)
	}
	writer.Shape = []int{len(items), height, width, 4}
	if err := writer.WriteUint8(stacked); err != nil {
		return fmt.Errorf("write screens array: %w", err)
	}
	return nil
}

// writeKeys stacks the per-item key encodings into one (N,K) uint8 array.
func (e *Exporter) writeKeys(path string, items dataset.Dataset) error {
	stacked := make([]uint8, 0, len(items)*e.encoder.Width())
	for _, item := range items {
		stacked = append(stacked, e.encoder.Encode(item.Keys)...)
	}

	writer, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("create keys array: %w", err)
	}
	writer.Shape = []int{len(items), e.encoder.Width()}
	if err := writer.WriteUint8(stacked); err != nil {
		return fmt.Errorf("write keys array: %w", err)
	}
	return nil
}

// writeVideo encodes the frames as an MJPEG AVI at the average rate.
func (e *Exporter) writeVideo(ctx context.Context, path string, items dataset.Dataset, width, height int, fps float64) error {
	rate := int32(math.Round(fps))
	if rate < 1 {
		rate = 1
	}
	writer, err := mjpeg.New(path, int32(width), int32(height), rate)
	if err != nil {
		return fmt.Errorf("create video file: %w", err)
	}

	var buf bytes.Buffer
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			writer.Close()
			return err
		}
		buf.Reset()
		if err := jpeg.Encode(&buf, item.Frame.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
			writer.Close()
			return fmt.Errorf("encode video frame: %w", err)
		}
		if err := writer.AddFrame(buf.Bytes()); err != nil {
			writer.Close()
			return fmt.Errorf("append video frame: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalise video file: %w", err)
	}
	return nil
}

func frameDimensions(items dataset.Dataset) (int, int, error) {
	first := items[0].Frame.Image
	if first == nil {
		return 0, 0, errors.New("dataset item holds no frame image")
	}
	width, height := first.Rect.Dx(), first.Rect.Dy()
	for i, item := range items {
		img := item.Frame.Image
		if img == nil {
			return 0, 0, fmt.Errorf("dataset item %d holds no frame image", i)
		}
		if img.Rect.Dx() != width || img.Rect.Dy() != height {
			return 0, 0, fmt.Errorf("dataset item %d is %dx%d, expected %dx%d",
				i, img.Rect.Dx(), img.Rect.Dy(), width, height)
		}
	}
	if width <= 0 || height <= 0 {
		return 0, 0, errors.New("frame dimensions must be positive")
	}
	return width, height, nil
}
