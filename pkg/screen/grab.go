package screen

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ErrNoDisplay indicates no active display is available for capture.
var ErrNoDisplay = errors.New("no active display available for screen capture")

type displayProvider struct {
	bounds image.Rectangle
}

// NewDisplayProvider resolves the capture rectangle and returns a
// provider backed by the OS screen-capture facility.
func NewDisplayProvider(region Region) (Provider, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, ErrNoDisplay
	}
	bounds := screenshot.GetDisplayBounds(0)
	if !region.IsZero() {
		if region.Width < 0 || region.Height < 0 {
			return nil, fmt.Errorf("capture region %dx%d must not be negative", region.Width, region.Height)
		}
		bounds = image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
	}
	return &displayProvider{bounds: bounds}, nil
}

// Grab captures the configured rectangle.
func (p *displayProvider) Grab(ctx context.Context) (*image.RGBA, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	img, err := screenshot.CaptureRect(p.bounds)
	if err != nil {
		return nil, fmt.Errorf("capture display region: %w", err)
	}
	return img, nil
}
