package screen

import (
	"context"
	"image"
	"time"
)

// Frame is one captured image stamped at the moment it was received.
type Frame struct {
	Image     *image.RGBA
	Timestamp time.Time
}

// Provider produces raw frames for the streamer.
type Provider interface {
	Grab(ctx context.Context) (*image.RGBA, error)
}

// ProviderFunc adapts a function literal to the Provider interface.
type ProviderFunc func(ctx context.Context) (*image.RGBA, error)

// Grab calls the underlying function.
func (f ProviderFunc) Grab(ctx context.Context) (*image.RGBA, error) {
	return f(ctx)
}

// Region selects the screen area to capture. A zero-size region means
// the full bounds of the first display.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// IsZero reports whether the region selects the default display bounds.
func (r Region) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}
