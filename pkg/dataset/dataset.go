package dataset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seancheey/linea-game-ai/pkg/screen"
)

// ErrDegenerateRate indicates the dataset is too short to derive an
// average frame rate. Distinct from an empty dataset, which signals
// "discard this session".
var ErrDegenerateRate = errors.New("dataset too short to compute average frame rate")

// Item is one aligned dataset row: a frame and the keys held down
// strictly before its timestamp.
type Item struct {
	Frame     screen.Frame
	Keys      []string
	Timestamp time.Time
}

// Dataset is an ordered sequence of aligned rows.
type Dataset []Item

// AverageFPS derives the export frame rate over the retained rows as
// (count-1)/(last-first). Fewer than two rows, or a zero time span,
// cannot yield a rate.
func (d Dataset) AverageFPS() (float64, error) {
	if len(d) < 2 {
		return 0, ErrDegenerateRate
	}
	span := d[len(d)-1].Timestamp.Sub(d[0].Timestamp).Seconds()
	if span <= 0 {
		return 0, ErrDegenerateRate
	}
	return float64(len(d)-1) / span, nil
}

// Encoder maps active key sets onto fixed-width multi-hot rows over the
// configured recording-key order.
type Encoder struct {
	order []string
	index map[string]int
}

// NewEncoder builds an encoder for the given key order.
func NewEncoder(order []string) (*Encoder, error) {
	if len(order) == 0 {
		return nil, errors.New("encoder key order must not be empty")
	}
	index := make(map[string]int, len(order))
	for i, key := range order {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return nil, fmt.Errorf("encoder key at position %d is empty", i)
		}
		if _, ok := index[trimmed]; ok {
			return nil, fmt.Errorf("duplicate encoder key %q", trimmed)
		}
		index[trimmed] = i
	}
	return &Encoder{order: append([]string(nil), order...), index: index}, nil
}

// Width returns the row width.
func (e *Encoder) Width() int {
	return len(e.order)
}

// Encode renders an active key set as a multi-hot row. Keys outside the
// configured order are ignored.
func (e *Encoder) Encode(active []string) []uint8 {
	row := make([]uint8, len(e.order))
	for _, key := range active {
		if i, ok := e.index[key]; ok {
			row[i] = 1
		}
	}
	return row
}
