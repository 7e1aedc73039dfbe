package merge

import (
	"errors"
	"sort"
	"time"

	"github.com/Seancheey/linea-game-ai/pkg/dataset"
	"github.com/Seancheey/linea-game-ai/pkg/keys"
	"github.com/Seancheey/linea-game-ai/pkg/screen"
)

// Result reports the aligned dataset and what the merge discarded along
// the way. An empty Items with a nil error means the session should be
// discarded, not that something failed.
type Result struct {
	Items dataset.Dataset
	// UnmatchedReleases counts "up" transitions observed without a
	// matching "down" in the active set. These are ignored: a key
	// already held when recording starts, or a dropped "down", must
	// not abort the session.
	UnmatchedReleases int
	// TailDropped counts frames discarded past the cutoff.
	TailDropped int
	// TrailingEvents counts key events left unconsumed after the last
	// retained frame.
	TrailingEvents int
	// Resorted reports that an input sequence arrived out of timestamp
	// order and was defensively stable-sorted before merging.
	Resorted bool
}

// Align fuses the two finished sequences into causally-ordered dataset
// rows: for every retained frame, the keys whose (offset-compensated)
// transitions have timestamps strictly before the frame's timestamp.
// Frames later than lastFrame-discardTail are dropped so the user's
// closing action is never presented as training signal.
//
// Pure function of its inputs: re-running on the same sequences yields
// an identical result. Correctness depends on each input being
// non-decreasing in timestamp, which holds by construction of the
// producers; inputs found out of order are stable-sorted first.
func Align(events []keys.Event, frames []screen.Frame, discardTail time.Duration) (Result, error) {
	if discardTail < 0 {
		return Result{}, errors.New("discard tail duration must not be negative")
	}

	result := Result{}
	if len(frames) == 0 {
		return result, nil
	}

	events, eventsSorted := sortedEvents(events)
	frames, framesSorted := sortedFrames(frames)
	result.Resorted = eventsSorted || framesSorted

	cutoff := frames[len(frames)-1].Timestamp.Add(-discardTail)

	active := make(map[string]struct{})
	ki, fi := 0, 0
	for fi < len(frames) {
		if ki < len(events) && events[ki].Timestamp.Before(frames[fi].Timestamp) {
			event := events[ki]
			if event.Down {
				active[event.Key] = struct{}{}
			} else if _, held := active[event.Key]; held {
				delete(active, event.Key)
			} else {
				result.UnmatchedReleases++
			}
			ki++
			continue
		}

		frame := frames[fi]
		if frame.Timestamp.After(cutoff) {
			break
		}
		result.Items = append(result.Items, dataset.Item{
			Frame:     frame,
			Keys:      snapshot(active),
			Timestamp: frame.Timestamp,
		})
		fi++
	}

	result.TailDropped = len(frames) - fi
	result.TrailingEvents = len(events) - ki
	return result, nil
}

// snapshot copies the active set, sorted so identical inputs always
// produce identical rows.
func snapshot(active map[string]struct{}) []string {
	if len(active) == 0 {
		return nil
	}
	out := make([]string, 0, len(active))
	for key := range active {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func sortedEvents(events []keys.Event) ([]keys.Event, bool) {
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			copied := append([]keys.Event(nil), events...)
			sort.SliceStable(copied, func(a, b int) bool {
				return copied[a].Timestamp.Before(copied[b].Timestamp)
			})
			return copied, true
		}
	}
	return events, false
}

func sortedFrames(frames []screen.Frame) ([]screen.Frame, bool) {
	for i := 1; i < len(frames); i++ {
		if frames[i].Timestamp.Before(frames[i-1].Timestamp) {
			copied := append([]screen.Frame(nil), frames...)
			sort.SliceStable(copied, func(a, b int) bool {
				return copied[a].Timestamp.Before(copied[b].Timestamp)
			})
			return copied, true
		}
	}
	return frames, false
}
