package replay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/celltrack/internal/tracking"
	"github.com/banshee-data/celltrack/internal/tracking/debug"
)

// FrameResult is what a Sink receives after each Update.
type FrameResult struct {
	Frame        Frame
	TrackerFrame uint64
	Active       tracking.ActiveTracks
	Debug        *debug.DebugFrame // nil unless a collector is enabled
}

// Sink consumes per-frame results. Returning an error stops the replay.
type Sink func(ctx context.Context, res FrameResult) error

// Runner drives a tracker from a detection stream.
type Runner struct {
	Tracker *tracking.Tracker
	Debug   *debug.DebugCollector
	Sink    Sink
}

// Run replays r through tracker, calling sink (which may be nil) after
// every frame. It returns the number of frames processed.
func Run(ctx context.Context, r io.Reader, tracker *tracking.Tracker, sink Sink) (int, error) {
	runner := &Runner{Tracker: tracker, Sink: sink}
	return runner.Run(ctx, r)
}

// Run processes frames until EOF, the first error, or ctx is done.
// Cancellation is checked between frames.
func (rn *Runner) Run(ctx context.Context, r io.Reader) (int, error) {
	if rn.Tracker == nil {
		return 0, errors.New("replay: nil tracker")
	}
	if rn.Debug != nil {
		rn.Tracker.DebugCollector = rn.Debug
	}

	dec := NewDecoder(r)
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return processed, nil
		}
		if err != nil {
			return processed, err
		}

		if rn.Debug != nil {
			rn.Debug.BeginFrame(rn.Tracker.FrameNumber() + 1)
		}
		active, err := rn.Tracker.Update(frame.Detections)
		if err != nil {
			if rn.Debug != nil {
				rn.Debug.Reset()
			}
			return processed, &DecodeError{Line: frame.Line, Err: err}
		}
		processed++

		res := FrameResult{
			Frame:        frame,
			TrackerFrame: rn.Tracker.FrameNumber(),
			Active:       active,
		}
		if rn.Debug != nil {
			res.Debug = rn.Debug.Emit()
		}
		if rn.Sink != nil {
			if err := rn.Sink(ctx, res); err != nil {
				return processed, fmt.Errorf("sink frame %d: %w", res.TrackerFrame, err)
			}
		}
	}
}
