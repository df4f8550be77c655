package replay

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/celltrack/internal/testutil"
	"github.com/banshee-data/celltrack/internal/tracking"
	"github.com/banshee-data/celltrack/internal/tracking/debug"
)

func movingStream(t *testing.T, frames int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for i, dets := range testutil.LinearPath(10, 50, 3, 0, frames) {
		require.NoError(t, EncodeFrame(&buf, uint64(i+1), dets))
	}
	return &buf
}

func TestRun_DrivesTracker(t *testing.T) {
	tracker := tracking.NewTracker(tracking.DefaultTrackerConfig())

	var results []FrameResult
	n, err := Run(context.Background(), movingStream(t, 6), tracker, func(_ context.Context, res FrameResult) error {
		results = append(results, res)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	require.Len(t, results, 6)

	for i, res := range results {
		assert.Equal(t, uint64(i+1), res.TrackerFrame)
		assert.Nil(t, res.Debug)
	}
	// Confirmed once the track has three detections.
	assert.Empty(t, results[1].Active)
	require.Len(t, results[5].Active, 1)
	assert.Equal(t, uint64(0), results[5].Active[0].ID)
	assert.Equal(t, 6, results[5].Active[0].TotalDetections)

	stats := tracker.Statistics()
	assert.Equal(t, 1, stats.TotalTracked)
	assert.Equal(t, uint64(6), stats.FrameNumber)
}

func TestRun_NilSink(t *testing.T) {
	tracker := tracking.NewTracker(tracking.DefaultTrackerConfig())
	n, err := Run(context.Background(), movingStream(t, 3), tracker, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRun_StopsOnDecodeError(t *testing.T) {
	tracker := tracking.NewTracker(tracking.DefaultTrackerConfig())
	input := `{"detections":[{"centroid":[1,2],"bbox":[0,0,2,2]}]}
{"detections":[{"bbox":[0,0,2,2]}]}
{"detections":[]}
`
	n, err := Run(context.Background(), strings.NewReader(input), tracker, nil)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(1), tracker.FrameNumber())

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, 2, decErr.Line)
}

func TestRun_SinkError(t *testing.T) {
	tracker := tracking.NewTracker(tracking.DefaultTrackerConfig())
	errStop := errors.New("stop")

	n, err := Run(context.Background(), movingStream(t, 5), tracker, func(_ context.Context, res FrameResult) error {
		if res.TrackerFrame == 2 {
			return errStop
		}
		return nil
	})
	assert.True(t, errors.Is(err, errStop))
	assert.Equal(t, 2, n)
}

func TestRun_Cancelled(t *testing.T) {
	tracker := tracking.NewTracker(tracking.DefaultTrackerConfig())
	ctx, cancel := context.WithCancel(context.Background())

	n, err := Run(ctx, movingStream(t, 10), tracker, func(_ context.Context, res FrameResult) error {
		if res.TrackerFrame == 3 {
			cancel()
		}
		return nil
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(3), tracker.FrameNumber())
}

func TestRunner_EmitsDebugFrames(t *testing.T) {
	tracker := tracking.NewTracker(tracking.DefaultTrackerConfig())
	collector := debug.NewDebugCollector()
	collector.SetEnabled(true)

	var frames []*debug.DebugFrame
	runner := &Runner{
		Tracker: tracker,
		Debug:   collector,
		Sink: func(_ context.Context, res FrameResult) error {
			frames = append(frames, res.Debug)
			return nil
		},
	}
	n, err := runner.Run(context.Background(), movingStream(t, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, frames, 3)

	// Frame 1 only registers.
	require.NotNil(t, frames[0])
	assert.Equal(t, uint64(1), frames[0].FrameID)
	assert.Empty(t, frames[0].AssociationCandidates)

	for _, f := range frames[1:] {
		require.NotNil(t, f)
		require.Len(t, f.AssociationCandidates, 1)
		assert.True(t, f.AssociationCandidates[0].Accepted)
		assert.Len(t, f.Innovations, 1)
		assert.Len(t, f.StatePredictions, 1)
	}
	assert.Equal(t, uint64(3), frames[2].FrameID)
}

func TestRunner_NilTracker(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), strings.NewReader(""))
	require.Error(t, err)
}
