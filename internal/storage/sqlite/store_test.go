package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/celltrack/internal/config"
	"github.com/banshee-data/celltrack/internal/testutil"
	"github.com/banshee-data/celltrack/internal/timeutil"
	"github.com/banshee-data/celltrack/internal/tracking"
	"github.com/banshee-data/celltrack/internal/tracking/debug"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(testutil.TempDBPath(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func observation(id uint64, x, y, vx, vy float64, disappeared, total int) tracking.ActiveTrack {
	return tracking.ActiveTrack{
		ID:                id,
		Centroid:          tracking.Point{X: x, Y: y},
		BBox:              tracking.BoundingBox{X: x - 5, Y: y - 5, W: 10, H: 10},
		Confidence:        float64(total) / 10,
		DisappearedCount:  disappeared,
		TotalDetections:   total,
		PredictedPosition: tracking.Point{X: x + vx, Y: y + vy},
		Velocity:          tracking.Vector{X: vx, Y: vy},
		SearchRadius:      50,
	}
}

func TestOpen_MigratesSchema(t *testing.T) {
	path := testutil.TempDBPath(t)

	store, err := Open(path)
	require.NoError(t, err)
	version, dirty, err := store.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
	require.NoError(t, store.Close())

	// Reopening an up-to-date database is a no-op.
	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	version, _, err = store.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestCreateRun_StoresConfigSnapshot(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "cells.ndjson", config.DefaultTuningConfig())
	require.NoError(t, err)
	_, err = uuid.Parse(runID)
	require.NoError(t, err)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, run.RunID)
	assert.Equal(t, "cells.ndjson", run.Source)
	assert.Contains(t, run.ConfigJSON, `"max_disappeared":15`)
	assert.Nil(t, run.FinishedAt)
	assert.Zero(t, run.FrameCount)
}

func TestCreateRun_NilConfig(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "", nil)
	require.NoError(t, err)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "{}", run.ConfigJSON)
}

func TestFinishRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "test", nil)
	require.NoError(t, err)

	err = store.FinishRun(ctx, runID, tracking.Statistics{TotalTracked: 7, FrameNumber: 42})
	require.NoError(t, err)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, uint64(42), run.FrameCount)
	assert.Equal(t, 7, run.TotalTracked)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestRunTimestampsUseClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)

	store, err := Open(testutil.TempDBPath(t), WithClock(clock))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "test", nil)
	require.NoError(t, err)
	clock.Advance(90 * time.Second)
	require.NoError(t, store.FinishRun(ctx, runID, tracking.Statistics{}))

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.True(t, run.StartedAt.Equal(start))
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, 90*time.Second, run.FinishedAt.Sub(run.StartedAt))
}

func TestRunNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = store.FinishRun(ctx, "missing", tracking.Statistics{})
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRecordFrame_RequiresRun(t *testing.T) {
	store := setupTestStore(t)

	err := store.RecordFrame(context.Background(), "missing", 1, tracking.ActiveTracks{
		observation(0, 1, 1, 0, 0, 0, 3),
	})
	require.Error(t, err, "foreign key on run_id")
}

func TestRecordFrame_EmptyIsNoop(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.RecordFrame(context.Background(), "missing", 1, nil))
}

func TestListTrackSummaries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "test", nil)
	require.NoError(t, err)

	frames := []tracking.ActiveTracks{
		{observation(0, 0, 0, 0, 0, 0, 3)},
		{observation(0, 3, 4, 3, 4, 0, 4)},
		{observation(0, 6, 8, 3, 4, 0, 5), observation(1, 100, 100, 0, 0, 0, 3)},
		// Track 0 coasts; its centroid is the last measurement.
		{observation(0, 6, 8, 3, 4, 1, 5), observation(1, 100, 101, 0, 1, 0, 4)},
	}
	for i, active := range frames {
		require.NoError(t, store.RecordFrame(ctx, runID, uint64(i+1), active))
	}

	summaries, err := store.ListTrackSummaries(ctx, runID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	first := summaries[0]
	assert.Equal(t, uint64(0), first.TrackID)
	assert.Equal(t, uint64(1), first.FirstFrame)
	assert.Equal(t, uint64(4), first.LastFrame)
	assert.Equal(t, 3, first.Observations)
	assert.Equal(t, 1, first.CoastedFrames)
	assert.InDelta(t, 10.0, first.PathLength, 1e-9)
	assert.InDelta(t, 10.0/3.0, first.MeanSpeed, 1e-9)
	assert.InDelta(t, 0.5, first.MaxConfidence, 1e-9)

	second := summaries[1]
	assert.Equal(t, uint64(1), second.TrackID)
	assert.Equal(t, uint64(3), second.FirstFrame)
	assert.Equal(t, 2, second.Observations)
	assert.InDelta(t, 1.0, second.PathLength, 1e-9)
	assert.InDelta(t, 0.5, second.MeanSpeed, 1e-9)
}

func TestListTrackSummaries_UnknownRun(t *testing.T) {
	store := setupTestStore(t)

	summaries, err := store.ListTrackSummaries(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestRecordAssociations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "test", nil)
	require.NoError(t, err)

	require.NoError(t, store.RecordAssociations(ctx, runID, nil))

	collector := debug.NewDebugCollector()
	collector.SetEnabled(true)
	collector.BeginFrame(2)
	collector.RecordAssociation(0, 0, 5, 50, true)
	collector.RecordAssociation(0, 1, 500, 50, false)
	require.NoError(t, store.RecordAssociations(ctx, runID, collector.Emit()))

	total, accepted, err := store.CountAssociations(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, accepted)
}

func TestStore_RecordsTrackerRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tuning := config.DefaultTuningConfig()
	runID, err := store.CreateRun(ctx, "synthetic", tuning)
	require.NoError(t, err)

	tracker := tracking.NewTracker(tracking.TrackerConfigFromTuning(tuning))
	for _, dets := range testutil.LinearPath(20, 30, 2, 0, 5) {
		active, err := tracker.Update(dets)
		require.NoError(t, err)
		require.NoError(t, store.RecordFrame(ctx, runID, tracker.FrameNumber(), active))
	}
	require.NoError(t, store.FinishRun(ctx, runID, tracker.Statistics()))

	summaries, err := store.ListTrackSummaries(ctx, runID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	// The track is confirmed on its third detection.
	assert.Equal(t, uint64(3), summaries[0].FirstFrame)
	assert.Equal(t, uint64(5), summaries[0].LastFrame)
	assert.Equal(t, 3, summaries[0].Observations)
	assert.InDelta(t, 4.0, summaries[0].PathLength, 1e-9)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), run.FrameCount)
	assert.Equal(t, 1, run.TotalTracked)
}
