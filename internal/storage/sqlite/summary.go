package sqlite

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TrackSummary aggregates the stored observations of one track.
type TrackSummary struct {
	TrackID       uint64
	FirstFrame    uint64
	LastFrame     uint64
	Observations  int     // rows where the track was matched
	CoastedFrames int     // rows recorded while the track was unmatched
	PathLength    float64 // sum of step lengths between matched centroids
	MeanSpeed     float64 // mean |velocity| over matched rows
	MaxConfidence float64
}

// ListTrackSummaries summarises every track recorded for runID, ordered
// by track id.
func (s *Store) ListTrackSummaries(ctx context.Context, runID string) ([]TrackSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT track_id, frame_number, centroid_x, centroid_y,
			velocity_x, velocity_y, confidence, disappeared_count
		FROM track_observations
		WHERE run_id = ?
		ORDER BY track_id ASC, frame_number ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query track observations: %w", err)
	}
	defer rows.Close()

	var (
		summaries []TrackSummary
		acc       *summaryAccumulator
	)
	for rows.Next() {
		var (
			trackID, frame int64
			cx, cy, vx, vy float64
			confidence     float64
			disappeared    int
		)
		if err := rows.Scan(&trackID, &frame, &cx, &cy, &vx, &vy, &confidence, &disappeared); err != nil {
			return nil, fmt.Errorf("scan track observation: %w", err)
		}
		if acc == nil || acc.summary.TrackID != uint64(trackID) {
			if acc != nil {
				summaries = append(summaries, acc.finish())
			}
			acc = newSummaryAccumulator(uint64(trackID), uint64(frame))
		}
		acc.add(uint64(frame), cx, cy, vx, vy, confidence, disappeared == 0)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate track observations: %w", err)
	}
	if acc != nil {
		summaries = append(summaries, acc.finish())
	}
	return summaries, nil
}

type summaryAccumulator struct {
	summary TrackSummary
	xs, ys  []float64
	speeds  []float64
}

func newSummaryAccumulator(trackID, firstFrame uint64) *summaryAccumulator {
	return &summaryAccumulator{summary: TrackSummary{TrackID: trackID, FirstFrame: firstFrame}}
}

func (a *summaryAccumulator) add(frame uint64, cx, cy, vx, vy, confidence float64, matched bool) {
	a.summary.LastFrame = frame
	a.summary.MaxConfidence = math.Max(a.summary.MaxConfidence, confidence)
	if !matched {
		// A coasting row repeats the last measured centroid.
		a.summary.CoastedFrames++
		return
	}
	a.summary.Observations++
	a.xs = append(a.xs, cx)
	a.ys = append(a.ys, cy)
	a.speeds = append(a.speeds, math.Hypot(vx, vy))
}

func (a *summaryAccumulator) finish() TrackSummary {
	s := a.summary
	for i := 1; i < len(a.xs); i++ {
		s.PathLength += floats.Distance(
			[]float64{a.xs[i-1], a.ys[i-1]},
			[]float64{a.xs[i], a.ys[i]},
			2,
		)
	}
	if len(a.speeds) > 0 {
		s.MeanSpeed = stat.Mean(a.speeds, nil)
	}
	return s
}
