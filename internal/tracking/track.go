package tracking

import "math"

// TrackParams configures per-track state: the motion model, history
// bounds, and the adaptive gating gains.
type TrackParams struct {
	Motion          MotionParams
	CentroidHistory int
	BBoxHistory     int

	SpeedGain       float64 // radius gained per unit of average speed
	MaxSpeedBonus   float64 // cap on the speed contribution
	DisappearedGain float64 // radius gained per coasted frame
}

// DefaultTrackParams returns the production per-track parameters.
func DefaultTrackParams() TrackParams {
	return TrackParams{
		Motion:          DefaultMotionParams(),
		CentroidHistory: 50,
		BBoxHistory:     10,
		SpeedGain:       2,
		MaxSpeedBonus:   100,
		DisappearedGain: 5,
	}
}

// confidenceSaturation is the detection count at which confidence reaches 1.
const confidenceSaturation = 10.0

// Track is a persistent identity for one physical object. Tracks are
// owned by a Tracker; callers only ever see ActiveTrack and Trajectory
// copies.
type Track struct {
	ID uint64

	DisappearedCount int     // frames since the last match
	TotalDetections  int     // lifetime match count, including registration
	LastSeenFrame    uint64  // frame of the most recent match
	Confidence       float64 // min(1, TotalDetections/10)

	motion    *MotionFilter
	centroids *Ring[Point]
	bboxes    *Ring[BoundingBox]
	params    TrackParams
}

// NewTrack registers a track from its first detection.
func NewTrack(id uint64, det Detection, frame uint64, params TrackParams) *Track {
	tr := &Track{
		ID:              id,
		TotalDetections: 1,
		LastSeenFrame:   frame,
		motion:          NewMotionFilter(det.Centroid, params.Motion),
		centroids:       NewRing[Point](params.CentroidHistory),
		bboxes:          NewRing[BoundingBox](params.BBoxHistory),
		params:          params,
	}
	tr.centroids.Push(det.Centroid)
	tr.bboxes.Push(det.BBox)
	tr.Confidence = confidenceFor(tr.TotalDetections)
	return tr
}

func confidenceFor(detections int) float64 {
	return math.Min(1.0, float64(detections)/confidenceSaturation)
}

// Predict advances the motion filter one frame and returns the predicted
// position.
func (tr *Track) Predict() Point {
	return tr.motion.Predict()
}

// UpdatePosition applies a matched detection.
func (tr *Track) UpdatePosition(centroid Point, bbox BoundingBox, frame uint64) {
	tr.motion.Correct(centroid)
	tr.centroids.Push(centroid)
	tr.bboxes.Push(bbox)
	tr.DisappearedCount = 0
	tr.TotalDetections++
	tr.LastSeenFrame = frame
	tr.Confidence = confidenceFor(tr.TotalDetections)
}

// MarkDisappeared records a frame without a match.
func (tr *Track) MarkDisappeared() {
	tr.DisappearedCount++
}

// AdaptiveSearchRadius returns the gating radius for this frame:
// base + min(SpeedGain·avgSpeed, MaxSpeedBonus) + DisappearedGain·DisappearedCount.
func (tr *Track) AdaptiveSearchRadius(base float64) float64 {
	speedBonus := math.Min(tr.params.SpeedGain*tr.motion.AverageSpeed(), tr.params.MaxSpeedBonus)
	return base + speedBonus + tr.params.DisappearedGain*float64(tr.DisappearedCount)
}

// AverageSpeed returns the mean corrected speed over the velocity history.
func (tr *Track) AverageSpeed() float64 {
	return tr.motion.AverageSpeed()
}

// Velocity returns the latest corrected velocity.
func (tr *Track) Velocity() Vector {
	return tr.motion.Velocity()
}

// PredictedPosition returns the position from the most recent Predict.
func (tr *Track) PredictedPosition() Point {
	return tr.motion.LastPrediction()
}

// Centroid returns the most recently matched centroid.
func (tr *Track) Centroid() Point {
	c, _ := tr.centroids.Last()
	return c
}

// BBox returns the most recently matched bounding box.
func (tr *Track) BBox() BoundingBox {
	b, _ := tr.bboxes.Last()
	return b
}

// History returns a copy of the centroid history, oldest first.
func (tr *Track) History() []Point {
	return tr.centroids.Slice()
}

// HistoryLen returns the number of centroids held in history.
func (tr *Track) HistoryLen() int {
	return tr.centroids.Len()
}

// MovementVector returns the displacement between the last two matched
// centroids, or zero with fewer than two.
func (tr *Track) MovementVector() Vector {
	n := tr.centroids.Len()
	if n < 2 {
		return Vector{}
	}
	prev, last := tr.centroids.At(n-2), tr.centroids.At(n-1)
	return Vector{X: last.X - prev.X, Y: last.Y - prev.Y}
}
