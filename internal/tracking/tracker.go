package tracking

import (
	"github.com/banshee-data/celltrack/internal/config"
)

// TrackerConfig holds configuration parameters for the tracker.
type TrackerConfig struct {
	MaxDisappeared   int     // coasted frames tolerated before a track is pruned
	BaseSearchRadius float64 // gating radius for a stationary, just-matched track
	MinTrackLength   int     // matches required before a track is reported
	Track            TrackParams
}

// DefaultTrackerConfig returns the production tracker parameters.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfigFromTuning(config.EmptyTuningConfig())
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		MaxDisappeared:   cfg.GetMaxDisappeared(),
		BaseSearchRadius: cfg.GetBaseSearchRadius(),
		MinTrackLength:   cfg.GetMinTrackLength(),
		Track: TrackParams{
			Motion: MotionParams{
				ProcessNoise:      cfg.GetProcessNoise(),
				MeasurementNoise:  cfg.GetMeasurementNoise(),
				InitialCovariance: cfg.GetInitialCovariance(),
				VelocityHistory:   cfg.GetVelocityHistoryLength(),
			},
			CentroidHistory: cfg.GetCentroidHistoryLength(),
			BBoxHistory:     cfg.GetBBoxHistoryLength(),
			SpeedGain:       cfg.GetSpeedGain(),
			MaxSpeedBonus:   cfg.GetMaxSpeedBonus(),
			DisappearedGain: cfg.GetDisappearedGain(),
		},
	}
}

// DebugCollector is the interface for collecting per-frame tracking
// internals. Implemented by internal/tracking/debug.
type DebugCollector interface {
	IsEnabled() bool
	RecordAssociation(trackID uint64, detectionIndex int, distance, radius float64, accepted bool)
	RecordPrediction(trackID uint64, x, y, vx, vy float64)
	RecordInnovation(trackID uint64, predX, predY, measX, measY, residual float64)
}

// assignFunc solves a rectangular assignment; HungarianAssign in production.
type assignFunc func(cost [][]float64) ([]int, error)

// ActiveTrack is a read-only view of a confirmed track after an Update.
type ActiveTrack struct {
	ID                uint64      `json:"id"`
	Centroid          Point       `json:"centroid"`
	BBox              BoundingBox `json:"bbox"`
	Confidence        float64     `json:"confidence"`
	DisappearedCount  int         `json:"disappeared_count"`
	TotalDetections   int         `json:"total_detections"`
	PredictedPosition Point       `json:"predicted_position"`
	Velocity          Vector      `json:"velocity"`
	SearchRadius      float64     `json:"search_radius"`
}

// ActiveTracks lists confirmed tracks in registration order.
type ActiveTracks []ActiveTrack

// Get returns the view for id, if present.
func (a ActiveTracks) Get(id uint64) (ActiveTrack, bool) {
	for _, t := range a {
		if t.ID == id {
			return t, true
		}
	}
	return ActiveTrack{}, false
}

// IDs returns the track ids in order.
func (a ActiveTracks) IDs() []uint64 {
	ids := make([]uint64, len(a))
	for i, t := range a {
		ids[i] = t.ID
	}
	return ids
}

// Statistics summarises tracker state.
type Statistics struct {
	TotalTracked      int    `json:"total_tracked"`      // tracks ever registered
	CurrentlyActive   int    `json:"currently_active"`   // size of the last returned view
	FrameNumber       uint64 `json:"frame_number"`       // Update calls so far
	DisappearedTracks int    `json:"disappeared_tracks"` // held tracks currently coasting
}

// Trajectory is a track's centroid history.
type Trajectory struct {
	ID         uint64  `json:"id"`
	Points     []Point `json:"points"`
	Confidence float64 `json:"confidence"`
	Active     bool    `json:"active"` // matched in the latest frame
}

// Tracker maintains track identities across frames.
type Tracker struct {
	Config TrackerConfig

	// DebugCollector captures algorithm internals for tuning (optional).
	DebugCollector DebugCollector

	tracks map[uint64]*Track
	order  []uint64 // live ids in registration order

	nextID       uint64
	frameNumber  uint64
	totalTracked int
	activeCount  int

	assign assignFunc
}

// NewTracker creates a new tracker with the specified configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		Config: cfg,
		tracks: make(map[uint64]*Track),
		assign: HungarianAssign,
	}
}

// Reset clears all tracks and counters, including the id sequence.
func (t *Tracker) Reset() {
	t.tracks = make(map[uint64]*Track)
	t.order = nil
	t.nextID = 0
	t.frameNumber = 0
	t.totalTracked = 0
	t.activeCount = 0
}

// Update processes one frame of detections and returns the confirmed
// tracks. A malformed detection aborts the call with an *InputError and
// leaves the tracker untouched.
func (t *Tracker) Update(detections []Detection) (ActiveTracks, error) {
	if err := ValidateDetections(detections); err != nil {
		return nil, err
	}

	t.frameNumber++

	switch {
	case len(t.tracks) == 0:
		for _, det := range detections {
			t.register(det)
		}
	case len(detections) == 0:
		for _, id := range t.order {
			tr := t.tracks[id]
			t.predict(tr)
			tr.MarkDisappeared()
		}
	default:
		t.associate(detections)
	}

	t.prune()

	active := t.activeTracks()
	Diagf("frame %d: detections=%d tracks=%d active=%d", t.frameNumber, len(detections), len(t.order), len(active))
	return active, nil
}

func (t *Tracker) predict(tr *Track) Point {
	pred := tr.Predict()
	if t.DebugCollector != nil && t.DebugCollector.IsEnabled() {
		v := tr.Velocity()
		t.DebugCollector.RecordPrediction(tr.ID, pred.X, pred.Y, v.X, v.Y)
	}
	return pred
}

// associate matches detections to existing tracks. Every track is
// predicted exactly once; radii use the pre-frame DisappearedCount.
func (t *Tracker) associate(detections []Detection) {
	ids := t.order
	nTracks := len(ids)
	nDets := len(detections)

	predictions := make([]Point, nTracks)
	radii := make([]float64, nTracks)
	for i, id := range ids {
		tr := t.tracks[id]
		predictions[i] = t.predict(tr)
		radii[i] = tr.AdaptiveSearchRadius(t.Config.BaseSearchRadius)
	}

	dist := make([][]float64, nTracks)
	cost := make([][]float64, nTracks)
	for i := range ids {
		dist[i] = make([]float64, nDets)
		cost[i] = make([]float64, nDets)
		for j, det := range detections {
			d := predictions[i].DistanceTo(det.Centroid)
			dist[i][j] = d
			if d > radii[i] {
				cost[i][j] = ForbiddenCost
			} else {
				cost[i][j] = d
			}
		}
	}

	assignment, err := t.assign(cost)
	if err != nil || len(assignment) != nTracks {
		Opsf("frame %d: assignment failed (%v); re-registering %d detections, coasting %d tracks",
			t.frameNumber, err, nDets, nTracks)
		for _, id := range ids {
			t.tracks[id].MarkDisappeared()
		}
		for _, det := range detections {
			t.register(det)
		}
		return
	}

	used := make([]bool, nDets)
	for i, id := range ids {
		tr := t.tracks[id]
		j := assignment[i]
		accepted := j >= 0 && j < nDets && !used[j] && dist[i][j] <= radii[i]

		if t.DebugCollector != nil && t.DebugCollector.IsEnabled() {
			for dj := range detections {
				t.DebugCollector.RecordAssociation(id, dj, dist[i][dj], radii[i], accepted && dj == j)
			}
		}

		if !accepted {
			tr.MarkDisappeared()
			continue
		}

		used[j] = true
		det := detections[j]
		Tracef("frame %d: track %d <- detection %d (dist=%.2f radius=%.2f)", t.frameNumber, id, j, dist[i][j], radii[i])
		if t.DebugCollector != nil && t.DebugCollector.IsEnabled() {
			t.DebugCollector.RecordInnovation(id, predictions[i].X, predictions[i].Y,
				det.Centroid.X, det.Centroid.Y, dist[i][j])
		}
		tr.UpdatePosition(det.Centroid, det.BBox, t.frameNumber)
	}

	for j, det := range detections {
		if !used[j] {
			t.register(det)
		}
	}
}

func (t *Tracker) register(det Detection) {
	id := t.nextID
	t.nextID++
	t.tracks[id] = NewTrack(id, det, t.frameNumber, t.Config.Track)
	t.order = append(t.order, id)
	t.totalTracked++
}

// prune removes every track that has coasted past MaxDisappeared.
func (t *Tracker) prune() {
	kept := t.order[:0]
	for _, id := range t.order {
		tr := t.tracks[id]
		if tr.DisappearedCount > t.Config.MaxDisappeared {
			Diagf("frame %d: pruned track %d after %d missed frames (detections=%d)",
				t.frameNumber, id, tr.DisappearedCount, tr.TotalDetections)
			delete(t.tracks, id)
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}

func (t *Tracker) activeTracks() ActiveTracks {
	active := make(ActiveTracks, 0, len(t.order))
	for _, id := range t.order {
		tr := t.tracks[id]
		if tr.TotalDetections < t.Config.MinTrackLength {
			continue
		}
		active = append(active, ActiveTrack{
			ID:                id,
			Centroid:          tr.Centroid(),
			BBox:              tr.BBox(),
			Confidence:        tr.Confidence,
			DisappearedCount:  tr.DisappearedCount,
			TotalDetections:   tr.TotalDetections,
			PredictedPosition: tr.PredictedPosition(),
			Velocity:          tr.Velocity(),
			SearchRadius:      tr.AdaptiveSearchRadius(t.Config.BaseSearchRadius),
		})
	}
	t.activeCount = len(active)
	return active
}

// Statistics returns tracker-level counters.
func (t *Tracker) Statistics() Statistics {
	disappeared := 0
	for _, id := range t.order {
		if t.tracks[id].DisappearedCount > 0 {
			disappeared++
		}
	}
	return Statistics{
		TotalTracked:      t.totalTracked,
		CurrentlyActive:   t.activeCount,
		FrameNumber:       t.frameNumber,
		DisappearedTracks: disappeared,
	}
}

// Trajectories returns the centroid histories of tracks holding at least
// minLength points, in registration order.
func (t *Tracker) Trajectories(minLength int) []Trajectory {
	var out []Trajectory
	for _, id := range t.order {
		tr := t.tracks[id]
		if tr.HistoryLen() < minLength {
			continue
		}
		out = append(out, Trajectory{
			ID:         id,
			Points:     tr.History(),
			Confidence: tr.Confidence,
			Active:     tr.DisappearedCount == 0,
		})
	}
	return out
}

// FrameNumber returns the number of Update calls since creation or Reset.
func (t *Tracker) FrameNumber() uint64 {
	return t.frameNumber
}

// TrackIDs returns the ids of all held tracks, confirmed or not, in
// registration order.
func (t *Tracker) TrackIDs() []uint64 {
	return append([]uint64(nil), t.order...)
}

// Len returns the number of held tracks, confirmed or not.
func (t *Tracker) Len() int {
	return len(t.order)
}
