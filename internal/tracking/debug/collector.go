// Package debug provides instrumentation for the cell tracker.
// The DebugCollector captures algorithm internals (association decisions,
// adaptive gating radii, Kalman residuals) for offline tuning.
package debug

// Pre-allocation capacities for debug frame slices.
// A typical field of view holds ~10-30 cells, so ~30 tracks × ~30
// detections bounds the association candidates per frame.
const (
	defaultAssociationCapacity = 64
	defaultInnovationCapacity  = 32
	defaultPredictionCapacity  = 32
)

// DebugCollector accumulates debug artifacts during a single frame's processing.
//
// The collector is stateful: call BeginFrame, let the tracker call the
// Record*() methods during Update, then Emit() at frame completion.
type DebugCollector struct {
	enabled bool
	current *DebugFrame
}

// DebugFrame contains all debug artifacts for a single frame.
type DebugFrame struct {
	FrameID uint64

	// Association stage: every track-detection pair evaluated
	AssociationCandidates []AssociationRecord

	// Kalman update: innovation vectors (measurement - prediction)
	Innovations []KalmanInnovation

	// Kalman predict: state before measurement update
	StatePredictions []StatePrediction
}

// AssociationRecord captures a single track-detection pairing considered during association.
type AssociationRecord struct {
	TrackID        uint64
	DetectionIndex int     // position in the frame's detection list
	Distance       float64 // predicted position to detection centroid
	Radius         float64 // the track's adaptive search radius this frame
	Accepted       bool
}

// KalmanInnovation represents a measurement residual in the Kalman update step.
type KalmanInnovation struct {
	TrackID    uint64
	PredictedX float64
	PredictedY float64
	MeasuredX  float64
	MeasuredY  float64
	Residual   float64 // ||measured - predicted||
}

// StatePrediction represents a track's predicted state before the update step.
type StatePrediction struct {
	TrackID uint64
	X       float64
	Y       float64
	VX      float64
	VY      float64
}

// NewDebugCollector creates a collector that's initially disabled.
// Call SetEnabled(true) to begin collecting artifacts.
func NewDebugCollector() *DebugCollector {
	return &DebugCollector{}
}

// SetEnabled controls whether the collector records artifacts.
func (c *DebugCollector) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// IsEnabled returns true if the collector is actively recording.
func (c *DebugCollector) IsEnabled() bool {
	return c.enabled
}

// BeginFrame initialises collection for a new frame.
// Must be called before any Record*() calls.
func (c *DebugCollector) BeginFrame(frameID uint64) {
	if !c.enabled {
		return
	}
	c.current = &DebugFrame{
		FrameID:               frameID,
		AssociationCandidates: make([]AssociationRecord, 0, defaultAssociationCapacity),
		Innovations:           make([]KalmanInnovation, 0, defaultInnovationCapacity),
		StatePredictions:      make([]StatePrediction, 0, defaultPredictionCapacity),
	}
}

// RecordAssociation captures a track-detection pairing evaluation.
func (c *DebugCollector) RecordAssociation(trackID uint64, detectionIndex int, distance, radius float64, accepted bool) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.AssociationCandidates = append(c.current.AssociationCandidates, AssociationRecord{
		TrackID:        trackID,
		DetectionIndex: detectionIndex,
		Distance:       distance,
		Radius:         radius,
		Accepted:       accepted,
	})
}

// RecordInnovation captures a Kalman filter innovation (measurement residual).
func (c *DebugCollector) RecordInnovation(trackID uint64, predX, predY, measX, measY, residual float64) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.Innovations = append(c.current.Innovations, KalmanInnovation{
		TrackID:    trackID,
		PredictedX: predX,
		PredictedY: predY,
		MeasuredX:  measX,
		MeasuredY:  measY,
		Residual:   residual,
	})
}

// RecordPrediction captures a track's predicted state before measurement update.
func (c *DebugCollector) RecordPrediction(trackID uint64, x, y, vx, vy float64) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.StatePredictions = append(c.current.StatePredictions, StatePrediction{
		TrackID: trackID,
		X:       x,
		Y:       y,
		VX:      vx,
		VY:      vy,
	})
}

// Emit returns the accumulated debug frame and prepares for the next frame.
// Returns nil if collection is disabled or no frame was begun.
func (c *DebugCollector) Emit() *DebugFrame {
	if !c.enabled || c.current == nil {
		return nil
	}
	frame := c.current
	c.current = nil
	return frame
}

// Reset clears any pending artifacts without emitting them.
func (c *DebugCollector) Reset() {
	c.current = nil
}
