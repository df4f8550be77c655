package tracking

import (
	"errors"
	"fmt"
	"math"
)

// Point is a position in frame coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Vector is a per-frame displacement or velocity.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Norm returns the vector's magnitude.
func (v Vector) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// BoundingBox is an axis-aligned box: top-left corner plus size.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is one segmented object in one frame, before identity
// assignment. The tracker copies its fields and never retains it.
type Detection struct {
	Centroid Point
	BBox     BoundingBox
}

// ErrInvalidDetection is matched by every *InputError via errors.Is.
var ErrInvalidDetection = errors.New("invalid detection")

// InputError reports a malformed detection. Update returns it without
// modifying tracker state.
type InputError struct {
	Index  int    // position of the offending detection in the frame
	Field  string // "centroid" or "bbox"
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("detection %d: %s %s", e.Index, e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidDetection }

// ValidateDetections returns an *InputError for the first detection with
// a non-finite coordinate.
func ValidateDetections(detections []Detection) error {
	for i, d := range detections {
		if !allFinite(d.Centroid.X, d.Centroid.Y) {
			return &InputError{Index: i, Field: "centroid", Reason: "has non-finite coordinates"}
		}
		if !allFinite(d.BBox.X, d.BBox.Y, d.BBox.W, d.BBox.H) {
			return &InputError{Index: i, Field: "bbox", Reason: "has non-finite coordinates"}
		}
	}
	return nil
}

func allFinite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
