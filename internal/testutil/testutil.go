// Package testutil provides shared test fixtures for tracker tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/celltrack/internal/tracking"
)

// CellSize is the side of the square bounding box Detection builds.
const CellSize = 10

// Detection returns a detection centred on (x, y) with a CellSize box.
func Detection(x, y float64) tracking.Detection {
	return tracking.Detection{
		Centroid: tracking.Point{X: x, Y: y},
		BBox: tracking.BoundingBox{
			X: x - CellSize/2,
			Y: y - CellSize/2,
			W: CellSize,
			H: CellSize,
		},
	}
}

// LinearPath returns frames detections of one cell moving by (dx, dy)
// per frame from (x0, y0).
func LinearPath(x0, y0, dx, dy float64, frames int) [][]tracking.Detection {
	out := make([][]tracking.Detection, frames)
	for i := range out {
		out[i] = []tracking.Detection{Detection(x0+dx*float64(i), y0+dy*float64(i))}
	}
	return out
}

// TempDBPath returns a database path inside a per-test temp directory.
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "celltrack.db")
}
