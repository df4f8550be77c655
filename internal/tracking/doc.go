// Package tracking owns multi-object tracking of segmented detections.
//
// Responsibilities: per-track constant-velocity Kalman filtering,
// adaptive (speed- and occlusion-aware) gating, Hungarian assignment of
// detections to tracks, and the track lifecycle (registration, coasting,
// pruning). Key types: Tracker, Track, MotionFilter, Detection.
//
// The Tracker is not safe for concurrent use. A single frame loop owns
// it and calls Update once per frame.
//
// No SQL/database code is allowed in this package; persistence lives in
// internal/storage/sqlite.
package tracking
