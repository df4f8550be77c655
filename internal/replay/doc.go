// Package replay feeds recorded detection streams through a tracker.
//
// A stream is newline-delimited JSON, one frame per line:
//
//	{"frame":1,"detections":[{"centroid":[12.5,40],"bbox":[7.5,35,10,10]}]}
//
// Blank lines are skipped. The "frame" field is informational; the
// tracker keeps its own frame counter.
package replay
