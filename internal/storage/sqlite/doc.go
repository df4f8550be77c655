// Package sqlite persists tracker output for offline analysis: replay
// runs, per-frame observations of confirmed tracks, and association
// debug records.
//
// Stored runs are an export of what the tracker reported. They are never
// loaded back into a live Tracker.
package sqlite
