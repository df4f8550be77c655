package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/celltrack/internal/timeutil"
	"github.com/banshee-data/celltrack/internal/tracking"
	"github.com/banshee-data/celltrack/internal/tracking/debug"
)

// ErrRunNotFound is returned when a run id has no row in tracking_runs.
var ErrRunNotFound = errors.New("tracking run not found")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Store records replay runs in a SQLite database.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp run start and finish times.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Run is one replay of a detection stream through a tracker.
type Run struct {
	RunID        string
	Source       string
	ConfigJSON   string
	StartedAt    time.Time
	FinishedAt   *time.Time
	FrameCount   uint64
	TotalTracked int
}

// Open opens (or creates) the database at path, applies connection
// PRAGMAs and migrates the schema to the latest version.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// PRAGMAs apply per connection.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion() (uint, bool, error) {
	return migrateVersion(s.db)
}

// CreateRun inserts a new run and returns its id. cfg is stored as a
// JSON snapshot and may be nil.
func (s *Store) CreateRun(ctx context.Context, source string, cfg any) (string, error) {
	configJSON := []byte("{}")
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("marshal run config: %w", err)
		}
		configJSON = b
	}

	runID := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracking_runs (run_id, source, config_json, started_unix_nanos)
		VALUES (?, ?, ?, ?)`,
		runID, source, string(configJSON), s.clock.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert tracking run: %w", err)
	}
	return runID, nil
}

// RecordFrame stores one observation row per track in the active view.
func (s *Store) RecordFrame(ctx context.Context, runID string, frame uint64, tracks tracking.ActiveTracks) error {
	if len(tracks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin record frame tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO track_observations (
			run_id, track_id, frame_number,
			centroid_x, centroid_y,
			bbox_x, bbox_y, bbox_w, bbox_h,
			confidence, disappeared_count, total_detections,
			predicted_x, predicted_y, velocity_x, velocity_y, search_radius
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare track observation: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		_, err := stmt.ExecContext(ctx,
			runID, int64(t.ID), int64(frame),
			t.Centroid.X, t.Centroid.Y,
			t.BBox.X, t.BBox.Y, t.BBox.W, t.BBox.H,
			t.Confidence, t.DisappearedCount, t.TotalDetections,
			t.PredictedPosition.X, t.PredictedPosition.Y,
			t.Velocity.X, t.Velocity.Y, t.SearchRadius,
		)
		if err != nil {
			return fmt.Errorf("insert track observation %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record frame tx: %w", err)
	}
	return nil
}

// RecordAssociations stores the association candidates of a debug frame.
// A nil frame is a no-op.
func (s *Store) RecordAssociations(ctx context.Context, runID string, frame *debug.DebugFrame) error {
	if frame == nil || len(frame.AssociationCandidates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin record associations tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	for _, a := range frame.AssociationCandidates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO association_records (
				run_id, frame_number, track_id, detection_index, distance, radius, accepted
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, int64(frame.FrameID), int64(a.TrackID), a.DetectionIndex,
			a.Distance, a.Radius, boolToInt(a.Accepted),
		)
		if err != nil {
			return fmt.Errorf("insert association record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record associations tx: %w", err)
	}
	return nil
}

// FinishRun stamps the run with its end time and final statistics.
func (s *Store) FinishRun(ctx context.Context, runID string, stats tracking.Statistics) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tracking_runs
		SET finished_unix_nanos = ?, frame_count = ?, total_tracked = ?
		WHERE run_id = ?`,
		s.clock.Now().UnixNano(), int64(stats.FrameNumber), stats.TotalTracked, runID,
	)
	if err != nil {
		return fmt.Errorf("update tracking run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tracking run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// GetRun loads a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		run      Run
		started  int64
		finished sql.NullInt64
		frames   int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, source, config_json, started_unix_nanos, finished_unix_nanos, frame_count, total_tracked
		FROM tracking_runs WHERE run_id = ?`, runID,
	).Scan(&run.RunID, &run.Source, &run.ConfigJSON, &started, &finished, &frames, &run.TotalTracked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	run.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		run.FinishedAt = &t
	}
	run.FrameCount = uint64(frames)
	return &run, nil
}

// CountAssociations returns how many association records a run holds,
// and how many of them were accepted.
func (s *Store) CountAssociations(ctx context.Context, runID string) (total, accepted int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(accepted), 0)
		FROM association_records WHERE run_id = ?`, runID,
	).Scan(&total, &accepted)
	if err != nil {
		return 0, 0, fmt.Errorf("count associations: %w", err)
	}
	return total, accepted, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
