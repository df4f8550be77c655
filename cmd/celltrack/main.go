// Command celltrack replays a recorded detection stream through the
// adaptive cell tracker and reports the resulting tracks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/celltrack/internal/config"
	"github.com/banshee-data/celltrack/internal/replay"
	"github.com/banshee-data/celltrack/internal/storage/sqlite"
	"github.com/banshee-data/celltrack/internal/tracking"
	"github.com/banshee-data/celltrack/internal/tracking/debug"
	"github.com/banshee-data/celltrack/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to a tuning config JSON file (defaults to config/tracker.defaults.json)")
	inputPath  = flag.String("input", "-", "Detection stream (newline-delimited JSON); - reads stdin")
	dbPath     = flag.String("db", "", "Record the run to this SQLite database (optional)")
	debugMode  = flag.Bool("debug", false, "Collect association debug records (stored when -db is set)")
	logDiag    = flag.Bool("log-diag", false, "Log per-frame tracker summaries")
	logTrace   = flag.Bool("log-trace", false, "Log per-pair association telemetry")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

type options struct {
	ConfigPath string
	InputPath  string
	DBPath     string
	Debug      bool
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}

	tracking.SetLogWriters(tracking.LogWriters{
		Ops:   os.Stderr,
		Diag:  enabledWriter(*logDiag, os.Stderr),
		Trace: enabledWriter(*logTrace, os.Stderr),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		ConfigPath: *configPath,
		InputPath:  *inputPath,
		DBPath:     *dbPath,
		Debug:      *debugMode,
	}
	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("celltrack: %v", err)
	}
}

func enabledWriter(on bool, w io.Writer) io.Writer {
	if !on {
		return nil
	}
	return w
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		cfg, err := config.LoadDefaultConfig()
		if errors.Is(err, config.ErrDefaultConfigNotFound) {
			log.Printf("%s not found; using built-in defaults", config.DefaultConfigPath)
			return config.DefaultTuningConfig(), nil
		}
		return cfg, err
	}
	return config.LoadTuningConfig(path)
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func run(ctx context.Context, opts options, out io.Writer) error {
	tuning, err := loadTuning(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	in, err := openInput(opts.InputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	tracker := tracking.NewTracker(tracking.TrackerConfigFromTuning(tuning))
	runner := &replay.Runner{Tracker: tracker}
	if opts.Debug {
		runner.Debug = debug.NewDebugCollector()
		runner.Debug.SetEnabled(true)
	}

	var (
		store *sqlite.Store
		runID string
	)
	if opts.DBPath != "" {
		store, err = sqlite.Open(opts.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err = store.CreateRun(ctx, opts.InputPath, tuning)
		if err != nil {
			return err
		}
		log.Printf("recording run %s to %s", runID, opts.DBPath)

		runner.Sink = func(ctx context.Context, res replay.FrameResult) error {
			if err := store.RecordFrame(ctx, runID, res.TrackerFrame, res.Active); err != nil {
				return err
			}
			return store.RecordAssociations(ctx, runID, res.Debug)
		}
	}

	frames, runErr := runner.Run(ctx, in)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("replay: %w", runErr)
	}
	if runErr != nil {
		log.Printf("replay interrupted after %d frames", frames)
	}

	stats := tracker.Statistics()
	if store != nil {
		// Finalise even when interrupted.
		if err := store.FinishRun(context.Background(), runID, stats); err != nil {
			return err
		}
	}

	return writeReport(out, frames, tracker.Len(), stats, tracker.Trajectories(tuning.GetTrajectoryMinLength()))
}

func writeReport(w io.Writer, frames, held int, stats tracking.Statistics, trajectories []tracking.Trajectory) error {
	if _, err := fmt.Fprintf(w, "frames=%d total_tracked=%d active=%d held=%d coasting=%d\n",
		frames, stats.TotalTracked, stats.CurrentlyActive, held, stats.DisappearedTracks); err != nil {
		return err
	}
	for _, tr := range trajectories {
		if len(tr.Points) == 0 {
			continue
		}
		state := "coasting"
		if tr.Active {
			state = "active"
		}
		last := tr.Points[len(tr.Points)-1]
		if _, err := fmt.Fprintf(w, "track %d: points=%d confidence=%.2f %s last=(%.1f, %.1f)\n",
			tr.ID, len(tr.Points), tr.Confidence, state, last.X, last.Y); err != nil {
			return err
		}
	}
	return nil
}
