package tracking

import (
	"io"
	"log"
	"sync"
)

// LogWriters routes the tracker's three log streams. A nil writer
// silences its stream; all streams are silent until SetLogWriters runs.
type LogWriters struct {
	// Ops receives events an operator should act on: the assignment
	// solver rejecting a cost matrix and the tracker falling back to
	// re-registering the frame's detections.
	Ops io.Writer
	// Diag receives one summary line per Update plus a line for every
	// pruned track.
	Diag io.Writer
	// Trace receives one line per accepted track/detection pair with its
	// distance and search radius. It is verbose on dense frames.
	Trace io.Writer
}

type logStream int

const (
	streamOps logStream = iota
	streamDiag
	streamTrace
	numStreams
)

var streamPrefixes = [numStreams]string{
	streamOps:   "[tracking] ",
	streamDiag:  "[tracking/diag] ",
	streamTrace: "[tracking/trace] ",
}

var (
	logMu   sync.RWMutex
	loggers [numStreams]*log.Logger
)

// SetLogWriters replaces all three streams at once.
func SetLogWriters(w LogWriters) {
	writers := [numStreams]io.Writer{
		streamOps:   w.Ops,
		streamDiag:  w.Diag,
		streamTrace: w.Trace,
	}

	logMu.Lock()
	defer logMu.Unlock()
	for s, out := range writers {
		if out == nil {
			loggers[s] = nil
			continue
		}
		loggers[s] = log.New(out, streamPrefixes[s], log.LstdFlags|log.Lmicroseconds)
	}
}

func logf(s logStream, format string, args ...interface{}) {
	logMu.RLock()
	l := loggers[s]
	logMu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Opsf logs a solver fallback or other actionable event.
func Opsf(format string, args ...interface{}) { logf(streamOps, format, args...) }

// Diagf logs frame summaries and pruning.
func Diagf(format string, args ...interface{}) { logf(streamDiag, format, args...) }

// Tracef logs per-pair association decisions.
func Tracef(format string, args ...interface{}) { logf(streamTrace, format, args...) }
