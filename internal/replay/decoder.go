package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/celltrack/internal/tracking"
)

// maxLineBytes bounds a single frame line.
const maxLineBytes = 4 * 1024 * 1024

// ErrMalformedFrame is matched by decode errors for lines that are not a
// valid frame object.
var ErrMalformedFrame = errors.New("malformed frame")

// DecodeError reports the 1-based input line that failed to decode.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Frame is one decoded line of a detection stream.
type Frame struct {
	Line       int
	Number     uint64 // value of the "frame" field, 0 if absent
	Detections []tracking.Detection
}

type wireFrame struct {
	Frame      uint64          `json:"frame"`
	Detections []wireDetection `json:"detections"`
}

// Coordinates decode through pointers so a JSON null is distinguishable
// from zero.
type wireDetection struct {
	Centroid []*float64 `json:"centroid"`
	BBox     []*float64 `json:"bbox"`
}

// Decoder reads frames from a newline-delimited JSON stream.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Decoder{scanner: s}
}

// Next returns the next frame, or io.EOF when the stream is exhausted.
func (d *Decoder) Next() (Frame, error) {
	for d.scanner.Scan() {
		d.line++
		raw := d.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		return decodeFrame(d.line, raw)
	}
	if err := d.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("read line %d: %w", d.line+1, err)
	}
	return Frame{}, io.EOF
}

func decodeFrame(line int, raw []byte) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(raw, &wf); err != nil {
		return Frame{}, &DecodeError{Line: line, Err: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
	}

	frame := Frame{
		Line:       line,
		Number:     wf.Frame,
		Detections: make([]tracking.Detection, 0, len(wf.Detections)),
	}
	for i, wd := range wf.Detections {
		det, err := wd.detection(i)
		if err != nil {
			return Frame{}, &DecodeError{Line: line, Err: err}
		}
		frame.Detections = append(frame.Detections, det)
	}
	return frame, nil
}

func (wd wireDetection) detection(index int) (tracking.Detection, error) {
	c, err := coordinates(index, "centroid", wd.Centroid, 2)
	if err != nil {
		return tracking.Detection{}, err
	}
	b, err := coordinates(index, "bbox", wd.BBox, 4)
	if err != nil {
		return tracking.Detection{}, err
	}
	return tracking.Detection{
		Centroid: tracking.Point{X: c[0], Y: c[1]},
		BBox:     tracking.BoundingBox{X: b[0], Y: b[1], W: b[2], H: b[3]},
	}, nil
}

func coordinates(index int, field string, raw []*float64, want int) ([]float64, error) {
	switch {
	case raw == nil:
		return nil, &tracking.InputError{Index: index, Field: field, Reason: "is missing"}
	case len(raw) != want:
		return nil, &tracking.InputError{Index: index, Field: field, Reason: fmt.Sprintf("has %d values, want %d", len(raw), want)}
	}
	out := make([]float64, want)
	for i, v := range raw {
		if v == nil {
			return nil, &tracking.InputError{Index: index, Field: field, Reason: "has a null value"}
		}
		out[i] = *v
	}
	return out, nil
}

// EncodeFrame writes detections as one stream line.
func EncodeFrame(w io.Writer, number uint64, detections []tracking.Detection) error {
	wf := wireFrame{Frame: number, Detections: make([]wireDetection, len(detections))}
	for i, d := range detections {
		wf.Detections[i] = wireDetection{
			Centroid: pointers(d.Centroid.X, d.Centroid.Y),
			BBox:     pointers(d.BBox.X, d.BBox.Y, d.BBox.W, d.BBox.H),
		}
	}
	b, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", number, err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func pointers(vals ...float64) []*float64 {
	out := make([]*float64, len(vals))
	for i := range vals {
		out[i] = &vals[i]
	}
	return out
}
