// Package landmarks replays and records landmark streams as CSV, one frame
// per row: x0,y0,z0,...,x32,y32,z32 with an optional trailing label column.
package landmarks

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/pose"
)

// LabelColumn names the optional classification label column.
const LabelColumn = "label"

// Header returns the column names for a landmark CSV.
func Header(withLabel bool) []string {
	cols := make([]string, 0, pose.FrameSize+1)
	for i := 0; i < pose.NumLandmarks; i++ {
		n := strconv.Itoa(i)
		cols = append(cols, "x"+n, "y"+n, "z"+n)
	}
	if withLabel {
		cols = append(cols, LabelColumn)
	}
	return cols
}

// CSVSource replays a recorded landmark CSV as a frame source. A row whose
// coordinate cells are all empty is a tick with no detection.
type CSVSource struct {
	path     string
	interval time.Duration

	file   *os.File
	reader *csv.Reader
	ticker *time.Ticker
	row    int
}

// NewCSVSource creates a source for path. A positive interval paces replay
// at one frame per interval; zero replays as fast as frames are consumed.
func NewCSVSource(path string, interval time.Duration) *CSVSource {
	return &CSVSource{path: path, interval: interval}
}

// Start opens the file and checks its header.
func (s *CSVSource) Start(_ context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("landmarks: open %s: %w", s.path, err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("landmarks: read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		_ = f.Close()
		return err
	}

	s.file = f
	s.reader = r
	s.row = 1
	if s.interval > 0 {
		s.ticker = time.NewTicker(s.interval)
	}
	return nil
}

func checkHeader(header []string) error {
	want := Header(false)
	if len(header) < len(want) {
		return fmt.Errorf("landmarks: header has %d columns, want at least %d", len(header), len(want))
	}
	for i, col := range want {
		if strings.TrimSpace(strings.ToLower(header[i])) != col {
			return fmt.Errorf("landmarks: header column %d is %q, want %q", i, header[i], col)
		}
	}
	return nil
}

// Next returns the next frame, nil for a no-detection row, or io.EOF.
func (s *CSVSource) Next(ctx context.Context) (pose.Frame, error) {
	if s.reader == nil {
		return nil, errors.New("landmarks: source not started")
	}
	if s.ticker != nil {
		select {
		case <-s.ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	rec, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("landmarks: row %d: %w", s.row+1, err)
	}
	s.row++
	return parseRow(rec, s.row)
}

func parseRow(rec []string, row int) (pose.Frame, error) {
	if len(rec) < pose.FrameSize {
		if allEmpty(rec) {
			return nil, nil
		}
		return nil, fmt.Errorf("landmarks: row %d has %d columns, want %d", row, len(rec), pose.FrameSize)
	}
	cells := rec[:pose.FrameSize]
	if allEmpty(cells) {
		return nil, nil
	}
	f := make(pose.Frame, pose.FrameSize)
	for i, cell := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return nil, fmt.Errorf("landmarks: row %d column %d: %w", row, i, err)
		}
		f[i] = v
	}
	return f, nil
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Close releases the file.
func (s *CSVSource) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Recorder writes labelled frames in the CSV shape CSVSource reads, for
// building classifier training sets.
type Recorder struct {
	w       *csv.Writer
	label   string
	started bool
	rows    int
}

// NewRecorder creates a recorder that tags every row with label.
func NewRecorder(w io.Writer, label string) *Recorder {
	return &Recorder{w: csv.NewWriter(w), label: label}
}

// Record appends one frame. Missing frames are not recorded.
func (r *Recorder) Record(f pose.Frame) error {
	if f == nil {
		return nil
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("landmarks: record: %w", err)
	}
	if !r.started {
		if err := r.w.Write(Header(true)); err != nil {
			return fmt.Errorf("landmarks: write header: %w", err)
		}
		r.started = true
	}
	row := make([]string, 0, pose.FrameSize+1)
	for _, v := range f {
		row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
	}
	row = append(row, r.label)
	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("landmarks: write row: %w", err)
	}
	r.rows++
	return nil
}

// Rows returns the number of frames recorded.
func (r *Recorder) Rows() int {
	return r.rows
}

// Flush writes buffered rows to the underlying writer.
func (r *Recorder) Flush() error {
	r.w.Flush()
	return r.w.Error()
}

// Source is the frame source shape a Tee wraps.
type Source interface {
	Start(ctx context.Context) error
	Next(ctx context.Context) (pose.Frame, error)
}

// TeeSource passes frames through from a source while recording them.
type TeeSource struct {
	Source
	rec *Recorder
}

// Tee wraps src so every present frame it yields is also recorded.
func Tee(src Source, rec *Recorder) *TeeSource {
	return &TeeSource{Source: src, rec: rec}
}

// Next returns the wrapped source's next frame after recording it.
func (t *TeeSource) Next(ctx context.Context) (pose.Frame, error) {
	f, err := t.Source.Next(ctx)
	if err != nil || f == nil || f.Validate() != nil {
		return f, err
	}
	if err := t.rec.Record(f); err != nil {
		return nil, err
	}
	return f, nil
}
