// Package trace records the per-iteration history of an optimization run as
// JSON lines under <baseDir>/runs/<runID>/trace.jsonl.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/neldermead/internal/neldermead"
)

// Entry is one line of a trace file.
type Entry struct {
	Iteration int       `json:"iteration"`
	Step      string    `json:"step"`
	BestValue float64   `json:"bestValue"`
	Spread    float64   `json:"spread"`
	Best      []float64 `json:"best,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrNotFound is returned when a run has no trace file.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing trace.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "trace not found: " + e.RunID
	}
	return "trace not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// Path returns the trace file location for a run.
func Path(baseDir, runID string) string {
	return filepath.Join(baseDir, "runs", runID, "trace.jsonl")
}

// Writer writes trace entries to a JSONL file.
// It uses buffered I/O and is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string

	every      int
	withPoints bool
	err        error // first error seen by Record
	written    int
}

// Option configures a Writer.
type Option func(*Writer)

// Every keeps one of every n iterations in Record. Values below 1 keep all.
func Every(n int) Option {
	return func(w *Writer) {
		if n < 1 {
			n = 1
		}
		w.every = n
	}
}

// WithPoints includes the best point in every recorded entry.
func WithPoints() Option {
	return func(w *Writer) { w.withPoints = true }
}

// NewWriter creates the trace file for runID, truncating an existing one.
func NewWriter(baseDir, runID string, opts ...Option) (*Writer, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	path := Path(baseDir, runID)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	w := &Writer{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
		every:  1,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Write appends an entry. The entry is buffered until Flush or Close.
func (tw *Writer) Write(entry Entry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.write(entry)
}

func (tw *Writer) write(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	tw.written++
	return nil
}

// Record converts an iteration event to an entry and writes it, subject to
// the Every sampling. It matches the neldermead.Settings.Observer signature;
// write errors are kept and reported by Err and Close. Events with a
// non-finite best value or spread are skipped since JSON cannot encode them.
func (tw *Writer) Record(ev neldermead.IterationEvent) {
	if ev.Iteration%tw.every != 0 {
		return
	}
	if !finite(ev.BestValue) || !finite(ev.Spread) {
		return
	}

	entry := Entry{
		Iteration: ev.Iteration,
		Step:      ev.Step.String(),
		BestValue: ev.BestValue,
		Spread:    ev.Spread,
		Timestamp: time.Now(),
	}
	if tw.withPoints {
		entry.Best = ev.Best
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.err != nil {
		return
	}
	tw.err = tw.write(entry)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Err returns the first error seen by Record.
func (tw *Writer) Err() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.err
}

// Written returns the number of entries written so far.
func (tw *Writer) Written() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.written
}

// Flush writes buffered data to the file and syncs it.
func (tw *Writer) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the file. It also reports an error
// held back by Record.
func (tw *Writer) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return tw.err
}

// Path returns the filesystem path of the trace file.
func (tw *Writer) Path() string {
	return tw.path
}

// Reader reads trace entries from a JSONL file.
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewReader opens the trace of runID.
func NewReader(baseDir, runID string) (*Reader, error) {
	file, err := os.Open(Path(baseDir, runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	// Entries with points can be long for large dimensions.
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	return &Reader{
		file:    file,
		scanner: scanner,
	}, nil
}

// Read returns the next entry, or io.EOF when none is left.
func (tr *Reader) Read() (*Entry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry Entry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads the remaining entries.
func (tr *Reader) ReadAll() ([]Entry, error) {
	var entries []Entry
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Close closes the reader.
func (tr *Reader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}
