package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwon789/adaptive-filter/internal/fsutil"
	"github.com/cwon789/adaptive-filter/internal/timeutil"
)

// Journal appends received datagrams to a JSONL file, one timestamped
// record per line, so a recorded session can be replayed later.
type Journal struct {
	path  string
	clock timeutil.Clock

	mu sync.Mutex
	w  io.WriteCloser

	records atomic.Uint64
}

// JournalRecord is one journalled datagram.
type JournalRecord struct {
	Time     time.Time       `json:"time"`
	Envelope json.RawMessage `json:"envelope"`
}

// NewJournal creates a journal file named after the current time in
// dir, creating the directory if needed.
func NewJournal(fsys fsutil.FileSystem, dir string, clock timeutil.Clock) (*Journal, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	name := fmt.Sprintf("journal-%s.jsonl", clock.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(dir, name)
	w, err := fsys.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal file: %w", err)
	}

	return &Journal{path: path, clock: clock, w: w}, nil
}

// Record appends one datagram. The datagram must be valid JSON; a
// malformed one is rejected rather than corrupting the journal.
func (j *Journal) Record(datagram []byte) error {
	if !json.Valid(datagram) {
		return fmt.Errorf("datagram is not valid JSON")
	}

	line, err := json.Marshal(JournalRecord{
		Time:     j.clock.Now().UTC(),
		Envelope: json.RawMessage(datagram),
	})
	if err != nil {
		return err
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.Write(line); err != nil {
		return fmt.Errorf("journal write: %w", err)
	}
	j.records.Add(1)
	return nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Records returns the number of records written.
func (j *Journal) Records() uint64 {
	return j.records.Load()
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.w.Close()
}

// ReadJournal streams the records of a journal file in order,
// stopping at the first malformed line or when fn returns an error.
func ReadJournal(fsys fsutil.FileSystem, path string, fn func(JournalRecord) error) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec JournalRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("journal line %d: %w", lineNo, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return sc.Err()
}
