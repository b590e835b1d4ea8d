package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coffersTech/nanoflow/internal/record"
)

// FileSink buffers delivered records and flushes them to a timestamped .nf
// snapshot. It satisfies the engine's Sink interface.
type FileSink struct {
	dataDir string
	writer  *SnapshotWriter
	pending []*record.Record
}

// NewFileSink creates a sink writing snapshots under dataDir.
func NewFileSink(dataDir string) (*FileSink, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	w, err := NewSnapshotWriter()
	if err != nil {
		return nil, err
	}
	return &FileSink{dataDir: dataDir, writer: w}, nil
}

// Dir returns the snapshot directory.
func (s *FileSink) Dir() string { return s.dataDir }

// Consume buffers one record.
func (s *FileSink) Consume(rec *record.Record) error {
	s.pending = append(s.pending, rec)
	return nil
}

// Len returns the number of buffered records.
func (s *FileSink) Len() int { return len(s.pending) }

// Flush writes the buffered records to a new snapshot file and clears the
// buffer. Filename format: flow_{unixnano}.nf.
func (s *FileSink) Flush() (string, error) {
	if len(s.pending) == 0 {
		return "", nil
	}
	filename := fmt.Sprintf("flow_%d.nf", time.Now().UnixNano())
	path := filepath.Join(s.dataDir, filename)
	if err := s.writer.WriteSnapshot(path, s.pending); err != nil {
		return "", err
	}
	s.pending = s.pending[:0]
	return path, nil
}

// FileSource replays a .nf snapshot into the pipeline. It satisfies the
// engine's Source interface.
type FileSource struct {
	records []*record.Record
	next    int
}

// NewFileSource loads the snapshot at path.
func NewFileSource(path string) (*FileSource, error) {
	r, err := NewSnapshotReader()
	if err != nil {
		return nil, err
	}
	records, err := r.ReadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{records: records}, nil
}

func (s *FileSource) Pull() (*record.Record, bool) {
	if s.next >= len(s.records) {
		return nil, false
	}
	rec := s.records[s.next]
	s.records[s.next] = nil
	s.next++
	return rec, true
}

func (s *FileSource) Exhausted() bool {
	return s.next >= len(s.records)
}
