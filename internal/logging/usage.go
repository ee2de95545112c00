package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// UsageRecord is one line of the append-only usage log.
type UsageRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
	Provider  string          `json:"provider"`
	Model     string          `json:"model,omitempty"`
	Usage     json.RawMessage `json:"usage,omitempty"`
}

// Sink receives usage records from the relay. Recording is a best-effort
// side channel: Record never returns an error and must never delay or fail
// the request it is logging.
type Sink interface {
	Record(rec *UsageRecord)
}

// NoopSink discards records. Used when the log file cannot be opened.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Record(rec *UsageRecord) {}

// FileSink appends newline-delimited JSON records to <dir>/usage.jsonl.
// Each record is one O_APPEND write, so interleaved writers cannot corrupt
// the file. I/O failures are reported to the diagnostic logger only.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	path string
	log  *zap.Logger
}

// NewFileSink opens (or creates) the usage log for appending.
func NewFileSink(dir string, log *zap.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "usage.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: file, path: path, log: log}, nil
}

// Record appends one record as a single newline-terminated JSON line.
func (s *FileSink) Record(rec *UsageRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn("usage record dropped: marshal failed", zap.Error(err))
		return
	}
	line := append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		s.log.Warn("usage record dropped: append failed",
			zap.String("path", s.path), zap.Error(err))
	}
}

// Close flushes nothing (writes are unbuffered) and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
