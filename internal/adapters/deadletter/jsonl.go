// Package deadletter records persistence tasks that could not be stored.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// FileSink implements output.DeadLetterSink by appending one JSON document
// per line to a file.
type FileSink struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewFileSink creates a sink writing to path. A nil fs means the OS
// filesystem. The parent directory is created on demand.
func NewFileSink(fs afero.Fs, path string) *FileSink {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileSink{fs: fs, path: path}
}

// Path returns the target file.
func (s *FileSink) Path() string { return s.path }

// Write implements output.DeadLetterSink.
func (s *FileSink) Write(ctx context.Context, dl domain.DeadLetter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("encoding dead letter %s: %w", dl.TaskID, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating dead letter directory: %w", err)
	}
	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening dead letter file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing dead letter: %w", err)
	}
	return f.Close()
}

// ReadAll returns every recorded dead letter in write order.
func (s *FileSink) ReadAll() ([]domain.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []domain.DeadLetter
	dec := json.NewDecoder(f)
	for dec.More() {
		var dl domain.DeadLetter
		if err := dec.Decode(&dl); err != nil {
			return out, fmt.Errorf("decoding dead letter %d: %w", len(out)+1, err)
		}
		out = append(out, dl)
	}
	return out, nil
}
