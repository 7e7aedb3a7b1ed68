// Package export writes cleaned datasets to analytics sinks.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// Writer is a dataset sink.
type Writer interface {
	Write(ds *models.Dataset) error
	Close() error
}

// MultiWriter outputs one dataset to several sinks.
type MultiWriter struct {
	writers []Writer
	mu      sync.Mutex
}

// NewMultiWriter fans writes out to writers in order.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write writes ds to every sink and stops at the first failure.
func (mw *MultiWriter) Write(ds *models.Dataset) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for i, w := range mw.writers {
		if err := w.Write(ds); err != nil {
			return fmt.Errorf("sink %d write failed: %w", i, err)
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for i, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink %d close failed: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (mw *MultiWriter) Len() int {
	return len(mw.writers)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
