package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-ikea/models"
)

// MultiWriter fans each batch out to a group of sinks in order. A failed
// write aborts the fan-out; close and validate visit every sink and
// report all failures.
type MultiWriter struct {
	writers []OutputWriter
	mu      sync.Mutex
}

// NewMultiWriter combines any number of sinks behind one OutputWriter.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// NewDualWriter pairs a CSV and a JSONL sink, the "dual" output format.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("failed to create JSON writer: %w", err)
	}

	return NewMultiWriter(csvWriter, jsonWriter), nil
}

// Write writes products to every sink.
func (mw *MultiWriter) Write(products []*models.Product) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for i, w := range mw.writers {
		if err := w.Write(products); err != nil {
			return fmt.Errorf("fan-out write to sink %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every sink, even when an earlier one fails.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for i, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates every sink.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("validate sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
