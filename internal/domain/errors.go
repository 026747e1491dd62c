package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when two vectors that must share a
	// dimensionality do not.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProvider wraps every failure of the embedding backend.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrGenerationProvider wraps every failure of the generation backend.
	ErrGenerationProvider = errors.New("generation provider error")
	// ErrNotReady is returned for queries that arrive before the first index build.
	ErrNotReady = errors.New("knowledge base not ready")
	// ErrEmptyQuery is returned for blank questions.
	ErrEmptyQuery = errors.New("question must not be empty")
)

// IngestionItemError describes a single file or chunk that was skipped during ingestion.
type IngestionItemError struct {
	Source string
	Chunk  int // -1 when the whole file failed
	Err    error
}

func (e *IngestionItemError) Error() string {
	if e.Chunk < 0 {
		return fmt.Sprintf("ingest %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("ingest %s chunk %d: %v", e.Source, e.Chunk, e.Err)
}

func (e *IngestionItemError) Unwrap() error { return e.Err }

// IngestionFatalError means the knowledge source itself could not be read.
type IngestionFatalError struct {
	Path string
	Err  error
}

func (e *IngestionFatalError) Error() string {
	return fmt.Sprintf("knowledge source %s unreadable: %v", e.Path, e.Err)
}

func (e *IngestionFatalError) Unwrap() error { return e.Err }

// DimensionError builds an ErrDimensionMismatch with both lengths attached.
func DimensionError(want, got int) error {
	return fmt.Errorf("%w: want %d, got %d", ErrDimensionMismatch, want, got)
}
