package usage

import (
	"errors"
	"fmt"
)

// ErrEmptyDataset is returned when no usable record survives normalization.
var ErrEmptyDataset = errors.New("no usable usage records")

// IngestionError reports that the upstream export could not be fetched or read.
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Source, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// ComputationError aborts one refresh cycle when a computed view is not well formed.
type ComputationError struct {
	Stage string
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("compute %s: %v", e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }
