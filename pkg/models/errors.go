package models

import (
	"fmt"

	"github.com/go-faster/errors"
)

var ErrProductNotFound = errors.New("product not found")

// ValidationError is a caller input problem. It maps to 400 and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AcquisitionError means a source could not be reached, rendered or parsed after
// the retry budget was spent.
type AcquisitionError struct {
	Source string
	URL    string
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("acquire %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("acquire %s (%s): %v", e.Source, e.URL, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// CacheError wraps backend failures. The cache service logs these and degrades;
// they never reach HTTP callers.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// AggregationError is an unexpected fault while merging or encoding results.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return "aggregate: " + e.Err.Error()
}

func (e *AggregationError) Unwrap() error { return e.Err }

// Acquisition wraps err as an AcquisitionError unless it already is one.
func Acquisition(source, url string, err error) error {
	if err == nil {
		return nil
	}
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return err
	}
	return &AcquisitionError{Source: source, URL: url, Err: err}
}
