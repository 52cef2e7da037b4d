package indicatorpipe

import (
	"errors"
	"fmt"
)

var (
	ErrValidationFailed   = errors.New("validation failed")
	ErrNetwork            = errors.New("network error")
	ErrNoData             = errors.New("no data")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrNoFetcherAvailable = errors.New("no fetcher available for request")
	ErrKeyColumnMissing   = errors.New("key column missing")
	ErrValueColumnExists  = errors.New("value column already present")
	ErrTimeout            = errors.New("operation timed out")
	ErrCanceled           = errors.New("operation canceled")
)

type PipelineError struct {
	Pipeline string
	Stage    string
	Op       string
	Err      error
}

func (e *PipelineError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("pipeline %s: stage %s: %s: %v", e.Pipeline, e.Stage, e.Op, e.Err)
	}
	return fmt.Sprintf("pipeline %s: %s: %v", e.Pipeline, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func NewPipelineError(pipeline, stage, op string, err error) *PipelineError {
	return &PipelineError{Pipeline: pipeline, Stage: stage, Op: op, Err: err}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// FetchError describes a failed or empty fetch for one key. Kind is one of
// ErrNetwork, ErrNoData or ErrMalformedResponse and is matched by errors.Is.
type FetchError struct {
	Source  string
	Key     CountryKey
	Kind    error
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s from %s: %v: %s: %v", e.Key, e.Source, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s from %s: %v: %s", e.Key, e.Source, e.Kind, e.Message)
}

func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NewFetchError(source string, key CountryKey, kind error, message string, err error) *FetchError {
	return &FetchError{Source: source, Key: key, Kind: kind, Message: message, Err: err}
}

// IsNoData reports whether err means the source had nothing for the key.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}

// MergeKeyError is raised for a primary row whose foreign key is empty or not
// an integer. Row is the 1-based data row number, excluding the header.
type MergeKeyError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *MergeKeyError) Error() string {
	return fmt.Sprintf("merge key error: row %d: column '%s': value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *MergeKeyError) Unwrap() error {
	return e.Err
}

func NewMergeKeyError(row int, column, value string, err error) *MergeKeyError {
	return &MergeKeyError{Row: row, Column: column, Value: value, Err: err}
}
