package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the ingestion and rendering pipeline. Match them with
// errors.Is.
var (
	// ErrInvalidUpload marks a rejected upload: missing name, wrong extension,
	// empty content or a payload that is not a spreadsheet container.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrExtraction marks a spreadsheet whose structure could not be read.
	ErrExtraction = errors.New("extraction failure")
	// ErrPersistence marks a rolled back store transaction.
	ErrPersistence = errors.New("persistence failure")
	// ErrNoData marks a read that resolved no dataset or no rows.
	ErrNoData = errors.New("no data available")
)

// Error carries the context needed to diagnose a pipeline failure without
// reproducing it.
type Error struct {
	Kind        error
	Op          string
	Fingerprint string
	DatasetID   int64
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.DatasetID != 0 {
		fmt.Fprintf(&b, " (dataset %d)", e.DatasetID)
	}
	if e.Err != nil {
		if e.Kind != nil || e.DatasetID != 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     int64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Is lets ErrNotFound match ErrNoData.
func (e ErrNotFound) Is(target error) bool {
	return target == ErrNoData
}
