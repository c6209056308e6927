package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned from a download checkpoint once the worker was
	// asked to stop. It is a control signal, not a failure.
	ErrStopped = errors.New("download stopped")

	// ErrNotFound is returned when a library record does not exist
	ErrNotFound = errors.New("not found")

	// ErrBusy is returned when a chapter cannot be changed while it downloads
	ErrBusy = errors.New("chapter is being downloaded")

	// ErrInvalidPosition is returned for a negative reorder target
	ErrInvalidPosition = errors.New("position must be over or equal to 0")

	// ErrNoPages is returned when a source reports an empty chapter
	ErrNoPages = errors.New("no pages found for chapter")

	// ErrEmptyContent is returned when a novel chapter has no text
	ErrEmptyContent = errors.New("no content found for chapter")

	// ErrPageTooLarge is returned when a page body exceeds the source limit
	ErrPageTooLarge = errors.New("page exceeds size limit")
)

// FetchError reports a failure to fetch a single page of a chapter
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
