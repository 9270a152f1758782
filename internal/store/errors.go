package store

import "errors"

var (
	// ErrNotFound signals that the requested bucket or file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidName signals a name carrying path separators or traversal sequences.
	ErrInvalidName = errors.New("invalid file name")
	// ErrInvalidDate signals a date that is not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date format")
	// ErrWriteInterrupted signals a partial write; the partial file has been removed.
	ErrWriteInterrupted = errors.New("write interrupted")
)
