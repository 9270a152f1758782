package transfer

import "errors"

var (
	// ErrNoNames signals a download request without any file names.
	ErrNoNames = errors.New("no file names provided")
	// ErrEmptyText signals a text drop with no content after trimming.
	ErrEmptyText = errors.New("empty text")
)
