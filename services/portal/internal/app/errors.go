package app

import "errors"

var (
	ErrBookNotFound = errors.New("book not found")
	// ErrUnknownBook is returned when feedback targets a book that does not exist.
	ErrUnknownBook  = errors.New("unknown book")
	ErrUnauthorized = errors.New("unauthorized")
	ErrFileRequired = errors.New("Please select a PDF file.")
)
