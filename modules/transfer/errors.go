package transfer

import "errors"

// Sentinel errors for transfer operations.
var (
	// ErrInvalidFilename is returned when the client-supplied filename is empty
	// or reduces to no usable path segment.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrNotFound is returned when the requested file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrAccessDenied is returned when a resolved path escapes the storage root.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotRegularFile is returned when the target exists but is not a regular file.
	ErrNotRegularFile = errors.New("not a regular file")
)
