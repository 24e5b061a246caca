package artifact

import (
	"errors"
	"io"
)

var (
	// ErrNotFound indicates the named artifact does not exist in the area.
	ErrNotFound = errors.New("artifact not found")

	// ErrWriteFailed indicates an artifact could not be persisted.
	ErrWriteFailed = errors.New("artifact write failed")
)

// Store is the blob store backing sessions. Implementations must be
// safe for concurrent use.
type Store interface {
	// Create writes r to a new artifact in area and returns its handle.
	Create(area Area, ext string, r io.Reader) (Handle, error)

	// Duplicate copies an existing artifact into dst under a fresh
	// handle with the same extension.
	Duplicate(src Area, h Handle, dst Area) (Handle, error)

	// Open returns the artifact contents. The caller closes the reader.
	Open(area Area, h Handle) (io.ReadCloser, error)

	// Exists reports whether the artifact is present.
	Exists(area Area, h Handle) bool

	// Delete removes the artifact. Deleting an absent artifact is not
	// an error.
	Delete(area Area, h Handle) error

	// Path returns the location of an artifact for direct file access.
	// Callers must only pass handles obtained from NewHandle or
	// ParseHandle.
	Path(area Area, h Handle) string
}
