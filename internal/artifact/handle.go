// Package artifact stores the image files sessions work on. Every
// artifact lives in one of four areas under a single data root and is
// addressed by an opaque handle, never by a client-supplied filename.
package artifact

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Area names a subdirectory of the data root.
type Area string

const (
	// Uploads holds pristine originals as received.
	Uploads Area = "uploads"

	// Working holds the per-session history entries.
	Working Area = "working"

	// Processed holds full-resolution copies served for download.
	Processed Area = "processed"

	// Previews holds downscaled JPEG renditions for display.
	Previews Area = "previews"
)

// Areas returns every storage area in a stable order.
func Areas() []Area {
	return []Area{Uploads, Working, Processed, Previews}
}

var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"bmp":  true,
	"webp": true,
}

// AllowedExt reports whether ext (lowercase, without dot) is a supported
// image format.
func AllowedExt(ext string) bool {
	return allowedExtensions[ext]
}

// ErrInvalidName indicates a name that is not a well-formed artifact handle.
var ErrInvalidName = errors.New("invalid artifact name")

// handlePattern matches 32 lowercase hex characters, a dot, and an extension.
var handlePattern = regexp.MustCompile(`^[a-f0-9]{32}\.[a-z0-9]+$`)

// Handle identifies a stored artifact. The string form is the on-disk
// filename: a 32-character hex stem plus an extension, for example
// "aeb1f0c2d94e4b8a9f3070a1c55d2e61.png". Handles are generated
// server-side, so a valid handle can never name a path outside its area.
type Handle string

// NewHandle returns a fresh random handle with the given extension.
func NewHandle(ext string) Handle {
	stem := strings.ReplaceAll(uuid.New().String(), "-", "")
	return Handle(stem + "." + strings.ToLower(ext))
}

// ParseHandle validates an externally supplied name (typically a URL
// path segment) and returns it as a Handle. Anything that is not a hex
// stem plus a supported extension is rejected.
func ParseHandle(name string) (Handle, error) {
	if !handlePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	h := Handle(name)
	if !AllowedExt(h.Ext()) {
		return "", fmt.Errorf("%w: unsupported extension %q", ErrInvalidName, h.Ext())
	}
	return h, nil
}

// Stem returns the hex portion of the handle, without the extension.
func (h Handle) Stem() string {
	if i := strings.LastIndexByte(string(h), '.'); i >= 0 {
		return string(h)[:i]
	}
	return string(h)
}

// Ext returns the extension without the leading dot.
func (h Handle) Ext() string {
	if i := strings.LastIndexByte(string(h), '.'); i >= 0 {
		return string(h)[i+1:]
	}
	return ""
}

// Preview returns the handle of the derived preview artifact: the same
// stem, always JPEG. Previews live in the Previews area and share the
// stem of the artifact they render, so deleting an artifact can find
// its preview without extra bookkeeping.
func (h Handle) Preview() Handle {
	return Handle(h.Stem() + ".jpg")
}

func (h Handle) String() string {
	return string(h)
}
