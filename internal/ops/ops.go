// Package ops defines the operations the editor can apply to an image:
// a closed set of typed values, each carrying validated parameters and
// a human-readable history label. Raw form input only becomes an
// Operation through Parse, so everything downstream of the dispatcher
// holds normalized parameters.
package ops

import (
	"fmt"
	"strings"
)

// Operation is one validated image operation. The set of
// implementations is fixed; the transform engine switches over it
// exhaustively.
type Operation interface {
	// Name returns the wire name used to request the operation.
	Name() string

	// Label returns the history label shown to users, built from the
	// normalized parameters, e.g. "Brightness (+20)".
	Label() string

	isOperation()
}

// Resize scales both dimensions by a percentage.
type Resize struct {
	Scale float64 // percent, > 0
}

func (Resize) isOperation()    {}
func (Resize) Name() string    { return "resize" }
func (o Resize) Label() string { return fmt.Sprintf("Resize (%g%%)", o.Scale) }

// Rotate rotates about the image center, expanding the canvas so no
// content is cropped. Positive angles rotate counter-clockwise.
type Rotate struct {
	Angle float64 // degrees
}

func (Rotate) isOperation()    {}
func (Rotate) Name() string    { return "rotate" }
func (o Rotate) Label() string { return fmt.Sprintf("Rotate (%g°)", o.Angle) }

// Brightness adds a signed offset to every channel, saturating at the
// ends of the value range.
type Brightness struct {
	Value int
}

func (Brightness) isOperation() {}
func (Brightness) Name() string { return "brightness" }
func (o Brightness) Label() string {
	if o.Value >= 0 {
		return fmt.Sprintf("Brightness (+%d)", o.Value)
	}
	return fmt.Sprintf("Brightness (%d)", o.Value)
}

// GaussianBlur smooths with a square Gaussian kernel.
type GaussianBlur struct {
	Kernel int // odd, >= 1
}

func (GaussianBlur) isOperation()    {}
func (GaussianBlur) Name() string    { return "blur_gaussian" }
func (o GaussianBlur) Label() string { return fmt.Sprintf("Gaussian Blur (k=%d)", o.Kernel) }

// MedianDenoise removes shot noise with a median filter.
type MedianDenoise struct {
	Kernel int // odd, >= 1
}

func (MedianDenoise) isOperation()    {}
func (MedianDenoise) Name() string    { return "denoise_median" }
func (o MedianDenoise) Label() string { return fmt.Sprintf("Median Denoise (k=%d)", o.Kernel) }

// SobelEdge renders gradient magnitude as a grayscale edge image.
type SobelEdge struct {
	Kernel int // odd aperture in [1, 7]
}

func (SobelEdge) isOperation()    {}
func (SobelEdge) Name() string    { return "edge_sobel" }
func (o SobelEdge) Label() string { return fmt.Sprintf("Sobel Edge (k=%d)", o.Kernel) }

// Sharpen subtracts a scaled Laplacian from the image.
type Sharpen struct {
	Strength float64 // in [0.1, 3.0]
}

func (Sharpen) isOperation()    {}
func (Sharpen) Name() string    { return "sharpen" }
func (o Sharpen) Label() string { return fmt.Sprintf("Sharpen (%gx)", o.Strength) }

// HistEq equalizes the luminance histogram, leaving chroma untouched.
type HistEq struct{}

func (HistEq) isOperation()  {}
func (HistEq) Name() string  { return "hist_eq" }
func (HistEq) Label() string { return "Hist Eq" }

// Negative inverts every channel.
type Negative struct{}

func (Negative) isOperation()  {}
func (Negative) Name() string  { return "negative" }
func (Negative) Label() string { return "Negative" }

// Convert re-encodes the image in another supported format. Pixels are
// untouched; only the container changes.
type Convert struct {
	Format string // lowercase extension, e.g. "png"
}

func (Convert) isOperation()    {}
func (Convert) Name() string    { return "convert" }
func (o Convert) Label() string { return "Convert to " + strings.ToUpper(o.Format) }
