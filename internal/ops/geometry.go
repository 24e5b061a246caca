package ops

import "math"

// OddKernel normalizes a filter kernel size: at least 1, and odd (even
// values round up).
func OddKernel(k int) int {
	if k < 1 {
		k = 1
	}
	if k%2 == 0 {
		k++
	}
	return k
}

// SobelKernel normalizes a Sobel aperture: clamped to [1, 7], then odd.
func SobelKernel(k int) int {
	if k < 1 {
		k = 1
	}
	if k > MaxSobelKernel {
		k = MaxSobelKernel
	}
	if k%2 == 0 {
		k++
	}
	return k
}

// ScaledDims returns the output dimensions for a percentage resize,
// rounded to the nearest pixel and clamped to a 1x1 minimum.
func ScaledDims(width, height int, scale float64) (int, int) {
	w := int(math.Round(float64(width) * scale / 100))
	h := int(math.Round(float64(height) * scale / 100))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// RotatedBounds returns the canvas size that fully contains an image of
// the given dimensions after rotation by angle degrees about its center.
func RotatedBounds(width, height int, angle float64) (int, int) {
	rad := angle * math.Pi / 180
	cos := math.Abs(math.Cos(rad))
	sin := math.Abs(math.Sin(rad))
	w := int(float64(width)*cos + float64(height)*sin)
	h := int(float64(width)*sin + float64(height)*cos)
	return w, h
}
