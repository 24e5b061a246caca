// Package transform applies operations to image files with OpenCV.
// Decoding, pixel work, and encoding all happen here; callers hand in
// paths and a validated operation.
package transform

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/Esmaill1/image-lab/internal/ops"
)

const previewJPEGQuality = 85

var (
	// ErrDecode indicates the source file could not be read as an image.
	ErrDecode = errors.New("could not decode image")

	// ErrEncode indicates the result could not be written in the target
	// format.
	ErrEncode = errors.New("could not encode image")
)

// Engine runs operations against image files on disk.
type Engine struct {
	log *logrus.Logger
}

// New returns an Engine that logs through log.
func New(log *logrus.Logger) *Engine {
	return &Engine{log: log}
}

// Transform decodes srcPath, applies op, and encodes the result to
// dstPath. The encoder is chosen by the destination extension, which is
// how Convert changes container formats without touching pixels.
func (e *Engine) Transform(srcPath, dstPath string, op ops.Operation) error {
	img := gocv.IMRead(srcPath, gocv.IMReadColor)
	if img.Empty() {
		return fmt.Errorf("%w: %s", ErrDecode, filepath.Base(srcPath))
	}
	defer img.Close()

	e.log.WithFields(logrus.Fields{
		"operation": op.Name(),
		"width":     img.Cols(),
		"height":    img.Rows(),
	}).Debug("applying operation")

	out, err := apply(img, op)
	if err != nil {
		out.Close()
		return err
	}
	defer out.Close()

	if ok := gocv.IMWrite(dstPath, out); !ok {
		return fmt.Errorf("%w: %s", ErrEncode, filepath.Base(dstPath))
	}
	return nil
}

// Preview writes a JPEG rendition of srcPath to dstPath, downscaled so
// the longer edge is at most maxEdge pixels. Images already small
// enough are re-encoded unscaled.
func (e *Engine) Preview(srcPath, dstPath string, maxEdge int) error {
	img := gocv.IMRead(srcPath, gocv.IMReadColor)
	if img.Empty() {
		return fmt.Errorf("%w: %s", ErrDecode, filepath.Base(srcPath))
	}
	defer img.Close()

	w, h := img.Cols(), img.Rows()
	if maxEdge > 0 && (w > maxEdge || h > maxEdge) {
		scale := float64(maxEdge) / float64(max(w, h))
		pw, ph := max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
		small := gocv.NewMat()
		gocv.Resize(img, &small, image.Pt(pw, ph), 0, 0, gocv.InterpolationArea)
		img.Close()
		img = small
	}

	params := []int{gocv.IMWriteJpegQuality, previewJPEGQuality}
	if ok := gocv.IMWriteWithParams(dstPath, img, params); !ok {
		return fmt.Errorf("%w: %s", ErrEncode, filepath.Base(dstPath))
	}
	return nil
}

// apply dispatches on the operation type. Every variant returns a new
// Mat the caller owns.
func apply(img gocv.Mat, op ops.Operation) (gocv.Mat, error) {
	switch o := op.(type) {
	case ops.Resize:
		return resize(img, o), nil
	case ops.Rotate:
		return rotate(img, o), nil
	case ops.Brightness:
		return brightness(img, o), nil
	case ops.GaussianBlur:
		out := gocv.NewMat()
		gocv.GaussianBlur(img, &out, image.Pt(o.Kernel, o.Kernel), 0, 0, gocv.BorderDefault)
		return out, nil
	case ops.MedianDenoise:
		out := gocv.NewMat()
		gocv.MedianBlur(img, &out, o.Kernel)
		return out, nil
	case ops.SobelEdge:
		return sobelEdges(img, o), nil
	case ops.Sharpen:
		return sharpen(img, o), nil
	case ops.HistEq:
		return equalizeLuminance(img), nil
	case ops.Negative:
		out := gocv.NewMat()
		gocv.BitwiseNot(img, &out)
		return out, nil
	case ops.Convert:
		// Nothing to do per pixel; the destination extension selects
		// the new encoder.
		return img.Clone(), nil
	}
	return gocv.NewMat(), fmt.Errorf("%w: %q", ops.ErrUnknownOperation, op.Name())
}

func resize(img gocv.Mat, o ops.Resize) gocv.Mat {
	w, h := ops.ScaledDims(img.Cols(), img.Rows(), o.Scale)
	out := gocv.NewMat()
	gocv.Resize(img, &out, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
	return out
}

// rotate warps the image about its center into a canvas large enough to
// hold the rotated content, filling the exposed corners with white.
func rotate(img gocv.Mat, o ops.Rotate) gocv.Mat {
	w, h := img.Cols(), img.Rows()
	center := image.Pt(w/2, h/2)

	m := gocv.GetRotationMatrix2D(center, o.Angle, 1.0)
	defer m.Close()

	bw, bh := ops.RotatedBounds(w, h, o.Angle)

	// Shift the transform so the content lands centered in the new
	// canvas.
	m.SetDoubleAt(0, 2, m.GetDoubleAt(0, 2)+float64(bw)/2-float64(center.X))
	m.SetDoubleAt(1, 2, m.GetDoubleAt(1, 2)+float64(bh)/2-float64(center.Y))

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	out := gocv.NewMat()
	gocv.WarpAffineWithParams(img, &out, m, image.Pt(bw, bh), gocv.InterpolationLinear, gocv.BorderConstant, white)
	return out
}

// brightness shifts every channel by the offset, saturating at the
// ends of the 8-bit range.
func brightness(img gocv.Mat, o ops.Brightness) gocv.Mat {
	v := o.Value
	if v > 255 {
		v = 255
	}
	if v < -255 {
		v = -255
	}
	out := gocv.NewMat()
	img.ConvertToWithParams(&out, gocv.MatTypeCV8U, 1, float32(v))
	return out
}

// sobelEdges computes gradient magnitude on the luminance and renders
// it back to three channels so downstream encoding stays uniform.
func sobelEdges(img gocv.Mat, o ops.SobelEdge) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(gray, &gx, gocv.MatTypeCV64F, 1, 0, o.Kernel, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gy, gocv.MatTypeCV64F, 0, 1, o.Kernel, 1, 0, gocv.BorderDefault)

	mag := gocv.NewMat()
	defer mag.Close()
	gocv.Magnitude(gx, gy, &mag)

	// Saturating depth conversion clamps the magnitude to [0, 255].
	mag8 := gocv.NewMat()
	defer mag8.Close()
	mag.ConvertTo(&mag8, gocv.MatTypeCV8U)

	out := gocv.NewMat()
	gocv.CvtColor(mag8, &out, gocv.ColorGrayToBGR)
	return out
}

// sharpen subtracts a strength-scaled Laplacian in float space, then
// converts back with saturation.
func sharpen(img gocv.Mat, o ops.Sharpen) gocv.Mat {
	f := gocv.NewMat()
	defer f.Close()
	img.ConvertTo(&f, gocv.MatTypeCV32F)

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(f, &lap, gocv.MatTypeCV32F, 3, 1, 0, gocv.BorderDefault)
	lap.MultiplyFloat(float32(o.Strength))

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(f, lap, &diff)

	out := gocv.NewMat()
	diff.ConvertTo(&out, gocv.MatTypeCV8U)
	return out
}

// equalizeLuminance equalizes the Y plane in YUV space so colors keep
// their hue.
func equalizeLuminance(img gocv.Mat) gocv.Mat {
	yuv := gocv.NewMat()
	defer yuv.Close()
	gocv.CvtColor(img, &yuv, gocv.ColorBGRToYUV)

	planes := gocv.Split(yuv)
	gocv.EqualizeHist(planes[0], &planes[0])

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(planes, &merged)
	for i := range planes {
		planes[i].Close()
	}

	out := gocv.NewMat()
	gocv.CvtColor(merged, &out, gocv.ColorYUVToBGR)
	return out
}
