package ops

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/Esmaill1/image-lab/internal/artifact"
)

var (
	// ErrUnknownOperation indicates a request for an operation outside
	// the supported set.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidParameter indicates a parameter that could not be
	// parsed. Match with errors.Is; the concrete error is a ParamError
	// naming the field.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ParamError reports a form parameter that could not be parsed. Field
// names the offending parameter.
type ParamError struct {
	Field string
}

func (e *ParamError) Error() string { return "invalid parameter: " + e.Field }

func (e *ParamError) Unwrap() error { return ErrInvalidParameter }

// Parameter defaults and limits. Out-of-range numeric values are
// coerced rather than rejected.
const (
	DefaultScale    = 100.0
	MinScale        = 0.1
	DefaultKernel   = 5
	DefaultSobel    = 3
	MaxSobelKernel  = 7
	DefaultStrength = 1.0
	MinStrength     = 0.1
	MaxStrength     = 3.0
	DefaultFormat   = "png"
)

// Parse builds a validated Operation from a wire name and raw form
// parameters. Missing parameters fall back to defaults; present but
// unparseable ones fail with ErrInvalidParameter.
func Parse(name string, params url.Values) (Operation, error) {
	switch name {
	case "resize":
		scale, err := floatParam(params, "scale", DefaultScale)
		if err != nil {
			return nil, err
		}
		if scale <= 0 {
			scale = MinScale
		}
		return Resize{Scale: scale}, nil

	case "rotate":
		angle, err := floatParam(params, "angle", 0)
		if err != nil {
			return nil, err
		}
		return Rotate{Angle: angle}, nil

	case "brightness":
		value, err := intParam(params, "value", 0)
		if err != nil {
			return nil, err
		}
		return Brightness{Value: value}, nil

	case "blur_gaussian":
		kernel, err := intParam(params, "kernel_size", DefaultKernel)
		if err != nil {
			return nil, err
		}
		return GaussianBlur{Kernel: OddKernel(kernel)}, nil

	case "denoise_median":
		kernel, err := intParam(params, "kernel_size", DefaultKernel)
		if err != nil {
			return nil, err
		}
		return MedianDenoise{Kernel: OddKernel(kernel)}, nil

	case "edge_sobel":
		kernel, err := intParam(params, "ksize", DefaultSobel)
		if err != nil {
			return nil, err
		}
		return SobelEdge{Kernel: SobelKernel(kernel)}, nil

	case "sharpen":
		strength, err := floatParam(params, "strength", DefaultStrength)
		if err != nil {
			return nil, err
		}
		return Sharpen{Strength: clamp(strength, MinStrength, MaxStrength)}, nil

	case "hist_eq":
		return HistEq{}, nil

	case "negative":
		return Negative{}, nil

	case "convert":
		format := strings.ToLower(params.Get("format"))
		if format == "" {
			format = DefaultFormat
		}
		if !artifact.AllowedExt(format) {
			return nil, &ParamError{Field: "format"}
		}
		return Convert{Format: format}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

func floatParam(params url.Values, key string, def float64) (float64, error) {
	raw := params.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParamError{Field: key}
	}
	return v, nil
}

func intParam(params url.Values, key string, def int) (int, error) {
	raw := params.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParamError{Field: key}
	}
	return v, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
