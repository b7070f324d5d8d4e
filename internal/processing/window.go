package processing

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowType names an apodization window
type WindowType string

// Supported windows
const (
	WindowNone     WindowType = "none"
	WindowHann     WindowType = "hann"
	WindowHamming  WindowType = "hamming"
	WindowBlackman WindowType = "blackman"
	WindowKaiser   WindowType = "kaiser"
)

// KaiserBeta is the shape parameter of the Kaiser window
const KaiserBeta = 14.0

// WindowTypes lists the supported windows
func WindowTypes() []WindowType {
	return []WindowType{WindowNone, WindowHann, WindowHamming, WindowBlackman, WindowKaiser}
}

// ParseWindowType accepts a window name case-insensitively. An empty name
// means no window.
func ParseWindowType(name string) (WindowType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return WindowNone, nil
	}
	for _, w := range WindowTypes() {
		if string(w) == name {
			return w, nil
		}
	}
	return "", fmt.Errorf("unsupported window type %q", name)
}

// Window multiplies the input by a symmetric window of the same length
type Window struct {
	Type WindowType
}

// NewWindow creates a window stage
func NewWindow(t WindowType) (*Window, error) {
	if !slices.Contains(WindowTypes(), t) {
		return nil, fmt.Errorf("unsupported window type %q", t)
	}
	return &Window{Type: t}, nil
}

// Name implements Stage
func (w *Window) Name() string {
	return "window_" + string(w.Type)
}

// Process implements Stage. Inputs of length 0 or 1 are returned unchanged.
func (w *Window) Process(samples []float64) []float64 {
	out := slices.Clone(samples)
	if out == nil {
		out = []float64{}
	}
	if len(out) <= 1 {
		return out
	}

	switch w.Type {
	case WindowHann:
		return window.Hann(out)
	case WindowHamming:
		return window.Hamming(out)
	case WindowBlackman:
		return window.Blackman(out)
	case WindowKaiser:
		return kaiser(out, KaiserBeta)
	default:
		return window.Rectangular(out)
	}
}

// kaiser applies w[k] = I0(beta*sqrt(1-(2k/(N-1)-1)^2)) / I0(beta) in place.
func kaiser(seq []float64, beta float64) []float64 {
	n := float64(len(seq) - 1)
	norm := besselI0(beta)
	for k := range seq {
		r := 2*float64(k)/n - 1
		seq[k] *= besselI0(beta*math.Sqrt(math.Max(0, 1-r*r))) / norm
	}
	return seq
}

// besselI0 is the modified Bessel function of the first kind, order zero,
// summed from its power series.
func besselI0(x float64) float64 {
	q := x * x / 4
	sum, term := 1.0, 1.0
	for k := 1.0; k < 500; k++ {
		term *= q / (k * k)
		sum += term
		if term < sum*1e-17 {
			break
		}
	}
	return sum
}
