package processing

import (
	"math"
	"math/bits"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT computes the magnitude spectrum of a real input
type FFT struct {
	// ZeroPadding extends the input with zeros to the next power of two
	ZeroPadding bool
}

// NewFFT creates an FFT stage
func NewFFT(zeroPadding bool) *FFT {
	return &FFT{ZeroPadding: zeroPadding}
}

// Name implements Stage
func (f *FFT) Name() string {
	return "fft"
}

// Process implements Stage. It returns |X_k|/N for k = 0..N/2, where N is
// the transform length after any padding.
func (f *FFT) Process(samples []float64) []float64 {
	n := len(samples)
	if n == 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{math.Abs(samples[0])}
	}
	if f.ZeroPadding {
		n = nextPowerOfTwo(n)
	}

	seq := make([]float64, n)
	copy(seq, samples)

	coeff := fourier.NewFFT(n).Coefficients(nil, seq)

	spectrum := make([]float64, len(coeff))
	for i, c := range coeff {
		spectrum[i] = cmplx.Abs(c) / float64(n)
	}
	return spectrum
}

// nextPowerOfTwo returns the smallest power of two >= n, for n >= 1.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
