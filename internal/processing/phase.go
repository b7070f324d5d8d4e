package processing

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// PhaseCorrection rotates the analytic signal of the input by -Offset
// radians and keeps the real part.
type PhaseCorrection struct {
	Offset float64
}

// NewPhaseCorrection creates a phase stage with the offset in radians
func NewPhaseCorrection(offset float64) *PhaseCorrection {
	return &PhaseCorrection{Offset: offset}
}

// Name implements Stage
func (p *PhaseCorrection) Name() string {
	return "phase_correction"
}

// Process implements Stage. For analytic signal a it returns
// Re(a * e^(-j*Offset)).
func (p *PhaseCorrection) Process(samples []float64) []float64 {
	a := analytic(samples)
	cos, sin := math.Cos(p.Offset), math.Sin(p.Offset)

	out := make([]float64, len(a))
	for i, v := range a {
		out[i] = real(v)*cos + imag(v)*sin
	}
	return out
}

// analytic computes x + j*H(x) by zeroing the negative frequencies of the
// spectrum and doubling the positive ones.
func analytic(x []float64) []complex128 {
	n := len(x)
	switch n {
	case 0:
		return []complex128{}
	case 1:
		return []complex128{complex(x[0], 0)}
	}

	seq := make([]complex128, n)
	for i, v := range x {
		seq[i] = complex(v, 0)
	}

	fft := fourier.NewCmplxFFT(n)
	coeff := fft.Coefficients(nil, seq)

	half := n / 2
	for k := 1; k < n; k++ {
		switch {
		case n%2 == 0 && k == half:
			// Nyquist bin is kept as is
		case k <= (n-1)/2:
			coeff[k] *= 2
		default:
			coeff[k] = 0
		}
	}

	// Sequence is unnormalized
	out := fft.Sequence(nil, coeff)
	scale := complex(1/float64(n), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}
