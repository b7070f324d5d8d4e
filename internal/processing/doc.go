// Package processing turns raw interferograms into spectra.
//
// A Chain is an ordered, immutable list of Stages built with a Builder:
//
//	chain, err := processing.NewBuilder().
//	    Add(processing.NewPhaseCorrection(0.1)).
//	    Add(hann).
//	    Add(processing.NewFFT(true)).
//	    Build()
//
//	spectrum := chain.Process(interferogram)
//
// NewStandardChain assembles the usual phase correction, window and FFT
// sequence from a StandardConfig.
//
// Stages never modify their input slice and hold no per-call state, so a
// Chain may be shared between goroutines. The same input and configuration
// always give bit-identical output.
//
// Transforms are computed with gonum.org/v1/gonum/dsp/fourier and the
// Hann, Hamming and Blackman windows come from gonum.org/v1/gonum/dsp/window.
package processing
