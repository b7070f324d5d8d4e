package processing

// StandardConfig configures the phase, window and FFT chain
type StandardConfig struct {
	PhaseOffset float64
	Window      WindowType
	ZeroPadding bool
}

// DefaultStandardConfig returns no phase offset, a Hann window and zero
// padding.
func DefaultStandardConfig() StandardConfig {
	return StandardConfig{
		Window:      WindowHann,
		ZeroPadding: true,
	}
}

// NewStandardChain builds phase correction -> window -> FFT
func NewStandardChain(cfg StandardConfig) (*Chain, error) {
	wt := cfg.Window
	if wt == "" {
		wt = WindowNone
	}
	w, err := NewWindow(wt)
	if err != nil {
		return nil, err
	}

	return NewBuilder().
		Add(NewPhaseCorrection(cfg.PhaseOffset)).
		Add(w).
		Add(NewFFT(cfg.ZeroPadding)).
		Build()
}

// MustStandardChain is like NewStandardChain but panics if cfg is invalid.
// It is meant for fixed configurations such as DefaultStandardConfig.
func MustStandardChain(cfg StandardConfig) *Chain {
	c, err := NewStandardChain(cfg)
	if err != nil {
		panic("processing: " + err.Error())
	}
	return c
}
