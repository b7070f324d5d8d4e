package simulator

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// SignalConfig shapes the generated test interferogram
type SignalConfig struct {
	// SampleRate in Hz; also the number of points per second of signal
	SampleRate float64
	// Duration of the signal in seconds
	Duration float64
	// Amplitude of the sine component
	Amplitude float64
	// NoiseLevel is the standard deviation of the added gaussian noise
	NoiseLevel float64
}

// DefaultSignalConfig returns 1000 points of a unit sine with 0.2 noise
func DefaultSignalConfig() SignalConfig {
	return SignalConfig{
		SampleRate: 1000,
		Duration:   1,
		Amplitude:  1,
		NoiseLevel: 0.2,
	}
}

// Generator produces sine-plus-noise test signals
type Generator struct {
	cfg   SignalConfig
	rng   *rand.Rand
	noise distuv.Normal
}

// NewGenerator creates a generator seeded with seed
func NewGenerator(cfg SignalConfig, seed uint64) *Generator {
	src := rand.NewSource(seed)
	return &Generator{
		cfg: cfg,
		rng: rand.New(src),
		noise: distuv.Normal{
			Mu:    0,
			Sigma: cfg.NoiseLevel,
			Src:   src,
		},
	}
}

// Points returns the number of samples per signal
func (g *Generator) Points() int {
	return int(g.cfg.SampleRate * g.cfg.Duration)
}

// Next returns a signal with a sine at a random integer frequency in
// [1, SampleRate/2), and that frequency.
func (g *Generator) Next() ([]float64, int) {
	maxFreq := int(g.cfg.SampleRate / 2)
	freq := 1
	if maxFreq > 1 {
		freq = 1 + g.rng.Intn(maxFreq-1)
	}
	return g.Sine(float64(freq)), freq
}

// Sine returns amplitude*sin(2*pi*freq*t) plus noise
func (g *Generator) Sine(freq float64) []float64 {
	n := g.Points()
	sig := make([]float64, n)
	for i := range sig {
		t := float64(i) / g.cfg.SampleRate
		sig[i] = g.cfg.Amplitude * math.Sin(2*math.Pi*freq*t)
		if g.cfg.NoiseLevel > 0 {
			sig[i] += g.noise.Rand()
		}
	}
	return sig
}
