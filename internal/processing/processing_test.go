package processing

import (
	"errors"
	"math"
	"slices"
	"testing"
)

const tol = 1e-9

func approxEqual(t *testing.T, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d, want %d", name, len(got), len(want))
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

func cosine(n, bin int, phase float64) []float64 {
	x := make([]float64, n)
	for k := range x {
		x[k] = math.Cos(2*math.Pi*float64(bin*k)/float64(n) + phase)
	}
	return x
}

func TestBuilderEmptyChain(t *testing.T) {
	_, err := NewBuilder().Build()
	if !errors.Is(err, ErrEmptyChain) {
		t.Fatalf("Build() error = %v, want ErrEmptyChain", err)
	}

	_, err = NewBuilder().Add(nil).Build()
	if !errors.Is(err, ErrEmptyChain) {
		t.Fatalf("Build() with only nil stages error = %v, want ErrEmptyChain", err)
	}
}

func TestChainIsImmutable(t *testing.T) {
	b := NewBuilder().Add(NewFFT(false))
	chain, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	b.Add(NewPhaseCorrection(0))

	if got := chain.Stages(); !slices.Equal(got, []string{"fft"}) {
		t.Errorf("Stages() = %v, want [fft]", got)
	}
}

func TestChainDoesNotMutateInput(t *testing.T) {
	chain, err := NewStandardChain(StandardConfig{PhaseOffset: 0.3, Window: WindowKaiser, ZeroPadding: true})
	if err != nil {
		t.Fatal(err)
	}

	in := cosine(50, 3, 0.2)
	orig := slices.Clone(in)
	_ = chain.Process(in)

	if !slices.Equal(in, orig) {
		t.Error("Process modified its input")
	}
}

func TestChainDeterminism(t *testing.T) {
	for _, wt := range WindowTypes() {
		t.Run(string(wt), func(t *testing.T) {
			chain, err := NewStandardChain(StandardConfig{PhaseOffset: 0.7, Window: wt, ZeroPadding: true})
			if err != nil {
				t.Fatal(err)
			}
			in := cosine(100, 7, 0.1)
			first := chain.Process(in)
			second := chain.Process(in)
			if !slices.Equal(first, second) {
				t.Error("identical input gave different output")
			}
		})
	}
}

func TestMustStandardChain(t *testing.T) {
	chain := MustStandardChain(DefaultStandardConfig())
	if got := chain.Stages()[1]; got != "window_hann" {
		t.Errorf("default window stage = %q, want window_hann", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustStandardChain() should panic on an unknown window")
		}
	}()
	MustStandardChain(StandardConfig{Window: "triangle"})
}

func TestStandardChainStages(t *testing.T) {
	chain, err := NewStandardChain(StandardConfig{Window: WindowHamming})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"phase_correction", "window_hamming", "fft"}
	if got := chain.Stages(); !slices.Equal(got, want) {
		t.Errorf("Stages() = %v, want %v", got, want)
	}

	if _, err := NewStandardChain(StandardConfig{Window: "triangle"}); err == nil {
		t.Error("NewStandardChain() should reject an unknown window")
	}

	chain, err = NewStandardChain(StandardConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if got := chain.Stages()[1]; got != "window_none" {
		t.Errorf("empty window type built %q, want window_none", got)
	}
}

func TestFFTDC(t *testing.T) {
	in := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	got := NewFFT(false).Process(in)
	approxEqual(t, "spectrum", got, []float64{1, 0, 0, 0, 0})
}

func TestFFTSinePeak(t *testing.T) {
	got := NewFFT(false).Process(cosine(64, 4, 0))
	if len(got) != 33 {
		t.Fatalf("len = %d, want 33", len(got))
	}
	for k, v := range got {
		want := 0.0
		if k == 4 {
			want = 0.5
		}
		if math.Abs(v-want) > tol {
			t.Errorf("bin %d = %v, want %v", k, v, want)
		}
	}
}

func TestFFTBinCounts(t *testing.T) {
	tests := []struct {
		n       int
		padding bool
		want    int
	}{
		{100, true, 65},
		{100, false, 51},
		{128, true, 65},
		{129, true, 129},
		{7, false, 4},
		{1, true, 1},
		{0, true, 0},
	}
	for _, tt := range tests {
		got := NewFFT(tt.padding).Process(make([]float64, tt.n))
		if len(got) != tt.want {
			t.Errorf("n=%d padding=%v: %d bins, want %d", tt.n, tt.padding, len(got), tt.want)
		}
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := map[int]int{1: 1, 2: 2, 3: 4, 64: 64, 65: 128, 100: 128, 1000: 1024}
	for n, want := range tests {
		if got := nextPowerOfTwo(n); got != want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestWindowHann(t *testing.T) {
	w, err := NewWindow(WindowHann)
	if err != nil {
		t.Fatal(err)
	}
	got := w.Process([]float64{1, 1, 1, 1, 1})
	approxEqual(t, "hann", got, []float64{0, 0.5, 1, 0.5, 0})
}

func TestWindowHamming(t *testing.T) {
	w, _ := NewWindow(WindowHamming)
	got := w.Process([]float64{1, 1, 1})
	approxEqual(t, "hamming", got, []float64{0.08, 1, 0.08})
}

func TestWindowBlackman(t *testing.T) {
	w, _ := NewWindow(WindowBlackman)
	got := w.Process([]float64{1, 1, 1})
	approxEqual(t, "blackman", got, []float64{0, 1, 0})
}

func TestWindowKaiser(t *testing.T) {
	w, _ := NewWindow(WindowKaiser)
	got := w.Process([]float64{1, 1, 1, 1, 1})

	edge := 1 / besselI0(KaiserBeta)
	if math.Abs(got[0]-edge) > tol || math.Abs(got[4]-edge) > tol {
		t.Errorf("edges = %v, %v, want %v", got[0], got[4], edge)
	}
	if math.Abs(got[2]-1) > tol {
		t.Errorf("center = %v, want 1", got[2])
	}
	if math.Abs(got[1]-got[3]) > tol {
		t.Errorf("window not symmetric: %v", got)
	}
}

func TestWindowShortInputs(t *testing.T) {
	for _, wt := range WindowTypes() {
		w, _ := NewWindow(wt)
		if got := w.Process([]float64{3}); !slices.Equal(got, []float64{3}) {
			t.Errorf("%s on single sample = %v, want [3]", wt, got)
		}
		if got := w.Process(nil); len(got) != 0 {
			t.Errorf("%s on empty input = %v", wt, got)
		}
	}
}

func TestWindowNoneIsIdentity(t *testing.T) {
	w, _ := NewWindow(WindowNone)
	in := []float64{1, -2, 3.5}
	if got := w.Process(in); !slices.Equal(got, in) {
		t.Errorf("Process() = %v, want %v", got, in)
	}
}

func TestBesselI0(t *testing.T) {
	tests := []struct {
		x, want float64
	}{
		{0, 1},
		{1, 1.2660658777520082},
		{14, 129418.5627006486},
	}
	for _, tt := range tests {
		if got := besselI0(tt.x); math.Abs(got-tt.want) > 1e-9*tt.want {
			t.Errorf("besselI0(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestParseWindowType(t *testing.T) {
	tests := []struct {
		in      string
		want    WindowType
		wantErr bool
	}{
		{"hann", WindowHann, false},
		{"HAMMING", WindowHamming, false},
		{" blackman ", WindowBlackman, false},
		{"kaiser", WindowKaiser, false},
		{"none", WindowNone, false},
		{"", WindowNone, false},
		{"gauss", "", true},
	}
	for _, tt := range tests {
		got, err := ParseWindowType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowType(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWindowType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPhaseZeroOffsetIsIdentity(t *testing.T) {
	for _, n := range []int{8, 9, 64, 101} {
		in := cosine(n, 2, 0.4)
		in[0] += 0.25
		got := NewPhaseCorrection(0).Process(in)
		approxEqual(t, "phase", got, in)
	}
}

func TestPhaseQuarterTurnGivesHilbert(t *testing.T) {
	n := 64
	in := cosine(n, 4, 0)
	got := NewPhaseCorrection(math.Pi / 2).Process(in)

	want := make([]float64, n)
	for k := range want {
		want[k] = math.Sin(2 * math.Pi * 4 * float64(k) / float64(n))
	}
	approxEqual(t, "hilbert", got, want)
}

func TestAnalyticMagnitude(t *testing.T) {
	a := analytic(cosine(32, 3, 0.9))
	for i, v := range a {
		if mag := math.Hypot(real(v), imag(v)); math.Abs(mag-1) > tol {
			t.Fatalf("|a[%d]| = %v, want 1", i, mag)
		}
	}
	if got := analytic(nil); len(got) != 0 {
		t.Errorf("analytic(nil) = %v", got)
	}
}

func TestPhaseEmptyInput(t *testing.T) {
	if got := NewPhaseCorrection(1).Process([]float64{}); len(got) != 0 {
		t.Errorf("Process(empty) = %v", got)
	}
}
