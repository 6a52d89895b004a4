package spectral

import (
	"context"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/algorithms/windowing"
	"github.com/RyanBlaney/sonido-tono/audioerr"
)

func sine(n, sampleRate int, freq, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestBinCount(t *testing.T) {
	tests := []struct {
		window, rate int
		maxFreq      float64
		want         int
	}{
		{1024, 48000, 5000, 107},
		{1024, 8000, 5000, 513}, // ceiling above Nyquist keeps every bin
		{512, 44100, 0.1, 1},
	}
	for _, tt := range tests {
		if got := BinCount(tt.window, tt.rate, tt.maxFreq); got != tt.want {
			t.Errorf("BinCount(%d, %d, %v) = %d, want %d", tt.window, tt.rate, tt.maxFreq, got, tt.want)
		}
	}
}

func TestQuantizeClips(t *testing.T) {
	cases := map[float64]uint8{-3: 0, 0: 0, 12.9: 12, 254.99: 254, 255: 255, 1e9: 255, math.NaN(): 0}
	for in, want := range cases {
		if got := Quantize(in); got != want {
			t.Errorf("Quantize(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestGeneratePeakBinAndShape(t *testing.T) {
	const rate = 48000
	freq := 20 * float64(rate) / 1024 // exactly bin 20
	buf, _ := common.NewMonoBuffer(sine(2500, rate, freq, 0.5), rate)

	gen, err := NewGenerator(DefaultSpectrogramConfig())
	if err != nil {
		t.Fatal(err)
	}
	sg, err := gen.Generate(context.Background(), buf)
	if err != nil {
		t.Fatal(err)
	}

	if len(sg.Slices) != 2 {
		t.Fatalf("got %d slices, want 2 (partial tail dropped)", len(sg.Slices))
	}
	if sg.BinCount != 107 || len(sg.Slices[0]) != 107 {
		t.Fatalf("bin count = %d/%d, want 107", sg.BinCount, len(sg.Slices[0]))
	}

	row := sg.Slices[0]
	peak := 0
	for k := range row {
		if row[k] > row[peak] {
			peak = k
		}
	}
	if peak != 20 {
		t.Errorf("peak bin = %d, want 20", peak)
	}
	// Hann-windowed sine of amplitude A peaks at A*N/4
	if row[20] < 120 || row[20] > 130 {
		t.Errorf("peak magnitude = %d, want about 128", row[20])
	}
	if math.Abs(sg.SliceTime(1)-1024.0/48000) > 1e-12 {
		t.Errorf("SliceTime(1) = %v", sg.SliceTime(1))
	}
}

func TestGenerateClipsLoudInput(t *testing.T) {
	const rate = 8000
	buf, _ := common.NewMonoBuffer(sine(1024, rate, 20*float64(rate)/1024, 1.0), rate)

	cfg := DefaultSpectrogramConfig()
	cfg.Window = windowing.Rectangular
	gen, _ := NewGenerator(cfg)
	sg, err := gen.Generate(context.Background(), buf)
	if err != nil {
		t.Fatal(err)
	}
	if sg.Slices[0][20] != 255 {
		t.Errorf("expected clipping at 255, got %d", sg.Slices[0][20])
	}
}

func TestGenerateShortBufferAndCancel(t *testing.T) {
	gen, _ := NewGenerator(DefaultSpectrogramConfig())

	short, _ := common.NewMonoBuffer(make([]float64, 100), 8000)
	sg, err := gen.Generate(context.Background(), short)
	if err != nil || len(sg.Slices) != 0 {
		t.Errorf("short buffer: slices=%v err=%v", sg, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	long, _ := common.NewMonoBuffer(make([]float64, 1<<16), 8000)
	if _, err := gen.Generate(ctx, long); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestSpectrogramConfigValidate(t *testing.T) {
	cfg := DefaultSpectrogramConfig()
	cfg.Window = "triangle"
	if _, ok := audioerr.As[*audioerr.ConfigError](cfg.Validate()); !ok {
		t.Error("expected ConfigError for unknown window")
	}
	cfg = DefaultSpectrogramConfig()
	cfg.HopSize = 0
	if _, err := NewGenerator(cfg); err == nil {
		t.Error("expected error for zero hop")
	}
}

func TestFFTRoundTrip(t *testing.T) {
	f := NewFFT()
	x := []float64{1, 2, 3, 4, 0, -1}
	back := f.ComputeInverseReal(f.Compute(x))
	for i := range x {
		if math.Abs(back[i]-x[i]) > 1e-9 {
			t.Errorf("round trip [%d] = %v, want %v", i, back[i], x[i])
		}
	}
	if NextPowerOfTwo(4095) != 4096 || NextPowerOfTwo(1) != 1 || NextPowerOfTwo(5) != 8 {
		t.Error("NextPowerOfTwo mismatch")
	}
	if len(ZeroPad(x, 10)) != 10 {
		t.Error("ZeroPad length mismatch")
	}
}

func TestFrameWorkerRejectsMismatchedFrame(t *testing.T) {
	window, err := windowing.New(windowing.Hann, 16)
	if err != nil {
		t.Fatal(err)
	}
	w := newFrameWorker(window, 9, 1)

	if row, err := w.row(make([]float64, 8)); err == nil || row != nil {
		t.Errorf("short frame: row=%v err=%v, want an error and no row", row, err)
	}

	row, err := w.row(sine(16, 8000, 1000, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	if len(row) != 9 {
		t.Errorf("row length = %d, want 9", len(row))
	}
	if row[2] == 0 {
		t.Error("1 kHz at 8 kHz with 16 points should light bin 2")
	}
}
