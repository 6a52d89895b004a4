package render

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-tono/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tono/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tono/audioerr"
)

func plainOptions(w, h int) Options {
	opts := DefaultOptions()
	opts.Width, opts.Height = w, h
	opts.Smooth = false
	opts.Labels = false
	return opts
}

// lowBinSpectrogram has full energy in bin 0 only; 100 Hz per bin, top bin 400 Hz
func lowBinSpectrogram() *spectral.Spectrogram {
	slices := make([][]uint8, 10)
	for i := range slices {
		slices[i] = []uint8{255, 0, 0, 0, 0}
	}
	return &spectral.Spectrogram{Slices: slices, SampleRate: 1000, WindowSize: 10, HopSize: 10, BinCount: 5}
}

func flatTrack(pitch float64, n int) *tonal.PitchTrack {
	frames := make([]tonal.PitchFrame, n)
	for i := range frames {
		frames[i] = tonal.PitchFrame{Pitch: pitch, Confidence: 0.9}
	}
	return &tonal.PitchTrack{Frames: frames, SampleRate: 1000, FrameSize: 100, HopSize: 50}
}

func TestHeat(t *testing.T) {
	if Heat(0) != heatStops[0].c {
		t.Errorf("Heat(0) = %v", Heat(0))
	}
	if Heat(255) != heatStops[len(heatStops)-1].c {
		t.Errorf("Heat(255) = %v", Heat(255))
	}
	if Heat(128) != heatStops[2].c {
		t.Errorf("Heat(128) = %v", Heat(128))
	}
	lo, hi := Heat(10), Heat(200)
	if int(lo.R)+int(lo.G)+int(lo.B) >= int(hi.R)+int(hi.G)+int(hi.B) {
		t.Errorf("expected brighter colour for higher magnitude: %v vs %v", lo, hi)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"zero width", func(o *Options) { o.Width = 0 }},
		{"negative max frequency", func(o *Options) { o.MaxFrequency = -1 }},
		{"confidence above one", func(o *Options) { o.MinConfidence = 1.5 }},
		{"thin contour", func(o *Options) { o.ContourWidth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			if _, ok := audioerr.As[*audioerr.ConfigError](opts.Validate()); !ok {
				t.Error("expected ConfigError")
			}
		})
	}
	if err := DefaultOptions().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestRenderRequiresInput(t *testing.T) {
	if _, err := Render(nil, nil, DefaultOptions()); err == nil {
		t.Error("expected error with nothing to draw")
	}
	if _, err := Render(nil, flatTrack(200, 5), DefaultOptions()); err == nil {
		t.Error("expected error for a track without a frequency ceiling")
	}
}

func TestRenderHeatMapOrientation(t *testing.T) {
	img, err := Render(lowBinSpectrogram(), nil, plainOptions(40, 40))
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(0, 39); got != Heat(255) {
		t.Errorf("bottom row = %v, want loud colour", got)
	}
	if got := img.RGBAAt(0, 0); got != Heat(0) {
		t.Errorf("top row = %v, want quiet colour", got)
	}
}

func TestRenderContour(t *testing.T) {
	opts := plainOptions(100, 100)
	opts.MaxFrequency = 400

	img, err := Render(nil, flatTrack(200, 10), opts)
	if err != nil {
		t.Fatal(err)
	}
	// 200 Hz of 400 Hz lands at the middle row
	if got := img.RGBAAt(50, 50); got != opts.ContourColor {
		t.Errorf("contour pixel = %v, want %v", got, opts.ContourColor)
	}
	if got := img.RGBAAt(50, 10); got == opts.ContourColor {
		t.Error("contour drawn away from its pitch")
	}

	opts.MinConfidence = 0.95
	img, err = Render(nil, flatTrack(200, 10), opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(50, 50); got == opts.ContourColor {
		t.Error("low-confidence frames should be skipped")
	}
}

func TestRenderProgressCursor(t *testing.T) {
	opts := plainOptions(100, 20)
	opts.Progress = 50

	img, err := Render(lowBinSpectrogram(), nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	cursor, beside := img.RGBAAt(50, 0), img.RGBAAt(20, 0)
	if cursor == beside {
		t.Errorf("no cursor at 50%%: %v", cursor)
	}
}

func TestWritePNG(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 64, 32
	img, err := Render(lowBinSpectrogram(), flatTrack(200, 10), opts)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.png")
	if err := WritePNG(path, img); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := decoded.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("decoded size %dx%d", b.Dx(), b.Dy())
	}
}
