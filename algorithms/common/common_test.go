package common

import (
	"math"
	"testing"
)

func TestRMS(t *testing.T) {
	samples := []float64{1, -1, 1, -1, 0, 0, 0, 0}

	tests := []struct {
		name          string
		start, length int
		want          float64
	}{
		{"full square", 0, 4, 1},
		{"half silent", 0, 8, math.Sqrt(0.5)},
		{"silent tail", 4, 4, 0},
		{"clipped window", 6, 10, 0},
		{"empty window", 8, 4, 0},
		{"negative start", -2, 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(samples, tt.start, tt.length); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("RMS(%d, %d) = %v, want %v", tt.start, tt.length, got, tt.want)
			}
		})
	}
}

func TestMedian(t *testing.T) {
	values := []float64{5, 1, 3}
	if got := Median(values); got != 3 {
		t.Errorf("Median odd = %v, want 3", got)
	}
	if values[0] != 5 {
		t.Error("Median must not reorder its input")
	}
	if got := Median([]float64{4, 1, 3, 2}); got != 3 {
		t.Errorf("Median even = %v, want upper middle 3", got)
	}
	if got := Median(nil); got != 0 {
		t.Errorf("Median empty = %v, want 0", got)
	}
}

func TestNewAudioBufferValidation(t *testing.T) {
	if _, err := NewAudioBuffer([][]float64{{0, 0}, {0}}, 44100); err == nil {
		t.Error("expected error for ragged channels")
	}
	if _, err := NewAudioBuffer([][]float64{{0}}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := NewAudioBuffer(nil, 44100); err == nil {
		t.Error("expected error for no channels")
	}
}

func TestDeinterleaveAndMono(t *testing.T) {
	buf, err := Deinterleave([]float64{1, -1, 0.5, 0.5, 0, 1}, 2, 8000)
	if err != nil {
		t.Fatal(err)
	}
	if buf.NumChannels() != 2 || buf.Length() != 3 {
		t.Fatalf("got %d channels x %d samples", buf.NumChannels(), buf.Length())
	}
	mono := buf.Mono()
	want := []float64{0, 0.5, 0.5}
	for i := range want {
		if math.Abs(mono[i]-want[i]) > 1e-12 {
			t.Errorf("mono[%d] = %v, want %v", i, mono[i], want[i])
		}
	}
	inter := buf.Interleaved()
	if inter[2] != 0.5 || inter[5] != 1 {
		t.Errorf("interleaved round trip mismatch: %v", inter)
	}
}

func TestSliceCopiesAndClamps(t *testing.T) {
	buf, _ := NewMonoBuffer([]float64{0, 1, 2, 3, 4}, 10)
	s := buf.Slice(-3, 3)
	if s.Length() != 3 {
		t.Fatalf("slice length = %d, want 3", s.Length())
	}
	s.Channels[0][0] = 99
	if buf.Channels[0][0] != 0 {
		t.Error("Slice must copy samples, not alias them")
	}
	if buf.Slice(4, 2).Length() != 0 {
		t.Error("inverted bounds should produce an empty buffer")
	}
	if math.Abs(buf.Seconds()-0.5) > 1e-12 {
		t.Errorf("Seconds = %v, want 0.5", buf.Seconds())
	}
}

func TestDBFSAndNormalizePeak(t *testing.T) {
	silent, _ := NewMonoBuffer(make([]float64, 100), 1000)
	if got := DBFS(silent); got != SilenceFloorDBFS {
		t.Errorf("DBFS(silence) = %v, want floor", got)
	}

	square, _ := NewMonoBuffer([]float64{0.5, -0.5, 0.5, -0.5}, 1000)
	if got := DBFS(square); math.Abs(got-20*math.Log10(0.5)) > 1e-9 {
		t.Errorf("DBFS(square) = %v", got)
	}

	norm := NormalizePeak(square, 0)
	if math.Abs(Peak(norm)-1) > 1e-12 {
		t.Errorf("normalized peak = %v, want 1", Peak(norm))
	}
	if square.Channels[0][0] != 0.5 {
		t.Error("NormalizePeak must not modify its input")
	}
}

func TestResampleBuffer(t *testing.T) {
	ramp := make([]float64, 100)
	for i := range ramp {
		ramp[i] = float64(i)
	}
	buf, _ := NewMonoBuffer(ramp, 100)

	for _, method := range []InterpolationType{Linear, Cubic} {
		out := NewInterpolator(method).ResampleBuffer(buf, 200)
		if out.SampleRate != 200 || out.Length() != 200 {
			t.Fatalf("method %d: got rate %d length %d", method, out.SampleRate, out.Length())
		}
		if math.Abs(out.Channels[0][21]-10.5) > 1e-9 {
			t.Errorf("method %d: sample 21 = %v, want 10.5", method, out.Channels[0][21])
		}
	}

	if same := NewInterpolator(Linear).ResampleBuffer(buf, 100); same != buf {
		t.Error("resampling to the same rate should return the input")
	}
}
