package spectral

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/algorithms/windowing"
	"github.com/RyanBlaney/sonido-tono/audioerr"
	"github.com/RyanBlaney/sonido-tono/logging"
)

// SpectrogramConfig controls short-time magnitude analysis
type SpectrogramConfig struct {
	WindowSize     int            `json:"window_size"`     // FFT length in samples
	HopSize        int            `json:"hop_size"`        // Stride between windows
	MaxFrequency   float64        `json:"max_frequency"`   // Highest displayed frequency (Hz)
	Window         windowing.Type `json:"window"`          // Taper applied before the FFT
	MagnitudeScale float64        `json:"magnitude_scale"` // Linear gain before 8-bit quantization
}

// DefaultSpectrogramConfig returns non-overlapping 1024-sample Hann windows up to 5 kHz
func DefaultSpectrogramConfig() SpectrogramConfig {
	return SpectrogramConfig{
		WindowSize:     1024,
		HopSize:        1024,
		MaxFrequency:   5000,
		Window:         windowing.Hann,
		MagnitudeScale: 1.0,
	}
}

// Validate checks the spectrogram configuration
func (c SpectrogramConfig) Validate() error {
	if c.WindowSize < 2 {
		return audioerr.NewConfigError("spectrogram.window_size", c.WindowSize, "window size must be at least 2")
	}
	if c.HopSize <= 0 {
		return audioerr.NewConfigError("spectrogram.hop_size", c.HopSize, "hop size must be positive")
	}
	if c.MaxFrequency <= 0 {
		return audioerr.NewConfigError("spectrogram.max_frequency", c.MaxFrequency, "max frequency must be positive")
	}
	if c.MagnitudeScale <= 0 {
		return audioerr.NewConfigError("spectrogram.magnitude_scale", c.MagnitudeScale, "magnitude scale must be positive")
	}
	if _, err := windowing.New(c.Window, c.WindowSize); err != nil {
		return audioerr.NewConfigError("spectrogram.window", c.Window, err.Error())
	}
	return nil
}

// Spectrogram is a time x frequency matrix of 8-bit magnitudes
type Spectrogram struct {
	Slices     [][]uint8 `json:"slices"`      // One magnitude vector per hop
	SampleRate int       `json:"sample_rate"` // Sample rate of the analyzed buffer
	WindowSize int       `json:"window_size"` // FFT window size
	HopSize    int       `json:"hop_size"`    // Hop size between slices
	BinCount   int       `json:"bin_count"`   // Retained bins per slice
}

// FrequencyResolution returns Hz per bin
func (s *Spectrogram) FrequencyResolution() float64 {
	return float64(s.SampleRate) / float64(s.WindowSize)
}

// SliceTime returns the start time of slice i in seconds
func (s *Spectrogram) SliceTime(i int) float64 {
	return float64(i*s.HopSize) / float64(s.SampleRate)
}

// MaxFrequency returns the frequency of the highest retained bin
func (s *Spectrogram) MaxFrequency() float64 {
	return float64(s.BinCount-1) * s.FrequencyResolution()
}

// BinCount returns how many low-frequency bins are kept for a window size,
// sample rate and display ceiling
func BinCount(windowSize, sampleRate int, maxFrequency float64) int {
	full := windowSize/2 + 1
	resolution := float64(sampleRate) / float64(windowSize)
	kept := int(math.Floor(maxFrequency/resolution)) + 1
	return max(1, min(full, kept))
}

// Quantize converts a magnitude to an 8-bit value, clipping at 255
func Quantize(magnitude float64) uint8 {
	if magnitude <= 0 || math.IsNaN(magnitude) {
		return 0
	}
	if magnitude >= 255 {
		return 255
	}
	return uint8(magnitude)
}

// Generator produces spectrograms with a worker pool
type Generator struct {
	config SpectrogramConfig
}

// NewGenerator creates a spectrogram generator; the configuration is validated.
func NewGenerator(config SpectrogramConfig) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Generator{config: config}, nil
}

// Config returns the generator configuration
func (g *Generator) Config() SpectrogramConfig {
	return g.config
}

// Generate computes the spectrogram of the buffer's mono mixdown. Windows
// that would run past the buffer end are dropped.
func (g *Generator) Generate(ctx context.Context, buf *common.AudioBuffer) (*Spectrogram, error) {
	logger := logging.WithFields(logging.Fields{
		"function":    "Generate",
		"window_size": g.config.WindowSize,
		"hop_size":    g.config.HopSize,
	})

	if buf == nil || buf.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid audio buffer")
	}

	signal := buf.Mono()
	windowSize := g.config.WindowSize
	hopSize := g.config.HopSize
	binCount := BinCount(windowSize, buf.SampleRate, g.config.MaxFrequency)

	result := &Spectrogram{
		SampleRate: buf.SampleRate,
		WindowSize: windowSize,
		HopSize:    hopSize,
		BinCount:   binCount,
	}
	if len(signal) < windowSize {
		result.Slices = [][]uint8{}
		return result, nil
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	slices := make([][]uint8, numFrames)

	window, err := windowing.New(g.config.Window, windowSize)
	if err != nil {
		return nil, err
	}

	jobs := make(chan int, numFrames)
	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)

	eg, egctx := errgroup.WithContext(ctx)
	for range getOptimalWorkerCount(numFrames) {
		eg.Go(func() error {
			w := newFrameWorker(window, binCount, g.config.MagnitudeScale)
			for frameIdx := range jobs {
				if err := egctx.Err(); err != nil {
					return err
				}
				start := frameIdx * hopSize
				row, err := w.row(signal[start : start+windowSize])
				if err != nil {
					return fmt.Errorf("frame %d: %w", frameIdx, err)
				}
				slices[frameIdx] = row
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("spectrogram canceled: %w", ctxErr)
		}
		logger.Error(err, "Spectrogram generation failed")
		return nil, fmt.Errorf("spectrogram: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("spectrogram canceled: %w", err)
	}

	result.Slices = slices
	logger.Debug("Spectrogram generated", logging.Fields{
		"slices": numFrames,
		"bins":   binCount,
	})
	return result, nil
}

// frameWorker owns one FFT plan and frame buffer
type frameWorker struct {
	plan     *fourier.FFT
	window   *windowing.Window
	frame    []float64
	coeffs   []complex128
	binCount int
	scale    float64
}

func newFrameWorker(window *windowing.Window, binCount int, scale float64) *frameWorker {
	n := window.Size()
	return &frameWorker{
		plan:     fourier.NewFFT(n),
		window:   window,
		frame:    make([]float64, n),
		coeffs:   make([]complex128, n/2+1),
		binCount: binCount,
		scale:    scale,
	}
}

// row windows samples and returns the first binCount quantized magnitudes
func (w *frameWorker) row(samples []float64) ([]uint8, error) {
	if len(samples) != len(w.frame) {
		return nil, fmt.Errorf("frame length %d does not match window size %d", len(samples), len(w.frame))
	}
	copy(w.frame, samples)
	if err := w.window.ApplyInPlace(w.frame); err != nil {
		return nil, err
	}
	w.coeffs = w.plan.Coefficients(w.coeffs, w.frame)
	row := make([]uint8, w.binCount)
	for k := range w.binCount {
		row[k] = Quantize(cmplx.Abs(w.coeffs[k]) * w.scale)
	}
	return row, nil
}

// getOptimalWorkerCount determines the number of workers based on workload
func getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}
	if numFrames < 1000 {
		return min(numCPU, 8)
	}
	return numCPU
}
