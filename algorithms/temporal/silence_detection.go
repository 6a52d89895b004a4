package temporal

import (
	"fmt"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/audioerr"
	"github.com/RyanBlaney/sonido-tono/logging"
)

// TrimConfig controls silence trimming
type TrimConfig struct {
	Threshold    float64 `json:"threshold"`     // RMS level a window must exceed
	PaddingStart float64 `json:"padding_start"` // Seconds kept before the first loud window
	PaddingEnd   float64 `json:"padding_end"`   // Seconds kept after the last loud window
	WindowSize   int     `json:"window_size"`   // RMS window length in samples
}

// DefaultTrimConfig returns the trim settings used for learner and reference clips
func DefaultTrimConfig() TrimConfig {
	return TrimConfig{
		Threshold:    0.01,
		PaddingStart: 0.05,
		PaddingEnd:   0.15,
		WindowSize:   1024,
	}
}

// Validate checks the trim configuration
func (c TrimConfig) Validate() error {
	if c.Threshold <= 0 {
		return audioerr.NewConfigError("trim.threshold", c.Threshold, "threshold must be positive")
	}
	if c.PaddingStart < 0 || c.PaddingEnd < 0 {
		return audioerr.NewConfigError("trim.padding", [2]float64{c.PaddingStart, c.PaddingEnd}, "padding must not be negative")
	}
	if c.WindowSize <= 0 {
		return audioerr.NewConfigError("trim.window_size", c.WindowSize, "window size must be positive")
	}
	return nil
}

// loudBounds scans non-overlapping windows of one channel from both ends and
// returns the start of the first and the end of the last window whose RMS
// exceeds threshold. ok is false when no window qualifies.
//
// The forward scan ends with the window aligned to the last sample, so the
// tail shorter than a window is covered from both directions.
func loudBounds(samples []float64, threshold float64, windowSize int) (start, end int, ok bool) {
	n := len(samples)
	if n == 0 {
		return 0, 0, false
	}
	windowSize = min(windowSize, n)

	start = -1
	for i := 0; i < n; i += windowSize {
		at := min(i, n-windowSize)
		if common.RMS(samples, at, windowSize) > threshold {
			start = at
			break
		}
	}
	if start < 0 {
		return 0, 0, false
	}

	end = start + windowSize
	for i := n - windowSize; i >= start; i -= windowSize {
		if common.RMS(samples, i, windowSize) > threshold {
			end = i + windowSize
			break
		}
	}
	return start, end, true
}

// TrimSilence removes leading and trailing silence from buf.
//
// Each channel is scanned independently; the kept region runs from the
// earliest loud window of any channel to the latest loud window of any
// channel, widened by the configured padding and clamped to the buffer.
// A buffer with no loud window returns *audioerr.SilenceError.
func TrimSilence(buf *common.AudioBuffer, config TrimConfig) (*common.AudioBuffer, error) {
	logger := logging.WithFields(logging.Fields{
		"function":  "TrimSilence",
		"threshold": config.Threshold,
	})

	if err := config.Validate(); err != nil {
		return nil, err
	}
	if buf == nil || buf.Length() == 0 {
		return nil, audioerr.NewSilenceError(config.Threshold)
	}

	start, end := buf.Length(), 0
	found := false
	for c, ch := range buf.Channels {
		chStart, chEnd, ok := loudBounds(ch, config.Threshold, config.WindowSize)
		if !ok {
			logger.Debug("Channel is silent", logging.Fields{"channel": c})
			continue
		}
		found = true
		start = min(start, chStart)
		end = max(end, chEnd)
	}
	if !found {
		return nil, audioerr.NewSilenceError(config.Threshold)
	}

	start -= int(config.PaddingStart * float64(buf.SampleRate))
	end += int(config.PaddingEnd * float64(buf.SampleRate))
	start = max(start, 0)
	end = min(end, buf.Length())
	if end <= start {
		return nil, fmt.Errorf("trim produced an empty range [%d, %d)", start, end)
	}

	trimmed := buf.Slice(start, end)
	logger.Debug("Trimmed silence", logging.Fields{
		"start_sample":     start,
		"end_sample":       end,
		"original_seconds": buf.Seconds(),
		"trimmed_seconds":  trimmed.Seconds(),
	})
	return trimmed, nil
}
