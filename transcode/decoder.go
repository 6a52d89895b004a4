package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/audioerr"
	"github.com/RyanBlaney/sonido-tono/logging"
)

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"` // 0 keeps the source rate
	MaxDuration      time.Duration `json:"max_duration"`       // 0 for no limit
	ResampleQuality  string        `json:"resample_quality"`   // "fast" is linear, "medium" and "high" are cubic
	FFmpegPath       string        `json:"ffmpeg_path"`        // Path to ffmpeg binary, "" disables the fallback
	FFprobePath      string        `json:"ffprobe_path"`       // Path to ffprobe binary
	Timeout          time.Duration `json:"timeout"`            // Timeout for ffmpeg operations
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		TargetSampleRate: 0,
		MaxDuration:      0,
		ResampleQuality:  "medium",
		FFmpegPath:       "ffmpeg",  // Assume in PATH
		FFprobePath:      "ffprobe", // Assume in PATH
		Timeout:          30 * time.Second,
	}
}

// Validate checks the decoder configuration without touching the filesystem
func (c DecoderConfig) Validate() error {
	if c.TargetSampleRate < 0 {
		return audioerr.NewConfigError("target_sample_rate", c.TargetSampleRate, "sample rate must not be negative")
	}
	if c.Timeout <= 0 {
		return audioerr.NewConfigError("timeout", c.Timeout, "timeout must be positive")
	}
	switch c.ResampleQuality {
	case "", "fast", "medium", "high":
	default:
		return audioerr.NewConfigError("resample_quality", c.ResampleQuality, "unknown resample quality")
	}
	return nil
}

// Decoder turns encoded audio bytes into an AudioBuffer.
//
// WAV is decoded in-process; any other container goes through ffmpeg when
// it is configured and installed. Every failure is a *audioerr.DecodeError.
type Decoder struct {
	config DecoderConfig
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// NewDecoder creates a new audio decoder
func NewDecoder(config DecoderConfig) *Decoder {
	return &Decoder{config: config}
}

// Config returns the decoder configuration
func (d *Decoder) Config() DecoderConfig {
	return d.config
}

// DecodeSource reads src and decodes its bytes
func (d *Decoder) DecodeSource(ctx context.Context, src Source) (*common.AudioBuffer, error) {
	data, err := src.Read(ctx)
	if err != nil {
		if _, ok := audioerr.As[*audioerr.DecodeError](err); ok {
			return nil, err
		}
		return nil, audioerr.NewDecodeError(src.Name(), "failed to read source", err)
	}
	return d.Decode(ctx, src.Name(), data)
}

// Decode decodes audio bytes. name only labels errors and logs.
func (d *Decoder) Decode(ctx context.Context, name string, data []byte) (*common.AudioBuffer, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "Decode",
		"source":    name,
		"data_size": len(data),
	})

	if len(data) == 0 {
		return nil, audioerr.NewDecodeError(name, "empty audio data", nil)
	}

	var (
		buf *common.AudioBuffer
		err error
	)
	if IsWav(data) {
		buf, err = decodeWav(data)
		if err != nil && d.ffmpegEnabled() {
			logger.Debug("in-process WAV decode failed, trying ffmpeg", logging.Fields{"reason": err.Error()})
			buf, err = d.decodeWithFFmpeg(ctx, data)
		}
	} else if d.ffmpegEnabled() {
		if err = d.CheckFFmpeg(ctx); err == nil {
			buf, err = d.decodeWithFFmpeg(ctx, data)
		}
	} else {
		err = errors.New("unsupported format and ffmpeg fallback disabled")
	}
	if err != nil {
		logger.Error(err, "Audio decode failed")
		return nil, audioerr.NewDecodeError(name, "failed to decode audio", err)
	}
	if buf.Length() == 0 {
		return nil, audioerr.NewDecodeError(name, "no audio samples decoded", nil)
	}

	if d.config.TargetSampleRate > 0 && buf.SampleRate != d.config.TargetSampleRate {
		method := common.Cubic
		if d.config.ResampleQuality == "fast" {
			method = common.Linear
		}
		buf = common.NewInterpolator(method).ResampleBuffer(buf, d.config.TargetSampleRate)
	}
	if d.config.MaxDuration > 0 {
		limit := int(d.config.MaxDuration.Seconds() * float64(buf.SampleRate))
		if limit < buf.Length() {
			buf = buf.Slice(0, limit)
		}
	}

	logger.Debug("Audio decode completed", logging.Fields{
		"sample_rate": buf.SampleRate,
		"channels":    buf.NumChannels(),
		"duration":    buf.Seconds(),
	})
	return buf, nil
}

func (d *Decoder) ffmpegEnabled() bool {
	return d.config.FFmpegPath != "" && d.config.FFprobePath != ""
}

// decodeWithFFmpeg probes the stream and decodes it to float64 PCM at the
// source rate and channel count
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, data []byte) (*common.AudioBuffer, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "decodeWithFFmpeg",
	})

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	metadata, err := d.probeAudioMetadata(ctx, data)
	if err != nil {
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	args := append([]string{"-i", "pipe:0"}, d.buildFFmpegArgs(metadata)...)
	args = append(args, "pipe:1")

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	cmd.Stdin = bytes.NewReader(data)

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}
	return common.Deinterleave(samples, metadata.Channels, metadata.SampleRate)
}

// probeAudioMetadata uses ffprobe to get input audio information from bytes
func (d *Decoder) probeAudioMetadata(ctx context.Context, data []byte) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet", // Suppress verbose output
		"-print_format", "json", // JSON output
		"-show_streams",          // Show stream info
		"-select_streams", "a:0", // First audio stream only
		"pipe:0", // Input from stdin
	}

	cmd := exec.CommandContext(ctx, d.config.FFprobePath, args...)
	cmd.Stdin = bytes.NewReader(data)

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %q", stream.SampleRate)
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildFFmpegArgs builds the ffmpeg output arguments. Resampling to the
// configured target happens in-process afterwards.
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	args := []string{
		"-vn",
		"-f", "f64le", // Output raw float64 little-endian
		"-ac", strconv.Itoa(metadata.Channels),
		"-ar", strconv.Itoa(metadata.SampleRate),
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	// Suppress ffmpeg output
	return append(args, "-v", "error")
}

// bytesToFloat64 converts raw float64 little-endian bytes to samples,
// ignoring a trailing partial sample
func bytesToFloat64(data []byte) []float64 {
	sampleCount := len(data) / 8
	if sampleCount == 0 {
		return nil
	}

	samples := make([]float64, sampleCount)
	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}

// CheckFFmpeg reports whether the configured ffmpeg and ffprobe binaries run
func (d *Decoder) CheckFFmpeg(ctx context.Context) error {
	if !d.ffmpegEnabled() {
		return fmt.Errorf("ffmpeg fallback disabled")
	}
	if err := exec.CommandContext(ctx, d.config.FFmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.config.FFmpegPath, err)
	}
	if err := exec.CommandContext(ctx, d.config.FFprobePath, "-version").Run(); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", d.config.FFprobePath, err)
	}
	return nil
}
