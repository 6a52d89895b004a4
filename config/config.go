// Package config aggregates the tunable settings of every component and
// loads them from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/RyanBlaney/sonido-tono/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tono/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tono/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tono/analyzer"
	"github.com/RyanBlaney/sonido-tono/audioerr"
	"github.com/RyanBlaney/sonido-tono/capture"
	"github.com/RyanBlaney/sonido-tono/logging"
	"github.com/RyanBlaney/sonido-tono/render"
	"github.com/RyanBlaney/sonido-tono/transcode"
)

// VoiceType selects a pitch search range suited to a speaker
type VoiceType string

const (
	VoiceDefault VoiceType = "default"
	VoiceLow     VoiceType = "low"  // Adult male
	VoiceHigh    VoiceType = "high" // Adult female
	VoiceChild   VoiceType = "child"
)

// Settings is the complete configuration
type Settings struct {
	Voice       VoiceType                  `json:"voice"`
	Yin         tonal.YinParams            `json:"yin"`
	Spectrogram spectral.SpectrogramConfig `json:"spectrogram"`
	Trim        temporal.TrimConfig        `json:"trim"`
	Recording   capture.RecordingSettings  `json:"recording"`
	Decoder     transcode.DecoderConfig    `json:"decoder"`
	Render      render.Options             `json:"render"`
	LogLevel    string                     `json:"log_level"` // debug, info, warn, error
}

// Default returns the settings for the default voice
func Default() *Settings {
	return ForVoice(VoiceDefault)
}

// ForVoice returns default settings with the pitch range tuned for voice
func ForVoice(voice VoiceType) *Settings {
	return &Settings{
		Voice:       voice,
		Yin:         YinParamsForVoice(voice),
		Spectrogram: spectral.DefaultSpectrogramConfig(),
		Trim:        temporal.DefaultTrimConfig(),
		Recording:   capture.DefaultRecordingSettings(),
		Decoder:     transcode.DefaultDecoderConfig(),
		Render:      render.DefaultOptions(),
		LogLevel:    "info",
	}
}

// YinParamsForVoice narrows the YIN search range to the speaker's register,
// which keeps subharmonic dips of low voices and overtones of high voices
// out of the candidate lags
func YinParamsForVoice(voice VoiceType) tonal.YinParams {
	p := tonal.DefaultYinParams()

	switch voice {
	case VoiceLow:
		p.MinFreq = 50
		p.MaxFreq = 300
	case VoiceHigh:
		p.MinFreq = 120
		p.MaxFreq = 600
	case VoiceChild:
		p.MinFreq = 180
		p.MaxFreq = 800
		p.FrameSize = 1024
		p.HopSize = 256
	}

	return p
}

// Load reads a JSON settings file. Keys absent from the file keep the
// defaults of the voice the file names.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes settings from JSON, see Load
func Parse(data []byte) (*Settings, error) {
	var probe struct {
		Voice VoiceType `json:"voice"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	voice := probe.Voice
	if voice == "" {
		voice = VoiceDefault
	}

	s := ForVoice(voice)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	s.Voice = voice
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks every section and reports all problems at once
func (s *Settings) Validate() error {
	var err error
	switch s.Voice {
	case VoiceDefault, VoiceLow, VoiceHigh, VoiceChild:
	default:
		err = multierr.Append(err, audioerr.NewConfigError("voice", s.Voice, "unknown voice type"))
	}
	switch s.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, audioerr.NewConfigError("log_level", s.LogLevel, "unknown log level"))
	}
	return multierr.Combine(
		err,
		s.Yin.Validate(),
		s.Spectrogram.Validate(),
		s.Trim.Validate(),
		s.Recording.Validate(),
		s.Decoder.Validate(),
		s.Render.Validate(),
	)
}

// Level returns the configured log level
func (s *Settings) Level() logging.Level {
	return logging.ParseLevel(s.LogLevel)
}

// AnalyzerOptions builds analyzer options with a decoder from these
// settings. Sink and Device are left for the caller.
func (s *Settings) AnalyzerOptions() analyzer.Options {
	opts := analyzer.DefaultOptions()
	opts.Decoder = transcode.NewDecoder(s.Decoder)
	opts.Trim = s.Trim
	opts.Spectrogram = s.Spectrogram
	opts.Params = s.Yin
	return opts
}

// Save writes the settings as indented JSON
func (s *Settings) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
