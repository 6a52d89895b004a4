package analyzer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tono/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tono/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tono/capture"
	"github.com/RyanBlaney/sonido-tono/logging"
	"github.com/RyanBlaney/sonido-tono/playback"
	"github.com/RyanBlaney/sonido-tono/transcode"
)

// Instance holds one piece of audio and its analysis.
//
// Loads, recordings and recomputes are versioned: each bumps the version
// and only the newest may commit its result, so a slow decode can never
// overwrite a newer one. A failed operation leaves the stored buffer and
// analysis as they were.
type Instance struct {
	name    string
	opts    Options
	logger  logging.Logger
	spectro *spectral.Generator

	mu          sync.Mutex
	state       State
	version     uint64
	sourceID    string
	loadedAt    time.Time
	buffer      *common.AudioBuffer
	spectrogram *spectral.Spectrogram
	track       *tonal.PitchTrack
	params      tonal.YinParams
	recording   *capture.Recording

	// written under mu, read lock-free by the progress ticker
	session  atomic.Pointer[playSession]
	progress atomic.Uint64
}

// Snapshot is a point-in-time copy of an instance. Buffer and Spectrogram
// are shared and must be treated as read-only.
type Snapshot struct {
	Name        string                `json:"name"`
	SourceID    string                `json:"source_id,omitempty"`
	LoadedAt    time.Time             `json:"loaded_at"`
	State       State                 `json:"-"`
	Buffer      *common.AudioBuffer   `json:"-"`
	Spectrogram *spectral.Spectrogram `json:"-"`
	Track       *tonal.PitchTrack     `json:"track,omitempty"`
	Params      tonal.YinParams       `json:"params"`
	Progress    float64               `json:"progress"`
}

type analysis struct {
	buffer      *common.AudioBuffer
	spectrogram *spectral.Spectrogram
	track       *tonal.PitchTrack
}

func newInstance(name string, opts Options) (*Instance, error) {
	gen, err := spectral.NewGenerator(opts.Spectrogram)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = playback.DefaultProgressInterval
	}
	return &Instance{
		name:    name,
		opts:    opts,
		logger:  logger.WithFields(logging.Fields{"instance": name}),
		spectro: gen,
		params:  opts.Params,
	}, nil
}

// Name returns the instance name
func (in *Instance) Name() string {
	return in.name
}

// State returns the current lifecycle state
func (in *Instance) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Progress returns the playback progress percentage
func (in *Instance) Progress() float64 {
	return math.Float64frombits(in.progress.Load())
}

func (in *Instance) setProgress(p float64) {
	in.progress.Store(math.Float64bits(p))
}

// Params returns the current YIN parameters
func (in *Instance) Params() tonal.YinParams {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.params
}

// SetParams validates and stores new YIN parameters. They take effect on
// the next Load or Recompute.
func (in *Instance) SetParams(p tonal.YinParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	in.mu.Lock()
	in.params = p
	in.mu.Unlock()
	return nil
}

// Snapshot copies the instance's current state
func (in *Instance) Snapshot() Snapshot {
	in.mu.Lock()
	defer in.mu.Unlock()
	return Snapshot{
		Name:        in.name,
		SourceID:    in.sourceID,
		LoadedAt:    in.loadedAt,
		State:       in.state,
		Buffer:      in.buffer,
		Spectrogram: in.spectrogram,
		Track:       in.track.Clone(),
		Params:      in.params,
		Progress:    in.Progress(),
	}
}

// restingState is the state to fall back to when nothing is in flight.
// Requires mu.
func (in *Instance) restingState() State {
	if in.buffer != nil {
		return StateReady
	}
	return StateEmpty
}

// begin starts a versioned operation in state next. Requires mu.
func (in *Instance) begin(next State) uint64 {
	if err := in.stopPlaybackLocked(); err != nil {
		in.logger.Warn("stopping playback", logging.Fields{"error": err.Error()})
	}
	in.state = next
	in.version++
	return in.version
}

// fail ends operation v with err, restoring the resting state unless a
// newer operation has taken over
func (in *Instance) fail(v uint64, op string, err error) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if v == in.version {
		in.state = in.restingState()
	}
	in.logger.Error(err, op+" failed", logging.Fields{"version": v})
	return err
}

// commit stores a successful result of operation v
func (in *Instance) commit(v uint64, a *analysis) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if v != in.version {
		in.logger.Debug("discarding stale result", logging.Fields{"version": v, "current": in.version})
		return ErrSuperseded
	}
	if a.buffer != nil {
		in.buffer = a.buffer
		in.spectrogram = a.spectrogram
		in.sourceID = uuid.NewString()
		in.loadedAt = time.Now()
	}
	in.track = a.track
	in.state = StateReady
	return nil
}

// Load decodes src, trims silence, and analyses the result. A newer Load,
// recording or Recompute started meanwhile makes this one return
// ErrSuperseded.
func (in *Instance) Load(ctx context.Context, src transcode.Source) error {
	in.mu.Lock()
	if in.state == StateRecording {
		in.mu.Unlock()
		return fmt.Errorf("load %s: %w", src.Name(), ErrBusy)
	}
	v := in.begin(StateLoading)
	params := in.params
	in.mu.Unlock()

	in.logger.Debug("loading", logging.Fields{"source": src.Name(), "version": v})

	buf, err := in.opts.Decoder.DecodeSource(ctx, src)
	if err != nil {
		return in.fail(v, "load", err)
	}
	a, err := in.process(ctx, buf, params)
	if err != nil {
		return in.fail(v, "load", err)
	}
	return in.commit(v, a)
}

// process runs trim, spectrogram and pitch analysis on a decoded buffer
func (in *Instance) process(ctx context.Context, buf *common.AudioBuffer, params tonal.YinParams) (*analysis, error) {
	trimmed, err := temporal.TrimSilence(buf, in.opts.Trim)
	if err != nil {
		return nil, err
	}

	a := &analysis{buffer: trimmed}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sg, err := in.spectro.Generate(gctx, trimmed)
		a.spectrogram = sg
		return err
	})
	g.Go(func() error {
		track, err := analyzePitch(gctx, trimmed, params)
		a.track = track
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	in.logger.Debug("analysis complete", logging.Fields{
		"duration":     trimmed.Seconds(),
		"slices":       len(a.spectrogram.Slices),
		"frames":       len(a.track.Frames),
		"median_pitch": a.track.MedianPitch(),
	})
	return a, nil
}

func analyzePitch(ctx context.Context, buf *common.AudioBuffer, params tonal.YinParams) (*tonal.PitchTrack, error) {
	detector, err := tonal.NewDetector(params)
	if err != nil {
		return nil, err
	}
	raw, err := detector.Analyze(ctx, buf)
	if err != nil {
		return nil, err
	}
	return tonal.PostProcess(raw, params), nil
}

// Recompute reruns pitch analysis on the stored buffer with the current
// parameters, without decoding or trimming again
func (in *Instance) Recompute(ctx context.Context) error {
	in.mu.Lock()
	if in.buffer == nil {
		in.mu.Unlock()
		return ErrNoAudio
	}
	if in.state.busy() || in.state == StateRecording {
		in.mu.Unlock()
		return fmt.Errorf("recompute: %w", ErrBusy)
	}
	v := in.begin(StateProcessing)
	buf, params := in.buffer, in.params
	in.mu.Unlock()

	track, err := analyzePitch(ctx, buf, params)
	if err != nil {
		return in.fail(v, "recompute", err)
	}
	return in.commit(v, &analysis{track: track})
}

// Record starts capturing from the configured device. Calling Record while
// a recording is active does nothing. A denied capture leaves playback and
// the stored audio untouched.
func (in *Instance) Record(ctx context.Context, settings capture.RecordingSettings) error {
	if in.opts.Device == nil {
		return fmt.Errorf("record: no capture device configured")
	}

	in.mu.Lock()
	if in.state == StateRecording {
		in.mu.Unlock()
		return nil
	}
	if in.state.busy() {
		in.mu.Unlock()
		return fmt.Errorf("record: %w", ErrBusy)
	}
	opened := in.version
	in.mu.Unlock()

	rec, err := capture.Start(ctx, in.opts.Device, settings)
	if err != nil {
		in.logger.Warn("capture denied", logging.Fields{"error": err.Error()})
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state == StateRecording {
		// Another Record won the race
		return rec.Stop()
	}
	if in.version != opened {
		// Loaded or closed while the device was opening
		return multierr.Append(ErrSuperseded, rec.Stop())
	}
	in.begin(StateRecording)
	in.recording = rec
	in.logger.Info("recording started", logging.Fields{"sample_rate": settings.SampleRate})
	return nil
}

// StopRecording ends the active recording and loads what was captured
// exactly as Load would load a WAV file of it
func (in *Instance) StopRecording(ctx context.Context) error {
	in.mu.Lock()
	if in.state != StateRecording || in.recording == nil {
		in.mu.Unlock()
		return ErrNotRecording
	}
	rec := in.recording
	in.recording = nil
	v := in.begin(StateProcessing)
	params := in.params
	in.mu.Unlock()

	if err := rec.Stop(); err != nil {
		in.logger.Warn("closing capture stream", logging.Fields{"error": err.Error()})
	}
	captured, err := rec.Buffer()
	if err != nil {
		return in.fail(v, "stop recording", err)
	}

	src := transcode.BytesSource{Label: in.name + "-recording", Data: transcode.EncodeWav(captured)}
	buf, err := in.opts.Decoder.DecodeSource(ctx, src)
	if err != nil {
		return in.fail(v, "stop recording", err)
	}
	a, err := in.process(ctx, buf, params)
	if err != nil {
		return in.fail(v, "stop recording", err)
	}
	return in.commit(v, a)
}

// ExportWav encodes the stored buffer and names it "<name>-<timestamp>.wav"
func (in *Instance) ExportWav() (string, []byte, error) {
	in.mu.Lock()
	buf := in.buffer
	in.mu.Unlock()
	if buf == nil {
		return "", nil, ErrNoAudio
	}
	return transcode.ExportFilename(in.name, time.Now()), transcode.EncodeWav(buf), nil
}

// Close stops playback and recording and discards any in-flight result
func (in *Instance) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	err := in.stopPlaybackLocked()
	if in.recording != nil {
		err = multierr.Append(err, in.recording.Stop())
		in.recording = nil
	}
	in.version++
	in.state = in.restingState()
	return err
}
