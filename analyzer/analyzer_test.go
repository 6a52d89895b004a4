package analyzer

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/audioerr"
	"github.com/RyanBlaney/sonido-tono/capture"
	"github.com/RyanBlaney/sonido-tono/logging"
	"github.com/RyanBlaney/sonido-tono/playback"
	"github.com/RyanBlaney/sonido-tono/transcode"
)

func toneSamples(freq, amp float64, sampleRate int, seconds float64) []float64 {
	out := make([]float64, int(seconds*float64(sampleRate)))
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func toneWav(t *testing.T, freq, amp float64, seconds float64) transcode.BytesSource {
	t.Helper()
	buf, err := common.NewMonoBuffer(toneSamples(freq, amp, 44100, seconds), 44100)
	if err != nil {
		t.Fatal(err)
	}
	return transcode.BytesSource{Label: "tone.wav", Data: transcode.EncodeWav(buf)}
}

func testOptions() Options {
	cfg := transcode.DefaultDecoderConfig()
	cfg.FFmpegPath = ""
	cfg.FFprobePath = ""

	opts := DefaultOptions()
	opts.Decoder = transcode.NewDecoder(cfg)
	opts.Logger = &logging.NoOpLogger{}
	return opts
}

func newTestInstance(t *testing.T, opts Options) *Instance {
	t.Helper()
	m, err := NewManager(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	in, err := m.Instance("learner")
	if err != nil {
		t.Fatal(err)
	}
	return in
}

func waitForState(t *testing.T, in *Instance, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if in.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", in.State(), want)
}

// gatedDecoder blocks decodes of sources named label until released
type gatedDecoder struct {
	inner   Decoder
	label   string
	entered chan struct{}
	release chan struct{}
}

func newGatedDecoder(inner Decoder, label string) *gatedDecoder {
	return &gatedDecoder{inner: inner, label: label, entered: make(chan struct{}), release: make(chan struct{})}
}

func (d *gatedDecoder) DecodeSource(ctx context.Context, src transcode.Source) (*common.AudioBuffer, error) {
	if src.Name() == d.label {
		close(d.entered)
		<-d.release
	}
	return d.inner.DecodeSource(ctx, src)
}

type fakeStream struct{}

func (fakeStream) Stop() error { return nil }

// toneDevice delivers a fixed tone in chunks as soon as it is opened
type toneDevice struct {
	samples []float64
	openErr error
}

func (d *toneDevice) Name() string { return "tone" }

func (d *toneDevice) Open(_ context.Context, settings capture.RecordingSettings, onChunk func([]float32)) (capture.Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	chunk := make([]float32, 0, settings.FramesPerBuffer)
	for _, s := range d.samples {
		chunk = append(chunk, float32(s))
		if len(chunk) == settings.FramesPerBuffer {
			onChunk(chunk)
			chunk = chunk[:0]
		}
	}
	if len(chunk) > 0 {
		onChunk(chunk)
	}
	return fakeStream{}, nil
}

type countingSink struct {
	playback.ClockSink
	closed atomic.Int32
}

func (s *countingSink) Close() error {
	s.closed.Add(1)
	return nil
}

func TestLoadAnalyzesTone(t *testing.T) {
	in := newTestInstance(t, testOptions())

	if err := in.Load(context.Background(), toneWav(t, 220, 0.5, 1)); err != nil {
		t.Fatal(err)
	}

	snap := in.Snapshot()
	if snap.State != StateReady {
		t.Errorf("state = %v, want ready", snap.State)
	}
	if snap.SourceID == "" || snap.LoadedAt.IsZero() {
		t.Error("source id and load time should be set")
	}
	if snap.Spectrogram == nil || len(snap.Spectrogram.Slices) == 0 {
		t.Fatal("missing spectrogram")
	}
	if snap.Track == nil || len(snap.Track.Frames) == 0 {
		t.Fatal("missing pitch track")
	}
	if got := snap.Track.MedianPitch(); math.Abs(got-220) > 2 {
		t.Errorf("median pitch = %.2f, want ~220", got)
	}

	// Snapshot tracks are copies
	snap.Track.Frames[0].Pitch = -1
	if in.Snapshot().Track.Frames[0].Pitch == -1 {
		t.Error("snapshot shares frames with the instance")
	}
}

func TestLoadFailureKeepsPreviousAnalysis(t *testing.T) {
	in := newTestInstance(t, testOptions())
	if err := in.Load(context.Background(), toneWav(t, 220, 0.5, 1)); err != nil {
		t.Fatal(err)
	}
	before := in.Snapshot()

	err := in.Load(context.Background(), transcode.BytesSource{Label: "junk.mp3", Data: []byte("not audio")})
	if _, ok := audioerr.As[*audioerr.DecodeError](err); !ok {
		t.Fatalf("err = %v, want DecodeError", err)
	}

	after := in.Snapshot()
	if after.State != StateReady {
		t.Errorf("state = %v, want ready", after.State)
	}
	if after.SourceID != before.SourceID {
		t.Error("failed load replaced the stored audio")
	}
}

func TestLoadSilence(t *testing.T) {
	in := newTestInstance(t, testOptions())
	err := in.Load(context.Background(), toneWav(t, 220, 0, 0.5))
	if _, ok := audioerr.As[*audioerr.SilenceError](err); !ok {
		t.Fatalf("err = %v, want SilenceError", err)
	}
	if in.State() != StateEmpty {
		t.Errorf("state = %v, want empty", in.State())
	}
}

func TestStaleLoadIsSuperseded(t *testing.T) {
	opts := testOptions()
	gate := newGatedDecoder(opts.Decoder, "slow")
	opts.Decoder = gate
	in := newTestInstance(t, opts)

	slow := toneWav(t, 150, 0.5, 1)
	slow.Label = "slow"

	var wg sync.WaitGroup
	var slowErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowErr = in.Load(context.Background(), slow)
	}()
	<-gate.entered

	if err := in.Load(context.Background(), toneWav(t, 220, 0.5, 1)); err != nil {
		t.Fatal(err)
	}
	fastID := in.Snapshot().SourceID

	close(gate.release)
	wg.Wait()

	if !errors.Is(slowErr, ErrSuperseded) {
		t.Fatalf("slow load err = %v, want ErrSuperseded", slowErr)
	}
	snap := in.Snapshot()
	if snap.SourceID != fastID {
		t.Error("stale load overwrote the newer result")
	}
	if got := snap.Track.MedianPitch(); math.Abs(got-220) > 2 {
		t.Errorf("median pitch = %.2f, want the newer load's ~220", got)
	}
}

func TestRecompute(t *testing.T) {
	in := newTestInstance(t, testOptions())

	if err := in.Recompute(context.Background()); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("recompute without audio: err = %v", err)
	}
	if err := in.Load(context.Background(), toneWav(t, 220, 0.5, 1)); err != nil {
		t.Fatal(err)
	}
	id := in.Snapshot().SourceID

	bad := in.Params()
	bad.HopSize = 0
	if err := in.SetParams(bad); err == nil {
		t.Fatal("expected invalid params to be rejected")
	}

	p := in.Params()
	p.HopSize = 256
	if err := in.SetParams(p); err != nil {
		t.Fatal(err)
	}
	framesBefore := len(in.Snapshot().Track.Frames)
	if err := in.Recompute(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := in.Snapshot()
	if snap.SourceID != id {
		t.Error("recompute should not replace the buffer")
	}
	if len(snap.Track.Frames) <= framesBefore {
		t.Errorf("frames = %d, want more than %d with a smaller hop", len(snap.Track.Frames), framesBefore)
	}
	if snap.Track.HopSize != 256 {
		t.Errorf("track hop = %d", snap.Track.HopSize)
	}
}

func TestPlayRunsToCompletion(t *testing.T) {
	var ticks atomic.Int32
	opts := testOptions()
	opts.Sink = &playback.ClockSink{Speed: 2}
	opts.OnProgress = func(name string, percent float64) {
		if name == "learner" && percent >= 0 && percent <= 100 {
			ticks.Add(1)
		}
	}
	in := newTestInstance(t, opts)

	if err := in.Play(); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("play without audio: err = %v", err)
	}
	if err := in.Load(context.Background(), toneWav(t, 220, 0.5, 1)); err != nil {
		t.Fatal(err)
	}
	if err := in.Play(); err != nil {
		t.Fatal(err)
	}
	if in.State() != StatePlaying {
		t.Fatalf("state = %v, want playing", in.State())
	}

	waitForState(t, in, StateReady)
	if in.Progress() != 0 {
		t.Errorf("progress after completion = %v", in.Progress())
	}
	if ticks.Load() == 0 {
		t.Error("no progress updates delivered")
	}
}

func TestStopResetsPlayback(t *testing.T) {
	opts := testOptions()
	opts.Sink = &playback.ClockSink{}
	in := newTestInstance(t, opts)
	if err := in.Load(context.Background(), toneWav(t, 220, 0.5, 1)); err != nil {
		t.Fatal(err)
	}

	if err := in.Play(); err != nil {
		t.Fatal(err)
	}
	// Restarting replaces the running session
	if err := in.Play(); err != nil {
		t.Fatal(err)
	}
	if err := in.Stop(); err != nil {
		t.Fatal(err)
	}
	if in.State() != StateReady || in.Progress() != 0 {
		t.Errorf("after stop: state=%v progress=%v", in.State(), in.Progress())
	}
	if err := in.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestRecordAndStop(t *testing.T) {
	opts := testOptions()
	opts.Device = &toneDevice{samples: toneSamples(180, 0.5, 48000, 1)}
	in := newTestInstance(t, opts)
	ctx := context.Background()

	if err := in.StopRecording(ctx); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("stop without recording: err = %v", err)
	}
	if err := in.Record(ctx, capture.DefaultRecordingSettings()); err != nil {
		t.Fatal(err)
	}
	if in.State() != StateRecording {
		t.Fatalf("state = %v, want recording", in.State())
	}
	if err := in.Record(ctx, capture.DefaultRecordingSettings()); err != nil {
		t.Errorf("second record should be a no-op, got %v", err)
	}
	if err := in.Load(ctx, toneWav(t, 220, 0.5, 1)); !errors.Is(err, ErrBusy) {
		t.Errorf("load while recording: err = %v, want ErrBusy", err)
	}

	if err := in.StopRecording(ctx); err != nil {
		t.Fatal(err)
	}
	snap := in.Snapshot()
	if snap.State != StateReady {
		t.Errorf("state = %v", snap.State)
	}
	if snap.Buffer.SampleRate != 48000 {
		t.Errorf("sample rate = %d", snap.Buffer.SampleRate)
	}
	if got := snap.Track.MedianPitch(); math.Abs(got-180) > 2 {
		t.Errorf("median pitch = %.2f, want ~180", got)
	}

	name, data, err := in.ExportWav()
	if err != nil {
		t.Fatal(err)
	}
	if !transcode.IsWav(data) || len(name) == 0 {
		t.Errorf("export: name=%q wav=%v", name, transcode.IsWav(data))
	}
}

func TestStopWhileRecordingFinishesRecording(t *testing.T) {
	opts := testOptions()
	opts.Device = &toneDevice{samples: toneSamples(200, 0.5, 48000, 1)}
	in := newTestInstance(t, opts)

	if err := in.Record(context.Background(), capture.DefaultRecordingSettings()); err != nil {
		t.Fatal(err)
	}
	if err := in.Stop(); err != nil {
		t.Fatal(err)
	}
	if in.State() != StateReady {
		t.Errorf("state = %v, want ready", in.State())
	}
}

func TestRecordDenied(t *testing.T) {
	opts := testOptions()
	opts.Device = &toneDevice{openErr: errors.New("permission denied")}
	in := newTestInstance(t, opts)

	err := in.Record(context.Background(), capture.DefaultRecordingSettings())
	if _, ok := audioerr.As[*audioerr.CaptureDeniedError](err); !ok {
		t.Fatalf("err = %v, want CaptureDeniedError", err)
	}
	if in.State() != StateEmpty {
		t.Errorf("state = %v, want empty", in.State())
	}
}

func TestRecordDeniedKeepsPlayback(t *testing.T) {
	opts := testOptions()
	opts.Sink = &playback.ClockSink{}
	opts.Device = &toneDevice{openErr: errors.New("permission denied")}
	in := newTestInstance(t, opts)
	if err := in.Load(context.Background(), toneWav(t, 220, 0.5, 1)); err != nil {
		t.Fatal(err)
	}
	id := in.Snapshot().SourceID
	if err := in.Play(); err != nil {
		t.Fatal(err)
	}

	err := in.Record(context.Background(), capture.DefaultRecordingSettings())
	if _, ok := audioerr.As[*audioerr.CaptureDeniedError](err); !ok {
		t.Fatalf("err = %v, want CaptureDeniedError", err)
	}
	snap := in.Snapshot()
	if snap.State != StatePlaying {
		t.Errorf("state = %v, want playing", snap.State)
	}
	if snap.SourceID != id {
		t.Error("denied capture replaced the stored audio")
	}
	if err := in.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestRecomputeWhileProcessingRecording(t *testing.T) {
	opts := testOptions()
	gate := newGatedDecoder(opts.Decoder, "learner-recording")
	opts.Decoder = gate
	opts.Device = &toneDevice{samples: toneSamples(180, 0.5, 48000, 1)}
	in := newTestInstance(t, opts)
	ctx := context.Background()

	if err := in.Load(ctx, toneWav(t, 220, 0.5, 1)); err != nil {
		t.Fatal(err)
	}
	id := in.Snapshot().SourceID
	if err := in.Record(ctx, capture.DefaultRecordingSettings()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var stopErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		stopErr = in.StopRecording(ctx)
	}()
	<-gate.entered

	if err := in.Recompute(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("recompute while processing: err = %v, want ErrBusy", err)
	}
	close(gate.release)
	wg.Wait()

	if stopErr != nil {
		t.Fatalf("stop recording: %v", stopErr)
	}
	snap := in.Snapshot()
	if snap.SourceID == id {
		t.Error("recording was not stored")
	}
	if got := snap.Track.MedianPitch(); math.Abs(got-180) > 2 {
		t.Errorf("median pitch = %.2f, want the recording's ~180", got)
	}
}

func TestManager(t *testing.T) {
	opts := testOptions()
	sink := &countingSink{}
	opts.Sink = sink
	m, err := NewManager(opts)
	if err != nil {
		t.Fatal(err)
	}

	ref, err := m.Instance("reference")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := m.Instance("reference")
	if ref != again {
		t.Error("Instance should return the existing instance")
	}
	if _, err := m.Instance("learner"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Instance(""); err == nil {
		t.Error("empty name should be rejected")
	}

	names := m.Names()
	if len(names) != 2 || names[0] != "learner" || names[1] != "reference" {
		t.Errorf("names = %v", names)
	}
	if _, err := m.Compare("reference", "nobody"); err == nil {
		t.Error("compare with unknown instance should fail")
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if sink.closed.Load() != 1 {
		t.Errorf("sink closed %d times", sink.closed.Load())
	}
}

func TestNewManagerRejectsBadOptions(t *testing.T) {
	opts := testOptions()
	opts.Params.FrameSize = 0
	if _, err := NewManager(opts); err == nil {
		t.Error("expected invalid params to be rejected")
	}
	opts = testOptions()
	opts.Decoder = nil
	if _, err := NewManager(opts); err == nil {
		t.Error("expected missing decoder to be rejected")
	}
}
