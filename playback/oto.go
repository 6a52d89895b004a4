//go:build !headless

package playback

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/logging"
)

// oto allows a single context per process
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoRate    int
	otoErr     error
)

// OtoSink plays buffers through the system audio device
type OtoSink struct {
	ctx  *oto.Context
	rate int
}

// NewOtoSink opens (or reuses) the process-wide output context. The first
// call fixes the output sample rate; buffers at other rates are resampled.
func NewOtoSink(sampleRate int) (*OtoSink, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("opening audio output: %w", err)
			return
		}
		<-ready
		otoContext, otoRate = ctx, sampleRate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	return &OtoSink{ctx: otoContext, rate: otoRate}, nil
}

// NewDefaultSink returns the system audio output
func NewDefaultSink(sampleRate int) (Sink, error) {
	return NewOtoSink(sampleRate)
}

func (s *OtoSink) Play(buf *common.AudioBuffer) (Handle, error) {
	mono := buf.Mono()
	if buf.SampleRate != s.rate {
		mono = common.NewInterpolator(common.Linear).ResampleSignal(mono, buf.SampleRate, s.rate)
	}

	pcm := make([]byte, 4*len(mono))
	for i, v := range mono {
		binary.LittleEndian.PutUint32(pcm[4*i:], math.Float32bits(float32(common.Clamp(v, -1, 1))))
	}

	h := &otoHandle{
		player: s.ctx.NewPlayer(bytes.NewReader(pcm)),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	h.player.Play()
	go h.watch()

	logging.Debug("playback started", logging.Fields{
		"function": "OtoSink.Play",
		"samples":  len(mono),
		"rate":     s.rate,
	})
	return h, nil
}

// Close is a no-op; the oto context lives for the whole process
func (s *OtoSink) Close() error { return nil }

type otoHandle struct {
	player   *oto.Player
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	closeErr error
}

func (h *otoHandle) watch() {
	defer close(h.done)
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-poll.C:
			if !h.player.IsPlaying() {
				h.release()
				return
			}
		}
	}
}

func (h *otoHandle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.player != nil {
		h.closeErr = h.player.Close()
		h.player = nil
	}
}

func (h *otoHandle) Stop() error {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		if h.player != nil {
			h.player.Pause()
		}
		h.mu.Unlock()
		close(h.stop)
	})
	<-h.done
	h.release()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeErr
}

func (h *otoHandle) Done() <-chan struct{} { return h.done }
