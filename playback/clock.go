package playback

import (
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
)

// ClockSink plays nothing; each handle finishes after the buffer's duration.
// Used for headless builds and tests.
type ClockSink struct {
	// Speed scales playback time, 0 means real time
	Speed float64
}

func (s *ClockSink) Play(buf *common.AudioBuffer) (Handle, error) {
	d := buf.Duration()
	if s.Speed > 0 {
		d = time.Duration(float64(d) / s.Speed)
	}
	h := &clockHandle{done: make(chan struct{})}
	h.timer = time.AfterFunc(d, h.finish)
	return h, nil
}

func (s *ClockSink) Close() error { return nil }

type clockHandle struct {
	timer *time.Timer
	done  chan struct{}
	once  sync.Once
}

func (h *clockHandle) finish() {
	h.once.Do(func() { close(h.done) })
}

func (h *clockHandle) Stop() error {
	h.timer.Stop()
	h.finish()
	return nil
}

func (h *clockHandle) Done() <-chan struct{} { return h.done }
