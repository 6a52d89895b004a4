// Package playback plays analysed buffers and drives progress reporting.
package playback

import (
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
)

// Sink starts playback of whole buffers
type Sink interface {
	Play(buf *common.AudioBuffer) (Handle, error)
	Close() error
}

// Handle controls one playback. Done is closed when playback finishes on
// its own or after Stop.
type Handle interface {
	Stop() error
	Done() <-chan struct{}
}

// DefaultProgressInterval roughly matches a 60 Hz display refresh
const DefaultProgressInterval = 16 * time.Millisecond

// Ticker calls fn every interval on its own goroutine until cancelled
type Ticker struct {
	stop      chan struct{}
	done      chan struct{}
	cancelled sync.Once
}

// NewTicker starts a ticker. fn must not call Cancel on the same ticker.
func NewTicker(interval time.Duration, fn func()) *Ticker {
	t := &Ticker{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tick.C:
				select {
				case <-t.stop:
					return
				default:
				}
				fn()
			}
		}
	}()
	return t
}

// Cancel stops the ticker and waits for any in-flight callback. It reports
// whether this call did the cancelling; later calls are no-ops.
func (t *Ticker) Cancel() bool {
	first := false
	t.cancelled.Do(func() {
		first = true
		close(t.stop)
	})
	<-t.done
	return first
}

// Progress returns elapsed/total as a percentage in [0, 100]
func Progress(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 100
	}
	return common.Clamp(100*float64(elapsed)/float64(total), 0, 100)
}
