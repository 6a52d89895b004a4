package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-tono/logging"
	"github.com/RyanBlaney/sonido-tono/playback"
)

// playSession is one Play call. end runs exactly once, whether playback is
// stopped or runs to completion.
type playSession struct {
	handle   playback.Handle
	ticker   *playback.Ticker
	started  time.Time
	duration time.Duration

	endOnce sync.Once
	endErr  error
}

func (s *playSession) end() error {
	s.endOnce.Do(func() {
		s.ticker.Cancel()
		s.endErr = s.handle.Stop()
	})
	return s.endErr
}

// Play starts playback from the beginning, stopping any current playback
// first. OnProgress callbacks must not call back into the instance.
func (in *Instance) Play() error {
	if in.opts.Sink == nil {
		return fmt.Errorf("play: no playback sink configured")
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.buffer == nil {
		return ErrNoAudio
	}
	if in.state.busy() || in.state == StateRecording {
		return fmt.Errorf("play: %w", ErrBusy)
	}
	if err := in.stopPlaybackLocked(); err != nil {
		in.logger.Warn("stopping previous playback", logging.Fields{"error": err.Error()})
	}

	handle, err := in.opts.Sink.Play(in.buffer)
	if err != nil {
		in.state = in.restingState()
		return fmt.Errorf("play: %w", err)
	}

	s := &playSession{
		handle:   handle,
		started:  time.Now(),
		duration: in.buffer.Duration(),
	}
	in.session.Store(s)
	in.setProgress(0)
	in.state = StatePlaying
	s.ticker = playback.NewTicker(in.opts.ProgressInterval, func() { in.tick(s) })
	go in.awaitCompletion(s)

	in.logger.Debug("playback started", logging.Fields{"duration": s.duration.Seconds()})
	return nil
}

func (in *Instance) tick(s *playSession) {
	if in.session.Load() != s {
		return
	}
	p := playback.Progress(time.Since(s.started), s.duration)
	in.setProgress(p)
	if in.opts.OnProgress != nil {
		in.opts.OnProgress(in.name, p)
	}
}

func (in *Instance) awaitCompletion(s *playSession) {
	<-s.handle.Done()

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.session.CompareAndSwap(s, nil) {
		in.state = in.restingState()
		in.setProgress(0)
		if err := s.end(); err != nil {
			in.logger.Warn("closing finished playback", logging.Fields{"error": err.Error()})
		}
		in.logger.Debug("playback finished")
	}
}

// stopPlaybackLocked ends the current session, if any. Requires mu.
func (in *Instance) stopPlaybackLocked() error {
	s := in.session.Swap(nil)
	if s == nil {
		return nil
	}
	in.setProgress(0)
	if in.state == StatePlaying {
		in.state = in.restingState()
	}
	return s.end()
}

// Stop stops playback and resets progress to 0. While recording it ends the
// recording instead, as StopRecording does.
func (in *Instance) Stop() error {
	in.mu.Lock()
	if in.state == StateRecording {
		in.mu.Unlock()
		return in.StopRecording(context.Background())
	}
	defer in.mu.Unlock()
	return in.stopPlaybackLocked()
}
