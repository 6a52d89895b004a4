package cli

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tono/analyzer"
)

func trackOf(pitches ...float64) *tonal.PitchTrack {
	frames := make([]tonal.PitchFrame, len(pitches))
	for i, p := range pitches {
		frames[i] = tonal.PitchFrame{Pitch: p, Confidence: 0.8}
	}
	return &tonal.PitchTrack{Frames: frames, SampleRate: 44100, FrameSize: 2048, HopSize: 512}
}

func TestSummarize(t *testing.T) {
	track := trackOf(0, 100, 200, 150, 0)
	track.Frames[2].Correction = tonal.CorrectionDownOctave

	s := Summarize(track)
	if s.Frames != 5 || s.Voiced != 3 || s.Corrections != 1 {
		t.Errorf("counts = %+v", s)
	}
	if s.Min != 100 || s.Max != 200 || s.Median != 150 {
		t.Errorf("pitch stats = %+v", s)
	}
	if math.Abs(s.RangeSemitones-12) > 1e-9 {
		t.Errorf("range = %v semitones", s.RangeSemitones)
	}
	if math.Abs(s.MeanConfidence-0.8) > 1e-9 || s.Spread <= 0 {
		t.Errorf("confidence=%v spread=%v", s.MeanConfidence, s.Spread)
	}
	if math.Abs(s.VoicedRatio-0.6) > 1e-9 {
		t.Errorf("voiced ratio = %v", s.VoicedRatio)
	}

	if got := Summarize(trackOf(0, 0)); got.Voiced != 0 || got.Min != 0 {
		t.Errorf("unvoiced summary = %+v", got)
	}
	if got := Summarize(nil); got.Frames != 0 {
		t.Errorf("nil summary = %+v", got)
	}
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		name  string
		track *tonal.PitchTrack
		width int
		want  string
	}{
		{"rising", trackOf(100, 150, 200), 3, "▁▅█"},
		{"gap", trackOf(100, 0, 200), 3, "▁ █"},
		{"flat", trackOf(120, 120), 2, "▁▁"},
		{"narrower than track", trackOf(100, 100, 200, 200), 2, "▁█"},
		{"unvoiced", trackOf(0, 0), 2, "  "},
		{"empty", trackOf(), 4, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sparkline(tt.track, tt.width); got != tt.want {
				t.Errorf("Sparkline = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressBar(t *testing.T) {
	if got := ProgressBar(50, 10); got != "█████░░░░░  50%" {
		t.Errorf("ProgressBar(50) = %q", got)
	}
	if got := ProgressBar(150, 4); got != "████ 100%" {
		t.Errorf("ProgressBar(150) = %q", got)
	}
	if got := ProgressBar(-3, 4); got != "░░░░   0%" {
		t.Errorf("ProgressBar(-3) = %q", got)
	}
}

func TestFormatComparison(t *testing.T) {
	out := FormatComparison("ref.wav", "me.wav", &analyzer.Comparison{
		ReferenceMedian: 200,
		LearnerMedian:   100,
		OffsetSemitones: -12,
		Correlation:     0.87,
	})
	for _, want := range []string{"me.wav vs ref.wav", "200.0 Hz", "-12.0 st", "0.87"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPlaybackSession(t *testing.T) {
	stops := 0
	m := NewSessionModel(SessionPlayback, "ref", func() { stops++ })

	next, _ := m.Update(ProgressMsg{Name: "ref", Percent: 42})
	m = next.(SessionModel)
	if m.Percent != 42 {
		t.Errorf("percent = %v", m.Percent)
	}
	next, _ = m.Update(ProgressMsg{Name: "other", Percent: 90})
	m = next.(SessionModel)
	if m.Percent != 42 {
		t.Error("progress for another instance was applied")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(SessionModel)
	if stops != 1 || !m.Done || cmd == nil {
		t.Errorf("q: stops=%d done=%v cmd=%v", stops, m.Done, cmd != nil)
	}
	if !strings.Contains(m.View(), "Playing ref") {
		t.Errorf("view = %q", m.View())
	}
}

func TestRecordingSessionStopsAtLimit(t *testing.T) {
	stops := 0
	m := NewSessionModel(SessionRecording, "learner", func() { stops++ })
	m.Limit = time.Second
	if m.Init() == nil {
		t.Fatal("recording should start a ticker")
	}

	next, cmd := m.Update(tickMsg(m.Started.Add(500 * time.Millisecond)))
	m = next.(SessionModel)
	if stops != 0 || cmd == nil {
		t.Fatalf("stopped early: stops=%d", stops)
	}

	next, cmd = m.Update(tickMsg(m.Started.Add(1200 * time.Millisecond)))
	m = next.(SessionModel)
	if stops != 1 || cmd != nil {
		t.Errorf("limit: stops=%d ticking=%v", stops, cmd != nil)
	}
	// A key press after the limit must not stop twice
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(SessionModel)
	if stops != 1 || m.Done {
		t.Errorf("after limit: stops=%d done=%v", stops, m.Done)
	}

	next, cmd = m.Update(DoneMsg{Err: errors.New("no audio captured")})
	m = next.(SessionModel)
	if !m.Done || m.Err == nil || cmd == nil {
		t.Error("DoneMsg should finish the session with its error")
	}
	if !strings.Contains(m.View(), "no audio captured") {
		t.Errorf("view = %q", m.View())
	}
}

func TestLevelSparkline(t *testing.T) {
	buf, err := common.NewMonoBuffer([]float64{0, 0, 0.5, -0.5, 1, -1}, 8000)
	if err != nil {
		t.Fatal(err)
	}
	if got := LevelSparkline(buf, 3); got != "▁▅█" {
		t.Errorf("LevelSparkline = %q", got)
	}
	if got := LevelSparkline(nil, 3); got != "" {
		t.Errorf("nil buffer = %q", got)
	}
}
