package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tono/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tono/analyzer"
)

// TrackStats summarises a pitch track
type TrackStats struct {
	Frames         int
	Voiced         int
	VoicedRatio    float64
	Median         float64
	Min            float64
	Max            float64
	RangeSemitones float64
	Spread         float64 // Standard deviation of the contour in semitones
	MeanConfidence float64 // Over voiced frames
	Corrections    int
}

// Summarize computes TrackStats; a nil track gives the zero value
func Summarize(track *tonal.PitchTrack) TrackStats {
	var s TrackStats
	if track == nil {
		return s
	}
	s.Frames = len(track.Frames)
	s.Min = math.Inf(1)
	var confidences []float64
	for _, f := range track.Frames {
		if f.Correction != tonal.CorrectionNone {
			s.Corrections++
		}
		if !f.Voiced() {
			continue
		}
		s.Voiced++
		confidences = append(confidences, f.Confidence)
		s.Min = math.Min(s.Min, f.Pitch)
		s.Max = math.Max(s.Max, f.Pitch)
	}
	if s.Voiced == 0 {
		s.Min = 0
		return s
	}
	s.VoicedRatio = float64(s.Voiced) / float64(s.Frames)
	s.Median = track.MedianPitch()
	s.RangeSemitones = 12 * math.Log2(s.Max/s.Min)
	s.Spread = common.StandardDeviation(analyzer.SemitoneContour(track))
	s.MeanConfidence = common.Mean(confidences)
	return s
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws the voiced contour in width columns. Columns without a
// voiced frame are blank.
func Sparkline(track *tonal.PitchTrack, width int) string {
	if track == nil || len(track.Frames) == 0 || width <= 0 {
		return ""
	}
	stats := Summarize(track)
	if stats.Voiced == 0 {
		return strings.Repeat(" ", width)
	}

	n := len(track.Frames)
	width = min(width, n)
	var b strings.Builder
	for col := 0; col < width; col++ {
		lo, hi := col*n/width, (col+1)*n/width
		var sum float64
		var count int
		for _, f := range track.Frames[lo:hi] {
			if f.Voiced() {
				sum += f.Pitch
				count++
			}
		}
		if count == 0 {
			b.WriteRune(' ')
			continue
		}
		level := 0
		if stats.Max > stats.Min {
			level = int(math.Round((sum/float64(count) - stats.Min) / (stats.Max - stats.Min) * float64(len(sparkBlocks)-1)))
		}
		b.WriteRune(sparkBlocks[level])
	}
	return b.String()
}

// LevelSparkline draws the RMS envelope of buf in width columns, scaled to
// the loudest column
func LevelSparkline(buf *common.AudioBuffer, width int) string {
	if buf == nil || buf.Length() == 0 || width <= 0 {
		return ""
	}
	frame := max(1, buf.Length()/width)
	env := temporal.ComputeRMS(buf.Mono(), frame, frame)
	var loudest float64
	for _, v := range env {
		loudest = math.Max(loudest, v)
	}

	var b strings.Builder
	for _, v := range env {
		level := 0
		if loudest > 0 {
			level = int(math.Round(v / loudest * float64(len(sparkBlocks)-1)))
		}
		b.WriteRune(sparkBlocks[level])
	}
	return b.String()
}

func row(label, value string) string {
	return fmt.Sprintf("  %s %s\n", KeyStyle.Render(fmt.Sprintf("%-18s", label)), ValueStyle.Render(value))
}

// FormatSnapshot renders an instance's analysis for the terminal
func FormatSnapshot(snap analyzer.Snapshot, sparkWidth int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(snap.Name))
	b.WriteString("\n")

	if snap.Buffer != nil {
		b.WriteString(row("Duration", fmt.Sprintf("%.2f s", snap.Buffer.Seconds())))
		b.WriteString(row("Sample rate", fmt.Sprintf("%d Hz", snap.Buffer.SampleRate)))
		b.WriteString(row("Level", fmt.Sprintf("%.1f dBFS RMS, peak %.2f", common.DBFS(snap.Buffer), common.Peak(snap.Buffer))))
	}
	if snap.Spectrogram != nil {
		b.WriteString(row("Spectrogram", fmt.Sprintf("%d x %d", len(snap.Spectrogram.Slices), snap.Spectrogram.BinCount)))
	}

	s := Summarize(snap.Track)
	b.WriteString(row("Frames", fmt.Sprintf("%d (%d voiced, %.0f%%)", s.Frames, s.Voiced, s.VoicedRatio*100)))
	if s.Voiced > 0 {
		b.WriteString(row("Median pitch", fmt.Sprintf("%.1f Hz", s.Median)))
		b.WriteString(row("Range", fmt.Sprintf("%.1f - %.1f Hz (%.1f st)", s.Min, s.Max, s.RangeSemitones)))
		b.WriteString(row("Spread", fmt.Sprintf("%.2f st", s.Spread)))
		b.WriteString(row("Confidence", fmt.Sprintf("%.2f", s.MeanConfidence)))
	}
	if s.Corrections > 0 {
		b.WriteString(row("Octave fixes", fmt.Sprintf("%d", s.Corrections)))
	}
	if line := Sparkline(snap.Track, sparkWidth); strings.TrimSpace(line) != "" {
		b.WriteString("\n  ")
		b.WriteString(ContourStyle.Render(line))
		b.WriteString("\n")
	}
	if line := LevelSparkline(snap.Buffer, sparkWidth); line != "" {
		b.WriteString("  ")
		b.WriteString(KeyStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatComparison renders a contour comparison
func FormatComparison(reference, learner string, c *analyzer.Comparison) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s vs %s", learner, reference)))
	b.WriteString("\n")
	b.WriteString(row("Reference median", fmt.Sprintf("%.1f Hz", c.ReferenceMedian)))
	b.WriteString(row("Learner median", fmt.Sprintf("%.1f Hz (%+.1f st)", c.LearnerMedian, c.OffsetSemitones)))
	b.WriteString(row("DTW distance", fmt.Sprintf("%.2f st", c.Distance)))
	b.WriteString(row("Mean deviation", fmt.Sprintf("%.2f st", c.MeanDeviation)))
	b.WriteString(row("Max deviation", fmt.Sprintf("%.2f st", c.MaxDeviation)))
	b.WriteString(row("Correlation", fmt.Sprintf("%.2f", c.Correlation)))
	b.WriteString(row("Pacing", fmt.Sprintf("%.0f%% diagonal", c.DiagonalRatio*100)))
	return b.String()
}

// ProgressBar renders percent (0-100) as a bar of width cells
func ProgressBar(percent float64, width int) string {
	percent = math.Max(0, math.Min(100, percent))
	filled := int(percent / 100 * float64(width))
	return fmt.Sprintf("%s%s %3d%%", strings.Repeat("█", filled), strings.Repeat("░", width-filled), int(percent))
}
