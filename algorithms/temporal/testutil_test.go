package temporal

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
)

// toneWithSilence builds a mono buffer of lead silence, a sine tone and tail silence.
func toneWithSilence(t *testing.T, sampleRate int, lead, tone, tail, freq, amp float64) *common.AudioBuffer {
	t.Helper()

	leadN := int(lead * float64(sampleRate))
	toneN := int(tone * float64(sampleRate))
	tailN := int(tail * float64(sampleRate))
	samples := make([]float64, leadN+toneN+tailN)
	for i := range toneN {
		samples[leadN+i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}

	buf, err := common.NewMonoBuffer(samples, sampleRate)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}
