package transcode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
)

const wavHeaderSize = 44

// EncodeWav writes buf as a canonical 16-bit PCM RIFF/WAVE file.
//
// Layout is the fixed 44 byte header (RIFF, fmt chunk of size 16, data
// chunk) followed by interleaved little-endian int16 samples. Samples are
// clamped to [-1, 1] and scaled by 0x7FFF when positive, 0x8000 when
// negative.
func EncodeWav(buf *common.AudioBuffer) []byte {
	channels := buf.NumChannels()
	frames := buf.Length()
	dataSize := frames * channels * 2

	out := make([]byte, wavHeaderSize+dataSize)
	le := binary.LittleEndian

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16)
	le.PutUint16(out[20:22], 1) // PCM
	le.PutUint16(out[22:24], uint16(channels))
	le.PutUint32(out[24:28], uint32(buf.SampleRate))
	le.PutUint32(out[28:32], uint32(buf.SampleRate*channels*2))
	le.PutUint16(out[32:34], uint16(channels*2))
	le.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(dataSize))

	offset := wavHeaderSize
	for i := range frames {
		for ch := range channels {
			le.PutUint16(out[offset:], uint16(floatToInt16(buf.Channels[ch][i])))
			offset += 2
		}
	}
	return out
}

func floatToInt16(s float64) int16 {
	s = common.Clamp(s, -1, 1)
	if s < 0 {
		return int16(math.Round(s * 0x8000))
	}
	return int16(math.Round(s * 0x7FFF))
}

func int16ToFloat(v int) float64 {
	if v < 0 {
		return float64(v) / 0x8000
	}
	return float64(v) / 0x7FFF
}

// IsWav reports whether data starts with a RIFF/WAVE header
func IsWav(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// decodeWav decodes integer PCM WAV bytes with go-audio
func decodeWav(data []byte) (*common.AudioBuffer, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	if decoder.WavAudioFormat != 1 && decoder.WavAudioFormat != 0xFFFE {
		return nil, fmt.Errorf("unsupported WAV encoding %d", decoder.WavAudioFormat)
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels < 1 || pcm.Format.SampleRate < 1 {
		return nil, fmt.Errorf("WAV header has no usable format")
	}

	interleaved, err := intBufferToFloat(pcm)
	if err != nil {
		return nil, err
	}
	return common.Deinterleave(interleaved, pcm.Format.NumChannels, pcm.Format.SampleRate)
}

func intBufferToFloat(pcm *audio.IntBuffer) ([]float64, error) {
	channels := pcm.Format.NumChannels
	// Drop a trailing partial frame
	n := len(pcm.Data) - len(pcm.Data)%channels
	out := make([]float64, n)

	switch pcm.SourceBitDepth {
	case 8:
		// 8-bit WAV is unsigned
		for i := range n {
			out[i] = float64(pcm.Data[i]-128) / 128
		}
	case 16:
		for i := range n {
			out[i] = int16ToFloat(pcm.Data[i])
		}
	case 24, 32:
		scale := math.Exp2(float64(pcm.SourceBitDepth - 1))
		for i := range n {
			out[i] = float64(pcm.Data[i]) / scale
		}
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", pcm.SourceBitDepth)
	}
	return out, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ExportFilename builds the "<name>-<timestamp>.wav" download name
func ExportFilename(name string, at time.Time) string {
	base := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSuffix(name, ".wav"), "-"), "-")
	if base == "" {
		base = "recording"
	}
	return fmt.Sprintf("%s-%s.wav", base, at.Format("20060102-150405"))
}
