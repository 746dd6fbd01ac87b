package myaudio

import (
	"encoding/binary"
	"time"

	"github.com/tphakala/birdnet-listener/internal/conf"
)

const bytesPerSample = conf.BitDepth / 8

// ConvertToFloat32 converts 16-bit PCM to samples in [-1, 1).
func ConvertToFloat32(pcm []byte) []float32 {
	length := len(pcm) / bytesPerSample
	out := make([]float32, length)
	const divisor = float32(32768.0)

	for i := range length {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(sample) / divisor
	}
	return out
}

// pcmToInts converts 16-bit PCM to the int samples go-audio expects.
func pcmToInts(pcm []byte) []int {
	samples := make([]int, len(pcm)/bytesPerSample)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return samples
}

// DurationToBytes returns the PCM byte length of d.
func DurationToBytes(d time.Duration) int {
	samples := int(d * conf.SampleRate / time.Second)
	return samples * bytesPerSample
}

// BytesToDuration returns the play time of n PCM bytes.
func BytesToDuration(n int) time.Duration {
	return time.Duration(n/bytesPerSample) * time.Second / conf.SampleRate
}

// Slice returns the part of pcm between the start and end offsets,
// clamped to the buffer and aligned to whole samples.
func Slice(pcm []byte, start, end time.Duration) []byte {
	from := min(max(DurationToBytes(start), 0), len(pcm))
	to := min(max(DurationToBytes(end), from), len(pcm))
	to -= (to - from) % bytesPerSample
	return pcm[from:to]
}
