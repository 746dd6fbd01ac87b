package myaudio

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/tphakala/flac"
)

// ReadFLACWindows is ReadWAVWindows for FLAC input. The same format
// restrictions apply.
func ReadFLACWindows(ctx context.Context, path string, window time.Duration, fn WindowCallback) (AudioInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, wavError(err, path, "open")
	}
	defer file.Close()

	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return AudioInfo{}, invalidAudio(path, "input is not a valid FLAC audio file")
	}

	info := AudioInfo{
		SampleRate:  decoder.SampleRate,
		NumChannels: decoder.NChannels,
		BitDepth:    decoder.BitsPerSample,
	}
	if err := checkFormat(path, info); err != nil {
		return info, err
	}

	asm := newWindowAssembler(info, window, fn)
	sampleBytes := info.BitDepth / 8
	var samples []int

	for {
		if err := ctx.Err(); err != nil {
			return info, err
		}

		frame, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return info, wavError(err, path, "decode")
		}

		samples = samples[:0]
		for i := 0; i+sampleBytes <= len(frame); i += sampleBytes {
			samples = append(samples, decodeSample(frame[i:], info.BitDepth))
		}
		if err := asm.addFrames(samples); err != nil {
			return info, err
		}
	}

	if err := asm.finish(); err != nil {
		return info, err
	}
	info.Duration = asm.duration()
	return info, nil
}

// decodeSample reads one signed little-endian sample of the given width.
func decodeSample(b []byte, bitDepth int) int {
	switch bitDepth {
	case 16:
		return int(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		return int(v<<8) >> 8
	default:
		return int(int32(binary.LittleEndian.Uint32(b)))
	}
}
