package myaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/errors"
)

// AudioInfo describes an audio file.
type AudioInfo struct {
	SampleRate  int
	NumChannels int
	BitDepth    int
	Duration    time.Duration
}

// WindowCallback receives one window of 16-bit mono PCM and its offset
// from the start of the file.
type WindowCallback func(offset time.Duration, pcm []byte) error

// readBufferFrames is how many frames are decoded per read.
const readBufferFrames = 8 * conf.CaptureLength * conf.SampleRate

// ReadAudioWindows calls fn for every window of a WAV or FLAC file,
// chosen by extension.
func ReadAudioWindows(ctx context.Context, path string, window time.Duration, fn WindowCallback) (AudioInfo, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		return ReadWAVWindows(ctx, path, window, fn)
	case ".flac":
		return ReadFLACWindows(ctx, path, window, fn)
	default:
		return AudioInfo{}, invalidAudio(path, fmt.Sprintf("unsupported audio format %q, expected .wav or .flac", ext))
	}
}

// checkFormat rejects input that would need resampling or an unknown
// sample width.
func checkFormat(path string, info AudioInfo) error {
	if info.SampleRate != conf.SampleRate {
		return invalidAudio(path, fmt.Sprintf("sample rate %d Hz, expected %d Hz", info.SampleRate, conf.SampleRate))
	}
	if info.BitDepth != 16 && info.BitDepth != 24 && info.BitDepth != 32 {
		return invalidAudio(path, fmt.Sprintf("unsupported bit depth: %d", info.BitDepth))
	}
	if info.NumChannels < 1 {
		return invalidAudio(path, "no audio channels")
	}
	return nil
}

// windowAssembler downmixes decoded frames to 16-bit mono and cuts them
// into windows. A trailing part shorter than half a model chunk is
// discarded.
type windowAssembler struct {
	fn          WindowCallback
	channels    int
	shift       int
	windowBytes int
	minTail     int
	pending     []byte
	emitted     int
	decoded     int
}

func newWindowAssembler(info AudioInfo, window time.Duration, fn WindowCallback) *windowAssembler {
	windowBytes := DurationToBytes(window)
	return &windowAssembler{
		fn:          fn,
		channels:    info.NumChannels,
		shift:       info.BitDepth - conf.BitDepth,
		windowBytes: windowBytes,
		minTail:     DurationToBytes(conf.CaptureLength * time.Second / 2),
		pending:     make([]byte, 0, windowBytes),
	}
}

// addFrames takes interleaved samples at the source bit depth.
func (a *windowAssembler) addFrames(samples []int) error {
	frames := len(samples) / a.channels
	for f := range frames {
		var sum int
		for c := range a.channels {
			sum += samples[f*a.channels+c]
		}
		sample := int16((sum / a.channels) >> a.shift)
		a.pending = binary.LittleEndian.AppendUint16(a.pending, uint16(sample))
		a.decoded += bytesPerSample

		if len(a.pending) == a.windowBytes {
			if err := a.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *windowAssembler) flush() error {
	pcm := a.pending
	a.pending = make([]byte, 0, a.windowBytes)
	offset := BytesToDuration(a.emitted)
	a.emitted += len(pcm)
	return a.fn(offset, pcm)
}

// finish emits the tail window if it is long enough.
func (a *windowAssembler) finish() error {
	if len(a.pending) >= a.minTail {
		return a.flush()
	}
	return nil
}

func (a *windowAssembler) duration() time.Duration {
	return BytesToDuration(a.decoded)
}

// ReadWAVWindows decodes a WAV file, downmixes it to mono 16-bit PCM and
// calls fn for every window of the given length. The file must already be
// at conf.SampleRate; no resampling is done.
func ReadWAVWindows(ctx context.Context, path string, window time.Duration, fn WindowCallback) (AudioInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, wavError(err, path, "open")
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return AudioInfo{}, invalidAudio(path, "input is not a valid WAV audio file")
	}

	info := AudioInfo{
		SampleRate:  int(decoder.SampleRate),
		NumChannels: int(decoder.NumChans),
		BitDepth:    int(decoder.BitDepth),
	}
	if err := checkFormat(path, info); err != nil {
		return info, err
	}

	asm := newWindowAssembler(info, window, fn)
	buf := &audio.IntBuffer{
		Data:   make([]int, readBufferFrames*info.NumChannels),
		Format: &audio.Format{SampleRate: info.SampleRate, NumChannels: info.NumChannels},
	}

	for {
		if err := ctx.Err(); err != nil {
			return info, err
		}

		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return info, wavError(err, path, "decode")
		}
		if n == 0 {
			break
		}
		if err := asm.addFrames(buf.Data[:n]); err != nil {
			return info, err
		}
	}

	if err := asm.finish(); err != nil {
		return info, err
	}
	info.Duration = asm.duration()
	return info, nil
}

func invalidAudio(path, msg string) error {
	return errors.New(errors.NewStd(msg)).
		Component("myaudio").
		Category(errors.CategoryFileParsing).
		Context("path", path).
		Build()
}
