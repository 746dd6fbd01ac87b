package myaudio

import (
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

// pcmFormat is the format of every WAV file this package writes.
var pcmFormat = &audio.Format{SampleRate: conf.SampleRate, NumChannels: conf.NumChannels}

// SavePCMDataToWAV saves the given PCM data as a WAV file at filePath,
// creating parent directories as needed.
func SavePCMDataToWAV(filePath string, pcmData []byte) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return wavError(err, filePath, "mkdir")
	}

	outFile, err := os.Create(filePath)
	if err != nil {
		return wavError(err, filePath, "create")
	}
	defer outFile.Close()

	if err := encodePCM(outFile, pcmData); err != nil {
		return wavError(err, filePath, "encode")
	}
	return nil
}

// encodePCM writes a complete WAV stream to f and leaves the offset at the end.
func encodePCM(f *os.File, pcmData []byte) error {
	enc := wav.NewEncoder(f, conf.SampleRate, conf.BitDepth, conf.NumChannels, 1)
	if err := enc.Write(&audio.IntBuffer{Data: pcmToInts(pcmData), Format: pcmFormat, SourceBitDepth: conf.BitDepth}); err != nil {
		return fmt.Errorf("failed to write to WAV encoder: %w", err)
	}
	return enc.Close()
}

// SnippetName returns the clip file name for a detection.
//
//	timestamped: 2026-10-19_13-05-00_Koolmees_0.87.wav
//	species:     Koolmees_20261019-130500.wav
func SnippetName(format string, t time.Time, species string, confidence float64) string {
	name := fileSafe(species)
	if format == conf.NameFormatSpecies {
		return fmt.Sprintf("%s_%s.wav", name, t.Format("20060102-150405"))
	}
	return fmt.Sprintf("%s_%s_%.2f.wav", t.Format("2006-01-02_15-04-05"), name, confidence)
}

// fileSafe replaces whitespace and path separators with underscores.
func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '/', '\\', ':':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}

func wavError(err error, path, op string) error {
	return errors.New(err).
		Component("myaudio").
		Category(errors.CategoryFileIO).
		Context("operation", op).
		Context("path", path).
		Build()
}
