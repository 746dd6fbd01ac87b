package myaudio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tphakala/birdnet-listener/internal/logger"
)

const (
	wavHeaderSize   = 44
	riffSizeOffset  = 4
	dataSizeOffset  = 40
	maxWAVDataBytes = int64(^uint32(0)) - (wavHeaderSize - 8)
)

// DailyRecorder appends every captured window to one WAV file per
// calendar day, audio_2006-01-02.wav. A file that would outgrow the WAV
// size limit continues in audio_2006-01-02_1.wav and so on.
type DailyRecorder struct {
	dir     string
	maxData int64

	mu       sync.Mutex
	file     *os.File
	day      string
	part     int
	dataSize int64
}

// NewDailyRecorder returns a recorder writing into dir.
func NewDailyRecorder(dir string) *DailyRecorder {
	return &DailyRecorder{dir: dir, maxData: maxWAVDataBytes}
}

// Append writes pcm to the file of the day t falls on.
func (r *DailyRecorder) Append(t time.Time, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	day := t.Format(time.DateOnly)
	if r.file == nil || day != r.day {
		if err := r.closeLocked(); err != nil {
			GetLogger().Warn("closing daily recording failed", logger.Error(err))
		}
		r.day, r.part = day, 0
		if err := r.openLocked(); err != nil {
			return err
		}
	}

	for r.dataSize > 0 && r.dataSize+int64(len(pcm)) > r.maxData {
		if err := r.closeLocked(); err != nil {
			return err
		}
		r.part++
		if err := r.openLocked(); err != nil {
			return err
		}
	}

	if r.dataSize == 0 {
		if err := encodePCM(r.file, pcm); err != nil {
			return wavError(err, r.file.Name(), "encode")
		}
		r.dataSize = int64(len(pcm))
		return nil
	}

	if _, err := r.file.Seek(0, io.SeekEnd); err != nil {
		return wavError(err, r.file.Name(), "seek")
	}
	if _, err := r.file.Write(pcm); err != nil {
		return wavError(err, r.file.Name(), "write")
	}
	r.dataSize += int64(len(pcm))

	if err := r.patchSizes(); err != nil {
		return wavError(err, r.file.Name(), "patch header")
	}
	return nil
}

// Path returns the file currently written to, or "" before the first append.
func (r *DailyRecorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return ""
	}
	return r.file.Name()
}

// Close closes the current file.
func (r *DailyRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *DailyRecorder) closeLocked() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.dataSize = 0
	return err
}

func (r *DailyRecorder) fileName() string {
	if r.part == 0 {
		return filepath.Join(r.dir, fmt.Sprintf("audio_%s.wav", r.day))
	}
	return filepath.Join(r.dir, fmt.Sprintf("audio_%s_%d.wav", r.day, r.part))
}

// openLocked opens the current day and part, resuming an existing file
// left by an earlier run.
func (r *DailyRecorder) openLocked() error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return wavError(err, r.dir, "mkdir")
	}

	path := r.fileName()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return wavError(err, path, "open")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return wavError(err, path, "stat")
	}

	r.file = f
	r.dataSize = 0
	if info.Size() == 0 {
		return nil
	}

	if err := checkHeader(f); err != nil {
		f.Close()
		r.file = nil
		return wavError(err, path, "resume")
	}

	// Trust the file length over the header in case a previous run
	// stopped between the write and the header patch.
	r.dataSize = info.Size() - wavHeaderSize
	GetLogger().Debug("resuming daily recording",
		logger.String("path", path),
		logger.Int64("bytes", r.dataSize))
	return r.patchSizes()
}

func (r *DailyRecorder) patchSizes() error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(r.dataSize+wavHeaderSize-8))
	if _, err := r.file.WriteAt(buf[:], riffSizeOffset); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[:], uint32(r.dataSize))
	if _, err := r.file.WriteAt(buf[:], dataSizeOffset); err != nil {
		return err
	}
	return nil
}

// checkHeader verifies that f starts with the canonical 44 byte PCM header.
func checkHeader(f *os.File) error {
	header := make([]byte, wavHeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		return fmt.Errorf("short WAV header: %w", err)
	}
	if !bytes.Equal(header[0:4], []byte("RIFF")) ||
		!bytes.Equal(header[8:12], []byte("WAVE")) ||
		!bytes.Equal(header[36:40], []byte("data")) {
		return fmt.Errorf("not a canonical PCM WAV file")
	}
	return nil
}
