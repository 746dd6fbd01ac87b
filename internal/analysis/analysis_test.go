package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/birdnet-listener/internal/analysis/processor"
	"github.com/tphakala/birdnet-listener/internal/analysis/queue"
	"github.com/tphakala/birdnet-listener/internal/birdnet"
	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/datastore"
	"github.com/tphakala/birdnet-listener/internal/myaudio"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// burstSource delivers a fixed amount of silence and then idles.
type burstSource struct {
	bytes int
}

func (s burstSource) Run(ctx context.Context, onData func([]byte)) error {
	const chunk = 4800
	for sent := 0; sent < s.bytes; sent += chunk {
		onData(make([]byte, min(chunk, s.bytes-sent)))
	}
	<-ctx.Done()
	return nil
}

type failingSource struct{}

func (failingSource) Run(context.Context, func([]byte)) error {
	return errors.New("device unplugged")
}

func merel() birdnet.Classifier {
	return birdnet.ClassifierFunc(func(context.Context, []float32) ([]birdnet.Detection, error) {
		return []birdnet.Detection{{Species: "Merel", Confidence: 0.9, End: 3 * time.Second}}, nil
	})
}

func testProcessor(c birdnet.Classifier, store *datastore.Store) *processor.Processor {
	return processor.New(processor.Config{Threshold: 0.5}, c, store)
}

func TestPipelineStoresDetections(t *testing.T) {
	window := 500 * time.Millisecond
	store := datastore.NewStore(filepath.Join(t.TempDir(), "output.csv"))
	proc := testProcessor(merel(), store)

	p := &Pipeline{
		Source:    burstSource{bytes: 2 * myaudio.DurationToBytes(window)},
		Windower:  myaudio.NewWindower(window, nil),
		Queue:     queue.New(4, nil),
		Processor: proc,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		records, err := store.ReadAll()
		return err == nil && len(records) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	h := proc.Health()
	assert.Equal(t, uint64(2), h.Processed)
	assert.Equal(t, uint64(2), h.Stored)
	assert.Zero(t, h.Failed)
}

func TestPipelineStopsOnSourceFailure(t *testing.T) {
	store := datastore.NewStore(filepath.Join(t.TempDir(), "output.csv"))
	p := &Pipeline{
		Source:    failingSource{},
		Windower:  myaudio.NewWindower(time.Second, nil),
		Queue:     queue.New(4, nil),
		Processor: testProcessor(merel(), store),
	}

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestProcessFileContinuesAfterFailedWindow(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "dawn.wav")
	require.NoError(t, myaudio.SavePCMDataToWAV(wavPath, make([]byte, myaudio.DurationToBytes(7*time.Second))))

	var calls atomic.Int32
	classifier := birdnet.ClassifierFunc(func(context.Context, []float32) ([]birdnet.Detection, error) {
		if calls.Add(1) == 2 {
			return nil, errors.New("model exploded")
		}
		return []birdnet.Detection{{Species: "Merel", Confidence: 0.9, Start: time.Second, End: 3 * time.Second}}, nil
	})

	store := datastore.NewStore(filepath.Join(dir, "output.csv"))
	start := time.Date(2026, 10, 19, 5, 0, 0, 0, time.Local)

	result, err := processFile(context.Background(), testProcessor(classifier, store), wavPath, 3*time.Second, start)
	require.NoError(t, err)

	assert.Equal(t, conf.SampleRate, result.Info.SampleRate)
	assert.Equal(t, uint64(1), result.Health.Processed)
	assert.Equal(t, uint64(1), result.Health.Failed)
	assert.Equal(t, uint64(1), result.Health.Stored)
	assert.Equal(t, int32(2), calls.Load(), "the one second tail is too short to classify")

	records, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Timestamp.Equal(start.Add(time.Second)), "got %s", records[0].Timestamp)
}

func TestValidateAudioFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.wav")},
		{"directory", dir},
		{"empty", empty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, validateAudioFile(tt.path))
		})
	}
}

func TestClosersRunInReverse(t *testing.T) {
	var order []int
	var cl closers
	cl.add(func() error { order = append(order, 1); return nil })
	cl.add(func() error { order = append(order, 2); return errors.New("second") })
	cl.add(func() error { order = append(order, 3); return nil })

	err := cl.Close()
	require.Error(t, err)
	assert.Equal(t, []int{3, 2, 1}, order)
}
