package birdnet

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/errors"
)

// scriptedPredictor returns one logit vector per call, in order.
type scriptedPredictor struct {
	logits [][]float32
	calls  int
	err    error
	closed bool
}

func (p *scriptedPredictor) predict(chunk []float32) ([]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	if len(chunk) != conf.CaptureLength*conf.SampleRate {
		return nil, errors.NewStd("unexpected chunk length")
	}
	out := p.logits[p.calls%len(p.logits)]
	p.calls++
	return out, nil
}

func (p *scriptedPredictor) close() { p.closed = true }

func seconds(n float64) []float32 {
	return make([]float32, int(n*conf.SampleRate))
}

func TestSplitChunks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		window     float64
		overlap    float64
		wantChunks int
		wantLast   time.Duration
	}{
		{"thirty seconds no overlap", 30, 0, 10, 27 * time.Second},
		{"thirty seconds half overlap", 30, 1.5, 19, 27 * time.Second},
		{"short tail dropped", 7, 0, 2, 3 * time.Second},
		{"long tail padded", 8, 0, 3, 6 * time.Second},
		{"below minimum", 1, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chunks := SplitChunks(seconds(tt.window), tt.overlap)
			require.Len(t, chunks, tt.wantChunks)
			if tt.wantChunks == 0 {
				return
			}
			last := chunks[len(chunks)-1]
			assert.Equal(t, tt.wantLast, last.Start)
			assert.Len(t, last.Samples, conf.CaptureLength*conf.SampleRate)
		})
	}
}

func TestClassifyReturnsLabelsAboveMinimumPerChunk(t *testing.T) {
	t.Parallel()

	labels := []string{"Turdus merula_Merel", "Erithacus rubecula_Roodborst", "Homo sapiens_Human vocal"}
	p := &scriptedPredictor{logits: [][]float32{
		{4, -2, -3}, // 0.982, 0.119, 0.047
		{-3, 1, -5}, // 0.047, 0.731, 0.007
	}}
	bn := newWithPredictor(p, labels, 1.0, 0)

	got, err := bn.Classify(context.Background(), seconds(6))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Merel", got[0].Species)
	assert.InDelta(t, customSigmoid(4, 1), got[0].Confidence, 1e-9)
	assert.Equal(t, time.Duration(0), got[0].Start)
	assert.Equal(t, 3*time.Second, got[0].End)

	assert.Equal(t, "Roodborst", got[1].Species)
	assert.Equal(t, time.Duration(0), got[1].Start)

	assert.Equal(t, "Roodborst", got[2].Species)
	assert.Equal(t, 3*time.Second, got[2].Start)
	assert.Equal(t, 6*time.Second, got[2].End)
}

func TestClassifyKeepsBirdNextToHumanLabel(t *testing.T) {
	t.Parallel()

	labels := []string{"Human vocal", "Merel", "Roodborst"}
	bn := newWithPredictor(&scriptedPredictor{logits: [][]float32{{5, 3, -5}}}, labels, 1.0, 0)

	got, err := bn.Classify(context.Background(), seconds(3))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Human vocal", got[0].Species)
	assert.Equal(t, "Merel", got[1].Species)
	assert.InDelta(t, 0.953, got[1].Confidence, 0.001)
}

func TestClassifyResultLimits(t *testing.T) {
	t.Parallel()

	labels := []string{"Merel", "Roodborst", "Koolmees", "Vink"}
	logits := [][]float32{{3, 2, 1, 0}} // 0.953, 0.881, 0.731, 0.5

	tests := []struct {
		name          string
		minConfidence float64
		maxResults    int
		want          []string
	}{
		{"defaults", -1, 0, []string{"Merel", "Roodborst", "Koolmees", "Vink"}},
		{"top two", -1, 2, []string{"Merel", "Roodborst"}},
		{"minimum", 0.75, 10, []string{"Merel", "Roodborst"}},
		{"nothing above minimum", 0.99, 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			bn := newWithPredictor(&scriptedPredictor{logits: logits}, labels, 1.0, 0)
			bn.SetResultLimits(tt.minConfidence, tt.maxResults)

			got, err := bn.Classify(context.Background(), seconds(3))
			require.NoError(t, err)

			var species []string
			for _, d := range got {
				species = append(species, d.Species)
			}
			assert.Equal(t, tt.want, species)
		})
	}
}

func TestClassifySensitivityShiftsConfidence(t *testing.T) {
	t.Parallel()

	labels := []string{"Merel"}
	low := newWithPredictor(&scriptedPredictor{logits: [][]float32{{1}}}, labels, 0.5, 0)
	high := newWithPredictor(&scriptedPredictor{logits: [][]float32{{1}}}, labels, 1.5, 0)

	lo, err := low.Classify(context.Background(), seconds(3))
	require.NoError(t, err)
	hi, err := high.Classify(context.Background(), seconds(3))
	require.NoError(t, err)

	assert.Less(t, lo[0].Confidence, hi[0].Confidence)
}

func TestClassifyErrors(t *testing.T) {
	t.Parallel()

	labels := []string{"Merel", "Vink"}

	t.Run("window too short", func(t *testing.T) {
		t.Parallel()
		bn := newWithPredictor(&scriptedPredictor{logits: [][]float32{{0, 0}}}, labels, 1, 0)
		_, err := bn.Classify(context.Background(), seconds(1))
		require.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("model failure", func(t *testing.T) {
		t.Parallel()
		bn := newWithPredictor(&scriptedPredictor{err: errors.NewStd("invoke failed")}, labels, 1, 0)
		_, err := bn.Classify(context.Background(), seconds(3))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryClassification))
	})

	t.Run("label mismatch", func(t *testing.T) {
		t.Parallel()
		bn := newWithPredictor(&scriptedPredictor{logits: [][]float32{{0, 0, 0}}}, labels, 1, 0)
		_, err := bn.Classify(context.Background(), seconds(3))
		require.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		bn := newWithPredictor(&scriptedPredictor{logits: [][]float32{{0, 0}}}, labels, 1, 0)
		_, err := bn.Classify(ctx, seconds(3))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestCloseReleasesModel(t *testing.T) {
	t.Parallel()

	p := &scriptedPredictor{logits: [][]float32{{0}}}
	bn := newWithPredictor(p, []string{"Merel"}, 1, 0)
	bn.Close()
	bn.Close()
	assert.True(t, p.closed)
}

func TestParseLabelsAndCommonName(t *testing.T) {
	t.Parallel()

	labels, err := ParseLabels(strings.NewReader("Turdus merula_Merel\n\nDog\n  Parus major_Koolmees  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Turdus merula_Merel", "Dog", "Parus major_Koolmees"}, labels)

	assert.Equal(t, "Merel", CommonName(labels[0]))
	assert.Equal(t, "Dog", CommonName(labels[1]))
	assert.Equal(t, "Koolmees", CommonName(labels[2]))

	_, err = ParseLabels(strings.NewReader("\n\n"))
	require.Error(t, err)
}

func TestModelID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "BirdNET_GLOBAL_6K_V2.4", modelID("model/BirdNET_GLOBAL_6K_V2.4_Model_FP32.tflite"))
	assert.Equal(t, "custom", modelID("model/my.tflite"))
}

func TestDetermineThreadCount(t *testing.T) {
	t.Parallel()

	system := runtime.NumCPU()
	assert.Equal(t, 1, determineThreadCount(1))
	assert.Equal(t, system, determineThreadCount(system+4))

	auto := determineThreadCount(0)
	assert.Positive(t, auto)
	assert.LessOrEqual(t, auto, system)
}
