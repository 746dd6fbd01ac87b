package birdnet

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"

	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/cpuspec"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
)

// predictor runs the model on one chunk and returns raw logits, one per label.
type predictor interface {
	predict(chunk []float32) ([]float32, error)
	close()
}

// Defaults for the labels returned per chunk.
const (
	DefaultMinConfidence = 0.1
	DefaultMaxResults    = 10
)

// BirdNET classifies windows with the BirdNET TFLite model. The
// interpreter is not safe for concurrent use, so calls are serialized.
type BirdNET struct {
	ModelID       string
	labels        []string
	sensitivity   float64
	overlap       float64
	minConfidence float64
	maxResults    int
	model         predictor
	mu            sync.Mutex
}

// New loads the model and labels named in settings.
func New(settings *conf.BirdNETConfig) (*BirdNET, error) {
	start := time.Now()

	labels, err := LoadLabels(settings.LabelPath)
	if err != nil {
		return nil, err
	}

	model, err := newTFLitePredictor(settings.ModelPath, determineThreadCount(settings.Threads))
	if err != nil {
		return nil, errors.New(err).
			Component("birdnet").
			Category(errors.CategoryModelInit).
			Context("model_path", settings.ModelPath).
			Timing("model-init", time.Since(start)).
			Build()
	}

	if model.outputSize != len(labels) {
		model.close()
		return nil, errors.Newf("model has %d outputs but label file has %d labels", model.outputSize, len(labels)).
			Component("birdnet").
			Category(errors.CategoryLabelLoad).
			Context("label_path", settings.LabelPath).
			Build()
	}

	bn := newWithPredictor(model, labels, settings.Sensitivity, settings.Overlap)
	bn.ModelID = modelID(settings.ModelPath)
	bn.SetResultLimits(settings.MinConfidence, settings.MaxResults)

	GetLogger().Info("model loaded",
		logger.String("model", bn.ModelID),
		logger.Int("labels", len(labels)),
		logger.Duration("elapsed", time.Since(start)))

	return bn, nil
}

func newWithPredictor(p predictor, labels []string, sensitivity, overlap float64) *BirdNET {
	return &BirdNET{
		ModelID:       "custom",
		labels:        labels,
		sensitivity:   sensitivity,
		overlap:       overlap,
		minConfidence: DefaultMinConfidence,
		maxResults:    DefaultMaxResults,
		model:         p,
	}
}

// SetResultLimits sets the lowest confidence and the number of labels
// returned per chunk. A negative confidence or a count below one keeps the
// current value.
func (bn *BirdNET) SetResultLimits(minConfidence float64, maxResults int) {
	bn.mu.Lock()
	defer bn.mu.Unlock()
	if minConfidence >= 0 {
		bn.minConfidence = minConfidence
	}
	if maxResults >= 1 {
		bn.maxResults = maxResults
	}
}

// Classify splits the window into model-sized chunks and returns, for every
// chunk, each label scoring at least the minimum confidence, highest first
// and at most maxResults of them. Filtering is left to the caller, so a
// human label does not hide a bird heard in the same chunk.
func (bn *BirdNET) Classify(ctx context.Context, window []float32) ([]Detection, error) {
	if len(window) < conf.CaptureLength*conf.SampleRate/2 {
		return nil, errors.Newf("%w: %d samples", ErrInvalidWindow, len(window)).
			Component("birdnet").
			Category(errors.CategoryClassification).
			Build()
	}

	bn.mu.Lock()
	defer bn.mu.Unlock()

	chunks := SplitChunks(window, bn.overlap)
	detections := make([]Detection, 0, len(chunks))

	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logits, err := bn.model.predict(chunks[i].Samples)
		if err != nil {
			return nil, errors.New(fmt.Errorf("prediction failed: %w", err)).
				Component("birdnet").
				Category(errors.CategoryClassification).
				Context("chunk", i).
				Build()
		}

		results, err := pairLabelsAndConfidence(bn.labels, applySigmoid(logits, bn.sensitivity))
		if err != nil {
			return nil, errors.New(err).
				Component("birdnet").
				Category(errors.CategoryClassification).
				Build()
		}
		sortResults(results)

		for _, r := range trimResultsToMax(results, bn.maxResults) {
			if r.confidence < bn.minConfidence {
				break
			}
			detections = append(detections, Detection{
				Species:    CommonName(r.label),
				Confidence: r.confidence,
				Start:      chunks[i].Start,
				End:        chunks[i].End,
			})
		}
	}

	return detections, nil
}

// Close releases the interpreter.
func (bn *BirdNET) Close() {
	bn.mu.Lock()
	defer bn.mu.Unlock()
	if bn.model != nil {
		bn.model.close()
		bn.model = nil
	}
}

type result struct {
	label      string
	confidence float64
}

// customSigmoid applies a sigmoid function with sensitivity adjustment to a value.
func customSigmoid(x, sensitivity float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sensitivity*x))
}

func applySigmoid(logits []float32, sensitivity float64) []float64 {
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = customSigmoid(float64(v), sensitivity)
	}
	return out
}

// pairLabelsAndConfidence pairs labels with their corresponding confidence values.
func pairLabelsAndConfidence(labels []string, confidence []float64) ([]result, error) {
	if len(labels) != len(confidence) || len(labels) == 0 {
		return nil, fmt.Errorf("mismatched labels and predictions lengths: %d vs %d", len(labels), len(confidence))
	}

	results := make([]result, len(labels))
	for i, label := range labels {
		results[i] = result{label: label, confidence: confidence[i]}
	}
	return results, nil
}

// sortResults sorts by confidence, highest first. Equal scores keep label order.
func sortResults(results []result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].confidence > results[j].confidence
	})
}

func trimResultsToMax(results []result, maxResults int) []result {
	if len(results) > maxResults {
		return results[:maxResults]
	}
	return results
}

// determineThreadCount maps the configured thread count to a usable value.
// Zero picks a count from the CPU.
func determineThreadCount(configured int) int {
	system := runtime.NumCPU()
	if configured <= 0 {
		return cpuspec.GetCPUSpec().OptimalThreadCount(system)
	}
	return min(configured, system)
}

// modelID extracts "BirdNET_GLOBAL_6K_V2.4" from the model file name.
func modelID(path string) string {
	name := filepath.Base(path)
	if id, _, ok := strings.Cut(name, "_Model_"); ok && strings.HasPrefix(name, "BirdNET_") {
		return id
	}
	return "custom"
}

// tflitePredictor owns the TFLite model and interpreter.
type tflitePredictor struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	outputSize  int
}

func newTFLitePredictor(path string, threads int) (*tflitePredictor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("birdnet").
			Category(errors.CategoryModelLoad).
			Context("path", path).
			Build()
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model")
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	output := interpreter.GetOutputTensor(0)
	p := &tflitePredictor{
		model:       model,
		options:     options,
		interpreter: interpreter,
		outputSize:  output.Dim(output.NumDims() - 1),
	}
	return p, nil
}

func (p *tflitePredictor) predict(chunk []float32) ([]float32, error) {
	input := p.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	copy(input.Float32s(), chunk)

	if status := p.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	output := p.interpreter.GetOutputTensor(0)
	logits := make([]float32, p.outputSize)
	copy(logits, output.Float32s())
	return logits, nil
}

func (p *tflitePredictor) close() {
	p.interpreter.Delete()
	p.options.Delete()
	p.model.Delete()
}
