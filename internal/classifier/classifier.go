// Package classifier wraps image-classification models behind a uniform
// preprocess, infer and argmax pipeline.
package classifier

import (
	"context"
	"errors"
	"image"

	"jordanella.com/slash-go/internal/cv"
)

var (
	// ErrModelUnavailable means no evaluator is loaded. It is "no answer",
	// never a classification.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrBadOutput means the evaluator returned a vector of the wrong length
	ErrBadOutput = errors.New("unexpected evaluator output")
)

// Evaluator runs a loaded model on a tensor and returns one score per class
type Evaluator interface {
	Infer(tensor *cv.Tensor, outputLen int) ([]float32, error)
}

// Result is the winning class of one classification
type Result struct {
	ClassIndex int
	Label      string
	Scores     []float32
}

// Classifier turns a captured region into a labelled result
type Classifier interface {
	Classify(ctx context.Context, img *image.RGBA) (Result, error)
}

// ModelSpec describes a model's input, output labels and normalization
type ModelSpec struct {
	Name   string
	File   string
	InputW int
	InputH int
	Labels []string
	Norm   cv.Normalization
}

// Classes returns the output vector length
func (m ModelSpec) Classes() int {
	return len(m.Labels)
}

// Label returns the label for index i, or "" when out of range
func (m ModelSpec) Label(i int) string {
	if i < 0 || i >= len(m.Labels) {
		return ""
	}
	return m.Labels[i]
}

// Argmax returns the index of the largest score. Ties resolve to the lowest
// index. An empty slice returns -1.
func Argmax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
