package classifier

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"jordanella.com/slash-go/internal/cv"
	"jordanella.com/slash-go/internal/logging"
)

// Adapter binds a ModelSpec to an optional Evaluator. It is safe for
// concurrent use; Load and Unload may race with Classify.
type Adapter struct {
	spec   ModelSpec
	logger *logging.Logger

	mu   sync.RWMutex
	eval Evaluator
}

// NewAdapter returns an adapter with no evaluator loaded
func NewAdapter(spec ModelSpec) *Adapter {
	return &Adapter{
		spec:   spec,
		logger: logging.NewLogger("classifier." + spec.Name),
	}
}

// Spec returns the model spec
func (a *Adapter) Spec() ModelSpec {
	return a.spec
}

// Load installs an evaluator, closing any previous one
func (a *Adapter) Load(eval Evaluator) {
	a.mu.Lock()
	prev := a.eval
	a.eval = eval
	a.mu.Unlock()

	closeEvaluator(prev)
	a.logger.InfoWithContext("model loaded", map[string]interface{}{"file": a.spec.File})
}

// Unload removes and closes the evaluator
func (a *Adapter) Unload() {
	a.mu.Lock()
	prev := a.eval
	a.eval = nil
	a.mu.Unlock()

	closeEvaluator(prev)
}

// Loaded reports whether an evaluator is installed
func (a *Adapter) Loaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.eval != nil
}

func closeEvaluator(e Evaluator) {
	if c, ok := e.(io.Closer); ok {
		c.Close()
	}
}

type inferResult struct {
	scores []float32
	err    error
}

// Classify preprocesses img, runs the evaluator and returns the argmax class.
// Inference runs on its own goroutine so a cancelled ctx returns immediately;
// the evaluator call itself finishes in the background.
func (a *Adapter) Classify(ctx context.Context, img *image.RGBA) (Result, error) {
	a.mu.RLock()
	eval := a.eval
	a.mu.RUnlock()

	if eval == nil {
		return Result{}, fmt.Errorf("%s: %w", a.spec.Name, ErrModelUnavailable)
	}

	tensor, err := cv.Preprocess(img, a.spec.InputW, a.spec.InputH, a.spec.Norm)
	if err != nil {
		return Result{}, err
	}

	done := make(chan inferResult, 1)
	go func() {
		scores, err := eval.Infer(tensor, a.spec.Classes())
		done <- inferResult{scores, err}
	}()

	var res inferResult
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res = <-done:
	}

	if res.err != nil {
		return Result{}, fmt.Errorf("%s inference failed: %w", a.spec.Name, res.err)
	}
	if len(res.scores) != a.spec.Classes() {
		return Result{}, fmt.Errorf("%s: %w: got %d scores, want %d",
			a.spec.Name, ErrBadOutput, len(res.scores), a.spec.Classes())
	}

	idx := Argmax(res.scores)
	return Result{ClassIndex: idx, Label: a.spec.Label(idx), Scores: res.scores}, nil
}
