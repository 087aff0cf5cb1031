package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"jordanella.com/slash-go/internal/cv"
)

// ModelPlaceholder in a runner argument is replaced by the model file path
const ModelPlaceholder = "{model}"

// runnerRequest is written to the runner's stdin
type runnerRequest struct {
	Model   string    `json:"model"`
	Shape   [4]int    `json:"shape"`
	Outputs int       `json:"outputs"`
	Data    []float32 `json:"data"`
}

// ExecEvaluator runs an external inference runner per call. The runner reads a
// JSON request on stdin and prints a JSON array of scores on stdout.
type ExecEvaluator struct {
	Command   []string
	ModelPath string
	Timeout   time.Duration
}

// NewExecEvaluator splits runner on whitespace and binds it to modelPath
func NewExecEvaluator(runner, modelPath string, timeout time.Duration) (*ExecEvaluator, error) {
	args := strings.Fields(runner)
	if len(args) == 0 {
		return nil, fmt.Errorf("empty runner command")
	}
	return &ExecEvaluator{Command: args, ModelPath: modelPath, Timeout: timeout}, nil
}

func (e *ExecEvaluator) args() []string {
	out := make([]string, 0, len(e.Command))
	substituted := false
	for _, a := range e.Command[1:] {
		if strings.Contains(a, ModelPlaceholder) {
			a = strings.ReplaceAll(a, ModelPlaceholder, e.ModelPath)
			substituted = true
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, e.ModelPath)
	}
	return out
}

// Infer implements Evaluator
func (e *ExecEvaluator) Infer(tensor *cv.Tensor, outputLen int) ([]float32, error) {
	ctx := context.Background()
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(runnerRequest{
		Model:   e.ModelPath,
		Shape:   tensor.Shape,
		Outputs: outputLen,
		Data:    tensor.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tensor: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.Command[0], e.args()...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("runner failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	var scores []float32
	if err := json.Unmarshal(output, &scores); err != nil {
		return nil, fmt.Errorf("failed to parse runner output: %w", err)
	}
	return scores, nil
}
