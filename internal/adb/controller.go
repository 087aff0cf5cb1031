package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"jordanella.com/slash-go/internal/logging"
)

// Runner executes the adb binary and returns its stdout
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands through os/exec, killing them when ctx is done
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return out, fmt.Errorf("%w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Controller drives one device over adb. It implements cv.Capturer for
// frames and the replay dispatcher interface for taps.
type Controller struct {
	path   string
	device string // "127.0.0.1:port"
	runner Runner
	logger *logging.Logger

	mu        sync.Mutex
	connected bool
	width     int
	height    int
}

// NewController creates a new ADB controller
func NewController(adbPath, port string) *Controller {
	return &Controller{
		path:   adbPath,
		device: fmt.Sprintf("127.0.0.1:%s", port),
		runner: execRunner{},
		logger: logging.NewLogger("ADB"),
	}
}

// WithRunner replaces the process runner
func (c *Controller) WithRunner(r Runner) *Controller {
	c.runner = r
	return c
}

// Device returns the adb serial the controller talks to
func (c *Controller) Device() string {
	return c.device
}

// Connect establishes connection to the ADB device
func (c *Controller) Connect(ctx context.Context) error {
	output, err := c.runner.Run(ctx, c.path, "connect", c.device)
	if err != nil {
		return fmt.Errorf("failed to connect to device %s: %w", c.device, err)
	}

	// "connected to" or "already connected to"; "failed to connect" also contains "connect"
	text := string(output)
	if !strings.Contains(text, "connected to") {
		return fmt.Errorf("unexpected connect output: %s", strings.TrimSpace(text))
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.InfoWithContext("connected", map[string]interface{}{"device": c.device})
	return nil
}

// Disconnect closes the ADB connection
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if !wasConnected {
		return nil
	}
	if _, err := c.runner.Run(ctx, c.path, "disconnect", c.device); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", c.device, err)
	}
	return nil
}

// IsConnected returns whether the controller is connected
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var errNotConnected = errors.New("device not connected")
