package adb

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	"jordanella.com/slash-go/internal/cv"
)

// Shell executes a shell command on the device and returns its output
func (c *Controller) Shell(ctx context.Context, command string) (string, error) {
	if !c.IsConnected() {
		return "", errNotConnected
	}
	output, err := c.runner.Run(ctx, c.path, "-s", c.device, "shell", command)
	if err != nil {
		return "", fmt.Errorf("shell command %q failed: %w", command, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// Tap performs a tap at the specified device coordinates
func (c *Controller) Tap(ctx context.Context, x, y float64) error {
	cmd := fmt.Sprintf("input tap %d %d", round(x), round(y))
	c.logger.DebugWithContext("tap", map[string]interface{}{"x": x, "y": y})
	_, err := c.Shell(ctx, cmd)
	return err
}

// Swipe performs a swipe gesture
func (c *Controller) Swipe(ctx context.Context, x1, y1, x2, y2 float64, durationMs int) error {
	cmd := fmt.Sprintf("input swipe %d %d %d %d %d", round(x1), round(y1), round(x2), round(y2), durationMs)
	_, err := c.Shell(ctx, cmd)
	return err
}

// SendKey sends a key event (e.g., "KEYCODE_BACK", "KEYCODE_HOME")
func (c *Controller) SendKey(ctx context.Context, key string) error {
	_, err := c.Shell(ctx, "input keyevent "+key)
	return err
}

// CaptureFrame grabs the screen with `exec-out screencap -p`
func (c *Controller) CaptureFrame(ctx context.Context) (*image.RGBA, error) {
	if !c.IsConnected() {
		return nil, &cv.CaptureError{Backend: "adb", Err: errNotConnected}
	}

	output, err := c.runner.Run(ctx, c.path, "-s", c.device, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, &cv.CaptureError{Backend: "adb", Err: err}
	}

	img, err := cv.DecodeRGBA(bytes.NewReader(output))
	if err != nil {
		return nil, &cv.CaptureError{Backend: "adb", Err: fmt.Errorf("decode screencap: %w", err)}
	}

	c.mu.Lock()
	c.width, c.height = img.Bounds().Dx(), img.Bounds().Dy()
	c.mu.Unlock()
	return img, nil
}

// GetDimensions returns the size of the last captured frame
func (c *Controller) GetDimensions() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// Screenshot captures a frame and saves it as PNG
func (c *Controller) Screenshot(ctx context.Context, localPath string) error {
	img, err := c.CaptureFrame(ctx)
	if err != nil {
		return err
	}
	return cv.SavePNG(img, localPath)
}

// GetWindowSize returns the current window/screen size
func (c *Controller) GetWindowSize(ctx context.Context) (width, height int, err error) {
	output, err := c.Shell(ctx, "wm size")
	if err != nil {
		return 0, 0, err
	}

	// "Physical size: 1080x1920", optionally followed by "Override size: ..."
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if _, err := fmt.Sscanf(line, "Override size: %dx%d", &width, &height); err == nil {
			return width, height, nil
		}
	}
	if _, err := fmt.Sscanf(output, "Physical size: %dx%d", &width, &height); err != nil {
		return 0, 0, fmt.Errorf("failed to parse window size: %s", output)
	}
	return width, height, nil
}

func round(v float64) int {
	return int(math.Round(v))
}
