package cv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// ErrCaptureUnavailable is matched by every capture failure, whatever the backend.
var ErrCaptureUnavailable = errors.New("frame capture unavailable")

// CaptureError wraps a backend-specific capture failure
type CaptureError struct {
	Backend string
	Err     error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s capture failed: %v", e.Backend, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Is reports every CaptureError as ErrCaptureUnavailable
func (e *CaptureError) Is(target error) bool {
	return target == ErrCaptureUnavailable
}

// Capturer grabs full frames from a device, browser tab or desktop
type Capturer interface {
	CaptureFrame(ctx context.Context) (*image.RGBA, error)
	GetDimensions() (width, height int)
}

// FrameSource yields the pixels of a screen region.
// The returned image is rebased so its bounds start at (0,0).
type FrameSource interface {
	CaptureRegion(ctx context.Context, rect image.Rectangle) (*image.RGBA, error)
}

// CaptureBackend selects which Capturer the CLI wires up
type CaptureBackend string

const (
	// CaptureBackendADB captures via `adb exec-out screencap -p`
	CaptureBackendADB CaptureBackend = "adb"
	// CaptureBackendBrowser captures a chromedp-driven browser tab
	CaptureBackendBrowser CaptureBackend = "browser"
	// CaptureBackendDesktop captures a desktop display
	CaptureBackendDesktop CaptureBackend = "desktop"
)

// CaptureConfig holds configuration for frame capture
type CaptureConfig struct {
	Backend        CaptureBackend
	TitleBarHeight int           // Pixels to exclude from top of frame
	CacheDuration  time.Duration // 0 disables the frame cache
}

// DefaultCaptureConfig returns recommended capture configuration
func DefaultCaptureConfig() *CaptureConfig {
	return &CaptureConfig{
		Backend:       CaptureBackendADB,
		CacheDuration: 100 * time.Millisecond,
	}
}
