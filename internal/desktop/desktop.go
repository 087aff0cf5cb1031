// Package desktop captures a display with kbinani/screenshot and sends
// clicks with robotgo. Coordinates are relative to the display origin.
package desktop

import (
	"context"
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"

	"jordanella.com/slash-go/internal/cv"
	"jordanella.com/slash-go/internal/logging"
)

// Screen is one physical display
type Screen struct {
	display int
	bounds  image.Rectangle
	logger  *logging.Logger
}

// Open selects a display by index
func Open(display int) (*Screen, error) {
	n := screenshot.NumActiveDisplays()
	if display < 0 || display >= n {
		return nil, fmt.Errorf("display %d not available (%d active)", display, n)
	}
	return &Screen{
		display: display,
		bounds:  screenshot.GetDisplayBounds(display),
		logger:  logging.NewLogger("Desktop"),
	}, nil
}

// CaptureFrame grabs the whole display
func (s *Screen) CaptureFrame(ctx context.Context) (*image.RGBA, error) {
	return s.CaptureRegion(ctx, image.Rectangle{})
}

// CaptureRegion grabs rect, given in display coordinates. An empty rect
// means the whole display.
func (s *Screen) CaptureRegion(ctx context.Context, rect image.Rectangle) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := screenRect(s.bounds, rect)
	if err != nil {
		return nil, &cv.CaptureError{Backend: "desktop", Err: err}
	}

	img, err := screenshot.CaptureRect(abs)
	if err != nil {
		return nil, &cv.CaptureError{Backend: "desktop", Err: err}
	}
	return rebase(img), nil
}

// GetDimensions returns the display size
func (s *Screen) GetDimensions() (width, height int) {
	return s.bounds.Dx(), s.bounds.Dy()
}

// Tap moves the pointer to (x,y) on the display and left-clicks
func (s *Screen) Tap(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := screenPoint(s.bounds, x, y)
	if !p.In(s.bounds) {
		return fmt.Errorf("tap (%.0f,%.0f) is outside display %d", x, y, s.display)
	}

	s.logger.DebugWithContext("click", map[string]interface{}{"x": p.X, "y": p.Y})
	robotgo.Move(p.X, p.Y)
	robotgo.Click("left", false)
	return nil
}

// screenRect translates rect from display to virtual-screen coordinates
func screenRect(display, rect image.Rectangle) (image.Rectangle, error) {
	if rect.Empty() {
		return display, nil
	}
	abs := rect.Add(display.Min)
	if !abs.In(display) {
		return image.Rectangle{}, fmt.Errorf("region %v is outside the display %v", rect, display.Sub(display.Min))
	}
	return abs, nil
}

func screenPoint(display image.Rectangle, x, y float64) image.Point {
	return image.Pt(int(x+0.5), int(y+0.5)).Add(display.Min)
}

// rebase moves img's bounds to start at (0,0) without copying pixels
func rebase(img *image.RGBA) *image.RGBA {
	if img.Rect.Min == (image.Point{}) {
		return img
	}
	out := *img
	out.Rect = img.Rect.Sub(img.Rect.Min)
	return &out
}
