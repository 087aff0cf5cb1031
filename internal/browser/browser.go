// Package browser drives a game running in a Chrome tab through chromedp.
// A Browser is both a frame source and an input sink.
package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"jordanella.com/slash-go/internal/cv"
	"jordanella.com/slash-go/internal/logging"
)

var errNotStarted = errors.New("browser not started")

// Config describes the browser window and the page to open
type Config struct {
	URL      string
	Headless bool
	Width    int
	Height   int
	Timeout  time.Duration // per capture or click
}

// DefaultConfig returns an 800x600 visible window
func DefaultConfig() Config {
	return Config{
		Width:   800,
		Height:  600,
		Timeout: 5 * time.Second,
	}
}

// Browser owns one chromedp tab
type Browser struct {
	cfg    Config
	logger *logging.Logger

	mu          sync.RWMutex
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	width       int
	height      int
}

// New creates a browser; call Start to launch it
func New(cfg Config) *Browser {
	def := DefaultConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Browser{cfg: cfg, logger: logging.NewLogger("Browser")}
}

// Start launches Chrome and navigates to the configured URL
func (b *Browser) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(b.cfg.Width, b.cfg.Height),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		b.logger.Debug(fmt.Sprintf(format, args...))
	}))

	b.mu.Lock()
	b.allocCancel, b.ctx, b.cancel = allocCancel, tabCtx, cancel
	b.mu.Unlock()

	if b.cfg.URL == "" {
		return chromedp.Run(tabCtx)
	}

	b.logger.InfoWithContext("navigating", map[string]interface{}{"url": b.cfg.URL})
	navCtx, navCancel := b.scoped(ctx, 60*time.Second)
	defer navCancel()
	return chromedp.Run(navCtx, chromedp.Navigate(b.cfg.URL))
}

// Close shuts the tab and the browser process
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.ctx, b.cancel, b.allocCancel = nil, nil, nil
}

// CaptureFrame screenshots the viewport
func (b *Browser) CaptureFrame(ctx context.Context) (*image.RGBA, error) {
	return b.capture(ctx, nil)
}

// CaptureRegion screenshots only rect, using the DevTools clip
func (b *Browser) CaptureRegion(ctx context.Context, rect image.Rectangle) (*image.RGBA, error) {
	if rect.Empty() {
		return b.capture(ctx, nil)
	}
	return b.capture(ctx, &page.Viewport{
		X:      float64(rect.Min.X),
		Y:      float64(rect.Min.Y),
		Width:  float64(rect.Dx()),
		Height: float64(rect.Dy()),
		Scale:  1,
	})
}

func (b *Browser) capture(ctx context.Context, clip *page.Viewport) (*image.RGBA, error) {
	if !b.started() {
		return nil, &cv.CaptureError{Backend: "browser", Err: errNotStarted}
	}

	runCtx, cancel := b.scoped(ctx, b.cfg.Timeout)
	defer cancel()

	var buf []byte
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		shot := page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng)
		if clip != nil {
			shot = shot.WithClip(clip)
		}
		var err error
		buf, err = shot.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, &cv.CaptureError{Backend: "browser", Err: err}
	}

	img, err := cv.DecodeRGBA(bytes.NewReader(buf))
	if err != nil {
		return nil, &cv.CaptureError{Backend: "browser", Err: err}
	}
	if clip == nil {
		b.mu.Lock()
		b.width, b.height = img.Bounds().Dx(), img.Bounds().Dy()
		b.mu.Unlock()
	}
	return img, nil
}

// GetDimensions returns the last full-frame size, or the window size
func (b *Browser) GetDimensions() (width, height int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.width == 0 {
		return b.cfg.Width, b.cfg.Height
	}
	return b.width, b.height
}

// Tap clicks at page coordinates
func (b *Browser) Tap(ctx context.Context, x, y float64) error {
	if !b.started() {
		return errNotStarted
	}
	runCtx, cancel := b.scoped(ctx, b.cfg.Timeout)
	defer cancel()

	b.logger.DebugWithContext("click", map[string]interface{}{"x": x, "y": y})
	return chromedp.Run(runCtx, chromedp.MouseClickXY(x, y))
}

func (b *Browser) started() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx != nil && b.ctx.Err() == nil
}

// scoped derives a chromedp context from the tab that also ends when the
// caller's ctx does.
func (b *Browser) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	b.mu.RLock()
	tab := b.ctx
	b.mu.RUnlock()
	if tab == nil {
		// closed concurrently; chromedp.Run fails fast on a done context
		var cancel context.CancelFunc
		tab, cancel = context.WithCancel(context.Background())
		cancel()
	}

	runCtx, cancel := context.WithTimeout(tab, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
