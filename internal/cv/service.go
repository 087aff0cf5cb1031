package cv

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"
)

// TemplateSource resolves a template name to its definition and pixels
type TemplateSource interface {
	Get(name string) (Template, bool)
	Image(name string) (*image.RGBA, error)
}

// Service fronts a Capturer with a short-lived frame cache and title-bar exclusion.
// It implements FrameSource. Rectangles passed in and points returned are in
// device coordinates, the same space taps are dispatched in; frames returned
// by CaptureFrame start below the title bar.
type Service struct {
	capturer  Capturer
	templates TemplateSource // Optional

	// Frame caching for performance
	cachedFrame     *image.RGBA
	cachedFrameTime time.Time
	cacheDuration   time.Duration

	// Title bar exclusion
	titleBarHeight int

	mu sync.RWMutex
}

// NewService creates a new CV service
func NewService(capturer Capturer, cfg *CaptureConfig) *Service {
	if cfg == nil {
		cfg = DefaultCaptureConfig()
	}
	return &Service{
		capturer:       capturer,
		cacheDuration:  cfg.CacheDuration,
		titleBarHeight: cfg.TitleBarHeight,
	}
}

// WithTemplates sets the template source used by FindTemplate / DetectTemplate
func (s *Service) WithTemplates(src TemplateSource) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = src
	return s
}

// CaptureFrame captures a full frame, minus the title bar, reusing a cached
// frame younger than the cache duration when useCache is set.
func (s *Service) CaptureFrame(ctx context.Context, useCache bool) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if useCache && s.cachedFrame != nil && time.Since(s.cachedFrameTime) < s.cacheDuration {
		return s.cachedFrame, nil
	}

	frame, err := s.capturer.CaptureFrame(ctx)
	if err != nil {
		return nil, err
	}
	if s.titleBarHeight > 0 {
		b := frame.Bounds()
		frame = CropRegion(frame, image.Rect(b.Min.X, b.Min.Y+s.titleBarHeight, b.Max.X, b.Max.Y))
	}

	if s.cacheDuration > 0 {
		s.cachedFrame = frame
		s.cachedFrameTime = time.Now()
	}

	return frame, nil
}

// toFrame maps a device rectangle into frame coordinates
func (s *Service) toFrame(rect image.Rectangle) image.Rectangle {
	return rect.Sub(image.Pt(0, s.titleBarHeight))
}

// CaptureRegion bypasses the frame cache, captures a new frame and crops
// the device rectangle rect out of it. An empty rect returns the whole frame.
// A rect that falls entirely outside the frame is a capture failure.
func (s *Service) CaptureRegion(ctx context.Context, rect image.Rectangle) (*image.RGBA, error) {
	frame, err := s.CaptureFrame(ctx, false)
	if err != nil {
		return nil, err
	}
	if rect.Empty() {
		return frame, nil
	}
	clipped := s.toFrame(rect).Intersect(frame.Bounds())
	if clipped.Empty() {
		return nil, &CaptureError{
			Backend: "region",
			Err:     fmt.Errorf("region %v outside frame %v", rect, frame.Bounds()),
		}
	}
	return CropRegion(frame, clipped), nil
}

// InvalidateCache forces next capture to get fresh frame
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedFrame = nil
}

// GetDimensions returns the capture dimensions
func (s *Service) GetDimensions() (width, height int) {
	return s.capturer.GetDimensions()
}

func (s *Service) template(name string) (Template, *image.RGBA, error) {
	s.mu.RLock()
	src := s.templates
	s.mu.RUnlock()

	if src == nil {
		return Template{}, nil, fmt.Errorf("no template source configured")
	}
	tpl, ok := src.Get(name)
	if !ok {
		return Template{}, nil, fmt.Errorf("template '%s' not found in registry", name)
	}
	img, err := src.Image(name)
	if err != nil {
		return Template{}, nil, fmt.Errorf("failed to load template: %w", err)
	}
	return tpl, img, nil
}

// FindTemplate finds a named template in the current frame using its own
// method and region. The location is in device coordinates.
func (s *Service) FindTemplate(ctx context.Context, name string) (*MatchResult, error) {
	tpl, img, err := s.template(name)
	if err != nil {
		return nil, err
	}
	frame, err := s.CaptureFrame(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to capture frame: %w", err)
	}

	cfg := tpl.MatchConfig()
	if cfg.SearchRegion != nil {
		r := s.toFrame(*cfg.SearchRegion)
		cfg.SearchRegion = &r
	}
	res := FindTemplate(frame, img, cfg)
	res.Location = res.Location.Add(image.Pt(0, s.titleBarHeight))
	return res, nil
}

// DetectTemplate runs the correlation detector for a named template inside rect
func (s *Service) DetectTemplate(ctx context.Context, name string, rect image.Rectangle) (bool, float64, error) {
	tpl, img, err := s.template(name)
	if err != nil {
		return false, 0, err
	}
	region, err := s.CaptureRegion(ctx, rect)
	if err != nil {
		return false, 0, err
	}
	score, _, ok := BestCorrelation(region, img)
	return ok && score >= tpl.Threshold, score, nil
}

// WaitForTemplate polls until the template appears or ctx is done
func (s *Service) WaitForTemplate(ctx context.Context, name string, poll time.Duration) (*MatchResult, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		s.InvalidateCache()
		result, err := s.FindTemplate(ctx, name)
		if err != nil {
			return nil, err
		}
		if result.Found {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("template %s not found: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}
