package cv

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"
)

type fakeCapturer struct {
	frame *image.RGBA
	err   error
	calls int
}

func (f *fakeCapturer) CaptureFrame(ctx context.Context) (*image.RGBA, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.frame, nil
}

func (f *fakeCapturer) GetDimensions() (int, int) {
	b := f.frame.Bounds()
	return b.Dx(), b.Dy()
}

type fakeTemplates map[string]*image.RGBA

func (f fakeTemplates) Get(name string) (Template, bool) {
	if _, ok := f[name]; !ok {
		return Template{}, false
	}
	return Template{Name: name, Threshold: 200, Method: MatchMethodCorrelation}, true
}

func (f fakeTemplates) Image(name string) (*image.RGBA, error) {
	return f[name], nil
}

func TestServiceCaptureRegion(t *testing.T) {
	frame := solid(100, 80, gray(0))
	fill(frame, image.Rect(10, 20, 30, 40), color.RGBA{220, 0, 0, 255})
	service := NewService(&fakeCapturer{frame: frame}, &CaptureConfig{})

	region, err := service.CaptureRegion(context.Background(), image.Rect(10, 20, 30, 40))
	if err != nil {
		t.Fatalf("CaptureRegion failed: %v", err)
	}
	if region.Bounds() != image.Rect(0, 0, 20, 20) {
		t.Errorf("bounds = %v, want 20x20 at origin", region.Bounds())
	}
	if AnalyzeColor(region) != ColorDanger {
		t.Error("cropped region should be all red")
	}
}

func TestServiceCaptureRegionOutsideFrame(t *testing.T) {
	service := NewService(&fakeCapturer{frame: solid(10, 10, gray(0))}, &CaptureConfig{})

	_, err := service.CaptureRegion(context.Background(), image.Rect(50, 50, 60, 60))
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Errorf("err = %v, want ErrCaptureUnavailable", err)
	}
}

func TestServiceFrameCache(t *testing.T) {
	capturer := &fakeCapturer{frame: solid(10, 10, gray(0))}
	service := NewService(capturer, &CaptureConfig{CacheDuration: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := service.CaptureFrame(ctx, true); err != nil {
			t.Fatal(err)
		}
	}
	if capturer.calls != 1 {
		t.Errorf("calls = %d, want 1 with cache", capturer.calls)
	}

	service.InvalidateCache()
	service.CaptureFrame(ctx, true)
	if capturer.calls != 2 {
		t.Errorf("calls = %d, want 2 after invalidate", capturer.calls)
	}
}

func TestServiceTitleBarExclusion(t *testing.T) {
	frame := solid(10, 40, gray(0))
	fill(frame, image.Rect(0, 0, 10, 8), gray(255))
	service := NewService(&fakeCapturer{frame: frame}, &CaptureConfig{TitleBarHeight: 8})

	got, err := service.CaptureFrame(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if got.Bounds().Dy() != 32 {
		t.Errorf("height = %d, want 32", got.Bounds().Dy())
	}
	if got.RGBAAt(0, 0) != gray(0) {
		t.Error("title bar pixels leaked into frame")
	}
}

func TestServiceCaptureError(t *testing.T) {
	boom := &CaptureError{Backend: "fake", Err: errors.New("device offline")}
	service := NewService(&fakeCapturer{err: boom}, nil)

	_, err := service.CaptureRegion(context.Background(), image.Rect(0, 0, 5, 5))
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Errorf("err = %v, want ErrCaptureUnavailable", err)
	}
	var ce *CaptureError
	if !errors.As(err, &ce) || ce.Backend != "fake" {
		t.Errorf("err = %v, want *CaptureError from fake backend", err)
	}
}

func TestServiceDetectTemplate(t *testing.T) {
	frame := solid(50, 50, gray(0))
	fill(frame, image.Rect(12, 12, 14, 14), gray(100))
	service := NewService(&fakeCapturer{frame: frame}, &CaptureConfig{}).
		WithTemplates(fakeTemplates{"marker": solid(2, 2, gray(100))})

	found, score, err := service.DetectTemplate(context.Background(), "marker", image.Rect(10, 10, 20, 20))
	if err != nil {
		t.Fatalf("DetectTemplate failed: %v", err)
	}
	if !found || score != 200 {
		t.Errorf("found=%v score=%f, want true 200", found, score)
	}

	if _, _, err := service.DetectTemplate(context.Background(), "missing", image.Rectangle{}); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestServiceCaptureRegionBypassesCache(t *testing.T) {
	capturer := &fakeCapturer{frame: solid(10, 10, gray(0))}
	service := NewService(capturer, &CaptureConfig{CacheDuration: time.Hour})
	ctx := context.Background()

	if _, err := service.CaptureFrame(ctx, true); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := service.CaptureRegion(ctx, image.Rect(0, 0, 5, 5)); err != nil {
			t.Fatal(err)
		}
	}
	if capturer.calls != 3 {
		t.Errorf("calls = %d, want a new capture per region", capturer.calls)
	}
}

func TestServiceRegionsUseDeviceCoordinates(t *testing.T) {
	frame := solid(10, 40, gray(0))
	fill(frame, image.Rect(0, 20, 10, 30), color.RGBA{220, 0, 0, 255})
	service := NewService(&fakeCapturer{frame: frame}, &CaptureConfig{TitleBarHeight: 8})

	region, err := service.CaptureRegion(context.Background(), image.Rect(0, 20, 10, 30))
	if err != nil {
		t.Fatal(err)
	}
	if region.Bounds() != image.Rect(0, 0, 10, 10) {
		t.Errorf("bounds = %v", region.Bounds())
	}
	if AnalyzeColor(region) != ColorDanger {
		t.Error("region should be read at the same device coordinates taps use")
	}
}

func TestServiceFindTemplateReportsDeviceLocation(t *testing.T) {
	frame := solid(50, 50, gray(0))
	fill(frame, image.Rect(12, 20, 14, 22), gray(100))
	service := NewService(&fakeCapturer{frame: frame}, &CaptureConfig{TitleBarHeight: 8}).
		WithTemplates(fakeTemplates{"marker": solid(2, 2, gray(100))})

	res, err := service.FindTemplate(context.Background(), "marker")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Found || res.Location != image.Pt(12, 20) {
		t.Errorf("result = %+v, want found at 12,20", res)
	}
}

// frameSequence returns frames in order, repeating the last one
type frameSequence struct {
	frames []*image.RGBA
}

func (f *frameSequence) CaptureFrame(ctx context.Context) (*image.RGBA, error) {
	frame := f.frames[0]
	if len(f.frames) > 1 {
		f.frames = f.frames[1:]
	}
	return frame, nil
}

func (f *frameSequence) GetDimensions() (int, int) {
	return 50, 50
}

func TestServiceWaitForTemplate(t *testing.T) {
	marked := solid(50, 50, gray(0))
	fill(marked, image.Rect(30, 5, 32, 7), gray(100))
	seq := &frameSequence{frames: []*image.RGBA{solid(50, 50, gray(0)), solid(50, 50, gray(0)), marked}}
	service := NewService(seq, &CaptureConfig{CacheDuration: time.Hour}).
		WithTemplates(fakeTemplates{"marker": solid(2, 2, gray(100))})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := service.WaitForTemplate(ctx, "marker", time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForTemplate: %v", err)
	}
	if res.Location != image.Pt(30, 5) {
		t.Errorf("location = %v", res.Location)
	}
}

func TestServiceWaitForTemplateTimesOut(t *testing.T) {
	service := NewService(&fakeCapturer{frame: solid(50, 50, gray(0))}, &CaptureConfig{}).
		WithTemplates(fakeTemplates{"marker": solid(2, 2, gray(100))})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := service.WaitForTemplate(ctx, "marker", time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestDebugMatchOutlinesMatch(t *testing.T) {
	frame := solid(20, 20, gray(0))
	res := &MatchResult{Found: true, Location: image.Pt(5, 5)}

	out := DebugMatch(frame, res, image.Pt(4, 4))
	if out.RGBAAt(5, 5) != (color.RGBA{255, 0, 0, 255}) || out.RGBAAt(8, 8) != (color.RGBA{255, 0, 0, 255}) {
		t.Error("match corners should be outlined")
	}
	if out.RGBAAt(6, 6) != gray(0) {
		t.Error("inside of the outline should be untouched")
	}
	if frame.RGBAAt(5, 5) != gray(0) {
		t.Error("source frame was modified")
	}
}
