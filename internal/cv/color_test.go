package cv

import (
	"image"
	"image/color"
	"testing"
)

func TestAnalyzeColor(t *testing.T) {
	tests := []struct {
		name string
		img  *image.RGBA
		want ColorClass
	}{
		{"all red", solid(10, 10, color.RGBA{200, 10, 10, 255}), ColorDanger},
		{"all green", solid(10, 10, color.RGBA{10, 200, 10, 255}), ColorGood},
		{"all blue", solid(10, 10, color.RGBA{10, 10, 200, 255}), ColorSpecial},
		{"dark red below floor", solid(10, 10, color.RGBA{150, 0, 0, 255}), ColorNeutral},
		{"white has no strict winner", solid(10, 10, color.RGBA{255, 255, 255, 255}), ColorNeutral},
		{"tie between red and green", solid(10, 10, color.RGBA{200, 200, 0, 255}), ColorNeutral},
		{"empty image", image.NewRGBA(image.Rect(0, 0, 0, 0)), ColorNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AnalyzeColor(tt.img); got != tt.want {
				t.Errorf("AnalyzeColor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyzeColorRatioBoundary(t *testing.T) {
	// exactly 40% red must not trigger, 41% must
	img := solid(10, 10, gray(0))
	fill(img, image.Rect(0, 0, 10, 4), color.RGBA{220, 0, 0, 255})
	if got := AnalyzeColor(img); got != ColorNeutral {
		t.Errorf("40%% red = %v, want NEUTRAL", got)
	}

	img.SetRGBA(0, 4, color.RGBA{220, 0, 0, 255})
	if got := AnalyzeColor(img); got != ColorDanger {
		t.Errorf("41%% red = %v, want DANGER", got)
	}
}

func TestAnalyzeColorPriority(t *testing.T) {
	// 50% red and 50% green: red is checked first
	img := solid(10, 10, color.RGBA{0, 220, 0, 255})
	fill(img, image.Rect(0, 0, 10, 5), color.RGBA{220, 0, 0, 255})
	if got := AnalyzeColor(img); got != ColorDanger {
		t.Errorf("AnalyzeColor = %v, want DANGER", got)
	}

	// 45% green and 45% blue: green wins
	img = solid(20, 10, gray(0))
	fill(img, image.Rect(0, 0, 9, 10), color.RGBA{0, 220, 0, 255})
	fill(img, image.Rect(9, 0, 18, 10), color.RGBA{0, 0, 220, 255})
	if got := AnalyzeColor(img); got != ColorGood {
		t.Errorf("AnalyzeColor = %v, want GOOD", got)
	}
}

func TestMeasureColorRatiosSubImage(t *testing.T) {
	base := solid(20, 20, color.RGBA{0, 0, 220, 255})
	fill(base, image.Rect(10, 10, 20, 20), color.RGBA{220, 0, 0, 255})

	sub := base.SubImage(image.Rect(10, 10, 20, 20)).(*image.RGBA)
	r := MeasureColorRatios(sub)
	if r.Red != 1 || r.Blue != 0 {
		t.Errorf("ratios = %+v, want all red", r)
	}
}
