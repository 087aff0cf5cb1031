package cv

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestGray(t *testing.T) {
	if got := Gray(1, 1, 2); got != 1 {
		t.Errorf("Gray(1,1,2) = %d, want 1 (integer division)", got)
	}
	if got := Gray(255, 255, 255); got != 255 {
		t.Errorf("Gray(255,255,255) = %d, want 255", got)
	}
}

func TestCorrelationScoreFormula(t *testing.T) {
	src := solid(4, 4, gray(50))
	tpl := solid(2, 2, gray(100))

	// 4 * 50 * 100 / sqrt(4 * 100^2)
	want := 100.0
	if got := CorrelationScore(src, tpl, 1, 1); math.Abs(got-want) > 1e-9 {
		t.Errorf("CorrelationScore = %f, want %f", got, want)
	}
}

func TestBestCorrelationLocatesPatch(t *testing.T) {
	src := solid(10, 10, gray(0))
	fill(src, image.Rect(6, 3, 8, 5), gray(100))
	tpl := solid(2, 2, gray(100))

	score, at, ok := BestCorrelation(src, tpl)
	if !ok {
		t.Fatal("template should fit")
	}
	if at != (image.Point{X: 6, Y: 3}) {
		t.Errorf("location = %v, want (6,3)", at)
	}
	if math.Abs(score-200) > 1e-9 {
		t.Errorf("score = %f, want 200", score)
	}
}

func TestDetectTemplate(t *testing.T) {
	src := solid(10, 10, gray(0))
	fill(src, image.Rect(2, 2, 4, 4), gray(100))
	tpl := solid(2, 2, gray(100))

	tests := []struct {
		name      string
		src, tpl  *image.RGBA
		threshold float64
		want      bool
	}{
		{"score equals threshold", src, tpl, 200, true},
		{"score just below threshold", src, tpl, 200.0001, false},
		{"template wider than source", solid(3, 10, gray(9)), solid(4, 2, gray(9)), 0, false},
		{"template taller than source", solid(10, 3, gray(9)), solid(2, 4, gray(9)), 0, false},
		{"zero energy template with positive threshold", src, solid(2, 2, gray(0)), 0.5, false},
		{"zero energy template with zero threshold", src, solid(2, 2, gray(0)), 0, true},
		{"exact fit", solid(2, 2, gray(100)), tpl, 200, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectTemplate(tt.src, tt.tpl, tt.threshold); got != tt.want {
				t.Errorf("DetectTemplate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCorrelationIgnoresSourceEnergy(t *testing.T) {
	// A bright region outscores an exact copy of the template
	tpl := solid(2, 2, gray(100))
	src := solid(6, 2, gray(0))
	fill(src, image.Rect(0, 0, 2, 2), gray(100))
	fill(src, image.Rect(4, 0, 6, 2), gray(250))

	_, at, _ := BestCorrelation(src, tpl)
	if at.X != 4 {
		t.Errorf("best location = %v, want the brighter patch at x=4", at)
	}
}

func TestFindTemplateMethods(t *testing.T) {
	haystack := solid(20, 20, gray(10))
	needle := solid(4, 4, color.RGBA{200, 50, 50, 255})
	fill(needle, image.Rect(0, 0, 2, 4), color.RGBA{50, 200, 50, 255})
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			haystack.SetRGBA(12+x, 7+y, needle.RGBAAt(x, y))
		}
	}

	for _, method := range []MatchMethod{MatchMethodSAD, MatchMethodSSD, MatchMethodNCC} {
		result := FindTemplate(haystack, needle, &MatchConfig{Method: method, Threshold: 0.9})
		if !result.Found {
			t.Errorf("method %d: not found (confidence %f)", method, result.Confidence)
			continue
		}
		if result.Location != (image.Point{X: 12, Y: 7}) {
			t.Errorf("method %d: location = %v, want (12,7)", method, result.Location)
		}
	}
}

func TestFindTemplateSearchRegion(t *testing.T) {
	haystack := solid(20, 20, gray(10))
	fill(haystack, image.Rect(2, 2, 5, 5), gray(240))
	needle := solid(3, 3, gray(240))

	region := image.Rect(10, 10, 20, 20)
	result := FindTemplate(haystack, needle, &MatchConfig{Method: MatchMethodSSD, Threshold: 0.99, SearchRegion: &region})
	if result.Found {
		t.Errorf("match outside search region should not be found: %+v", result)
	}

	tooSmall := image.Rect(0, 0, 2, 2)
	result = FindTemplate(haystack, needle, &MatchConfig{SearchRegion: &tooSmall})
	if result.Found {
		t.Error("needle larger than search region should not be found")
	}
}

func TestFindTemplateAllMaxMatches(t *testing.T) {
	haystack := solid(10, 10, gray(80))
	needle := solid(2, 2, gray(80))

	all := FindTemplateAll(haystack, needle, &MatchConfig{Method: MatchMethodSAD, Threshold: 0.99})
	if len(all) != 81 {
		t.Errorf("len = %d, want 81", len(all))
	}

	limited := FindTemplateAll(haystack, needle, &MatchConfig{Method: MatchMethodSAD, Threshold: 0.99, MaxMatches: 3})
	if len(limited) != 3 {
		t.Errorf("len = %d, want 3", len(limited))
	}
}

func TestCropRegionRebases(t *testing.T) {
	img := solid(10, 10, gray(0))
	img.SetRGBA(5, 6, gray(77))

	cropped := CropRegion(img, image.Rect(4, 4, 8, 8))
	if cropped.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Fatalf("bounds = %v", cropped.Bounds())
	}
	if got := cropped.RGBAAt(1, 2); got != gray(77) {
		t.Errorf("pixel = %v, want gray(77)", got)
	}

	clipped := CropRegion(img, image.Rect(8, 8, 20, 20))
	if clipped.Bounds().Dx() != 2 {
		t.Errorf("clipped width = %d, want 2", clipped.Bounds().Dx())
	}
}

func TestRegionAverage(t *testing.T) {
	img := solid(4, 4, color.RGBA{100, 0, 0, 255})
	fill(img, image.Rect(0, 0, 4, 2), color.RGBA{200, 0, 0, 255})

	if got := RegionAverage(img, img.Bounds()); got.R != 150 {
		t.Errorf("average R = %d, want 150", got.R)
	}
}
