package cv

import (
	"image"
	"image/color"
	"math"
)

// MatchResult contains template matching results
type MatchResult struct {
	Found      bool
	Location   image.Point
	Confidence float64
}

// MatchMethod defines template matching algorithm
type MatchMethod int

const (
	// MatchMethodSAD - Sum of Absolute Differences (fastest)
	MatchMethodSAD MatchMethod = iota
	// MatchMethodSSD - Sum of Squared Differences (balanced)
	MatchMethodSSD
	// MatchMethodNCC - Normalized Cross-Correlation, scaled to 0-1
	MatchMethodNCC
	// MatchMethodCorrelation - raw gray correlation over template energy, unbounded
	MatchMethodCorrelation
)

// ParseMatchMethod maps registry/CLI names to a MatchMethod
func ParseMatchMethod(s string) MatchMethod {
	switch s {
	case "sad":
		return MatchMethodSAD
	case "ncc":
		return MatchMethodNCC
	case "correlation", "corr":
		return MatchMethodCorrelation
	default:
		return MatchMethodSSD
	}
}

// MatchConfig configures template matching
type MatchConfig struct {
	Method       MatchMethod
	Threshold    float64          // 0.0-1.0 except for MatchMethodCorrelation
	SearchRegion *image.Rectangle // Optional: limit search area
	MaxMatches   int              // For FindTemplateAll, 0 = unlimited
}

// DefaultMatchConfig returns recommended settings
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Method:     MatchMethodSSD,
		Threshold:  0.85,
		MaxMatches: 1,
	}
}

// searchArea returns the inclusive range of top-left offsets to scan, or ok=false
// if the needle cannot be placed anywhere.
func searchArea(haystack, needle *image.RGBA, region *image.Rectangle) (minPt, maxPt image.Point, ok bool) {
	bounds := haystack.Bounds()
	if region != nil {
		bounds = region.Intersect(bounds)
		if bounds.Empty() {
			return minPt, maxPt, false
		}
	}

	nw, nh := needle.Bounds().Dx(), needle.Bounds().Dy()
	if nw <= 0 || nh <= 0 {
		return minPt, maxPt, false
	}

	maxPt = image.Point{X: bounds.Max.X - nw, Y: bounds.Max.Y - nh}
	if maxPt.X < bounds.Min.X || maxPt.Y < bounds.Min.Y {
		return minPt, maxPt, false
	}
	return bounds.Min, maxPt, true
}

// FindTemplate returns the best-scoring placement of needle inside haystack
func FindTemplate(haystack, needle *image.RGBA, config *MatchConfig) *MatchResult {
	if config == nil {
		config = DefaultMatchConfig()
	}

	minPt, maxPt, ok := searchArea(haystack, needle, config.SearchRegion)
	if !ok {
		return &MatchResult{Found: false}
	}

	scorer := newScorer(needle, config.Method)
	bestScore := 0.0
	bestLocation := image.Point{}

	for y := minPt.Y; y <= maxPt.Y; y++ {
		for x := minPt.X; x <= maxPt.X; x++ {
			score := scorer(haystack, x, y)
			if score > bestScore {
				bestScore = score
				bestLocation = image.Point{X: x, Y: y}
			}
		}
	}

	return &MatchResult{
		Found:      bestScore >= config.Threshold && bestScore > 0,
		Location:   bestLocation,
		Confidence: bestScore,
	}
}

// FindTemplateAll finds all placements scoring at or above threshold
func FindTemplateAll(haystack, needle *image.RGBA, config *MatchConfig) []MatchResult {
	if config == nil {
		config = DefaultMatchConfig()
	}

	minPt, maxPt, ok := searchArea(haystack, needle, config.SearchRegion)
	if !ok {
		return nil
	}

	scorer := newScorer(needle, config.Method)
	var results []MatchResult

	for y := minPt.Y; y <= maxPt.Y; y++ {
		for x := minPt.X; x <= maxPt.X; x++ {
			score := scorer(haystack, x, y)
			if score < config.Threshold {
				continue
			}
			results = append(results, MatchResult{
				Found:      true,
				Location:   image.Point{X: x, Y: y},
				Confidence: score,
			})
			if config.MaxMatches > 0 && len(results) >= config.MaxMatches {
				return results
			}
		}
	}

	return results
}

type scoreFunc func(haystack *image.RGBA, x, y int) float64

func newScorer(needle *image.RGBA, method MatchMethod) scoreFunc {
	switch method {
	case MatchMethodSAD:
		return func(h *image.RGBA, x, y int) float64 { return matchSAD(h, needle, x, y) }
	case MatchMethodNCC:
		return func(h *image.RGBA, x, y int) float64 { return matchNCC(h, needle, x, y) }
	case MatchMethodCorrelation:
		plane := newGrayPlane(needle)
		return func(h *image.RGBA, x, y int) float64 { return plane.correlate(h, x, y) }
	default:
		return func(h *image.RGBA, x, y int) float64 { return matchSSD(h, needle, x, y) }
	}
}

// pixelPairs calls fn with the haystack and needle Pix offsets of every needle pixel
// placed at haystack offset (x, y).
func pixelPairs(haystack, needle *image.RGBA, x, y int, fn func(hIdx, nIdx int)) {
	nb := needle.Bounds()
	for ny := 0; ny < nb.Dy(); ny++ {
		hRow := haystack.PixOffset(x, y+ny)
		nRow := needle.PixOffset(nb.Min.X, nb.Min.Y+ny)
		for nx := 0; nx < nb.Dx(); nx++ {
			fn(hRow+nx*4, nRow+nx*4)
		}
	}
}

// matchSAD - Sum of Absolute Differences (fastest, least accurate)
func matchSAD(haystack, needle *image.RGBA, x, y int) float64 {
	var sad uint64
	pixelPairs(haystack, needle, x, y, func(h, n int) {
		for c := 0; c < 3; c++ {
			sad += uint64(abs(int(haystack.Pix[h+c]) - int(needle.Pix[n+c])))
		}
	})

	nb := needle.Bounds()
	maxSAD := float64(nb.Dx() * nb.Dy() * 3 * 255)
	return 1.0 - float64(sad)/maxSAD
}

// matchSSD - Sum of Squared Differences (balanced)
func matchSSD(haystack, needle *image.RGBA, x, y int) float64 {
	var ssd uint64
	pixelPairs(haystack, needle, x, y, func(h, n int) {
		for c := 0; c < 3; c++ {
			d := int(haystack.Pix[h+c]) - int(needle.Pix[n+c])
			ssd += uint64(d * d)
		}
	})

	nb := needle.Bounds()
	maxSSD := float64(nb.Dx() * nb.Dy() * 3 * 255 * 255)
	return 1.0 - float64(ssd)/maxSSD
}

// matchNCC - Normalized Cross-Correlation (slowest, most accurate)
func matchNCC(haystack, needle *image.RGBA, x, y int) float64 {
	var sumH, sumN, sumHN, sumHH, sumNN float64
	nb := needle.Bounds()
	count := float64(nb.Dx() * nb.Dy() * 3)

	pixelPairs(haystack, needle, x, y, func(hi, ni int) {
		for c := 0; c < 3; c++ {
			h := float64(haystack.Pix[hi+c])
			n := float64(needle.Pix[ni+c])
			sumH += h
			sumN += n
			sumHN += h * n
			sumHH += h * h
			sumNN += n * n
		}
	})

	numerator := sumHN - sumH*sumN/count
	denomH := math.Sqrt(sumHH - sumH*sumH/count)
	denomN := math.Sqrt(sumNN - sumN*sumN/count)
	if denomH == 0 || denomN == 0 {
		return 0
	}

	// -1..1 mapped onto 0..1
	return (numerator/(denomH*denomN) + 1.0) / 2.0
}

// Gray is the unweighted integer mean of the RGB channels
func Gray(r, g, b uint8) int {
	return (int(r) + int(g) + int(b)) / 3
}

// grayPlane caches a template's gray values and energy
type grayPlane struct {
	w, h   int
	values []int
	norm   float64 // sqrt of the sum of squared gray values
}

func newGrayPlane(img *image.RGBA) *grayPlane {
	b := img.Bounds()
	p := &grayPlane{w: b.Dx(), h: b.Dy(), values: make([]int, b.Dx()*b.Dy())}

	var energy float64
	for y := 0; y < p.h; y++ {
		row := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < p.w; x++ {
			idx := row + x*4
			g := Gray(img.Pix[idx], img.Pix[idx+1], img.Pix[idx+2])
			p.values[y*p.w+x] = g
			energy += float64(g * g)
		}
	}
	p.norm = math.Sqrt(energy)
	return p
}

// correlate scores the template against src with its top-left at (ox, oy)
// in src coordinates. A zero-energy template scores 0.
func (p *grayPlane) correlate(src *image.RGBA, ox, oy int) float64 {
	if p.norm == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < p.h; y++ {
		row := src.PixOffset(ox, oy+y)
		for x := 0; x < p.w; x++ {
			idx := row + x*4
			s := Gray(src.Pix[idx], src.Pix[idx+1], src.Pix[idx+2])
			sum += float64(s * p.values[y*p.w+x])
		}
	}
	return sum / p.norm
}

// CorrelationScore is sum(src*tpl)/sqrt(sum(tpl^2)) over gray values, with the
// template's top-left at offset (x, y) of src. Source energy is not part of
// the denominator, so brighter regions score higher.
func CorrelationScore(src, tpl *image.RGBA, x, y int) float64 {
	b := src.Bounds()
	return newGrayPlane(tpl).correlate(src, b.Min.X+x, b.Min.Y+y)
}

// BestCorrelation scans every placement of tpl inside src and returns the
// highest score, starting from 0. ok is false when tpl does not fit.
func BestCorrelation(src, tpl *image.RGBA) (score float64, at image.Point, ok bool) {
	if src == nil || tpl == nil {
		return 0, at, false
	}
	minPt, maxPt, fits := searchArea(src, tpl, nil)
	if !fits {
		return 0, at, false
	}

	plane := newGrayPlane(tpl)
	for y := minPt.Y; y <= maxPt.Y; y++ {
		for x := minPt.X; x <= maxPt.X; x++ {
			if s := plane.correlate(src, x, y); s > score {
				score = s
				at = image.Point{X: x - minPt.X, Y: y - minPt.Y}
			}
		}
	}
	return score, at, true
}

// DetectTemplate reports whether the best correlation of tpl within src reaches
// threshold. A template larger than src in either dimension never matches.
func DetectTemplate(src, tpl *image.RGBA, threshold float64) bool {
	score, _, ok := BestCorrelation(src, tpl)
	if !ok {
		return false
	}
	return score >= threshold
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// RegionAverage calculates average color in a region
func RegionAverage(img *image.RGBA, rect image.Rectangle) color.RGBA {
	rect = rect.Intersect(img.Bounds())
	var r, g, b uint64
	count := uint64(rect.Dx() * rect.Dy())
	if count == 0 {
		return color.RGBA{0, 0, 0, 255}
	}

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := img.PixOffset(rect.Min.X, y)
		for x := 0; x < rect.Dx(); x++ {
			idx := row + x*4
			r += uint64(img.Pix[idx])
			g += uint64(img.Pix[idx+1])
			b += uint64(img.Pix[idx+2])
		}
	}

	return color.RGBA{R: uint8(r / count), G: uint8(g / count), B: uint8(b / count), A: 255}
}

// CropRegion copies rect out of img into a new image whose bounds start at (0,0).
// rect is clipped to img's bounds.
func CropRegion(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(img.Bounds())
	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))

	for y := 0; y < rect.Dy(); y++ {
		src := img.PixOffset(rect.Min.X, rect.Min.Y+y)
		dst := cropped.PixOffset(0, y)
		copy(cropped.Pix[dst:dst+rect.Dx()*4], img.Pix[src:src+rect.Dx()*4])
	}

	return cropped
}

// DebugMatch returns a copy of haystack with the match outlined in red
func DebugMatch(haystack *image.RGBA, result *MatchResult, needleSize image.Point) *image.RGBA {
	if !result.Found {
		return haystack
	}

	debug := image.NewRGBA(haystack.Bounds())
	copy(debug.Pix, haystack.Pix)

	rect := image.Rectangle{Min: result.Location, Max: result.Location.Add(needleSize)}
	drawRect(debug, rect, color.RGBA{255, 0, 0, 255})

	return debug
}

func drawRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	for x := rect.Min.X; x < rect.Max.X; x++ {
		img.SetRGBA(x, rect.Min.Y, col)
		img.SetRGBA(x, rect.Max.Y-1, col)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		img.SetRGBA(rect.Min.X, y, col)
		img.SetRGBA(rect.Max.X-1, y, col)
	}
}
