package cv

import "image"

// ColorClass is the coarse verdict of the colour-ratio heuristic
type ColorClass int

const (
	ColorNeutral ColorClass = iota
	ColorDanger             // red dominant
	ColorGood               // green dominant
	ColorSpecial            // blue dominant
)

func (c ColorClass) String() string {
	switch c {
	case ColorDanger:
		return "DANGER"
	case ColorGood:
		return "GOOD"
	case ColorSpecial:
		return "SPECIAL"
	default:
		return "NEUTRAL"
	}
}

const (
	// DominanceFloor is the value a channel must exceed to count as dominant
	DominanceFloor = 150
	// DominanceRatio is the share of dominant pixels needed for a verdict
	DominanceRatio = 0.4
)

// ColorRatios holds the share of pixels dominated by each channel
type ColorRatios struct {
	Red, Green, Blue float64
}

// MeasureColorRatios counts pixels whose channel is strictly greater than the
// other two and above DominanceFloor.
func MeasureColorRatios(img *image.RGBA) ColorRatios {
	if img == nil {
		return ColorRatios{}
	}
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total <= 0 {
		return ColorRatios{}
	}

	var red, green, blue int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.PixOffset(bounds.Min.X, y)
		for x := 0; x < bounds.Dx(); x++ {
			idx := row + x*4
			r := img.Pix[idx]
			g := img.Pix[idx+1]
			b := img.Pix[idx+2]

			switch {
			case r > g && r > b && r > DominanceFloor:
				red++
			case g > r && g > b && g > DominanceFloor:
				green++
			case b > r && b > g && b > DominanceFloor:
				blue++
			}
		}
	}

	n := float64(total)
	return ColorRatios{
		Red:   float64(red) / n,
		Green: float64(green) / n,
		Blue:  float64(blue) / n,
	}
}

// Classify applies the red, green, blue priority order
func (r ColorRatios) Classify() ColorClass {
	switch {
	case r.Red > DominanceRatio:
		return ColorDanger
	case r.Green > DominanceRatio:
		return ColorGood
	case r.Blue > DominanceRatio:
		return ColorSpecial
	default:
		return ColorNeutral
	}
}

// AnalyzeColor classifies img by its dominant-channel pixel ratios.
// An empty image is NEUTRAL.
func AnalyzeColor(img *image.RGBA) ColorClass {
	return MeasureColorRatios(img).Classify()
}
