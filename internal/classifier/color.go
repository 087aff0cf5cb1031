package classifier

import (
	"context"
	"errors"
	"image"

	"jordanella.com/slash-go/internal/cv"
)

// ColorClassifier labels a region with the colour-ratio heuristic.
// Labels are DANGER, GOOD, SPECIAL and NEUTRAL.
type ColorClassifier struct{}

// Classify implements Classifier
func (ColorClassifier) Classify(ctx context.Context, img *image.RGBA) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	class := cv.AnalyzeColor(img)
	return Result{ClassIndex: int(class), Label: class.String()}, nil
}

// Fallback consults Primary and falls back to Secondary only when Primary
// has no model loaded.
type Fallback struct {
	Primary   Classifier
	Secondary Classifier
}

// Classify implements Classifier
func (f Fallback) Classify(ctx context.Context, img *image.RGBA) (Result, error) {
	res, err := f.Primary.Classify(ctx, img)
	if errors.Is(err, ErrModelUnavailable) && f.Secondary != nil {
		return f.Secondary.Classify(ctx, img)
	}
	return res, err
}
