package cv

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ErrInvalidDimensions is returned when a source or target size is zero or negative
var ErrInvalidDimensions = errors.New("invalid image dimensions")

// Normalization maps an 8-bit channel value into the range a model expects
type Normalization int

const (
	// NormUnit maps v to v/255, range [0,1]
	NormUnit Normalization = iota
	// NormSigned maps v to v/255*2-1, range [-1,1]
	NormSigned
)

func (n Normalization) String() string {
	switch n {
	case NormUnit:
		return "unit"
	case NormSigned:
		return "signed"
	default:
		return fmt.Sprintf("Normalization(%d)", int(n))
	}
}

// ParseNormalization accepts "unit" / "0..1" and "signed" / "-1..1"
func ParseNormalization(s string) (Normalization, error) {
	switch s {
	case "unit", "0..1", "":
		return NormUnit, nil
	case "signed", "-1..1":
		return NormSigned, nil
	}
	return NormUnit, fmt.Errorf("unknown normalization %q", s)
}

func (n Normalization) apply(v uint8) float32 {
	f := float32(v) / 255.0
	if n == NormSigned {
		return f*2 - 1
	}
	return f
}

// Tensor is a single-batch image tensor of shape [1, H, W, 3], channels R,G,B
type Tensor struct {
	Shape [4]int
	Data  []float32
	Norm  Normalization
}

// Height of the tensor in pixels
func (t *Tensor) Height() int { return t.Shape[1] }

// Width of the tensor in pixels
func (t *Tensor) Width() int { return t.Shape[2] }

// At returns the value at row y, column x, channel c
func (t *Tensor) At(y, x, c int) float32 {
	return t.Data[(y*t.Shape[2]+x)*3+c]
}

// Preprocess resizes img to width x height with bilinear interpolation and
// packs it row-major into a normalized float tensor.
func Preprocess(img *image.RGBA, width, height int, norm Normalization) (*Tensor, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidDimensions)
	}
	src := img.Bounds()
	if src.Dx() <= 0 || src.Dy() <= 0 {
		return nil, fmt.Errorf("%w: source %dx%d", ErrInvalidDimensions, src.Dx(), src.Dy())
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrInvalidDimensions, width, height)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, src, draw.Src, nil)

	t := &Tensor{
		Shape: [4]int{1, height, width, 3},
		Data:  make([]float32, height*width*3),
		Norm:  norm,
	}

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*scaled.Stride + x*4
			t.Data[i] = norm.apply(scaled.Pix[idx])
			t.Data[i+1] = norm.apply(scaled.Pix[idx+1])
			t.Data[i+2] = norm.apply(scaled.Pix[idx+2])
			i += 3
		}
	}

	return t, nil
}
