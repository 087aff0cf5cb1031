package cv

import "image"

// Region is a corner-defined search area, as template files describe it
type Region struct {
	X1, Y1, X2, Y2 int
}

// NewRegion creates a new region
func NewRegion(x1, y1, x2, y2 int) Region {
	return Region{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// RegionFromRect converts an image rectangle to a Region
func RegionFromRect(r image.Rectangle) Region {
	return Region{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Contains checks if a point is within the region
func (r Region) Contains(p image.Point) bool {
	return p.In(r.Rect())
}

// Width returns the width of the region
func (r Region) Width() int {
	return r.X2 - r.X1
}

// Height returns the height of the region
func (r Region) Height() int {
	return r.Y2 - r.Y1
}

// Rect returns the region as a canonical image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// ToImageRectangle returns a pointer form for MatchConfig.SearchRegion
func (r Region) ToImageRectangle() *image.Rectangle {
	rect := r.Rect()
	return &rect
}
