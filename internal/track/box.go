package track

import (
	"fmt"
	"math"
)

// Box is an axis-aligned bounding box in pixel space. Left/Top is the
// top-left corner and Right/Bottom the bottom-right corner; area is
// continuous, (Right-Left)*(Bottom-Top), with no +1 pixel convention.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// NewBox returns the box with the given corners.
func NewBox(left, top, right, bottom float64) Box {
	return Box{Left: left, Top: top, Right: right, Bottom: bottom}
}

// Width returns Right-Left.
func (b Box) Width() float64 {
	return b.Right - b.Left
}

// Height returns Bottom-Top.
func (b Box) Height() float64 {
	return b.Bottom - b.Top
}

// Area returns the box area. Degenerate boxes have zero area.
func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// Center returns the box centroid.
func (b Box) Center() (x, y float64) {
	return b.Left + b.Width()/2, b.Top + b.Height()/2
}

// Coords returns the box as [left, top, right, bottom].
func (b Box) Coords() [4]float64 {
	return [4]float64{b.Left, b.Top, b.Right, b.Bottom}
}

// Validate reports whether the box can take part in matching. Coordinates
// must be finite and the corners must not be inverted. Zero-width or
// zero-height boxes are valid; they simply never overlap anything.
func (b Box) Validate() error {
	for _, v := range b.Coords() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate in %s", ErrMalformedDetection, b)
		}
	}
	if b.Right < b.Left {
		return fmt.Errorf("%w: right < left in %s", ErrMalformedDetection, b)
	}
	if b.Bottom < b.Top {
		return fmt.Errorf("%w: bottom < top in %s", ErrMalformedDetection, b)
	}
	return nil
}

func (b Box) String() string {
	return fmt.Sprintf("(%g,%g,%g,%g)", b.Left, b.Top, b.Right, b.Bottom)
}

// IoU returns the intersection-over-union of a and b in [0, 1].
//
// The result is 0 when the boxes do not overlap along either axis and when
// the union has zero area (two degenerate boxes), so it never divides by
// zero. IoU(a, b) == IoU(b, a) exactly, and IoU(a, a) == 1 for any box with
// positive area.
func IoU(a, b Box) float64 {
	iw := math.Min(a.Right, b.Right) - math.Max(a.Left, b.Left)
	if iw <= 0 {
		return 0
	}
	ih := math.Min(a.Bottom, b.Bottom) - math.Max(a.Top, b.Top)
	if ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
