// Package geometry maps placement coordinates between the rasterized page
// image (pixel space, origin top-left) and the PDF page (point space, origin
// bottom-left).
package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/a3tai/pdf-formfill/internal/placement"
)

// PointsPerInch is the PDF user space unit density.
const PointsPerInch = 72.0

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the identity transform.
func Identity() AffineTransform {
	return AffineTransform{A: 1, D: 1}
}

// Translation returns a translation transform.
func Translation(tx, ty float64) AffineTransform {
	return AffineTransform{A: 1, D: 1, TX: tx, TY: ty}
}

// Scale returns a scaling transform.
func Scale(sx, sy float64) AffineTransform {
	return AffineTransform{A: sx, D: sy}
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.B*y + t.TX, t.C*x + t.D*y + t.TY
}

// Compose returns this transform composed with another (this * other):
// other is applied first.
func (t AffineTransform) Compose(other AffineTransform) AffineTransform {
	return AffineTransform{
		A:  t.A*other.A + t.B*other.C,
		B:  t.A*other.B + t.B*other.D,
		TX: t.A*other.TX + t.B*other.TY + t.TX,
		C:  t.C*other.A + t.D*other.C,
		D:  t.C*other.B + t.D*other.D,
		TY: t.C*other.TX + t.D*other.TY + t.TY,
	}
}

// Inverse returns the inverse transform. It fails for singular transforms.
func (t AffineTransform) Inverse() (AffineTransform, error) {
	m := mat.NewDense(3, 3, []float64{
		t.A, t.B, t.TX,
		t.C, t.D, t.TY,
		0, 0, 1,
	})
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return AffineTransform{}, fmt.Errorf("transform is not invertible: %w", err)
	}
	return AffineTransform{
		A: inv.At(0, 0), B: inv.At(0, 1), TX: inv.At(0, 2),
		C: inv.At(1, 0), D: inv.At(1, 1), TY: inv.At(1, 2),
	}, nil
}

// PageMapper converts coordinates for one page rasterized at a fixed DPI.
type PageMapper struct {
	dpi      float64
	heightPt float64
	toPoints AffineTransform
	toPixels AffineTransform
}

// NewPageMapper builds the mapper for a page heightPt points tall rendered at dpi.
func NewPageMapper(heightPt, dpi float64) (*PageMapper, error) {
	if dpi <= 0 {
		return nil, fmt.Errorf("dpi must be positive, got %v", dpi)
	}
	if heightPt <= 0 {
		return nil, fmt.Errorf("page height must be positive, got %v", heightPt)
	}

	s := PointsPerInch / dpi
	// Scale pixels to points, flip the vertical axis, then lift by the page height.
	toPoints := Translation(0, heightPt).Compose(Scale(s, -s))
	toPixels, err := toPoints.Inverse()
	if err != nil {
		return nil, err
	}

	return &PageMapper{
		dpi:      dpi,
		heightPt: heightPt,
		toPoints: toPoints,
		toPixels: toPixels,
	}, nil
}

// DPI returns the rasterization resolution the mapper was built for.
func (m *PageMapper) DPI() float64 { return m.dpi }

// HeightPt returns the page height in points.
func (m *PageMapper) HeightPt() float64 { return m.heightPt }

// ToPoints maps a pixel coordinate to PDF points.
func (m *PageMapper) ToPoints(x, y float64) (float64, float64) {
	return m.toPoints.Apply(x, y)
}

// ToPixels maps a PDF point coordinate back to pixels.
func (m *PageMapper) ToPixels(x, y float64) (float64, float64) {
	return m.toPixels.Apply(x, y)
}

// MapPlacement returns p in point space. A placement already in point space
// is returned unchanged so re-running a stage never maps twice.
func (m *PageMapper) MapPlacement(p placement.Placement) placement.Placement {
	if p.Space == placement.SpacePoint {
		return p
	}
	p.X, p.Y = m.ToPoints(p.X, p.Y)
	p.Space = placement.SpacePoint
	return p
}

// UnmapPlacement returns p in pixel space. A pixel-space placement is returned unchanged.
func (m *PageMapper) UnmapPlacement(p placement.Placement) placement.Placement {
	if p.Space == placement.SpacePixel {
		return p
	}
	p.X, p.Y = m.ToPixels(p.X, p.Y)
	p.Space = placement.SpacePixel
	return p
}
