// Package preview draws placements over a page image so a reviewer can see
// where text will land before anything is written to the PDF.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/a3tai/pdf-formfill/internal/atomicfile"
	"github.com/a3tai/pdf-formfill/internal/logging"
	"github.com/a3tai/pdf-formfill/internal/placement"
)

var log = logging.For("preview")

// Tier colours. Boxes are filled with the same hue at boxAlpha.
var (
	ColorHigh   = color.RGBA{R: 0, G: 170, B: 0, A: 255}
	ColorMedium = color.RGBA{R: 230, G: 180, B: 0, A: 255}
	ColorLow    = color.RGBA{R: 220, G: 0, B: 0, A: 255}

	labelColor = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	textColor  = color.RGBA{A: 255}
)

const (
	boxAlpha     = 64
	outlineWidth = 2
	boxPadding   = 3
	markerArm    = 5

	// DefaultFontSize is the stamp size in points used when none is configured.
	DefaultFontSize = 10.0
)

// TierColor returns the outline colour for a tier.
func TierColor(t placement.Tier) color.RGBA {
	switch t {
	case placement.TierHigh:
		return ColorHigh
	case placement.TierMedium:
		return ColorMedium
	default:
		return ColorLow
	}
}

// Renderer draws placement overlays. The zero value renders at 150 DPI with
// 10 pt text and no labels; use New for the usual settings.
type Renderer struct {
	// ShowLabels draws "#index field" above each box.
	ShowLabels bool
	// FontSize is the stamp size in points, so preview text matches the
	// committed text at the page image's DPI.
	FontSize float64
	// DPI of the images passed to Render.
	DPI float64

	once      sync.Once
	textFace  font.Face
	labelFace font.Face
}

// New returns a renderer for images rasterized at dpi.
func New(dpi, fontSize float64, showLabels bool) *Renderer {
	return &Renderer{ShowLabels: showLabels, FontSize: fontSize, DPI: dpi}
}

func (r *Renderer) faces() (font.Face, font.Face) {
	r.once.Do(func() {
		size := r.FontSize
		if size <= 0 {
			size = DefaultFontSize
		}
		dpi := r.DPI
		if dpi <= 0 {
			dpi = 150
		}

		f, err := opentype.Parse(goregular.TTF)
		if err == nil {
			r.textFace, err = opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: dpi, Hinting: font.HintingFull})
		}
		if err == nil {
			r.labelFace, err = opentype.NewFace(f, &opentype.FaceOptions{Size: size * 0.8, DPI: dpi, Hinting: font.HintingFull})
		}
		if err != nil {
			log.WithError(err).Warn("Falling back to bitmap font for preview")
			r.textFace = basicfont.Face7x13
			r.labelFace = basicfont.Face7x13
		}
	})
	return r.textFace, r.labelFace
}

// Box returns the pixel rectangle drawn around p's text.
func (r *Renderer) Box(p placement.Placement) image.Rectangle {
	face, _ := r.faces()
	m := face.Metrics()
	width := font.MeasureString(face, p.Text).Ceil()

	x := int(math.Round(p.X))
	y := int(math.Round(p.Y))
	return image.Rect(
		x-boxPadding,
		y-m.Ascent.Ceil()-boxPadding,
		x+width+boxPadding,
		y+m.Descent.Ceil()+boxPadding,
	)
}

// Render returns a copy of src with every placement drawn on it. src is never
// modified. Placements must be in pixel space.
func (r *Renderer) Render(src image.Image, placements []placement.Placement) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)

	textFace, labelFace := r.faces()
	for _, p := range placements {
		if p.Space != placement.SpacePixel {
			log.WithField("index", p.Index).Warn("Skipping placement not in pixel space")
			continue
		}
		tier := TierColor(p.Tier())
		box := r.Box(p)

		fill := tier
		fill.A = boxAlpha
		fillRectBlend(dst, box, fill)
		drawOutline(dst, box, tier, outlineWidth)

		drawText(dst, textFace, textColor, int(math.Round(p.X)), int(math.Round(p.Y)), p.Text)
		drawMarker(dst, int(math.Round(p.X)), int(math.Round(p.Y)), tier)

		if r.ShowLabels {
			label := fmt.Sprintf("#%d %s", p.Index, p.FieldName)
			ly := box.Min.Y - labelFace.Metrics().Descent.Ceil() - 1
			if ly-labelFace.Metrics().Ascent.Ceil() < b.Min.Y {
				ly = box.Max.Y + labelFace.Metrics().Ascent.Ceil() + 1
			}
			drawText(dst, labelFace, labelColor, box.Min.X, ly, label)
		}
	}
	return dst
}

// Encode writes img as PNG.
func Encode(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// Save writes img as a PNG at path, replacing any existing file atomically.
func Save(fs afero.Fs, path string, img image.Image) error {
	if err := atomicfile.Write(fs, path, 0o644, func(w io.Writer) error {
		return Encode(w, img)
	}); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	log.WithField("path", path).Info("Preview saved")
	return nil
}

func drawText(dst *image.RGBA, face font.Face, c color.Color, x, y int, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func drawMarker(dst *image.RGBA, x, y int, c color.RGBA) {
	fillRectBlend(dst, image.Rect(x-markerArm, y, x+markerArm+1, y+1), c)
	fillRectBlend(dst, image.Rect(x, y-markerArm, x+1, y+markerArm+1), c)
}

func drawOutline(dst *image.RGBA, rect image.Rectangle, c color.RGBA, width int) {
	for i := 0; i < width; i++ {
		fillRectBlend(dst, image.Rect(rect.Min.X, rect.Min.Y+i, rect.Max.X, rect.Min.Y+i+1), c)
		fillRectBlend(dst, image.Rect(rect.Min.X, rect.Max.Y-1-i, rect.Max.X, rect.Max.Y-i), c)
		fillRectBlend(dst, image.Rect(rect.Min.X+i, rect.Min.Y, rect.Min.X+i+1, rect.Max.Y), c)
		fillRectBlend(dst, image.Rect(rect.Max.X-1-i, rect.Min.Y, rect.Max.X-i, rect.Max.Y), c)
	}
}

// fillRectBlend alpha-blends c over rect, clipped to the image.
func fillRectBlend(dst *image.RGBA, rect image.Rectangle, c color.RGBA) {
	b := dst.Bounds()
	rect = rect.Intersect(b)
	if rect.Empty() || c.A == 0 {
		return
	}
	if c.A == 255 {
		draw.Draw(dst, rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
		return
	}
	a := uint32(c.A)
	ia := 255 - a
	cr, cg, cb := uint32(c.R)*a, uint32(c.G)*a, uint32(c.B)*a
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		off := dst.PixOffset(rect.Min.X, y)
		for x := rect.Min.X; x < rect.Max.X; x++ {
			pix := dst.Pix[off : off+4 : off+4]
			pix[0] = uint8((cr + uint32(pix[0])*ia) / 255)
			pix[1] = uint8((cg + uint32(pix[1])*ia) / 255)
			pix[2] = uint8((cb + uint32(pix[2])*ia) / 255)
			pix[3] = uint8(uint32(pix[3]) + (255-uint32(pix[3]))*a/255)
			off += 4
		}
	}
}
