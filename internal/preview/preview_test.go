package preview

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-formfill/internal/placement"
)

func whitePage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1275, 1650))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img
}

func px(index int, x, y, confidence float64) placement.Placement {
	return placement.Placement{
		Index:      index,
		FieldName:  "field",
		Text:       "Mia",
		X:          x,
		Y:          y,
		Space:      placement.SpacePixel,
		Confidence: confidence,
	}
}

func TestTierColor(t *testing.T) {
	tests := []struct {
		confidence float64
		want       color.RGBA
	}{
		{0.95, ColorHigh},
		{0.8, ColorHigh},
		{0.79, ColorMedium},
		{0.5, ColorMedium},
		{0.49, ColorLow},
		{0, ColorLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierColor(placement.Classify(tt.confidence)), "confidence %v", tt.confidence)
	}
}

func TestRender_TierOutlines(t *testing.T) {
	src := whitePage()
	r := New(150, DefaultFontSize, false)

	high := px(0, 300, 400, 0.9)
	low := px(1, 300, 700, 0.4)
	out := r.Render(src, []placement.Placement{high, low})

	hb := r.Box(high)
	lb := r.Box(low)
	assert.Equal(t, ColorHigh, out.RGBAAt(hb.Min.X, hb.Min.Y+2))
	assert.Equal(t, ColorHigh, out.RGBAAt(hb.Max.X-1, hb.Max.Y-3))
	assert.Equal(t, ColorLow, out.RGBAAt(lb.Min.X, lb.Min.Y+2))

	// Marker sits on the baseline start.
	assert.Equal(t, ColorHigh, out.RGBAAt(int(high.X)-markerArm, int(high.Y)))

	// Some glyph ink inside the box.
	dark := 0
	for y := hb.Min.Y + outlineWidth; y < hb.Max.Y-outlineWidth; y++ {
		for x := hb.Min.X + outlineWidth; x < hb.Max.X-outlineWidth; x++ {
			c := out.RGBAAt(x, y)
			if c.R < 100 && c.G < 100 && c.B < 100 {
				dark++
			}
		}
	}
	assert.Positive(t, dark)
}

func TestRender_SourceUntouched(t *testing.T) {
	src := whitePage()
	before := append([]byte(nil), src.Pix...)

	out := New(150, 10, true).Render(src, []placement.Placement{px(0, 100, 100, 0.6)})
	assert.Equal(t, before, src.Pix)
	assert.NotEqual(t, src.Pix, out.Pix)
}

func TestRender_NoPlacements(t *testing.T) {
	src := whitePage()
	out := New(150, 10, true).Render(src, nil)
	assert.Equal(t, src.Pix, out.Pix)
	assert.Equal(t, src.Bounds(), out.Bounds())
}

func TestRender_SkipsPointSpace(t *testing.T) {
	src := whitePage()
	p := px(0, 100, 100, 0.9)
	p.Space = placement.SpacePoint
	out := New(150, 10, false).Render(src, []placement.Placement{p})
	assert.Equal(t, src.Pix, out.Pix)
}

func TestRender_Labels(t *testing.T) {
	src := whitePage()
	p := px(3, 300, 400, 0.9)

	plain := New(150, 10, false).Render(src, []placement.Placement{p})
	labelled := New(150, 10, true).Render(src, []placement.Placement{p})

	box := New(150, 10, false).Box(p)
	above := image.Rect(box.Min.X, box.Min.Y-30, box.Max.X+200, box.Min.Y)
	changed := 0
	for y := above.Min.Y; y < above.Max.Y; y++ {
		for x := above.Min.X; x < above.Max.X; x++ {
			if plain.RGBAAt(x, y) != labelled.RGBAAt(x, y) {
				changed++
			}
		}
	}
	assert.Positive(t, changed)
}

func TestRender_ClipsAtEdges(t *testing.T) {
	src := whitePage()
	assert.NotPanics(t, func() {
		New(150, 10, true).Render(src, []placement.Placement{px(0, 0, 0, 0.9), px(1, 1275, 1650, 0.2)})
	})
}

func TestSave(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	img := New(150, 10, true).Render(whitePage(), []placement.Placement{px(0, 100, 100, 0.9)})
	require.NoError(t, Save(fs, "/out/form_preview.png", img))

	data, err := afero.ReadFile(fs, "/out/form_preview.png")
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}
