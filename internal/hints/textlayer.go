package hints

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-formfill/internal/logging"
	"github.com/a3tai/pdf-formfill/internal/raster"
)

var log = logging.For("hints")

// TextLayer reads labels from the PDF's own text layer. It finds nothing on
// scanned forms; use the OCR source for those.
type TextLayer struct {
	mu     sync.Mutex
	file   *os.File
	reader *pdf.Reader
}

// OpenTextLayer opens path for text extraction.
func OpenTextLayer(path string) (*TextLayer, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF text layer: %w", err)
	}
	return &TextLayer{file: f, reader: r}, nil
}

// Close releases the underlying file.
func (t *TextLayer) Close() error {
	return t.file.Close()
}

// Labels returns the text runs of page converted to the page image's pixel space.
func (t *TextLayer) Labels(_ context.Context, page *raster.Page) (labels []Label, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Malformed content streams can panic inside the parser.
	defer func() {
		if r := recover(); r != nil {
			labels = nil
			err = fmt.Errorf("panic during text extraction on page %d: %v", page.Index, r)
		}
	}()

	pageNum := page.Index + 1
	if pageNum < 1 || pageNum > t.reader.NumPage() {
		return nil, fmt.Errorf("invalid page %d", page.Index)
	}
	p := t.reader.Page(pageNum)
	if p.V.IsNull() {
		return nil, fmt.Errorf("invalid page %d", page.Index)
	}

	runs := groupRuns(p.Content().Text)
	scale := page.Scale()
	labels = make([]Label, 0, len(runs))
	for _, r := range runs {
		labels = append(labels, Label{
			Text: r.text,
			X:    r.x / scale,
			Y:    (page.HeightPt - r.y) / scale,
		})
	}
	sortLabels(labels)

	log.WithFields(logrus.Fields{
		"page":   page.Index,
		"glyphs": len(p.Content().Text),
		"labels": len(labels),
	}).Debug("Extracted text-layer labels")
	return labels, nil
}

type textRun struct {
	text     string
	x, y     float64
	end      float64
	fontSize float64
}

// groupRuns merges glyph-level text into runs on the same baseline.
// Coordinates stay in PDF points.
func groupRuns(texts []pdf.Text) []textRun {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t.S) != "" || t.S == " " {
			glyphs = append(glyphs, t)
		}
	}
	sort.SliceStable(glyphs, func(i, j int) bool {
		if math.Abs(glyphs[i].Y-glyphs[j].Y) > 1 {
			return glyphs[i].Y > glyphs[j].Y
		}
		return glyphs[i].X < glyphs[j].X
	})

	var runs []textRun
	var cur *textRun
	var b strings.Builder
	flush := func() {
		if cur == nil {
			return
		}
		cur.text = strings.TrimSpace(b.String())
		if cur.text != "" {
			runs = append(runs, *cur)
		}
		cur = nil
		b.Reset()
	}

	for _, g := range glyphs {
		size := g.FontSize
		if size <= 0 {
			size = 12
		}
		if cur != nil {
			sameLine := math.Abs(g.Y-cur.y) <= 1
			gap := g.X - cur.end
			if !sameLine || gap > size*1.5 {
				flush()
			} else if gap > size*0.25 {
				b.WriteString(" ")
			}
		}
		if cur == nil {
			cur = &textRun{x: g.X, y: g.Y, fontSize: size}
		}
		b.WriteString(g.S)
		cur.end = g.X + g.W
	}
	flush()
	return runs
}
