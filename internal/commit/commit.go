// Package commit stamps the final placements onto a copy of the source PDF.
package commit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/text/encoding/charmap"

	"github.com/a3tai/pdf-formfill/internal/atomicfile"
	"github.com/a3tai/pdf-formfill/internal/fillerr"
	"github.com/a3tai/pdf-formfill/internal/logging"
	"github.com/a3tai/pdf-formfill/internal/placement"
)

var log = logging.For("commit")

const (
	// DefaultFontSize is the stamp size in points.
	DefaultFontSize = 10.0
	// DefaultFont is one of the PDF core fonts, so nothing is embedded.
	DefaultFont = "Helvetica"

	// helveticaDescent is the core font's descender depth per point of size.
	// Stamps are positioned by their box's lower-left corner, so the offset is
	// lowered by the descent to put the baseline on the placement's Y.
	helveticaDescent = 0.207

	// placeholderVerbs follow a % in stamp text and are expanded by pdfcpu.
	placeholderVerbs = "pPtv"
)

// Report describes a completed commit.
type Report struct {
	OutputPath string
	Stamped    int
	Pages      []int
}

// Writer stamps text onto PDFs. The zero value is not usable; call New.
type Writer struct {
	fs       afero.Fs
	fontName string
	fontSize float64
	conf     *model.Configuration
}

// Option configures a Writer.
type Option func(*Writer)

// WithFontSize sets the stamp size in points.
func WithFontSize(points float64) Option {
	return func(w *Writer) {
		if points > 0 {
			w.fontSize = points
		}
	}
}

// WithFont sets the core font used for stamps.
func WithFont(name string) Option {
	return func(w *Writer) {
		if name != "" {
			w.fontName = name
		}
	}
}

// New returns a Writer operating on fs.
func New(fs afero.Fs, opts ...Option) *Writer {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	w := &Writer{
		fs:       fs,
		fontName: DefaultFont,
		fontSize: DefaultFontSize,
		conf:     conf,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Commit writes srcPath with every placement stamped on it to outPath.
// Nothing is written unless every placement is valid and the whole document
// can be produced. Placements must be in point space.
func (w *Writer) Commit(ctx context.Context, srcPath, outPath string, placements []placement.Placement) (*Report, error) {
	logger := log.WithFields(logrus.Fields{
		"source": srcPath,
		"output": outPath,
		"count":  len(placements),
	})

	if outPath == "" {
		return nil, fillerr.Write("no output path", nil)
	}
	if same, _ := samePath(srcPath, outPath); same {
		return nil, fillerr.Write("output path must differ from the source document", nil)
	}

	src, err := afero.ReadFile(w.fs, srcPath)
	if err != nil {
		return nil, fillerr.Write("failed to read source document", err)
	}

	pageCount, err := api.PageCount(bytes.NewReader(src), w.conf)
	if err != nil {
		return nil, fillerr.Write("failed to read source document", err)
	}

	if err := w.validate(placements, pageCount); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fillerr.Write("commit cancelled", err)
	}

	stamps, err := w.buildStamps(placements)
	if err != nil {
		return nil, err
	}

	err = atomicfile.Write(w.fs, outPath, 0o644, func(out io.Writer) error {
		if len(stamps) == 0 {
			_, err := out.Write(src)
			return err
		}
		return api.AddWatermarksSliceMap(bytes.NewReader(src), out, stamps, w.conf)
	})
	if err != nil {
		logger.WithError(err).Error("Failed to write filled document")
		return nil, fillerr.Write("failed to write filled document", err)
	}

	report := &Report{
		OutputPath: outPath,
		Stamped:    len(placements),
		Pages:      placement.Pages(placements),
	}
	logger.WithField("pages", report.Pages).Info("Filled document written")
	return report, nil
}

// validate checks every placement before anything is written.
func (w *Writer) validate(placements []placement.Placement, pageCount int) error {
	for _, p := range placements {
		if p.Space != placement.SpacePoint {
			return fillerr.Write(fmt.Sprintf("placement is in %s space, not point space", p.Space), nil).
				WithIndex(p.Index).WithPage(p.PageIndex)
		}
		if err := p.Validate(pageCount); err != nil {
			return fillerr.Write(err.Error(), nil).WithIndex(p.Index).WithPage(p.PageIndex)
		}
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fillerr.Write("coordinates must be finite", nil).WithIndex(p.Index).WithPage(p.PageIndex)
		}
		if err := w.encodable(p.Text); err != nil {
			return fillerr.Write(err.Error(), nil).WithIndex(p.Index).WithPage(p.PageIndex)
		}
		if _, err := stampText(p.Text); err != nil {
			return fillerr.Write(err.Error(), nil).WithIndex(p.Index).WithPage(p.PageIndex)
		}
	}
	return nil
}

// encodable reports runes the core font cannot show. Core fonts other than
// Symbol and ZapfDingbats are written with WinAnsiEncoding, and pdfcpu draws
// anything outside it as a blank.
func (w *Writer) encodable(text string) error {
	if w.fontName == "Symbol" || w.fontName == "ZapfDingbats" {
		return nil
	}
	for _, r := range text {
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return fmt.Errorf("%q in %q cannot be drawn with the %s font", r, text, w.fontName)
		}
	}
	return nil
}

// stampText escapes text for pdfcpu's stamp formatter, which expands %p, %P,
// %t and %v and drops one % from every run of percent signs. A run followed by
// one of those verbs cannot be kept literal and is rejected.
func stampText(text string) (string, error) {
	if !strings.Contains(text, "%") {
		return text, nil
	}
	var b strings.Builder
	for i := 0; i < len(text); {
		if text[i] != '%' {
			b.WriteByte(text[i])
			i++
			continue
		}
		j := i
		for j < len(text) && text[j] == '%' {
			j++
		}
		if j < len(text) && strings.IndexByte(placeholderVerbs, text[j]) >= 0 {
			return "", fmt.Errorf("%q in %q would be replaced when stamping", text[j-1:j+1], text)
		}
		b.WriteString(text[i:j])
		b.WriteByte('%')
		i = j
	}
	return b.String(), nil
}

// buildStamps groups placements into one text stamp list per page, keyed by
// 1-based page number. Pages without placements are absent.
func (w *Writer) buildStamps(placements []placement.Placement) (map[int][]*model.Watermark, error) {
	groups := placement.GroupByPage(placements)
	pages := make([]int, 0, len(groups))
	for page := range groups {
		pages = append(pages, page)
	}
	sort.Ints(pages)

	stamps := make(map[int][]*model.Watermark, len(groups))
	for _, page := range pages {
		for _, p := range groups[page] {
			wm, err := w.stamp(p)
			if err != nil {
				return nil, fillerr.Write(fmt.Sprintf("failed to build stamp for %q", p.FieldName), err).
					WithIndex(p.Index).WithPage(p.PageIndex)
			}
			stamps[page+1] = append(stamps[page+1], wm)
		}
	}
	return stamps, nil
}

func (w *Writer) stamp(p placement.Placement) (*model.Watermark, error) {
	text, err := stampText(p.Text)
	if err != nil {
		return nil, err
	}
	return api.TextWatermark(text, w.describe(p), true, false, types.POINTS)
}

func (w *Writer) describe(p placement.Placement) string {
	dy := p.Y - w.fontSize*helveticaDescent
	return fmt.Sprintf(
		"fontname:%s, points:%d, scalefactor:1 abs, rotation:0, position:bl, offset:%.2f %.2f, fillcolor:#000000, opacity:1",
		w.fontName, int(math.Round(w.fontSize)), p.X, dy,
	)
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	if absA == absB {
		return true, nil
	}
	ia, errA := os.Stat(absA)
	ib, errB := os.Stat(absB)
	if errA != nil || errB != nil {
		return false, nil
	}
	return os.SameFile(ia, ib), nil
}
