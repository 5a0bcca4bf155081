package pipeline

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/a3tai/pdf-formfill/internal/commit"
	"github.com/a3tai/pdf-formfill/internal/fillerr"
	"github.com/a3tai/pdf-formfill/internal/placement"
	"github.com/a3tai/pdf-formfill/internal/preview"
	"github.com/a3tai/pdf-formfill/internal/session"
)

// DefaultOutputPath returns <dir>/<stem>_filled.pdf for src.
func DefaultOutputPath(src string) string {
	return filepath.Join(filepath.Dir(src), stem(src)+"_filled.pdf")
}

// DefaultPreviewPath returns <dir>/<stem>_preview.png for src.
func DefaultPreviewPath(src string) string {
	return filepath.Join(filepath.Dir(src), stem(src)+"_preview.png")
}

// PreviewPath returns the preview file for page. The first page uses base
// itself; later pages get a _pN suffix with N 1-based.
func PreviewPath(base string, page int) string {
	if page == 0 {
		return base
	}
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".png"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_p" + strconv.Itoa(page+1) + ext
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Previewer renders a page's placements over the page image and, when Base is
// set, saves the result next to it.
type Previewer struct {
	pipeline *Pipeline
	renderer *preview.Renderer
	fs       afero.Fs
	// Base is the preview path of the first page; "" keeps previews in memory.
	Base string
}

// NewPreviewer returns a previewer drawing pages of p with r.
func NewPreviewer(p *Pipeline, r *preview.Renderer, fs afero.Fs, base string) *Previewer {
	return &Previewer{pipeline: p, renderer: r, fs: fs, Base: base}
}

// Preview implements session.Previewer.
func (v *Previewer) Preview(ctx context.Context, page int, placements []placement.Placement) (*session.PreviewResult, error) {
	img, err := v.pipeline.Page(ctx, page)
	if err != nil {
		return nil, err
	}
	out := v.renderer.Render(img.Image, placements)

	res := &session.PreviewResult{Page: page, Image: out}
	if v.Base != "" {
		path := PreviewPath(v.Base, page)
		if err := preview.Save(v.fs, path, out); err != nil {
			return nil, fillerr.Wrap(fillerr.ErrorTypeWrite, "preview", err).WithPage(page)
		}
		res.Path = path
	}
	return res, nil
}

// Committer writes the session's placements from Source to Output.
type Committer struct {
	writer *commit.Writer
	Source string
	Output string
}

// NewCommitter binds w to one source and output document.
func NewCommitter(w *commit.Writer, source, output string) *Committer {
	return &Committer{writer: w, Source: source, Output: output}
}

// Commit implements session.Committer.
func (c *Committer) Commit(ctx context.Context, placements []placement.Placement) (*session.CommitResult, error) {
	report, err := c.writer.Commit(ctx, c.Source, c.Output, placements)
	if err != nil {
		return nil, err
	}
	return &session.CommitResult{
		OutputPath: report.OutputPath,
		Stamped:    report.Stamped,
		Pages:      report.Pages,
	}, nil
}
