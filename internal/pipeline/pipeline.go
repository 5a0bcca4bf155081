// Package pipeline runs rasterization and planning over the pages of a
// document and connects the session to the preview renderer and the commit
// writer.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/pdf-formfill/internal/fielddata"
	"github.com/a3tai/pdf-formfill/internal/fillerr"
	"github.com/a3tai/pdf-formfill/internal/geometry"
	"github.com/a3tai/pdf-formfill/internal/hints"
	"github.com/a3tai/pdf-formfill/internal/logging"
	"github.com/a3tai/pdf-formfill/internal/placement"
	"github.com/a3tai/pdf-formfill/internal/planner"
	"github.com/a3tai/pdf-formfill/internal/raster"
	"github.com/a3tai/pdf-formfill/internal/session"
)

var log = logging.For("pipeline")

// Planner proposes placements for a rasterized page.
type Planner interface {
	Plan(ctx context.Context, page *raster.Page, data fielddata.FieldData, hint string) (*planner.Result, error)
}

// Config tunes a pipeline run.
type Config struct {
	DPI       float64
	Workers   int
	HintLimit int
	// Hint is free text passed to the planner with every page, ahead of any label hints.
	Hint string
}

// Pipeline plans one document. Rasterized pages are kept so previews reuse
// the exact image the model saw.
type Pipeline struct {
	raster  raster.Rasterizer
	planner Planner
	hints   hints.Source

	dpi       float64
	workers   int
	hintLimit int
	hint      string

	mu    sync.Mutex
	pages map[int]*raster.Page
}

// New builds a pipeline. labels may be nil to plan without hints.
func New(r raster.Rasterizer, p Planner, labels hints.Source, cfg Config) *Pipeline {
	if cfg.DPI <= 0 {
		cfg.DPI = raster.DefaultDPI
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{
		raster:    r,
		planner:   p,
		hints:     labels,
		dpi:       cfg.DPI,
		workers:   cfg.Workers,
		hintLimit: cfg.HintLimit,
		hint:      strings.TrimSpace(cfg.Hint),
		pages:     make(map[int]*raster.Page),
	}
}

// DPI returns the resolution pages are rasterized at.
func (p *Pipeline) DPI() float64 {
	return p.dpi
}

// PageReport is the planning outcome of one page.
type PageReport struct {
	Page       int
	Placements int
	Failures   fillerr.Collection
	Err        error
	Elapsed    time.Duration
}

// Report summarises a planning run, one entry per requested page in page order.
type Report struct {
	Pages      []PageReport
	Placements int
}

// Failed returns the reports of pages that produced no result.
func (r *Report) Failed() []PageReport {
	var out []PageReport
	for _, pr := range r.Pages {
		if pr.Err != nil {
			out = append(out, pr)
		}
	}
	return out
}

// Dropped returns the number of candidates rejected while parsing.
func (r *Report) Dropped() int {
	n := 0
	for _, pr := range r.Pages {
		n += pr.Failures.Count()
	}
	return n
}

// Prepare records the pixel/point mapping of every page of the document, so
// placements added by hand on pages that were not planned can still be committed.
// Pages that cannot be sized get no mapper; their errors are returned by page index.
func (p *Pipeline) Prepare(s *session.Session) map[int]error {
	failed := make(map[int]error)
	for i := 0; i < p.raster.PageCount(); i++ {
		_, h, err := p.raster.PageSize(i)
		if err == nil {
			var m *geometry.PageMapper
			if m, err = geometry.NewPageMapper(h, p.dpi); err == nil {
				s.SetMapper(i, m)
				continue
			}
		}
		if !fillerr.Is(err, fillerr.ErrorTypeConversion) {
			err = fillerr.Conversion(i, err)
		}
		log.WithError(err).WithField("page", i).Warn("Page cannot be mapped")
		failed[i] = err
	}
	return failed
}

// Plan rasterizes and plans pages (all pages when nil) concurrently, appends
// the results to s in page order and moves s to Reviewing. Pages fail
// independently; an error is returned only when every page failed or ctx
// was cancelled.
func (p *Pipeline) Plan(ctx context.Context, s *session.Session, data fielddata.FieldData, pages []int) (*Report, error) {
	unmapped := p.Prepare(s)
	if pages == nil {
		pages = make([]int, p.raster.PageCount())
		for i := range pages {
			pages[i] = i
		}
	}

	logger := log.WithFields(logrus.Fields{
		"session": s.ID(),
		"pages":   len(pages),
		"workers": p.workers,
	})
	logger.Info("Planning document")

	ctx = planner.WithRequestMeta(ctx, planner.RequestMeta{SourceFile: s.SourcePath(), SessionID: s.ID()})

	reports := make([]PageReport, len(pages))
	results := make([][]placement.Placement, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, page := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := unmapped[page]; err != nil {
				reports[i] = PageReport{Page: page, Err: err}
				return nil
			}
			start := time.Now()
			res, err := p.planPage(gctx, page, data)
			reports[i] = PageReport{Page: page, Err: err, Elapsed: time.Since(start)}
			if err != nil {
				log.WithError(err).WithField("page", page).Warn("Page failed")
				return nil
			}
			reports[i].Failures = res.Failures
			reports[i].Placements = len(res.Placements)
			results[i] = res.Placements
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Pages: reports}
	var pageErrs error
	for i := range pages {
		if reports[i].Err != nil {
			pageErrs = multierr.Append(pageErrs, reports[i].Err)
			continue
		}
		added, err := s.AppendPlanned(results[i])
		if err != nil {
			return nil, err
		}
		report.Placements += len(added)
	}

	if len(pages) > 0 && len(report.Failed()) == len(pages) {
		logger.WithError(pageErrs).Error("Every page failed")
		return report, pageErrs
	}
	if err := s.BeginReview(); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"placements": report.Placements,
		"dropped":    report.Dropped(),
		"failed":     len(report.Failed()),
	}).Info("Planning finished")
	return report, nil
}

func (p *Pipeline) planPage(ctx context.Context, index int, data fielddata.FieldData) (*planner.Result, error) {
	page, err := p.Page(ctx, index)
	if err != nil {
		return nil, err
	}

	hint := p.hint
	if p.hints != nil {
		labels, err := p.hints.Labels(ctx, page)
		if err != nil {
			log.WithError(err).WithField("page", index).Debug("No label hints for page")
		} else if formatted := hints.Format(labels, p.hintLimit); formatted != "" {
			if hint != "" {
				hint += "\n\n"
			}
			hint += formatted
		}
	}

	res, err := p.planner.Plan(ctx, page, data, hint)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fillerr.Model(index, fmt.Errorf("planner returned no result"))
	}
	return res, nil
}

// Page returns the rasterized page, rendering it on first use.
func (p *Pipeline) Page(ctx context.Context, index int) (*raster.Page, error) {
	p.mu.Lock()
	page, ok := p.pages[index]
	p.mu.Unlock()
	if ok {
		return page, nil
	}

	page, err := p.raster.Rasterize(ctx, index, p.dpi)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.pages[index]; ok {
		return cached, nil
	}
	p.pages[index] = page
	return page, nil
}
