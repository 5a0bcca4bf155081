// Package hints collects printed labels from a page so the planner can tell
// the model where the form's captions already sit. Hints only enrich the
// prompt; they never become placements.
package hints

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/a3tai/pdf-formfill/internal/raster"
)

// DefaultLimit caps the number of labels included in a prompt.
const DefaultLimit = 60

// Label is a run of printed text in pixel space; (X, Y) is its baseline start.
type Label struct {
	Text string
	X, Y float64
}

// Source yields the labels printed on a rasterized page.
type Source interface {
	Labels(ctx context.Context, page *raster.Page) ([]Label, error)
}

// Format renders labels as a prompt section. It returns "" when there is nothing to say.
func Format(labels []Label, limit int) string {
	if len(labels) == 0 {
		return ""
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var b strings.Builder
	b.WriteString("Printed labels already on this page (pixel coordinates of their baseline start):\n")
	for i, l := range labels {
		if i >= limit {
			fmt.Fprintf(&b, "... and %d more\n", len(labels)-limit)
			break
		}
		fmt.Fprintf(&b, "- %q at (%d, %d)\n", l.Text, int(math.Round(l.X)), int(math.Round(l.Y)))
	}
	return b.String()
}

// Multi combines sources, skipping those that fail.
type Multi []Source

// Labels returns the labels of every source that succeeded. It fails only
// when all sources fail.
func (m Multi) Labels(ctx context.Context, page *raster.Page) ([]Label, error) {
	var all []Label
	var lastErr error
	ok := 0
	for _, src := range m {
		labels, err := src.Labels(ctx, page)
		if err != nil {
			log.WithError(err).WithField("page", page.Index).Warn("Label source failed")
			lastErr = err
			continue
		}
		ok++
		all = append(all, labels...)
	}
	if ok == 0 && lastErr != nil {
		return nil, lastErr
	}
	sortLabels(all)
	return all, nil
}

// sortLabels orders labels top-to-bottom, then left-to-right.
func sortLabels(labels []Label) {
	sort.SliceStable(labels, func(i, j int) bool {
		if math.Abs(labels[i].Y-labels[j].Y) > 2 {
			return labels[i].Y < labels[j].Y
		}
		return labels[i].X < labels[j].X
	})
}
