// Package placement defines the text placement record shared by the planner,
// the preview renderer, the adjustment engine and the commit writer.
package placement

import (
	"fmt"
	"sort"
)

// Space identifies the coordinate system a placement's X/Y are expressed in.
type Space int

const (
	// SpacePixel is the rasterized page image: origin top-left, unit one pixel.
	SpacePixel Space = iota
	// SpacePoint is the PDF page: origin bottom-left, unit 1/72 inch.
	SpacePoint
)

func (s Space) String() string {
	switch s {
	case SpacePixel:
		return "pixel"
	case SpacePoint:
		return "point"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// Tier is the confidence classification of a placement.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

// Tier thresholds. Lower bounds are inclusive.
const (
	HighThreshold   = 0.8
	MediumThreshold = 0.5

	// DefaultConfidence is assigned when the model does not report one.
	DefaultConfidence = MediumThreshold
	// ManualConfidence is assigned to placements authored by the user.
	ManualConfidence = 1.0
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	default:
		return "low"
	}
}

// Classify maps a confidence score to its tier.
func Classify(confidence float64) Tier {
	switch {
	case confidence >= HighThreshold:
		return TierHigh
	case confidence >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Placement is one piece of text bound to a page and a coordinate.
// (X, Y) is the left end of the text baseline.
type Placement struct {
	Index      int     `json:"index"`
	FieldName  string  `json:"field_name"`
	Text       string  `json:"text"`
	PageIndex  int     `json:"page_index"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Space      Space   `json:"space"`
	Confidence float64 `json:"confidence"`
}

// Tier returns the confidence tier of the placement.
func (p Placement) Tier() Tier {
	return Classify(p.Confidence)
}

// Validate checks the invariants every committed placement must satisfy.
func (p Placement) Validate(pageCount int) error {
	if p.Text == "" {
		return fmt.Errorf("placement %d has empty text", p.Index)
	}
	if p.PageIndex < 0 || p.PageIndex >= pageCount {
		return fmt.Errorf("placement %d page index %d out of range [0, %d)", p.Index, p.PageIndex, pageCount)
	}
	return nil
}

func (p Placement) String() string {
	return fmt.Sprintf("#%d %q=%q page %d at (%.1f, %.1f) %s [%s %.2f]",
		p.Index, p.FieldName, p.Text, p.PageIndex, p.X, p.Y, p.Space, p.Tier(), p.Confidence)
}

// GroupByPage buckets placements by page, preserving list order within each page.
func GroupByPage(ps []Placement) map[int][]Placement {
	groups := make(map[int][]Placement)
	for _, p := range ps {
		groups[p.PageIndex] = append(groups[p.PageIndex], p)
	}
	return groups
}

// Pages returns the sorted page indices present in ps.
func Pages(ps []Placement) []int {
	seen := make(map[int]bool)
	pages := make([]int, 0)
	for _, p := range ps {
		if !seen[p.PageIndex] {
			seen[p.PageIndex] = true
			pages = append(pages, p.PageIndex)
		}
	}
	sort.Ints(pages)
	return pages
}

// OnPage returns the placements of ps that belong to page, in list order.
func OnPage(ps []Placement, page int) []Placement {
	out := make([]Placement, 0)
	for _, p := range ps {
		if p.PageIndex == page {
			out = append(out, p)
		}
	}
	return out
}
