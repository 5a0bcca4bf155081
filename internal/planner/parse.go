package planner

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/a3tai/pdf-formfill/internal/fielddata"
	"github.com/a3tai/pdf-formfill/internal/fillerr"
	"github.com/a3tai/pdf-formfill/internal/placement"
)

// Result is the outcome of parsing one model response: the candidates that
// became placements and the ones that were dropped.
type Result struct {
	Page       int
	Placements []placement.Placement
	Failures   fillerr.Collection
	Raw        string
}

// Bounds is the pixel size of the image the model saw.
type Bounds struct {
	Width, Height int
}

func (b Bounds) contains(x, y float64) bool {
	return x >= 0 && y >= 0 && x <= float64(b.Width) && y <= float64(b.Height)
}

// Keys accepted for each candidate attribute, in priority order.
var (
	fieldKeys      = []string{"field_name", "field", "label", "name"}
	textKeys       = []string{"text", "suggested_data", "value", "data"}
	xKeys          = []string{"x"}
	yKeys          = []string{"y"}
	confidenceKeys = []string{"confidence", "score"}
	wrapperKeys    = []string{"placements", "fields", "results", "items"}
)

// ParseResponse turns a free-form model response into placements in the pixel
// space of the page image. Malformed candidates are dropped and recorded as
// parse failures; the rest of the batch is kept.
func ParseResponse(page int, response string, bounds Bounds, data fielddata.FieldData) *Result {
	result := &Result{Page: page, Raw: response}

	candidates, err := extractCandidates(response)
	if err != nil {
		result.Failures.Add(fillerr.Parse(page, -1, err.Error()))
		return result
	}

	for i, raw := range candidates {
		p, perr := parseCandidate(raw, bounds, data)
		if perr != nil {
			result.Failures.Add(fillerr.Parse(page, i, perr.Error()))
			continue
		}
		p.PageIndex = page
		p.Index = -1
		result.Placements = append(result.Placements, p)
	}
	return result
}

// extractCandidates locates the JSON array of candidates in the response.
// It accepts a bare array, an array inside a code fence or surrounding prose,
// and an object wrapping the array under a well-known key.
func extractCandidates(response string) ([]json.RawMessage, error) {
	text := strings.TrimSpace(stripCodeFence(response))
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	if strings.HasPrefix(text, "{") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &obj); err == nil {
			for _, k := range wrapperKeys {
				if v, ok := obj[k]; ok {
					var arr []json.RawMessage
					if err := json.Unmarshal(v, &arr); err != nil {
						return nil, fmt.Errorf("%q is not an array: %w", k, err)
					}
					return arr, nil
				}
			}
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &arr); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	return arr, nil
}

func stripCodeFence(s string) string {
	open := strings.Index(s, "```")
	if open == -1 {
		return s
	}
	rest := s[open+3:]
	if nl := strings.Index(rest, "\n"); nl != -1 {
		rest = rest[nl+1:]
	}
	if closeIdx := strings.Index(rest, "```"); closeIdx != -1 {
		rest = rest[:closeIdx]
	}
	return rest
}

func parseCandidate(raw json.RawMessage, bounds Bounds, data fielddata.FieldData) (placement.Placement, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return placement.Placement{}, fmt.Errorf("candidate is not an object: %w", err)
	}

	fieldName, _ := lookupString(fields, fieldKeys)
	text, _ := lookupString(fields, textKeys)
	if v, ok := data.Lookup(fieldName); ok {
		text = v
	}
	if strings.TrimSpace(text) == "" {
		return placement.Placement{}, fmt.Errorf("candidate %q has no text", fieldName)
	}

	x, err := lookupNumber(fields, xKeys)
	if err != nil {
		return placement.Placement{}, fmt.Errorf("x: %w", err)
	}
	y, err := lookupNumber(fields, yKeys)
	if err != nil {
		return placement.Placement{}, fmt.Errorf("y: %w", err)
	}
	if !bounds.contains(x, y) {
		return placement.Placement{}, fmt.Errorf("coordinates (%g, %g) outside %dx%d image", x, y, bounds.Width, bounds.Height)
	}

	confidence := placement.DefaultConfidence
	if c, err := lookupNumber(fields, confidenceKeys); err == nil {
		if c < 0 || c > 1 {
			return placement.Placement{}, fmt.Errorf("confidence %g outside [0, 1]", c)
		}
		confidence = c
	} else if err != errMissing {
		return placement.Placement{}, fmt.Errorf("confidence: %w", err)
	}

	return placement.Placement{
		FieldName:  strings.TrimSpace(fieldName),
		Text:       text,
		X:          x,
		Y:          y,
		Space:      placement.SpacePixel,
		Confidence: confidence,
	}, nil
}

var errMissing = fmt.Errorf("missing")

func lookupString(fields map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			return s, true
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64), true
		case bool:
			return strconv.FormatBool(s), true
		}
	}
	return "", false
}

func lookupNumber(fields map[string]any, keys []string) (float64, error) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return 0, fmt.Errorf("malformed number %q", n)
			}
			f = parsed
		default:
			return 0, fmt.Errorf("unexpected %T value", v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("non-finite number")
		}
		return f, nil
	}
	return 0, errMissing
}
