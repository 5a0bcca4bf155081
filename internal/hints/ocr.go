//go:build ocr

package hints

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/a3tai/pdf-formfill/internal/raster"
)

// minOCRConfidence drops Tesseract lines it is not reasonably sure about.
const minOCRConfidence = 40.0

// OCR reads labels from the rendered page image with Tesseract. It requires
// Tesseract to be installed on the system.
type OCR struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewOCR creates a Tesseract-backed label source for the given language(s),
// e.g. "eng" or "eng+deu".
func NewOCR(lang string) (*OCR, error) {
	client := gosseract.NewClient()
	if lang != "" {
		if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set OCR language: %w", err)
		}
	}
	return &OCR{client: client}, nil
}

// Close releases OCR resources.
func (o *OCR) Close() error {
	return o.client.Close()
}

// Labels returns recognized text lines in pixel space.
func (o *OCR) Labels(ctx context.Context, page *raster.Page) ([]Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := page.EncodePNG()
	if err != nil {
		return nil, fmt.Errorf("failed to encode page image: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := o.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := o.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}

	labels := make([]Label, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" || box.Confidence < minOCRConfidence {
			continue
		}
		labels = append(labels, Label{
			Text: text,
			X:    float64(box.Box.Min.X),
			Y:    float64(box.Box.Max.Y),
		})
	}
	sortLabels(labels)

	log.WithField("page", page.Index).WithField("labels", len(labels)).Debug("Extracted OCR labels")
	return labels, nil
}
