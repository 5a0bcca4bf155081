//go:build !ocr

package hints

import (
	"context"
	"errors"

	"github.com/a3tai/pdf-formfill/internal/raster"
)

// ErrOCRNotEnabled is returned when OCR hints are requested but OCR support
// was not compiled in. Rebuild with -tags ocr to enable it.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// OCR is the stub used when the "ocr" build tag is not set.
type OCR struct{}

// NewOCR always fails with ErrOCRNotEnabled.
func NewOCR(string) (*OCR, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op.
func (o *OCR) Close() error { return nil }

// Labels always fails with ErrOCRNotEnabled.
func (o *OCR) Labels(context.Context, *raster.Page) ([]Label, error) {
	return nil, ErrOCRNotEnabled
}
