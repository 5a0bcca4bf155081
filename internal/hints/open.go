package hints

import (
	"io"

	"go.uber.org/multierr"
)

// DefaultOCRLanguage is the Tesseract language used for OCR hints.
const DefaultOCRLanguage = "eng"

// Options selects the label sources for a document.
type Options struct {
	TextLayer   bool
	OCR         bool
	OCRLanguage string
}

// Enabled reports whether any source is requested.
func (o Options) Enabled() bool {
	return o.TextLayer || o.OCR
}

type closers []io.Closer

func (c closers) Close() error {
	var err error
	for _, cl := range c {
		err = multierr.Append(err, cl.Close())
	}
	return err
}

// Open builds the requested sources for the document at path. Sources that
// cannot be opened are logged and skipped, so a nil Source means no hints.
// The returned Closer is never nil.
func Open(path string, opts Options) (Source, io.Closer) {
	var (
		sources Multi
		cs      closers
	)

	if opts.TextLayer {
		tl, err := OpenTextLayer(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("Text layer hints unavailable")
		} else {
			sources = append(sources, tl)
			cs = append(cs, tl)
		}
	}

	if opts.OCR {
		lang := opts.OCRLanguage
		if lang == "" {
			lang = DefaultOCRLanguage
		}
		ocr, err := NewOCR(lang)
		if err != nil {
			log.WithError(err).Warn("OCR hints unavailable")
		} else {
			sources = append(sources, ocr)
			cs = append(cs, ocr)
		}
	}

	if len(sources) == 0 {
		return nil, cs
	}
	return sources, cs
}
