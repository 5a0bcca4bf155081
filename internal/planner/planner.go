// Package planner asks a vision model where each field value belongs on a
// rasterized page and turns its answer into pixel-space placements.
package planner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"github.com/a3tai/pdf-formfill/internal/fielddata"
	"github.com/a3tai/pdf-formfill/internal/fillerr"
	"github.com/a3tai/pdf-formfill/internal/logging"
	"github.com/a3tai/pdf-formfill/internal/raster"
)

var log = logging.For("planner")

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxTokens = 2000
	DefaultTimeout   = 120 * time.Second
)

// Options tunes model calls.
type Options struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature *float64
	// Timeout bounds a single page's model call.
	Timeout time.Duration
}

// Planner proposes placements for one page at a time. It is safe for
// concurrent use if the underlying model is.
type Planner struct {
	llm         llms.Model
	provider    string
	model       string
	maxTokens   int
	temperature *float64
	timeout     time.Duration
}

// New wraps llm with opts.
func New(llm llms.Model, opts Options) *Planner {
	p := &Planner{
		llm:         llm,
		provider:    opts.Provider,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
	}
	if p.maxTokens <= 0 {
		p.maxTokens = DefaultMaxTokens
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	return p
}

// Timeout returns the per-page model call limit.
func (p *Planner) Timeout() time.Duration {
	return p.timeout
}

// Plan sends page and data to the model and parses its answer. The returned
// error is a ModelError when the call itself fails; malformed candidates are
// reported in Result.Failures instead.
func (p *Planner) Plan(ctx context.Context, page *raster.Page, data fielddata.FieldData, hint string) (*Result, error) {
	ctx = WithRequestMeta(ctx, RequestMeta{PageIndex: page.Index})

	logger := log.WithFields(logrus.Fields{
		"provider": p.provider,
		"model":    p.model,
		"page":     page.Index,
	})

	width, height := page.Size()
	prompt, err := BuildPrompt(data, width, height, hint)
	if err != nil {
		return nil, fillerr.Model(page.Index, err)
	}
	logger.WithFields(logrus.Fields{"width": width, "height": height}).Debug("Planning page")
	logger.Debugf("Prompt: %s", prompt)

	png, err := page.EncodePNG()
	if err != nil {
		return nil, fillerr.Model(page.Index, err)
	}

	var imagePart llms.ContentPart
	if usesImageURL(p.provider) {
		imagePart = llms.ImageURLPart("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	} else {
		imagePart = llms.BinaryPart("image/png", png)
	}

	callOpts := []llms.CallOption{llms.WithMaxTokens(p.maxTokens)}
	if p.temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(*p.temperature))
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	completion, err := p.llm.GenerateContent(callCtx, []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{imagePart, llms.TextPart(prompt)},
		},
	}, callOpts...)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("model call timed out after %s: %w", p.timeout, err)
		}
		logger.WithError(err).Error("Failed to get response from vision model")
		return nil, fillerr.Model(page.Index, err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return nil, fillerr.Model(page.Index, errors.New("model returned no choices"))
	}

	text := strings.TrimSpace(completion.Choices[0].Content)
	logger.WithFields(logrus.Fields{
		"content_length": len(text),
		"elapsed":        time.Since(start).Round(time.Millisecond).String(),
	}).Debug("Received model response")

	result := ParseResponse(page.Index, text, Bounds{Width: width, Height: height}, data)
	for _, f := range result.Failures.Errors {
		logger.WithError(f).Warn("Dropped placement candidate")
	}
	logger.WithFields(logrus.Fields{
		"placements": len(result.Placements),
		"dropped":    result.Failures.Count(),
	}).Info("Planned page")
	return result, nil
}
