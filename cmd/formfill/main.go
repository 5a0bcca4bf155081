package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/a3tai/pdf-formfill/internal/commit"
	"github.com/a3tai/pdf-formfill/internal/config"
	"github.com/a3tai/pdf-formfill/internal/fielddata"
	"github.com/a3tai/pdf-formfill/internal/fillerr"
	"github.com/a3tai/pdf-formfill/internal/hints"
	"github.com/a3tai/pdf-formfill/internal/logging"
	"github.com/a3tai/pdf-formfill/internal/mcp"
	"github.com/a3tai/pdf-formfill/internal/pdf"
	"github.com/a3tai/pdf-formfill/internal/pipeline"
	"github.com/a3tai/pdf-formfill/internal/placement"
	"github.com/a3tai/pdf-formfill/internal/planner"
	"github.com/a3tai/pdf-formfill/internal/preview"
	"github.com/a3tai/pdf-formfill/internal/raster"
	"github.com/a3tai/pdf-formfill/internal/repl"
	"github.com/a3tai/pdf-formfill/internal/session"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

var log = logging.For("main")

// Exit codes
const (
	exitOK         = 0
	exitFailure    = 1
	exitConfig     = 2
	exitConversion = 3
	exitModel      = 4
	exitWrite      = 5
)

var (
	errBadInput     = errors.New("invalid field data")
	errNoPlacements = errors.New("no placements found")
)

// setupLogging configures logging based on the run mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol; keep logs on stderr and quiet unless debugging
		level := "warn"
		if cfg.IsDebug() {
			level = "debug"
		}
		logging.Setup(level, os.Stderr, false)
		return
	}
	logging.Setup(cfg.LogLevel, os.Stderr, false)
}

// app is one command line fill run.
type app struct {
	cfg     *config.Config
	fs      afero.Fs
	planner pipeline.Planner
	open    mcp.Opener
	in      io.Reader
	out     io.Writer
}

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitConfig)
	}

	setupLogging(cfg)

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}
	log.WithField("config", cfg.String()).Debug("Starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	p, err := newPlanner(cfg)
	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitModel)
	}

	var code int
	if cfg.IsStdioMode() {
		code = runStdio(ctx, cfg, p)
	} else {
		a := &app{
			cfg:     cfg,
			fs:      afero.NewOsFs(),
			planner: p,
			open:    openFitz,
			in:      os.Stdin,
			out:     os.Stdout,
		}
		code = a.run(ctx)
	}
	stop()
	os.Exit(code)
}

func openFitz(path string) (raster.Rasterizer, error) {
	r, err := raster.OpenFitz(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func newPlanner(cfg *config.Config) (*planner.Planner, error) {
	llm, err := planner.NewModel(planner.ProviderConfig{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return nil, fillerr.Wrap(fillerr.ErrorTypeModel, "model", err)
	}
	temperature := cfg.Temperature
	p := planner.New(llm, planner.Options{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: &temperature,
		Timeout:     cfg.Timeout,
	})
	log.WithFields(logrus.Fields{
		"provider": cfg.Provider,
		"model":    cfg.Model,
		"timeout":  p.Timeout(),
	}).Debug("Vision model ready")
	return p, nil
}

func hintOptions(cfg *config.Config) hints.Options {
	return hints.Options{TextLayer: cfg.TextHints, OCR: cfg.OCRHints}
}

// runStdio serves the MCP tools until stdin closes or ctx is cancelled.
func runStdio(ctx context.Context, cfg *config.Config, p pipeline.Planner) int {
	server, err := mcp.NewServer(cfg, mcp.Options{Planner: p, Hints: hintOptions(cfg)})
	if err != nil {
		log.WithError(err).Error("Failed to create MCP server")
		return exitFailure
	}
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("Server error")
		return exitFailure
	}
	return exitOK
}

// run fills one document and returns the process exit code.
func (a *app) run(ctx context.Context) int {
	err := a.fill(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errBadInput):
		return exitConfig
	case fillerr.Is(err, fillerr.ErrorTypeConversion):
		return exitConversion
	case fillerr.Is(err, fillerr.ErrorTypeModel):
		return exitModel
	case fillerr.Is(err, fillerr.ErrorTypeWrite):
		return exitWrite
	default:
		return exitFailure
	}
}

func (a *app) fill(ctx context.Context) error {
	cfg := a.cfg
	src := cfg.PDFPath

	if _, err := pdf.NewValidator(a.fs, cfg.MaxFileSize).Validate(src); err != nil {
		return err
	}

	data, err := a.loadData()
	if err != nil {
		return fmt.Errorf("%w: %w", errBadInput, err)
	}
	a.printFields(data)

	r, err := a.open(src)
	if err != nil {
		return fillerr.Wrap(fillerr.ErrorTypeConversion, "open", err)
	}
	defer r.Close()

	labels, closer := hints.Open(src, hintOptions(cfg))
	defer closer.Close()

	p := pipeline.New(r, a.planner, labels, pipeline.Config{
		DPI:     cfg.DPI,
		Workers: cfg.Workers,
		Hint:    cfg.Hint,
	})
	s := session.New(uuid.NewString(), src, r.PageCount())

	fmt.Fprintf(a.out, "Planning %d page(s) at %.0f DPI...\n", r.PageCount(), p.DPI())
	report, err := p.Plan(ctx, s, data, nil)
	if err != nil {
		return err
	}
	for _, pr := range report.Failed() {
		fmt.Fprintf(a.out, "Page %d skipped: %v\n", pr.Page, pr.Err)
	}
	if n := report.Dropped(); n > 0 {
		fmt.Fprintf(a.out, "%d unusable suggestion(s) dropped\n", n)
	}

	previewBase := cfg.PreviewPath
	if previewBase == "" {
		previewBase = pipeline.DefaultPreviewPath(src)
	}
	output := cfg.OutputPath
	if output == "" {
		output = pipeline.DefaultOutputPath(src)
	}

	renderer := preview.New(p.DPI(), cfg.FontSize, !cfg.NoLabels)
	writer := commit.New(a.fs, commit.WithFontSize(cfg.FontSize))
	engine := session.NewEngine(s,
		pipeline.NewPreviewer(p, renderer, a.fs, previewBase),
		pipeline.NewCommitter(writer, src, output),
	)
	// The console never commits; previews and the output are written below
	// from whatever list the review leaves behind.
	console := repl.New(engine, a.in, a.out, repl.Options{
		ShowConfidence: cfg.ShowConfidence,
		NoCommit:       true,
	})

	if cfg.Interactive {
		if _, err := console.Run(ctx); err != nil {
			return err
		}
		if s.State() == session.StateAborted {
			return nil
		}
	} else {
		console.List()
		if len(s.Placements()) == 0 {
			return errNoPlacements
		}
	}

	pages := s.Pages()
	if len(pages) == 0 {
		pages = []int{0}
	}
	for _, page := range pages {
		out, err := engine.Execute(ctx, session.Preview{Page: page})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Preview saved: %s\n", out.Preview.Path)
	}

	if cfg.PreviewOnly {
		a.printSummary(s.Placements())
		return nil
	}

	out, err := engine.Execute(ctx, session.Done{})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Filled PDF saved: %s\n", out.Commit.OutputPath)
	a.printSummary(s.Placements())

	log.WithFields(logrus.Fields{
		"output":     out.Commit.OutputPath,
		"placements": out.Commit.Stamped,
	}).Info("Fill finished")
	return nil
}

func (a *app) loadData() (fielddata.FieldData, error) {
	cfg := a.cfg
	switch {
	case cfg.JSONPath != "":
		return fielddata.LoadFile(a.fs, cfg.JSONPath)
	case cfg.CSVPath != "":
		return fielddata.LoadFile(a.fs, cfg.CSVPath)
	default:
		return fielddata.ParseString(cfg.DataString)
	}
}

func (a *app) printFields(data fielddata.FieldData) {
	fmt.Fprintf(a.out, "Loaded %d field(s):\n", len(data))
	labels := data.Humanized()
	for _, k := range labels.Keys() {
		fmt.Fprintf(a.out, "  %s: %s\n", k, labels[k])
	}
}

func (a *app) printSummary(ps []placement.Placement) {
	counts := make(map[placement.Tier]int)
	for _, p := range ps {
		counts[p.Tier()]++
	}
	fmt.Fprintf(a.out, "Summary: %d placement(s), %d high, %d medium, %d low confidence\n",
		len(ps), counts[placement.TierHigh], counts[placement.TierMedium], counts[placement.TierLow])
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("PDF Form Fill\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
