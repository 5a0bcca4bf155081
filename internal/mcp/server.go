package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/a3tai/pdf-formfill/internal/commit"
	"github.com/a3tai/pdf-formfill/internal/config"
	"github.com/a3tai/pdf-formfill/internal/descriptions"
	"github.com/a3tai/pdf-formfill/internal/fielddata"
	"github.com/a3tai/pdf-formfill/internal/hints"
	"github.com/a3tai/pdf-formfill/internal/logging"
	"github.com/a3tai/pdf-formfill/internal/pdf"
	"github.com/a3tai/pdf-formfill/internal/pdf/security"
	"github.com/a3tai/pdf-formfill/internal/pipeline"
	"github.com/a3tai/pdf-formfill/internal/preview"
	"github.com/a3tai/pdf-formfill/internal/raster"
	"github.com/a3tai/pdf-formfill/internal/session"
)

var log = logging.For("mcp")

// Opener opens a document for rasterization.
type Opener func(path string) (raster.Rasterizer, error)

// Options supplies the collaborators the server cannot build from config.
type Options struct {
	Planner pipeline.Planner
	// Open defaults to MuPDF.
	Open Opener
	// Fs defaults to the OS filesystem.
	Fs    afero.Fs
	Hints hints.Options
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	opts      Options
	paths     *security.PathValidator
	validator *pdf.Validator
	sessions  *store
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, opts Options) (*Server, error) {
	if opts.Planner == nil {
		return nil, fmt.Errorf("planner cannot be nil")
	}
	if opts.Open == nil {
		opts.Open = func(path string) (raster.Rasterizer, error) {
			return raster.OpenFitz(path)
		}
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	paths, err := security.NewPathValidator(cfg.PDFDirectory)
	if err != nil {
		return nil, err
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		opts:      opts,
		paths:     paths,
		validator: pdf.NewValidator(opts.Fs, cfg.MaxFileSize),
		sessions:  newStore(),
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

func sessionParam() mcp.ToolOption {
	return mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session id returned by formfill_plan"),
	)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"formfill_plan",
		mcp.WithDescription(descriptions.PlanDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF form, absolute or relative to the configured directory"),
		),
		mcp.WithString("data",
			mcp.Description(`Answers as "Key: Value, Key: Value" or a JSON object`),
		),
		mcp.WithString("data_file",
			mcp.Description("JSON, YAML or CSV file with the answers"),
		),
		mcp.WithString("hint",
			mcp.Description("Optional free-text hint for the model"),
		),
		mcp.WithString("output",
			mcp.Description("Filled PDF path (default: <input>_filled.pdf)"),
		),
		mcp.WithString("preview",
			mcp.Description("Also save previews to this PNG path (_pN suffix for later pages)"),
		),
	), s.handlePlan)

	s.mcpServer.AddTool(mcp.NewTool(
		"formfill_list",
		mcp.WithDescription(descriptions.ListDescription),
		sessionParam(),
	), s.handleList)

	s.mcpServer.AddTool(mcp.NewTool(
		"formfill_adjust",
		mcp.WithDescription(descriptions.AdjustDescription),
		sessionParam(),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Placement index")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("New x in pixels")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("New baseline y in pixels")),
	), s.handleAdjust)

	s.mcpServer.AddTool(mcp.NewTool(
		"formfill_remove",
		mcp.WithDescription(descriptions.RemoveDescription),
		sessionParam(),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Placement index")),
	), s.handleRemove)

	s.mcpServer.AddTool(mcp.NewTool(
		"formfill_add",
		mcp.WithDescription(descriptions.AddDescription),
		sessionParam(),
		mcp.WithString("field", mcp.Description("Field name shown in previews")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to place")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("x in pixels")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Baseline y in pixels")),
		mcp.WithNumber("page", mcp.Description("0-based page index (default 0)")),
	), s.handleAdd)

	s.mcpServer.AddTool(mcp.NewTool(
		"formfill_preview",
		mcp.WithDescription(descriptions.PreviewDescription),
		sessionParam(),
		mcp.WithNumber("page", mcp.Description("0-based page index (default 0)")),
	), s.handlePreview)

	s.mcpServer.AddTool(mcp.NewTool(
		"formfill_commit",
		mcp.WithDescription(descriptions.CommitDescription),
		sessionParam(),
	), s.handleCommit)

	s.mcpServer.AddTool(mcp.NewTool(
		"formfill_abort",
		mcp.WithDescription(descriptions.AbortDescription),
		sessionParam(),
	), s.handleAbort)
}

// Handler functions
func (s *Server) handlePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := s.paths.Resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.validator.Validate(src); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := s.loadData(request.GetString("data", ""), request.GetString("data_file", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	output := request.GetString("output", "")
	if output == "" {
		output = pipeline.DefaultOutputPath(src)
	}
	if output, err = s.paths.Resolve(output); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	previewBase := request.GetString("preview", "")
	if previewBase != "" {
		if previewBase, err = s.paths.Resolve(previewBase); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	e, report, err := s.plan(ctx, src, output, previewBase, data, request.GetString("hint", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatPlan(e, report)), nil
}

func (s *Server) loadData(inline, file string) (fielddata.FieldData, error) {
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("give either data or data_file, not both")
	case file != "":
		path, err := s.paths.Resolve(file)
		if err != nil {
			return nil, err
		}
		return fielddata.LoadFile(s.opts.Fs, path)
	case strings.HasPrefix(strings.TrimSpace(inline), "{"):
		return fielddata.FromJSON(strings.NewReader(inline))
	case inline != "":
		return fielddata.ParseString(inline)
	default:
		return nil, fmt.Errorf("data or data_file is required")
	}
}

// plan opens the document, plans every page and registers the session.
func (s *Server) plan(ctx context.Context, src, output, previewBase string, data fielddata.FieldData, hint string) (*entry, *pipeline.Report, error) {
	r, err := s.opts.Open(src)
	if err != nil {
		return nil, nil, err
	}
	e := &entry{raster: r}

	labels, closer := hints.Open(src, s.opts.Hints)
	e.closers = append(e.closers, closer)

	p := pipeline.New(r, s.opts.Planner, labels, pipeline.Config{
		DPI:     s.config.DPI,
		Workers: s.config.Workers,
		Hint:    hint,
	})
	e.pipeline = p
	e.session = session.New(newSessionID(), src, r.PageCount())

	logger := log.WithFields(logrus.Fields{"session": e.session.ID(), "path": src})
	logger.Info("Planning session")

	report, err := p.Plan(ctx, e.session, data, nil)
	if err != nil {
		_ = e.close()
		return nil, nil, err
	}

	renderer := preview.New(p.DPI(), s.config.FontSize, true)
	writer := commit.New(s.opts.Fs, commit.WithFontSize(s.config.FontSize))
	e.engine = session.NewEngine(e.session,
		pipeline.NewPreviewer(p, renderer, s.opts.Fs, previewBase),
		pipeline.NewCommitter(writer, src, output),
	)
	s.sessions.put(e)
	return e, report, nil
}

// execute runs one engine command against the named session.
func (s *Server) execute(ctx context.Context, request mcp.CallToolRequest, build func() (session.Command, error)) (*entry, *session.Outcome, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return nil, nil, err
	}
	e, err := s.sessions.get(id)
	if err != nil {
		return nil, nil, err
	}
	cmd, err := build()
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out, err := e.engine.Execute(ctx, cmd)
	if err != nil {
		return e, nil, err
	}
	return e, out, nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.sessions.get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatList(e.session)), nil
}

func (s *Server) handleAdjust(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	e, out, err := s.execute(ctx, request, func() (session.Command, error) {
		index, err := request.RequireInt("index")
		if err != nil {
			return nil, err
		}
		x, err := request.RequireFloat("x")
		if err != nil {
			return nil, err
		}
		y, err := request.RequireFloat("y")
		if err != nil {
			return nil, err
		}
		return session.Adjust{Index: index, X: x, Y: y}, nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Adjusted %s\n\n%s", out.Placement, formatList(e.session))), nil
}

func (s *Server) handleRemove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	e, out, err := s.execute(ctx, request, func() (session.Command, error) {
		index, err := request.RequireInt("index")
		if err != nil {
			return nil, err
		}
		return session.Remove{Index: index}, nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed placement %d\n\n%s", out.Placement.Index, formatList(e.session))), nil
}

func (s *Server) handleAdd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	e, out, err := s.execute(ctx, request, func() (session.Command, error) {
		text, err := request.RequireString("text")
		if err != nil {
			return nil, err
		}
		x, err := request.RequireFloat("x")
		if err != nil {
			return nil, err
		}
		y, err := request.RequireFloat("y")
		if err != nil {
			return nil, err
		}
		return session.Add{
			FieldName: request.GetString("field", ""),
			Text:      text,
			X:         x,
			Y:         y,
			Page:      request.GetInt("page", 0),
		}, nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added %s\n\n%s", out.Placement, formatList(e.session))), nil
}

func (s *Server) handlePreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, out, err := s.execute(ctx, request, func() (session.Command, error) {
		return session.Preview{Page: request.GetInt("page", 0)}, nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var buf bytes.Buffer
	if err := preview.Encode(&buf, out.Preview.Image); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode preview: %v", err)), nil
	}

	text := fmt.Sprintf("Preview of page %d", out.Preview.Page)
	if out.Preview.Path != "" {
		text += fmt.Sprintf(", saved to %s", out.Preview.Path)
	}
	text += ". Green: high confidence, yellow: medium, red: low."
	return mcp.NewToolResultImage(text, base64.StdEncoding.EncodeToString(buf.Bytes()), "image/png"), nil
}

func (s *Server) handleCommit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	e, out, err := s.execute(ctx, request, func() (session.Command, error) {
		return session.Done{}, nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.release(e)

	text := fmt.Sprintf("Filled PDF saved: %s\n", out.Commit.OutputPath)
	text += fmt.Sprintf("Placements stamped: %d\n", out.Commit.Stamped)
	text += fmt.Sprintf("Pages: %s\n", formatPages(out.Commit.Pages))
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleAbort(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	e, _, err := s.execute(ctx, request, func() (session.Command, error) {
		return session.Abort{}, nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.release(e)
	return mcp.NewToolResultText(fmt.Sprintf("Session %s aborted; nothing was written", e.session.ID())), nil
}

func (s *Server) release(e *entry) {
	if err := s.sessions.drop(e.session.ID()); err != nil {
		log.WithError(err).WithField("session", e.session.ID()).Warn("Failed to release session resources")
	}
}

// Formatting methods
func formatPlan(e *entry, report *pipeline.Report) string {
	text := fmt.Sprintf("Session: %s\n", e.session.ID())
	text += fmt.Sprintf("Document: %s (%d page(s))\n", e.session.SourcePath(), e.session.PageCount())
	text += fmt.Sprintf("Rasterized at %.0f DPI; coordinates are pixels, origin top-left, (x, y) = left end of the text baseline.\n",
		e.pipeline.DPI())
	for _, pr := range report.Pages {
		switch {
		case pr.Err != nil:
			text += fmt.Sprintf("Page %d: failed: %v\n", pr.Page, pr.Err)
		case pr.Failures.Count() > 0:
			text += fmt.Sprintf("Page %d: %d placement(s), %d candidate(s) dropped\n", pr.Page, pr.Placements, pr.Failures.Count())
		default:
			text += fmt.Sprintf("Page %d: %d placement(s)\n", pr.Page, pr.Placements)
		}
	}
	text += "\n" + formatList(e.session)
	return text
}

func formatList(s *session.Session) string {
	ps := s.Placements()
	if len(ps) == 0 {
		return "No placements\n"
	}
	text := fmt.Sprintf("Placements (%d):\n", len(ps))
	for _, p := range ps {
		text += fmt.Sprintf("%s\n", p)
	}
	return text
}

func formatPages(pages []int) string {
	if len(pages) == 0 {
		return "none"
	}
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = strconv.Itoa(p)
	}
	return strings.Join(out, ", ")
}

// Run serves MCP over standard I/O until input ends or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	log.WithField("directory", s.paths.Directory()).Debug("Starting form fill MCP server in stdio mode")
	defer func() {
		if err := s.sessions.closeAll(); err != nil {
			log.WithError(err).Warn("Failed to release sessions")
		}
	}()

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
