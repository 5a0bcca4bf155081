// Package repl is the line-oriented review interface: it reads commands,
// applies them to a session through the adjustment engine and prints the
// placement listing.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/a3tai/pdf-formfill/internal/fillerr"
	"github.com/a3tai/pdf-formfill/internal/logging"
	"github.com/a3tai/pdf-formfill/internal/placement"
	"github.com/a3tai/pdf-formfill/internal/session"
)

var log = logging.For("repl")

const (
	prompt     = "> "
	fieldWidth = 20
)

const helpText = `Commands:
  list                              show the current placements
  adjust <index> <x> <y>            move a placement (pixels)
  remove <index>                    delete a placement
  add <field> <text> <x> <y> [page] add a placement (quote text with spaces)
  preview [page]                    render the overlay (all pages with placements by default)
  done                              write the filled PDF and exit
  abort                             exit without writing anything
  help                              show this help
`

// Options tunes the interface.
type Options struct {
	// ShowConfidence adds the score and tier to each listing line.
	ShowConfidence bool
	// NoCommit makes "done" end the loop without writing the document.
	NoCommit bool
}

// REPL drives a session.Engine from text input.
type REPL struct {
	engine *session.Engine
	in     *bufio.Scanner
	out    io.Writer
	opts   Options
}

// New returns a REPL reading commands from in and writing to out.
func New(engine *session.Engine, in io.Reader, out io.Writer, opts Options) *REPL {
	return &REPL{
		engine: engine,
		in:     bufio.NewScanner(in),
		out:    out,
		opts:   opts,
	}
}

// Run reads commands until the session is committed or aborted, or input
// ends. End of input aborts the session. Command errors are printed and the
// loop continues; only input and context errors are returned.
func (r *REPL) Run(ctx context.Context) (*session.Outcome, error) {
	fmt.Fprint(r.out, helpText)
	r.List()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprint(r.out, prompt)
		if !r.in.Scan() {
			if err := r.in.Err(); err != nil {
				return nil, fmt.Errorf("failed to read command: %w", err)
			}
			fmt.Fprintln(r.out)
			return r.engine.Execute(ctx, session.Abort{})
		}

		out, err := r.Handle(ctx, r.in.Text())
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			continue
		}
		if out != nil && out.Finished {
			return out, nil
		}
	}
}

// Handle applies a single command line.
func (r *REPL) Handle(ctx context.Context, line string) (*session.Outcome, error) {
	args, err := tokenize(strings.TrimSpace(line))
	if err != nil {
		return nil, invalid("parse", err.Error())
	}
	if len(args) == 0 {
		return nil, nil
	}

	verb := strings.ToLower(args[0])
	log.WithField("command", verb).Debug("Command received")

	switch verb {
	case "help", "?":
		fmt.Fprint(r.out, helpText)
		return nil, nil

	case "list", "ls":
		r.List()
		return nil, nil

	case "preview":
		return r.preview(ctx, args[1:])

	case "done":
		if len(args) != 1 {
			return nil, usage("done")
		}
		if r.opts.NoCommit {
			fmt.Fprintln(r.out, "Review finished")
			return &session.Outcome{Finished: true}, nil
		}
		out, err := r.engine.Execute(ctx, session.Done{})
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(r.out, "Filled PDF saved: %s (%d placement(s))\n", out.Commit.OutputPath, out.Commit.Stamped)
		return out, nil

	case "abort", "quit", "exit":
		out, err := r.engine.Execute(ctx, session.Abort{})
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(r.out, "Aborted; nothing was written")
		return out, nil
	}

	cmd, err := parseEdit(verb, args[1:])
	if err != nil {
		return nil, err
	}
	out, err := r.engine.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}

	switch cmd.(type) {
	case session.Adjust:
		fmt.Fprintf(r.out, "Adjusted %s\n", r.line(*out.Placement))
	case session.Remove:
		fmt.Fprintf(r.out, "Removed placement %d\n", out.Placement.Index)
	case session.Add:
		fmt.Fprintf(r.out, "Added %s\n", r.line(*out.Placement))
	}
	return out, nil
}

// List prints the numbered placement listing.
func (r *REPL) List() {
	ps := r.engine.Session().Placements()
	if len(ps) == 0 {
		fmt.Fprintln(r.out, "No placements")
		return
	}
	fmt.Fprintf(r.out, "Placements (%d):\n", len(ps))
	for _, p := range ps {
		fmt.Fprintf(r.out, "  %s\n", r.line(p))
	}
}

// line formats one placement the way the listing shows it.
func (r *REPL) line(p placement.Placement) string {
	field := runewidth.FillRight(runewidth.Truncate(p.FieldName, fieldWidth, "…"), fieldWidth)
	s := fmt.Sprintf("%2d. %s: '%s' at (%3.0f, %3.0f) page %d", p.Index, field, p.Text, p.X, p.Y, p.PageIndex)
	if r.opts.ShowConfidence {
		s += fmt.Sprintf(" [%.2f %s]", p.Confidence, p.Tier())
	}
	return s
}

func (r *REPL) preview(ctx context.Context, args []string) (*session.Outcome, error) {
	var pages []int
	switch len(args) {
	case 0:
		pages = placement.Pages(r.engine.Session().Placements())
		if len(pages) == 0 {
			pages = []int{0}
		}
	case 1:
		page, err := parseInt("preview", "page", args[0])
		if err != nil {
			return nil, err
		}
		pages = []int{page}
	default:
		return nil, usage("preview")
	}

	var last *session.Outcome
	for _, page := range pages {
		out, err := r.engine.Execute(ctx, session.Preview{Page: page})
		if err != nil {
			return nil, err
		}
		if out.Preview.Path != "" {
			fmt.Fprintf(r.out, "Preview saved: %s (page %d)\n", out.Preview.Path, page)
		} else {
			fmt.Fprintf(r.out, "Preview rendered for page %d\n", page)
		}
		last = out
	}
	return last, nil
}

// parseEdit turns the arguments of a list-editing verb into a command.
func parseEdit(verb string, args []string) (session.Command, error) {
	switch verb {
	case "adjust":
		if len(args) != 3 {
			return nil, usage("adjust")
		}
		idx, err := parseInt(verb, "index", args[0])
		if err != nil {
			return nil, err
		}
		x, y, err := parseXY(verb, args[1], args[2])
		if err != nil {
			return nil, err
		}
		return session.Adjust{Index: idx, X: x, Y: y}, nil

	case "remove", "rm":
		if len(args) != 1 {
			return nil, usage("remove")
		}
		idx, err := parseInt(verb, "index", args[0])
		if err != nil {
			return nil, err
		}
		return session.Remove{Index: idx}, nil

	case "add":
		if len(args) != 4 && len(args) != 5 {
			return nil, usage("add")
		}
		x, y, err := parseXY(verb, args[2], args[3])
		if err != nil {
			return nil, err
		}
		page := 0
		if len(args) == 5 {
			if page, err = parseInt(verb, "page", args[4]); err != nil {
				return nil, err
			}
		}
		return session.Add{FieldName: args[0], Text: args[1], X: x, Y: y, Page: page}, nil
	}
	return nil, invalid(verb, fmt.Sprintf("unknown command %q, type help for the list", verb))
}

func parseInt(op, what, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalid(op, fmt.Sprintf("%s %q is not an integer", what, s))
	}
	return n, nil
}

func parseXY(op, xs, ys string) (float64, float64, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return 0, 0, invalid(op, fmt.Sprintf("x %q is not a number", xs))
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return 0, 0, invalid(op, fmt.Sprintf("y %q is not a number", ys))
	}
	return x, y, nil
}

func usage(verb string) error {
	var form string
	switch verb {
	case "adjust":
		form = "adjust <index> <x> <y>"
	case "remove":
		form = "remove <index>"
	case "add":
		form = "add <field> <text> <x> <y> [page]"
	case "preview":
		form = "preview [page]"
	default:
		form = verb
	}
	return invalid(verb, "usage: "+form)
}

func invalid(op, msg string) error {
	return fillerr.New(fillerr.ErrorTypeInvalidCommand, op, msg)
}
