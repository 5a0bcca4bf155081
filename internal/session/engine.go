package session

import (
	"context"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-formfill/internal/fillerr"
	"github.com/a3tai/pdf-formfill/internal/logging"
	"github.com/a3tai/pdf-formfill/internal/placement"
)

var log = logging.For("session")

// PreviewResult is a rendered page overlay.
type PreviewResult struct {
	Page  int
	Path  string
	Image image.Image
}

// CommitResult describes a written output document.
type CommitResult struct {
	OutputPath string
	Stamped    int
	Pages      []int
}

// Previewer renders the pixel-space placements of one page.
type Previewer interface {
	Preview(ctx context.Context, page int, placements []placement.Placement) (*PreviewResult, error)
}

// Committer writes point-space placements into the output document.
type Committer interface {
	Commit(ctx context.Context, placements []placement.Placement) (*CommitResult, error)
}

// Command is one reviewer instruction.
type Command interface {
	name() string
}

// Adjust moves placement Index to (X, Y) in pixels.
type Adjust struct {
	Index int
	X, Y  float64
}

// Remove deletes placement Index.
type Remove struct {
	Index int
}

// Add appends a reviewer-authored placement.
type Add struct {
	FieldName string
	Text      string
	X, Y      float64
	Page      int
}

// Preview renders Page with its current placements.
type Preview struct {
	Page int
}

// Done commits the list and ends the session.
type Done struct{}

// Abort ends the session without writing anything.
type Abort struct{}

func (Adjust) name() string  { return "adjust" }
func (Remove) name() string  { return "remove" }
func (Add) name() string     { return "add" }
func (Preview) name() string { return "preview" }
func (Done) name() string    { return "done" }
func (Abort) name() string   { return "abort" }

// Outcome reports what a command did.
type Outcome struct {
	Placement *placement.Placement
	Preview   *PreviewResult
	Commit    *CommitResult
	// Finished is true once the session left Reviewing.
	Finished bool
}

// Engine applies commands to a session. Commands are atomic: a failing
// command leaves the list unchanged.
type Engine struct {
	session   *Session
	previewer Previewer
	committer Committer
}

// NewEngine binds an engine to s. s must already be in Reviewing.
func NewEngine(s *Session, previewer Previewer, committer Committer) *Engine {
	return &Engine{session: s, previewer: previewer, committer: committer}
}

// Session returns the session being edited.
func (e *Engine) Session() *Session {
	return e.session
}

// Execute applies cmd.
func (e *Engine) Execute(ctx context.Context, cmd Command) (*Outcome, error) {
	logger := log.WithFields(logrus.Fields{
		"session": e.session.ID(),
		"command": cmd.name(),
	})

	out, err := e.execute(ctx, cmd)
	if err != nil {
		logger.WithError(err).Debug("Command rejected")
		return nil, err
	}
	logger.Debug("Command applied")
	return out, nil
}

func (e *Engine) execute(ctx context.Context, cmd Command) (*Outcome, error) {
	switch c := cmd.(type) {
	case Adjust:
		p, err := e.session.adjust(c.Index, c.X, c.Y)
		if err != nil {
			return nil, err
		}
		return &Outcome{Placement: &p}, nil

	case Remove:
		p, err := e.session.remove(c.Index)
		if err != nil {
			return nil, err
		}
		return &Outcome{Placement: &p}, nil

	case Add:
		p, err := e.session.add(c.FieldName, c.Text, c.X, c.Y, c.Page)
		if err != nil {
			return nil, err
		}
		return &Outcome{Placement: &p}, nil

	case Preview:
		return e.preview(ctx, c.Page)

	case Done:
		return e.done(ctx)

	case Abort:
		if err := e.session.transition("abort", StateAborted); err != nil {
			return nil, err
		}
		log.WithField("session", e.session.ID()).Info("Session aborted; source left untouched")
		return &Outcome{Finished: true}, nil

	default:
		return nil, fillerr.New(fillerr.ErrorTypeInvalidCommand, "execute", fmt.Sprintf("unknown command %T", cmd))
	}
}

func (e *Engine) preview(ctx context.Context, page int) (*Outcome, error) {
	if st := e.session.State(); st != StateReviewing {
		return nil, fillerr.New(fillerr.ErrorTypeInvalidState, "preview", fmt.Sprintf("session is %s", st))
	}
	if page < 0 || page >= e.session.PageCount() {
		return nil, fillerr.New(fillerr.ErrorTypeInvalidCommand, "preview",
			fmt.Sprintf("page %d outside document of %d page(s)", page, e.session.PageCount())).WithPage(page)
	}
	if e.previewer == nil {
		return nil, fillerr.New(fillerr.ErrorTypeInvalidState, "preview", "no previewer configured")
	}
	res, err := e.previewer.Preview(ctx, page, placement.OnPage(e.session.Placements(), page))
	if err != nil {
		return nil, err
	}
	return &Outcome{Preview: res}, nil
}

func (e *Engine) done(ctx context.Context) (*Outcome, error) {
	if st := e.session.State(); st != StateReviewing {
		return nil, fillerr.New(fillerr.ErrorTypeInvalidState, "done", fmt.Sprintf("session is %s", st))
	}
	if e.committer == nil {
		return nil, fillerr.New(fillerr.ErrorTypeInvalidState, "done", "no committer configured")
	}

	mapped, err := e.session.MappedPlacements()
	if err != nil {
		return nil, err
	}
	res, err := e.committer.Commit(ctx, mapped)
	if err != nil {
		// The session stays in Reviewing so the reviewer can fix and retry.
		return nil, err
	}
	e.session.markCommitted(res.OutputPath)
	log.WithFields(logrus.Fields{
		"session": e.session.ID(),
		"output":  res.OutputPath,
		"stamped": res.Stamped,
	}).Info("Session committed")
	return &Outcome{Commit: res, Finished: true}, nil
}
