// Package session holds the placement list of one filling run and the
// command interpreter the reviewer edits it through.
package session

import (
	"fmt"
	"math"
	"sync"

	"github.com/a3tai/pdf-formfill/internal/fillerr"
	"github.com/a3tai/pdf-formfill/internal/geometry"
	"github.com/a3tai/pdf-formfill/internal/placement"
)

// State is the lifecycle stage of a session.
type State int

const (
	StatePlanning State = iota
	StateReviewing
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePlanning:
		return "planning"
	case StateReviewing:
		return "reviewing"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is the placement list for one source document. All methods are
// safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id         string
	sourcePath string
	pageCount  int
	mappers    map[int]*geometry.PageMapper

	placements []placement.Placement
	state      State
	// next is the index the next placement receives; it only grows.
	next int

	output string
}

// New starts a session in the Planning state.
func New(id, sourcePath string, pageCount int) *Session {
	return &Session{
		id:         id,
		sourcePath: sourcePath,
		pageCount:  pageCount,
		mappers:    make(map[int]*geometry.PageMapper),
		state:      StatePlanning,
	}
}

func (s *Session) ID() string         { return s.id }
func (s *Session) SourcePath() string { return s.sourcePath }
func (s *Session) PageCount() int     { return s.pageCount }

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Output returns the committed file path, or "" before commit.
func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

// SetMapper records the pixel/point mapping of a rasterized page.
func (s *Session) SetMapper(page int, m *geometry.PageMapper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappers[page] = m
}

// Mapper returns the mapping for page, if it was rasterized.
func (s *Session) Mapper(page int) (*geometry.PageMapper, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mappers[page]
	return m, ok
}

// AppendPlanned adds planner output in the given order, assigning fresh
// indices. It returns the stored copies.
func (s *Session) AppendPlanned(ps []placement.Placement) ([]placement.Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePlanning {
		return nil, s.invalidState("plan")
	}
	added := make([]placement.Placement, 0, len(ps))
	for _, p := range ps {
		p.Index = s.next
		s.next++
		s.placements = append(s.placements, p)
		added = append(added, p)
	}
	return added, nil
}

// BeginReview moves a planned session to Reviewing.
func (s *Session) BeginReview() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlanning {
		return s.invalidState("review")
	}
	s.state = StateReviewing
	return nil
}

// Placements returns a copy of the list in order.
func (s *Session) Placements() []placement.Placement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]placement.Placement(nil), s.placements...)
}

// Get returns the placement with index.
func (s *Session) Get(index int) (placement.Placement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(index); i >= 0 {
		return s.placements[i], true
	}
	return placement.Placement{}, false
}

// Pages returns the sorted page indices that hold at least one placement.
func (s *Session) Pages() []int {
	return placement.Pages(s.Placements())
}

// MappedPlacements returns the list converted to PDF point space using each
// page's mapper. The session's own list stays in pixel space.
func (s *Session) MappedPlacements() ([]placement.Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]placement.Placement, 0, len(s.placements))
	for _, p := range s.placements {
		if p.Space == placement.SpacePoint {
			out = append(out, p)
			continue
		}
		m, ok := s.mappers[p.PageIndex]
		if !ok {
			return nil, fillerr.New(fillerr.ErrorTypeWrite, "commit",
				fmt.Sprintf("page %d was never rasterized", p.PageIndex)).WithIndex(p.Index)
		}
		out = append(out, m.MapPlacement(p))
	}
	return out, nil
}

func (s *Session) find(index int) int {
	for i, p := range s.placements {
		if p.Index == index {
			return i
		}
	}
	return -1
}

func (s *Session) invalidState(op string) *fillerr.Error {
	return fillerr.New(fillerr.ErrorTypeInvalidState, op,
		fmt.Sprintf("session is %s", s.state))
}

// requireReviewing must be called with mu held.
func (s *Session) requireReviewing(op string) error {
	if s.state != StateReviewing {
		return s.invalidState(op)
	}
	return nil
}

func (s *Session) adjust(index int, x, y float64) (placement.Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireReviewing("adjust"); err != nil {
		return placement.Placement{}, err
	}
	if err := checkCoordinates("adjust", x, y); err != nil {
		return placement.Placement{}, err
	}
	i := s.find(index)
	if i < 0 {
		return placement.Placement{}, fillerr.NotFound("adjust", index)
	}
	p := s.placements[i]
	p.X, p.Y = x, y
	p.Space = placement.SpacePixel
	s.placements[i] = p
	return p, nil
}

func (s *Session) remove(index int) (placement.Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireReviewing("remove"); err != nil {
		return placement.Placement{}, err
	}
	i := s.find(index)
	if i < 0 {
		return placement.Placement{}, fillerr.NotFound("remove", index)
	}
	removed := s.placements[i]
	s.placements = append(s.placements[:i:i], s.placements[i+1:]...)
	return removed, nil
}

func (s *Session) add(fieldName, text string, x, y float64, page int) (placement.Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireReviewing("add"); err != nil {
		return placement.Placement{}, err
	}
	if text == "" {
		return placement.Placement{}, fillerr.New(fillerr.ErrorTypeInvalidCommand, "add", "text is empty")
	}
	if page < 0 || page >= s.pageCount {
		return placement.Placement{}, fillerr.New(fillerr.ErrorTypeInvalidCommand, "add",
			fmt.Sprintf("page %d outside document of %d page(s)", page, s.pageCount)).WithPage(page)
	}
	if err := checkCoordinates("add", x, y); err != nil {
		return placement.Placement{}, err
	}

	p := placement.Placement{
		Index:      s.next,
		FieldName:  fieldName,
		Text:       text,
		PageIndex:  page,
		X:          x,
		Y:          y,
		Space:      placement.SpacePixel,
		Confidence: placement.ManualConfidence,
	}
	s.next++
	s.placements = append(s.placements, p)
	return p, nil
}

func (s *Session) transition(op string, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireReviewing(op); err != nil {
		return err
	}
	s.state = to
	return nil
}

func (s *Session) markCommitted(output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateCommitted
	s.output = output
}

func checkCoordinates(op string, x, y float64) error {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return fillerr.New(fillerr.ErrorTypeInvalidCommand, op, "coordinates must be finite")
	}
	if x < 0 || y < 0 {
		return fillerr.New(fillerr.ErrorTypeInvalidCommand, op,
			fmt.Sprintf("coordinates (%g, %g) must not be negative", x, y))
	}
	return nil
}
