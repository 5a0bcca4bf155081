package mcp

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/a3tai/pdf-formfill/internal/pipeline"
	"github.com/a3tai/pdf-formfill/internal/raster"
	"github.com/a3tai/pdf-formfill/internal/session"
)

// entry is one open review session and the resources behind it.
type entry struct {
	// mu serialises commands: the engine is strictly sequential.
	mu       sync.Mutex
	session  *session.Session
	engine   *session.Engine
	pipeline *pipeline.Pipeline
	raster   raster.Rasterizer
	closers  []io.Closer
}

func (e *entry) close() error {
	var err error
	for _, c := range e.closers {
		err = multierr.Append(err, c.Close())
	}
	if e.raster != nil {
		err = multierr.Append(err, e.raster.Close())
	}
	return err
}

// store holds the open sessions by id.
type store struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

func newStore() *store {
	return &store{sessions: make(map[string]*entry)}
}

func newSessionID() string {
	return uuid.NewString()
}

func (s *store) put(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[e.session.ID()] = e
}

func (s *store) get(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no open session %q", id)
	}
	return e, nil
}

// drop removes the session and releases its resources.
func (s *store) drop(id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return e.close()
}

func (s *store) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// closeAll releases every open session.
func (s *store) closeAll() error {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()

	var err error
	for _, e := range entries {
		err = multierr.Append(err, e.close())
	}
	return err
}
