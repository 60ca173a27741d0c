package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/moneymap/internal/graph"
)

// ErrSuperseded is returned by Load when a later Load for another household
// started before this one finished. Its result is discarded.
var ErrSuperseded = errors.New("load superseded")

// Backend persists whole graph snapshots for a household.
type Backend interface {
	// Load returns the household's graph. An empty graph is a valid
	// result; graph.ErrNotFound means the household has none.
	Load(ctx context.Context, householdID string) (graph.Snapshot, error)

	// Save replaces the household's graph and returns the mapping from
	// the ids in s to the persisted ids.
	Save(ctx context.Context, householdID string, s graph.Snapshot) (graph.IDMaps, error)
}

// Session binds an Editor to a Backend for one household at a time.
//
// Editor methods are not safe for concurrent use, and Load and Save do all
// of their work on the calling goroutine. To keep editing while the backend
// call is in flight, use BeginLoad or BeginSave on the editing goroutine,
// call the job's Run on any goroutine, then call Apply back on the editing
// goroutine. Run never touches the editor.
type Session struct {
	editor  *Editor
	backend Backend
	logger  *zap.Logger

	mu          sync.Mutex
	generation  uint64
	householdID string
}

// NewSession creates a Session. A nil logger discards output.
func NewSession(editor *Editor, backend Backend, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		editor:  editor,
		backend: backend,
		logger:  logger,
	}
}

// Editor returns the session's editor.
func (s *Session) Editor() *Editor {
	return s.editor
}

// HouseholdID returns the household most recently loaded.
func (s *Session) HouseholdID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.householdID
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

// Load fetches householdID's graph and hydrates the editor with it. On
// failure the editor falls back to an empty canvas and the error is
// returned. A Load overtaken by a newer one returns ErrSuperseded and leaves
// the editor alone.
func (s *Session) Load(ctx context.Context, householdID string) error {
	job := s.BeginLoad(householdID)
	job.Run(ctx)
	return job.Apply()
}

// LoadJob is a Load split at the backend call.
type LoadJob struct {
	s           *Session
	householdID string
	gen         uint64

	snap graph.Snapshot
	err  error
}

// BeginLoad makes householdID the session's household and supersedes any
// load still in flight.
func (s *Session) BeginLoad(householdID string) *LoadJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.householdID = householdID
	return &LoadJob{s: s, householdID: householdID, gen: s.generation}
}

// Run fetches the graph from the backend.
func (j *LoadJob) Run(ctx context.Context) {
	j.snap, j.err = j.s.backend.Load(ctx, j.householdID)
}

// Apply hydrates the editor with what Run fetched, or with an empty canvas
// when Run failed.
func (j *LoadJob) Apply() error {
	if !j.s.current(j.gen) {
		return ErrSuperseded
	}

	if j.err != nil {
		j.s.logger.Error("load graph failed",
			zap.String("household_id", j.householdID),
			zap.Error(j.err),
		)
		j.s.editor.Load(graph.Empty())
		return fmt.Errorf("load household %q: %w", j.householdID, j.err)
	}

	j.s.editor.Load(j.snap)
	j.s.logger.Debug("graph loaded",
		zap.String("household_id", j.householdID),
		zap.Int("nodes", len(j.snap.Nodes)),
		zap.Int("flows", len(j.snap.Flows)),
		zap.Int("rules", len(j.snap.Rules)),
	)
	return nil
}

// Save persists the editor's current graph. On success every id in the
// editor and its history is rewritten to the persisted id, and the editor is
// marked saved unless it changed while the save was in flight. On failure
// the editor and its history are left untouched.
func (s *Session) Save(ctx context.Context) (graph.IDMaps, error) {
	job, err := s.BeginSave()
	if err != nil {
		return graph.IDMaps{}, err
	}
	job.Run(ctx)
	return job.Apply()
}

// SaveJob is a Save split at the backend call.
type SaveJob struct {
	s           *Session
	householdID string
	gen         uint64
	revision    int
	snap        graph.Snapshot

	maps graph.IDMaps
	err  error
}

// BeginSave captures the editor's graph for saving.
func (s *Session) BeginSave() (*SaveJob, error) {
	s.mu.Lock()
	householdID, gen := s.householdID, s.generation
	s.mu.Unlock()
	if householdID == "" {
		return nil, errors.New("save: no household loaded")
	}
	return &SaveJob{
		s:           s,
		householdID: householdID,
		gen:         gen,
		revision:    s.editor.Revision(),
		snap:        s.editor.Snapshot(),
	}, nil
}

// Run sends the captured graph to the backend.
func (j *SaveJob) Run(ctx context.Context) {
	j.maps, j.err = j.s.backend.Save(ctx, j.householdID, j.snap)
}

// Apply rewrites the editor's ids to the persisted ones. Edits made since
// BeginSave keep the editor dirty. If another household was loaded in the
// meantime the editor is left alone.
func (j *SaveJob) Apply() (graph.IDMaps, error) {
	if j.err != nil {
		j.s.logger.Error("save graph failed",
			zap.String("household_id", j.householdID),
			zap.Error(j.err),
		)
		return graph.IDMaps{}, fmt.Errorf("save household %q: %w", j.householdID, j.err)
	}

	if j.s.current(j.gen) {
		j.s.editor.ApplyIDMaps(j.maps)
		if j.s.editor.Revision() == j.revision {
			j.s.editor.MarkSaved()
		}
	}
	j.s.logger.Info("graph saved",
		zap.String("household_id", j.householdID),
		zap.Int("nodes", len(j.snap.Nodes)),
	)
	return j.maps, nil
}
