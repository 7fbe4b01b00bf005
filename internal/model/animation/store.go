package animation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPromptRequired = errors.New("prompt is required")
	ErrRunNotFound    = errors.New("run not found")
	ErrRunClaimed     = errors.New("run already started")
)

// Store exposes run persistence for HTTP handlers and the pipeline.
type Store interface {
	Create(prompt string) (Run, error)
	Get(id string) (Run, error)
	Claim(id string) (Run, error)
	SetStage(id string, stage Stage) error
	Complete(id string, outcome Outcome) (Run, error)
}

// MemoryStore implements Store with an in-memory map, suitable for a
// single-process deployment. Artifacts live on disk; only run metadata
// is held here.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]Run
	claimed map[string]bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    make(map[string]Run),
		claimed: make(map[string]bool),
	}
}

// Create provisions a new idle run for the supplied prompt.
func (s *MemoryStore) Create(prompt string) (Run, error) {
	if prompt == "" {
		return Run{}, ErrPromptRequired
	}

	run := Run{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Stage:     StageIdle,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()

	return run, nil
}

// Get retrieves a run by identifier.
func (s *MemoryStore) Get(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

// Claim marks the run as executing. Each run executes at most once; a
// second claim (e.g. a duplicate stream connection) is rejected.
func (s *MemoryStore) Claim(id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	if s.claimed[id] {
		return Run{}, ErrRunClaimed
	}

	s.claimed[id] = true
	return run, nil
}

// SetStage records pipeline progress for polling clients.
func (s *MemoryStore) SetStage(id string, stage Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return ErrRunNotFound
	}

	run.Stage = stage
	s.runs[id] = run
	return nil
}

// Complete stores the terminal outcome and returns the final run record.
func (s *MemoryStore) Complete(id string, outcome Outcome) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}

	run.Outcome = &outcome
	if outcome.Success {
		run.Stage = StageDone
	} else {
		run.Stage = StageFailed
	}
	s.runs[id] = run
	return run, nil
}
