// Package memory provides an in-process CounterStore. It is the reference
// adapter for embedding the engine without external storage and for tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"seqgen/internal/core/apperror"
	"seqgen/internal/domain/sequence"
)

// row holds one sequence's counter plus its exclusive lock. The lock is a
// 1-buffered channel so acquisition can honor context cancellation; two
// different sequences never contend on the same lock.
type row struct {
	lock  chan struct{}
	cfg   sequence.Config
	state sequence.CounterState
}

// Store implements sequence.CounterStore and sequence.ConfigRepository in
// process memory.
type Store struct {
	mu   sync.Mutex
	rows map[string]*row
}

// NewStore creates an empty in-memory counter store.
func NewStore() *Store {
	return &Store{rows: make(map[string]*row)}
}

var (
	_ sequence.CounterStore     = (*Store)(nil)
	_ sequence.ConfigRepository = (*Store)(nil)
)

func key(cfg sequence.Config) string {
	return cfg.Scope + "\x00" + cfg.Name
}

func (s *Store) get(cfg sequence.Config) (*row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[key(cfg)]
	return r, ok
}

// Exists implements CounterStore.
func (s *Store) Exists(_ context.Context, cfg sequence.Config) (bool, error) {
	_, ok := s.get(cfg)
	return ok, nil
}

// Create implements CounterStore.
func (s *Store) Create(_ context.Context, cfg sequence.Config) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(cfg)
	if _, exists := s.rows[k]; exists {
		return false, nil
	}
	s.rows[k] = &row{lock: make(chan struct{}, 1), cfg: cfg}
	return true, nil
}

// GetCurrentState implements CounterStore. The read is a snapshot; it takes
// the row lock briefly so it never observes a half-applied reset.
func (s *Store) GetCurrentState(ctx context.Context, cfg sequence.Config) (sequence.CounterState, error) {
	r, ok := s.get(cfg)
	if !ok {
		return sequence.CounterState{}, apperror.NewSequenceNotFound(cfg.Scope, cfg.Name)
	}
	if err := acquire(ctx, r, cfg); err != nil {
		return sequence.CounterState{}, err
	}
	defer release(r)
	return r.state, nil
}

// LockAndIncrement implements CounterStore. Reset check and increment happen
// under the row's exclusive lock.
func (s *Store) LockAndIncrement(ctx context.Context, cfg sequence.Config, now time.Time) (sequence.CounterState, error) {
	r, ok := s.get(cfg)
	if !ok {
		return sequence.CounterState{}, apperror.NewSequenceNotFound(cfg.Scope, cfg.Name)
	}
	if err := acquire(ctx, r, cfg); err != nil {
		return sequence.CounterState{}, err
	}
	defer release(r)

	st := r.state
	if sequence.ShouldReset(cfg, st, now) {
		st = sequence.Reset(now)
	}
	st.Value += cfg.StepSize
	r.state = st
	return st, nil
}

// SetCounter implements CounterStore.
func (s *Store) SetCounter(ctx context.Context, cfg sequence.Config, value int64) error {
	r, ok := s.get(cfg)
	if !ok {
		return apperror.NewSequenceNotFound(cfg.Scope, cfg.Name)
	}
	if err := acquire(ctx, r, cfg); err != nil {
		return err
	}
	defer release(r)
	r.state.Value = value
	return nil
}

// acquire takes the row lock, surfacing LOCK_TIMEOUT when the context expires
// first. Acquisition is all-or-nothing: a timeout guarantees no mutation.
func acquire(ctx context.Context, r *row, cfg sequence.Config) error {
	// A select with two ready cases picks randomly; check expiry first so an
	// already-cancelled context always times out.
	if ctx.Err() != nil {
		return apperror.NewLockTimeout(cfg.Scope, cfg.Name).WithCause(ctx.Err())
	}
	select {
	case r.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apperror.NewLockTimeout(cfg.Scope, cfg.Name).WithCause(ctx.Err())
	}
}

func release(r *row) {
	<-r.lock
}

// --- ConfigRepository ---

// Get implements ConfigRepository.
func (s *Store) Get(_ context.Context, scopeID, name string) (sequence.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[scopeID+"\x00"+name]
	if !ok {
		return sequence.Config{}, apperror.NewSequenceNotFound(scopeID, name)
	}
	return r.cfg, nil
}

// Save implements ConfigRepository.
func (s *Store) Save(_ context.Context, cfg sequence.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[key(cfg)]
	if !ok {
		return apperror.NewSequenceNotFound(cfg.Scope, cfg.Name)
	}
	r.cfg = cfg
	return nil
}

// List implements ConfigRepository.
func (s *Store) List(_ context.Context, scopeID string) ([]sequence.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var configs []sequence.Config
	for _, r := range s.rows {
		if r.cfg.Scope == scopeID {
			configs = append(configs, r.cfg)
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs, nil
}

// SetEnabled implements ConfigRepository.
func (s *Store) SetEnabled(_ context.Context, scopeID, name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[scopeID+"\x00"+name]
	if !ok {
		return apperror.NewSequenceNotFound(scopeID, name)
	}
	r.cfg.Enabled = enabled
	return nil
}
