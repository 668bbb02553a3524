// Package session owns the interactive filter state of one dashboard user:
// the current selection, dependent pruning on every change and memoized
// aggregates for the current selection.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"marketlens/domain/core"
	"marketlens/domain/dataframe"
	"marketlens/internal"
	"marketlens/internal/facet"
)

// DefaultMemoSize bounds the number of memoized results per session
const DefaultMemoSize = 256

// Snapshot is the selection readers observe together with its version. A
// snapshot never changes once published.
type Snapshot struct {
	Selection facet.Selection
	Version   uint64
}

// Change describes the outcome of a selection update
type Change struct {
	Selection facet.Selection `json:"selection"`
	Version   uint64          `json:"version"`
	Pruned    []facet.Pruned  `json:"pruned,omitempty"`
}

type memoKey struct {
	version uint64
	op      string
	args    string
}

// Session holds one user's selection over a read-only dataframe. Readers
// always see a whole selection; writers serialize and replace it atomically.
type Session struct {
	ID core.SessionID

	engine *facet.Engine
	deps   []facet.Dependency
	logger *internal.Logger

	mu    sync.Mutex
	state atomic.Pointer[Snapshot]

	memo         *lru.Cache[memoKey, any]
	hits, misses atomic.Uint64
}

// Option configures a Session
type Option func(*settings)

type settings struct {
	id       core.SessionID
	memoSize int
	strict   bool
	logger   *internal.Logger
}

// WithID fixes the session id instead of generating one
func WithID(id core.SessionID) Option {
	return func(s *settings) { s.id = id }
}

// WithMemoSize sets the LRU capacity. Zero or negative keeps the default.
func WithMemoSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.memoSize = n
		}
	}
}

// WithStrict makes unknown field names an error instead of a warning
func WithStrict(strict bool) Option {
	return func(s *settings) { s.strict = strict }
}

// WithLogger sets the session logger
func WithLogger(logger *internal.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// New starts a session over frame with the given facet dependencies
func New(frame *dataframe.Dataframe, deps []facet.Dependency, opts ...Option) (*Session, error) {
	cfg := settings{memoSize: DefaultMemoSize, logger: internal.DefaultLogger}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = core.NewSessionID()
	}

	for _, dep := range deps {
		if err := dep.Validate(frame.Schema()); err != nil {
			return nil, fmt.Errorf("dependency %s: %w", dep, err)
		}
	}

	memo, err := lru.New[memoKey, any](cfg.memoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memo: %w", err)
	}

	s := &Session{
		ID:     cfg.id,
		engine: facet.NewEngine(frame, facet.WithStrict(cfg.strict), facet.WithLogger(cfg.logger)),
		deps:   append([]facet.Dependency(nil), deps...),
		logger: cfg.logger,
		memo:   memo,
	}
	s.state.Store(&Snapshot{Selection: facet.NewSelection()})
	cfg.logger.Debug("[Session] %s started over %d rows, %d dependencies", s.ID.String(), frame.Len(), len(deps))
	return s, nil
}

// Frame returns the full, unfiltered dataframe
func (s *Session) Frame() *dataframe.Dataframe { return s.engine.Frame() }

// Engine exposes the checked operations for callers that need them unmemoized
func (s *Session) Engine() *facet.Engine { return s.engine }

// Dependencies returns the facet dependencies the session prunes with
func (s *Session) Dependencies() []facet.Dependency {
	return append([]facet.Dependency(nil), s.deps...)
}

// Snapshot returns the current selection and its version
func (s *Session) Snapshot() Snapshot { return *s.state.Load() }

// Selection returns the current selection
func (s *Session) Selection() facet.Selection { return s.state.Load().Selection }

// Version counts selection changes since the session started
func (s *Session) Version() uint64 { return s.state.Load().Version }

// SetSelection replaces the accepted values of one facet. Dependent facets
// are pruned in the same update, so no reader ever sees a dependent value
// that the new selection cannot reach.
func (s *Session) SetSelection(facetName string, values ...dataframe.Value) (Change, error) {
	return s.update(func(cur facet.Selection) facet.Selection {
		return cur.With(facetName, values...)
	})
}

// Replace swaps in a whole selection, pruned against the dependencies
func (s *Session) Replace(selection facet.Selection) (Change, error) {
	return s.update(func(facet.Selection) facet.Selection { return selection })
}

// Reset clears every facet
func (s *Session) Reset() Change {
	change, _ := s.update(func(facet.Selection) facet.Selection { return facet.NewSelection() })
	return change
}

func (s *Session) update(next func(facet.Selection) facet.Selection) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	selection := next(cur.Selection)
	if err := selection.Validate(s.Frame().Schema()); err != nil {
		return Change{}, err
	}
	selection, pruned := facet.Prune(s.Frame().Rows(), s.deps, selection)
	for _, p := range pruned {
		s.logger.Debug("[Session] %s pruned %s: %v", s.ID.String(), p.Facet, p.Values)
	}

	if selection.Equal(cur.Selection) {
		return Change{Selection: cur.Selection, Version: cur.Version, Pruned: pruned}, nil
	}

	snap := &Snapshot{Selection: selection, Version: cur.Version + 1}
	s.state.Store(snap)
	s.memo.Purge()
	return Change{Selection: snap.Selection, Version: snap.Version, Pruned: pruned}, nil
}

// MemoStats reports memo hits and misses since the session started
func (s *Session) MemoStats() (hits, misses uint64) {
	return s.hits.Load(), s.misses.Load()
}

// memoize returns the cached result for key or computes and stores it.
// Cached values are shared between callers and must not be modified.
func memoize[T any](s *Session, key memoKey, compute func() (T, error)) (T, error) {
	if v, ok := s.memo.Get(key); ok {
		s.hits.Add(1)
		return v.(T), nil
	}
	s.misses.Add(1)
	v, err := compute()
	if err != nil {
		return v, err
	}
	s.memo.Add(key, v)
	return v, nil
}
