// Package storage provides the adapter contract over the markdown
// source layer and its two interchangeable backends: a flat JSON index
// cache and a SQLite database with FTS5.
//
// Backends are derived caches. Anything they hold can be reproduced by
// RebuildIndex, which rescans the markdown files.
package storage

import (
	"errors"
	"fmt"

	"github.com/aiknowsys/aiknowsys/internal/knowledge"
)

// ErrNotImplemented is returned by every Unimplemented method. A
// backend that fails the conformance check (still returning this from
// any contract method) is not usable.
var ErrNotImplemented = errors.New("storage: not implemented")

// RebuildResult reports what a full rescan produced. Errors collects
// per-file scan failures; they never abort the rebuild.
type RebuildResult struct {
	Plans    int      `json:"plans"`
	Sessions int      `json:"sessions"`
	Learned  int      `json:"learned"`
	Errors   []string `json:"errors,omitempty"`
}

// Stats summarizes a backend's stored entities and on-disk size.
type Stats struct {
	Plans    int    `json:"plans"`
	Sessions int    `json:"sessions"`
	Learned  int    `json:"learned"`
	Projects int    `json:"projects,omitempty"`
	FileSize int64  `json:"file_size"`
	Path     string `json:"path"`
}

// Adapter is the single contract both backends implement. Each
// instance serves one logical operation: Init, query or mutate, Close.
type Adapter interface {
	// Init prepares the backend for the given source directory,
	// opening or creating its backing file. A failure here is fatal.
	Init(targetDir string) error

	// QueryPlans returns plans matching all supplied filters.
	QueryPlans(f PlanFilters) ([]knowledge.Plan, error)

	// QuerySessions returns sessions matching all supplied filters.
	QuerySessions(f SessionFilters) ([]knowledge.Session, error)

	// Search finds content matches for a literal query within scope,
	// sorted by relevance descending.
	Search(query string, scope knowledge.SearchScope) ([]knowledge.SearchResult, error)

	// RebuildIndex rescans the markdown source layer and replaces the
	// backend's derived state with the scan result.
	RebuildIndex() (*RebuildResult, error)

	// Close releases the backend's resources.
	Close() error
}

// StatsReader is implemented by backends that can report aggregate
// statistics. Not part of the core contract.
type StatsReader interface {
	GetStats() (*Stats, error)
}

// Unimplemented is the conformance base: every contract method fails
// with ErrNotImplemented until a backend overrides it. Embed it when
// building a partial backend so missing methods fail loudly instead of
// silently returning nothing.
type Unimplemented struct{}

func (Unimplemented) Init(string) error {
	return fmt.Errorf("Init: %w", ErrNotImplemented)
}

func (Unimplemented) QueryPlans(PlanFilters) ([]knowledge.Plan, error) {
	return nil, fmt.Errorf("QueryPlans: %w", ErrNotImplemented)
}

func (Unimplemented) QuerySessions(SessionFilters) ([]knowledge.Session, error) {
	return nil, fmt.Errorf("QuerySessions: %w", ErrNotImplemented)
}

func (Unimplemented) Search(string, knowledge.SearchScope) ([]knowledge.SearchResult, error) {
	return nil, fmt.Errorf("Search: %w", ErrNotImplemented)
}

func (Unimplemented) RebuildIndex() (*RebuildResult, error) {
	return nil, fmt.Errorf("RebuildIndex: %w", ErrNotImplemented)
}

func (Unimplemented) Close() error {
	return fmt.Errorf("Close: %w", ErrNotImplemented)
}

var _ Adapter = Unimplemented{}
