// Package query is the facade every caller goes through: validate
// filters, resolve the target directory, open exactly one storage
// adapter, use it, and close it on every exit path.
//
// The CLI and any tool-calling client depend only on the functions and
// result shapes in this package.
package query

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aiknowsys/aiknowsys/internal/knowledge"
	"github.com/aiknowsys/aiknowsys/internal/storage"
)

// PlanQuery carries caller-supplied plan filters.
type PlanQuery struct {
	Status         string
	Author         string
	Topic          string
	DateAfter      string
	DateBefore     string
	IncludeContent bool
	Backend        string
}

// SessionQuery carries caller-supplied session filters. LastNDays is a
// convenience translated into a DateAfter cutoff; an explicit
// DateAfter always wins over the computed one.
type SessionQuery struct {
	Topic          string
	Plan           string
	DateAfter      string
	DateBefore     string
	LastNDays      int
	IncludeContent bool
	Backend        string
}

// SearchQuery carries a literal search and its scope.
type SearchQuery struct {
	Query   string
	Scope   string
	Backend string
}

// PlansResult is the {count, plans} shape callers receive.
type PlansResult struct {
	Count int              `json:"count"`
	Plans []knowledge.Plan `json:"plans"`
}

// SessionsResult is the {count, sessions} shape, sorted date-descending.
type SessionsResult struct {
	Count    int                 `json:"count"`
	Sessions []knowledge.Session `json:"sessions"`
}

// SearchResults is the {count, results} shape, sorted by relevance
// descending as the adapter returns them.
type SearchResults struct {
	Count   int                      `json:"count"`
	Results []knowledge.SearchResult `json:"results"`
}

// RebuildResult re-exports the adapter's rebuild summary.
type RebuildResult = storage.RebuildResult

// now is a package-level var to allow test injection of the clock.
var now = time.Now

// Plans validates q, opens one adapter for targetDir, and returns the
// matching plans.
func Plans(targetDir string, q PlanQuery) (_ *PlansResult, err error) {
	if q.Status != "" && !knowledge.PlanStatus(q.Status).Valid() {
		return nil, knowledge.Invalidf("status", "%q is not one of ACTIVE, PAUSED, PLANNED, COMPLETE, CANCELLED", q.Status)
	}
	if err := validateDates(q.DateAfter, q.DateBefore); err != nil {
		return nil, err
	}

	adapter, err := openAdapter(targetDir, q.Backend)
	if err != nil {
		return nil, err
	}
	defer closeAdapter(adapter, &err)

	plans, err := adapter.QueryPlans(storage.PlanFilters{
		Status:         knowledge.PlanStatus(q.Status),
		Author:         q.Author,
		Topic:          q.Topic,
		DateAfter:      q.DateAfter,
		DateBefore:     q.DateBefore,
		IncludeContent: q.IncludeContent,
	})
	if err != nil {
		return nil, err
	}
	return &PlansResult{Count: len(plans), Plans: plans}, nil
}

// Sessions validates q, applies the LastNDays convenience cutoff, and
// returns matching sessions sorted by date descending.
func Sessions(targetDir string, q SessionQuery) (_ *SessionsResult, err error) {
	if err := validateDates(q.DateAfter, q.DateBefore); err != nil {
		return nil, err
	}
	if q.LastNDays < 0 {
		return nil, knowledge.Invalidf("lastNDays", "must be non-negative, got %d", q.LastNDays)
	}

	// The convenience window becomes a concrete cutoff; a caller's
	// explicit dateAfter wins over the computed one.
	dateAfter := q.DateAfter
	if dateAfter == "" && q.LastNDays > 0 {
		dateAfter = now().AddDate(0, 0, -q.LastNDays).Format(knowledge.DateLayout)
	}

	adapter, err := openAdapter(targetDir, q.Backend)
	if err != nil {
		return nil, err
	}
	defer closeAdapter(adapter, &err)

	sessions, err := adapter.QuerySessions(storage.SessionFilters{
		Topic:          q.Topic,
		Plan:           q.Plan,
		DateAfter:      dateAfter,
		DateBefore:     q.DateBefore,
		IncludeContent: q.IncludeContent,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(sessions, func(a, b int) bool {
		return sessions[a].Date > sessions[b].Date
	})
	return &SessionsResult{Count: len(sessions), Sessions: sessions}, nil
}

// Search validates q and returns content matches within scope.
func Search(targetDir string, q SearchQuery) (_ *SearchResults, err error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, knowledge.Invalidf("query", "search query must not be empty")
	}
	scope := knowledge.SearchScope(q.Scope)
	if q.Scope == "" {
		scope = knowledge.ScopeAll
	}
	if !scope.Valid() {
		return nil, knowledge.Invalidf("scope", "%q is not one of all, plans, sessions, learned", q.Scope)
	}

	adapter, err := openAdapter(targetDir, q.Backend)
	if err != nil {
		return nil, err
	}
	defer closeAdapter(adapter, &err)

	results, err := adapter.Search(q.Query, scope)
	if err != nil {
		return nil, err
	}
	return &SearchResults{Count: len(results), Results: results}, nil
}

// Rebuild rescans the markdown source layer into the backend.
func Rebuild(targetDir, backend string) (_ *RebuildResult, err error) {
	adapter, err := openAdapter(targetDir, backend)
	if err != nil {
		return nil, err
	}
	defer closeAdapter(adapter, &err)

	return adapter.RebuildIndex()
}

// Stats reports backend statistics when the backend supports them.
func Stats(targetDir, backend string) (_ *storage.Stats, err error) {
	adapter, err := openAdapter(targetDir, backend)
	if err != nil {
		return nil, err
	}
	defer closeAdapter(adapter, &err)

	sr, ok := adapter.(storage.StatsReader)
	if !ok {
		return nil, fmt.Errorf("backend does not report statistics")
	}
	return sr.GetStats()
}

func openAdapter(targetDir, backend string) (storage.Adapter, error) {
	abs, err := filepath.Abs(targetDir)
	if err != nil {
		return nil, fmt.Errorf("resolving target dir: %w", err)
	}
	return storage.Open(abs, storage.Options{Backend: backend})
}

// closeAdapter releases the adapter on every exit path, preserving the
// first error.
func closeAdapter(a storage.Adapter, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

func validateDates(dates ...string) error {
	for _, d := range dates {
		if d != "" && !knowledge.ValidDate(d) {
			return knowledge.Invalidf("date", "%q is not YYYY-MM-DD", d)
		}
	}
	return nil
}
