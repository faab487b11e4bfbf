// Package knowledge defines the markdown-backed entity model.
//
// Plans, sessions, and learned patterns are authored as markdown files
// with optional YAML frontmatter. The files are the source of truth:
// every storage backend is a derived cache that can be rebuilt from a
// clean rescan of these directories.
package knowledge

import (
	"fmt"
	"time"
)

// PlanStatus enumerates the lifecycle states of an implementation plan.
type PlanStatus string

const (
	StatusActive    PlanStatus = "ACTIVE"
	StatusPaused    PlanStatus = "PAUSED"
	StatusPlanned   PlanStatus = "PLANNED"
	StatusComplete  PlanStatus = "COMPLETE"
	StatusCancelled PlanStatus = "CANCELLED"
)

// Valid reports whether s is one of the fixed plan statuses.
// The empty status is legal (frontmatter may be absent entirely).
func (s PlanStatus) Valid() bool {
	switch s {
	case "", StatusActive, StatusPaused, StatusPlanned, StatusComplete, StatusCancelled:
		return true
	}
	return false
}

// SearchScope selects which entity kinds a search covers.
type SearchScope string

const (
	ScopeAll      SearchScope = "all"
	ScopePlans    SearchScope = "plans"
	ScopeSessions SearchScope = "sessions"
	ScopeLearned  SearchScope = "learned"
)

// Valid reports whether the scope is one of the fixed enumeration values.
func (s SearchScope) Valid() bool {
	switch s {
	case ScopeAll, ScopePlans, ScopeSessions, ScopeLearned:
		return true
	}
	return false
}

// Includes reports whether results of the given entity type belong in
// this scope. typ is one of "plan", "session", "learned".
func (s SearchScope) Includes(typ string) bool {
	switch s {
	case ScopeAll:
		return true
	case ScopePlans:
		return typ == "plan"
	case ScopeSessions:
		return typ == "session"
	case ScopeLearned:
		return typ == "learned"
	}
	return false
}

// DateLayout is the calendar-date format used throughout: session
// filenames, date filters, and frontmatter timestamps.
const DateLayout = "2006-01-02"

// ValidDate reports whether s is a well-formed YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// Plan is one implementation plan, backed by a PLAN_<slug>.md file.
// ID is derived from the filename, not the frontmatter.
type Plan struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Status  PlanStatus `json:"status"`
	Author  string     `json:"author,omitempty"`
	Created string     `json:"created,omitempty"`
	Updated string     `json:"updated,omitempty"`
	Topics  []string   `json:"topics,omitempty"`
	File    string     `json:"file"`
	Content string     `json:"content,omitempty"`
}

// Session is one work session, backed by sessions/YYYY-MM-DD-session.md.
// Date comes from the filename and forms the stable lookup key.
type Session struct {
	Date    string   `json:"date"`
	Topic   string   `json:"topic,omitempty"`
	Plan    string   `json:"plan,omitempty"`
	Phases  []string `json:"phases,omitempty"`
	Topics  []string `json:"topics,omitempty"`
	File    string   `json:"file"`
	Content string   `json:"content,omitempty"`
}

// LearnedPattern is a documented recurring lesson, backed by
// learned/<slug>.md. Produced by hand or by the skill generator.
type LearnedPattern struct {
	ID       string   `json:"id"`
	Category string   `json:"category,omitempty"`
	Title    string   `json:"title"`
	Content  string   `json:"content,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Created  string   `json:"created,omitempty"`
	File     string   `json:"file"`
}

// SearchResult is one content match. Ephemeral, never persisted.
type SearchResult struct {
	File      string  `json:"file"`
	Line      int     `json:"line"`
	Context   string  `json:"context"`
	Relevance float64 `json:"relevance"`
	Type      string  `json:"type"`
}

// ValidationError marks caller-supplied input rejected before any I/O.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// Invalidf builds a ValidationError for the given field.
func Invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
