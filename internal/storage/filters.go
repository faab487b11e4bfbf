package storage

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/aiknowsys/aiknowsys/internal/knowledge"
)

// PlanFilters narrows QueryPlans results. All set fields must match
// (AND semantics). Date bounds compare against the plan's created date.
type PlanFilters struct {
	Status     knowledge.PlanStatus
	Author     string
	Topic      string
	DateAfter  string
	DateBefore string

	// IncludeContent selects the full-content query mode. The default
	// metadata-only mode omits the content column for token-constrained
	// callers. The JSON backend never stores content in its index.
	IncludeContent bool
}

// SessionFilters narrows QuerySessions results with AND semantics.
type SessionFilters struct {
	Topic      string
	Plan       string
	DateAfter  string
	DateBefore string

	IncludeContent bool
}

func (f PlanFilters) matches(p knowledge.Plan) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Author != "" && p.Author != f.Author {
		return false
	}
	if f.Topic != "" && !topicMatches(f.Topic, p.Topics, p.Title) {
		return false
	}
	if !dateInRange(p.Created, f.DateAfter, f.DateBefore) {
		return false
	}
	return true
}

func (f SessionFilters) matches(s knowledge.Session) bool {
	if f.Topic != "" && !topicMatches(f.Topic, s.Topics, s.Topic) {
		return false
	}
	if f.Plan != "" && s.Plan != f.Plan {
		return false
	}
	if !dateInRange(s.Date, f.DateAfter, f.DateBefore) {
		return false
	}
	return true
}

// topicMatches accepts a case-insensitive substring hit on any topic
// (or the title), falling back to fuzzy matching so "authref" still
// finds "auth-refactor".
func topicMatches(want string, topics []string, title string) bool {
	want = strings.ToLower(want)
	candidates := append([]string{}, topics...)
	if title != "" {
		candidates = append(candidates, title)
	}
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), want) {
			return true
		}
	}
	return len(fuzzy.Find(want, candidates)) > 0
}

// dateInRange checks an ISO date against optional strict after/before
// bounds. ISO dates compare correctly as strings. An entity without a
// date passes only when no bounds are set.
func dateInRange(date, after, before string) bool {
	if after == "" && before == "" {
		return true
	}
	if date == "" {
		return false
	}
	if after != "" && date <= after {
		return false
	}
	if before != "" && date >= before {
		return false
	}
	return true
}
