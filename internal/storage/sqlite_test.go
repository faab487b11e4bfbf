package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/aiknowsys/aiknowsys/internal/knowledge"
	"github.com/aiknowsys/aiknowsys/internal/storage"
)

// newSQLite opens a SQLite backend over dir with its database in a
// throwaway location.
func newSQLite(t *testing.T, dir string) *storage.SQLite {
	t.Helper()
	s := storage.NewSQLite(filepath.Join(t.TempDir(), "knowledge.db"))
	if err := s.Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_InsertAndQueryPlans(t *testing.T) {
	s := newSQLite(t, t.TempDir())

	plans := []knowledge.Plan{
		{ID: "auth-refactor", Title: "Auth refactor", Status: knowledge.StatusActive, Author: "kim", Created: "2026-01-10", Topics: []string{"auth"}},
		{ID: "billing-v2", Title: "Billing v2", Status: knowledge.StatusComplete, Author: "ana", Created: "2026-02-01"},
	}
	for _, p := range plans {
		if err := s.InsertPlan(p); err != nil {
			t.Fatalf("InsertPlan(%s): %v", p.ID, err)
		}
	}

	got, err := s.QueryPlans(storage.PlanFilters{Status: knowledge.StatusActive})
	if err != nil {
		t.Fatalf("QueryPlans: %v", err)
	}
	if len(got) != 1 || got[0].ID != "auth-refactor" {
		t.Fatalf("status filter returned %v, want only auth-refactor", got)
	}
	if got[0].Author != "kim" || got[0].Created != "2026-01-10" {
		t.Errorf("row round-trip lost fields: %+v", got[0])
	}
	if len(got[0].Topics) != 1 || got[0].Topics[0] != "auth" {
		t.Errorf("Topics = %v, want [auth]", got[0].Topics)
	}
}

func TestSQLite_InsertPlanUpserts(t *testing.T) {
	s := newSQLite(t, t.TempDir())

	p := knowledge.Plan{ID: "auth-refactor", Title: "Auth refactor", Status: knowledge.StatusActive}
	if err := s.InsertPlan(p); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	p.Status = knowledge.StatusComplete
	if err := s.InsertPlan(p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.QueryPlans(storage.PlanFilters{})
	if err != nil {
		t.Fatalf("QueryPlans: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("upsert created a duplicate: %d rows", len(got))
	}
	if got[0].Status != knowledge.StatusComplete {
		t.Errorf("Status = %q, want COMPLETE after upsert", got[0].Status)
	}
}

func TestSQLite_InsertPlanRejectsBadStatus(t *testing.T) {
	s := newSQLite(t, t.TempDir())
	err := s.InsertPlan(knowledge.Plan{ID: "x", Title: "X", Status: "SHIPPED"})
	if err == nil {
		t.Fatal("expected validation error for unknown status")
	}
}

func TestSQLite_InsertSessionRejectsBadDate(t *testing.T) {
	s := newSQLite(t, t.TempDir())
	err := s.InsertSession(knowledge.Session{Date: "Feb 5"})
	if err == nil {
		t.Fatal("expected validation error for malformed date")
	}
}

func TestSQLite_RebuildCountsAndIdempotence(t *testing.T) {
	dir := newKnowledgeDir(t)
	s := newSQLite(t, dir)

	result, err := s.RebuildIndex()
	if err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	if result.Plans != 2 || result.Sessions != 2 || result.Learned != 1 {
		t.Errorf("rebuild = %d/%d/%d, want 2/2/1", result.Plans, result.Sessions, result.Learned)
	}

	// Second rebuild replaces rather than accumulates.
	if _, err := s.RebuildIndex(); err != nil {
		t.Fatalf("second RebuildIndex: %v", err)
	}
	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Plans != 2 || stats.Sessions != 2 || stats.Learned != 1 {
		t.Errorf("stats after second rebuild = %d/%d/%d, want 2/2/1", stats.Plans, stats.Sessions, stats.Learned)
	}
	if stats.Projects < 1 {
		t.Errorf("Projects = %d, want at least the registered project", stats.Projects)
	}
	if stats.FileSize <= 0 {
		t.Errorf("FileSize = %d, want > 0", stats.FileSize)
	}
}

func TestSQLite_MetadataModeOmitsContent(t *testing.T) {
	dir := newKnowledgeDir(t)
	s := newSQLite(t, dir)
	if _, err := s.RebuildIndex(); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	metadata, err := s.QueryPlans(storage.PlanFilters{})
	if err != nil {
		t.Fatalf("QueryPlans: %v", err)
	}
	for _, p := range metadata {
		if p.Content != "" {
			t.Errorf("metadata mode returned content for %q", p.ID)
		}
	}

	full, err := s.QueryPlans(storage.PlanFilters{IncludeContent: true})
	if err != nil {
		t.Fatalf("QueryPlans with content: %v", err)
	}
	found := false
	for _, p := range full {
		if p.Content != "" {
			found = true
		}
	}
	if !found {
		t.Error("IncludeContent mode should return stored markdown bodies")
	}
}

func TestSQLite_QuerySessionsDateBounds(t *testing.T) {
	dir := newKnowledgeDir(t)
	s := newSQLite(t, dir)
	if _, err := s.RebuildIndex(); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	sessions, err := s.QuerySessions(storage.SessionFilters{DateAfter: "2026-02-05"})
	if err != nil {
		t.Fatalf("QuerySessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Date != "2026-02-06" {
		t.Errorf("strict dateAfter should exclude 02-05 itself, got %v", sessions)
	}

	sessions, err = s.QuerySessions(storage.SessionFilters{Topic: "indexing"})
	if err != nil {
		t.Fatalf("QuerySessions topic: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Date != "2026-02-05" {
		t.Errorf("topic filter should match only the indexing session, got %v", sessions)
	}
}

func TestSQLite_SearchScopePurityAndRelevance(t *testing.T) {
	dir := newKnowledgeDir(t)
	s := newSQLite(t, dir)
	if _, err := s.RebuildIndex(); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	all, err := s.Search("chalk", knowledge.ScopeAll)
	if err != nil {
		t.Fatalf("Search all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("scope all returned %d results, want 3", len(all))
	}
	for _, r := range all {
		if r.Relevance != 1.0 {
			t.Errorf("relevance = %v, want the fixed 1.0", r.Relevance)
		}
		if r.Context == "" || r.Line <= 0 {
			t.Errorf("result missing snippet or line: %+v", r)
		}
	}

	plansOnly, err := s.Search("chalk", knowledge.ScopePlans)
	if err != nil {
		t.Fatalf("Search plans: %v", err)
	}
	if len(plansOnly) != 1 || plansOnly[0].Type != "plan" {
		t.Errorf("plans scope returned %v, want exactly one plan hit", plansOnly)
	}

	none, err := s.Search("zeppelin", knowledge.ScopeAll)
	if err != nil {
		t.Fatalf("Search miss: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("no-match query returned %d results", len(none))
	}
}
