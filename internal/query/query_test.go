package query_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aiknowsys/aiknowsys/internal/knowledge"
	"github.com/aiknowsys/aiknowsys/internal/query"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// newIndexedDir builds a markdown tree and rebuilds the JSON index over
// it so the facade has something to query.
func newIndexedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "PLAN_auth-refactor.md", `---
title: Auth refactor
status: ACTIVE
author: kim
created: 2026-01-10
topics: [auth]
---

Move token handling into middleware.
`)
	writeFile(t, dir, "sessions/2026-01-15-session.md", "---\ntopic: kickoff\n---\nFirst session.\n")
	writeFile(t, dir, "sessions/2026-02-05-session.md", "---\ntopic: indexing\n---\nIndex work.\n")
	writeFile(t, dir, "sessions/2026-02-06-session.md", "---\ntopic: cleanup\n---\nCleanup pass.\n")

	if _, err := query.Rebuild(dir, "json"); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return dir
}

// ─── Validation ─────────────────────────────────────────────────────────────

func TestPlans_RejectsBadStatus(t *testing.T) {
	_, err := query.Plans(t.TempDir(), query.PlanQuery{Status: "SHIPPED", Backend: "json"})
	var verr *knowledge.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if verr.Field != "status" {
		t.Errorf("Field = %q, want status", verr.Field)
	}
}

func TestPlans_RejectsBadDate(t *testing.T) {
	_, err := query.Plans(t.TempDir(), query.PlanQuery{DateAfter: "Feb 5", Backend: "json"})
	var verr *knowledge.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestSessions_RejectsNegativeWindow(t *testing.T) {
	_, err := query.Sessions(t.TempDir(), query.SessionQuery{LastNDays: -1, Backend: "json"})
	var verr *knowledge.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestSearch_RejectsEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   "} {
		_, err := query.Search(t.TempDir(), query.SearchQuery{Query: q, Backend: "json"})
		var verr *knowledge.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("query %q: expected a validation error, got %v", q, err)
		}
	}
}

func TestSearch_RejectsBadScope(t *testing.T) {
	_, err := query.Search(t.TempDir(), query.SearchQuery{Query: "x", Scope: "everything", Backend: "json"})
	var verr *knowledge.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

// Validation must fail before any backend file is touched.
func TestValidation_BeforeBackendIO(t *testing.T) {
	dir := t.TempDir()
	if _, err := query.Plans(dir, query.PlanQuery{Status: "bogus", Backend: "json"}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(filepath.Join(dir, "context-index.json")); !os.IsNotExist(err) {
		t.Error("rejected query should not have created an index file")
	}
}

// ─── Queries ────────────────────────────────────────────────────────────────

func TestPlans_Roundtrip(t *testing.T) {
	dir := newIndexedDir(t)

	res, err := query.Plans(dir, query.PlanQuery{Status: "ACTIVE", Backend: "json"})
	if err != nil {
		t.Fatalf("Plans: %v", err)
	}
	if res.Count != 1 || len(res.Plans) != 1 {
		t.Fatalf("Count = %d with %d plans, want 1/1", res.Count, len(res.Plans))
	}
	if res.Plans[0].ID != "auth-refactor" {
		t.Errorf("ID = %q, want auth-refactor", res.Plans[0].ID)
	}
}

func TestSessions_DateAfterSortedDescending(t *testing.T) {
	dir := newIndexedDir(t)

	res, err := query.Sessions(dir, query.SessionQuery{DateAfter: "2026-02-01", Backend: "json"})
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if res.Count != 2 {
		t.Fatalf("Count = %d, want 2", res.Count)
	}
	if res.Sessions[0].Date != "2026-02-06" || res.Sessions[1].Date != "2026-02-05" {
		t.Errorf("dates = [%s, %s], want newest first", res.Sessions[0].Date, res.Sessions[1].Date)
	}
}

func TestSessions_LastNDaysComputesCutoff(t *testing.T) {
	dir := newIndexedDir(t)
	restore := query.SetNow(func() time.Time {
		return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	})
	defer restore()

	res, err := query.Sessions(dir, query.SessionQuery{LastNDays: 7, Backend: "json"})
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	// Cutoff 2026-02-03: the January session falls outside the window.
	if res.Count != 2 {
		t.Fatalf("Count = %d, want the two February sessions", res.Count)
	}
	for _, s := range res.Sessions {
		if s.Date < "2026-02-03" {
			t.Errorf("session %s should be outside the 7-day window", s.Date)
		}
	}
}

func TestSessions_ExplicitDateAfterWinsOverWindow(t *testing.T) {
	dir := newIndexedDir(t)
	restore := query.SetNow(func() time.Time {
		return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	})
	defer restore()

	res, err := query.Sessions(dir, query.SessionQuery{
		DateAfter: "2026-02-05",
		LastNDays: 365,
		Backend:   "json",
	})
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if res.Count != 1 || res.Sessions[0].Date != "2026-02-06" {
		t.Errorf("explicit dateAfter should win over the window, got %+v", res.Sessions)
	}
}

func TestSearch_DefaultScopeIsAll(t *testing.T) {
	dir := newIndexedDir(t)

	res, err := query.Search(dir, query.SearchQuery{Query: "middleware", Backend: "json"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Count != 1 || res.Results[0].Type != "plan" {
		t.Errorf("expected one plan hit, got %+v", res.Results)
	}
}

func TestRebuildAndStats(t *testing.T) {
	dir := newIndexedDir(t)

	result, err := query.Rebuild(dir, "json")
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if result.Plans != 1 || result.Sessions != 3 {
		t.Errorf("rebuild = %d plans / %d sessions, want 1/3", result.Plans, result.Sessions)
	}

	stats, err := query.Stats(dir, "json")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Plans != 1 || stats.Sessions != 3 {
		t.Errorf("stats = %d plans / %d sessions, want 1/3", stats.Plans, stats.Sessions)
	}
}
