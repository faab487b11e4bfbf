package patterns_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aiknowsys/aiknowsys/internal/patterns"
)

// wideWindow makes the fixed fixture dates fall inside the detection
// window regardless of when the tests run.
const wideWindow = 36500

func writeSession(t *testing.T, dir, date, content string) {
	t.Helper()
	sessionsDir := filepath.Join(dir, "sessions")
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(sessionsDir, date+"-session.md")
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newChalkSessions writes three sessions carrying near-duplicate
// phrasings of the same lesson, plus one unique observation.
func newChalkSessions(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeSession(t, dir, "2026-01-20",
		"## Notes\n\nKey Learning: chalk v5 is ESM-only, pin chalk@4 in CommonJS projects\n")
	writeSession(t, dir, "2026-01-25",
		"Key Learning: chalk v5 is ESM only so pin chalk@4 for CommonJS projects\n")
	writeSession(t, dir, "2026-01-30",
		"Key Learning: pin chalk@4, chalk v5 is ESM-only in CommonJS\n\nGotcha: forgot to run migrations before deploy\n")
	return dir
}

// ─── Extraction ─────────────────────────────────────────────────────────────

func TestExtractObservations(t *testing.T) {
	content := `# Session

Some narrative text that is not annotated.

- **Key Learning**: use ` + "`t.TempDir`" + ` in tests
* Learned: WAL mode needs a busy timeout
Gotcha: the trigger fires per row

Key Learnings: plural annotation also counts
`
	got := patterns.ExtractObservations(content)
	want := []string{
		"use t.TempDir in tests",
		"WAL mode needs a busy timeout",
		"the trigger fires per row",
		"plural annotation also counts",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d observations %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("observation[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractObservations_NoAnnotations(t *testing.T) {
	if got := patterns.ExtractObservations("plain prose without annotations\n"); len(got) != 0 {
		t.Errorf("expected none, got %v", got)
	}
}

// ─── Similarity ─────────────────────────────────────────────────────────────

func TestJaccard(t *testing.T) {
	set := func(words ...string) map[string]struct{} {
		m := make(map[string]struct{})
		for _, w := range words {
			m[w] = struct{}{}
		}
		return m
	}

	a := set("pin", "the", "chalk", "version")
	if got := patterns.Jaccard(a, a); got != 1.0 {
		t.Errorf("identical sets = %v, want 1.0", got)
	}
	if got := patterns.Jaccard(a, set("rotate", "api", "keys")); got != 0 {
		t.Errorf("disjoint sets = %v, want 0", got)
	}
	if got := patterns.Jaccard(set(), set()); got != 0 {
		t.Errorf("empty sets = %v, want 0", got)
	}
	// 2 shared of 6 total distinct words.
	got := patterns.Jaccard(set("a", "b", "c", "d"), set("c", "d", "e", "f"))
	if got != 2.0/6.0 {
		t.Errorf("partial overlap = %v, want %v", got, 2.0/6.0)
	}
}

// ─── Detection ──────────────────────────────────────────────────────────────

func TestDetectPatterns_ClustersNearDuplicates(t *testing.T) {
	dir := newChalkSessions(t)

	found, err := patterns.DetectPatterns(dir, patterns.DetectOptions{WindowDays: wideWindow})
	if err != nil {
		t.Fatalf("DetectPatterns: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("got %d patterns %v, want exactly the chalk cluster", len(found), found)
	}
	p := found[0]
	if p.Frequency != 3 {
		t.Errorf("Frequency = %d, want 3", p.Frequency)
	}
	// Representative text is the chronologically first phrasing.
	if p.Text != "chalk v5 is ESM-only, pin chalk@4 in CommonJS projects" {
		t.Errorf("Text = %q, want the first observation", p.Text)
	}
	if p.LastSeen != "2026-01-30" {
		t.Errorf("LastSeen = %q, want 2026-01-30", p.LastSeen)
	}
	if len(p.Keywords) == 0 {
		t.Error("pattern should carry keywords")
	}
}

func TestDetectPatterns_ThresholdExcludesRarePatterns(t *testing.T) {
	dir := newChalkSessions(t)

	// The unique migration gotcha appears once and stays below the
	// default threshold of three.
	found, err := patterns.DetectPatterns(dir, patterns.DetectOptions{WindowDays: wideWindow, MinFrequency: 1})
	if err != nil {
		t.Fatalf("DetectPatterns: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("with threshold 1, got %d patterns %v, want 2", len(found), found)
	}
	// Most frequent first.
	if found[0].Frequency < found[1].Frequency {
		t.Error("patterns should be sorted by frequency descending")
	}

	found, err = patterns.DetectPatterns(dir, patterns.DetectOptions{WindowDays: wideWindow, MinFrequency: 4})
	if err != nil {
		t.Fatalf("DetectPatterns: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("threshold 4 should exclude the frequency-3 cluster, got %v", found)
	}
}

func TestDetectPatterns_EmptyDirectory(t *testing.T) {
	found, err := patterns.DetectPatterns(t.TempDir(), patterns.DetectOptions{WindowDays: wideWindow})
	if err != nil {
		t.Fatalf("DetectPatterns: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("no sessions should yield no patterns, got %v", found)
	}
}

func TestLoadRecentSessions_WindowExcludesOldFiles(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "2026-01-20", "old\n")

	// A one-day window placed today cannot include a fixed past date.
	sessions, err := patterns.LoadRecentSessions(dir, 1)
	if err != nil {
		t.Fatalf("LoadRecentSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected the old session to fall outside the window, got %v", sessions)
	}

	sessions, err = patterns.LoadRecentSessions(dir, wideWindow)
	if err != nil {
		t.Fatalf("LoadRecentSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("wide window should include the session, got %d", len(sessions))
	}
}

func TestKeywords(t *testing.T) {
	got := patterns.Keywords("Pin the chalk version to v4 because chalk v5 is ESM-only")
	for _, k := range got {
		if len(k) < 4 {
			t.Errorf("keyword %q is shorter than four characters", k)
		}
	}
	seen := map[string]bool{}
	for _, k := range got {
		if seen[k] {
			t.Errorf("duplicate keyword %q", k)
		}
		seen[k] = true
	}
	if len(got) > 8 {
		t.Errorf("keywords should cap at eight, got %d", len(got))
	}
	if !seen["chalk"] {
		t.Errorf("expected chalk among keywords, got %v", got)
	}
}
