package patterns_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aiknowsys/aiknowsys/internal/patterns"
)

const lesson = "chalk v5 is ESM-only, pin chalk@4 in CommonJS projects"

func TestTracker_LoadMissingLedger(t *testing.T) {
	tracker := patterns.NewTracker(t.TempDir())
	entries, err := tracker.Load()
	if err != nil {
		t.Fatalf("missing ledger should not error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("missing ledger should be empty, got %v", entries)
	}
}

func TestTracker_CorruptLedgerIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, patterns.HistoryFile)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	tracker := patterns.NewTracker(dir)
	if _, err := tracker.Load(); err == nil {
		t.Fatal("corrupt ledger must error, not silently reset")
	}
}

func TestTracker_TrackPatternIncrements(t *testing.T) {
	tracker := patterns.NewTracker(t.TempDir())

	first, err := tracker.TrackPattern(lesson)
	if err != nil {
		t.Fatalf("TrackPattern: %v", err)
	}
	if first.Frequency != 1 {
		t.Errorf("first Frequency = %d, want 1", first.Frequency)
	}
	if first.Documented {
		t.Error("new entry must not start documented")
	}
	if first.LastSeen == "" {
		t.Error("new entry should carry a last-seen date")
	}

	second, err := tracker.TrackPattern(lesson)
	if err != nil {
		t.Fatalf("second TrackPattern: %v", err)
	}
	if second.Frequency != 2 {
		t.Errorf("second Frequency = %d, want 2", second.Frequency)
	}

	// A different lesson gets its own entry.
	if _, err := tracker.TrackPattern("rotate API keys quarterly"); err != nil {
		t.Fatalf("TrackPattern other: %v", err)
	}
	entries, err := tracker.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ledger has %d entries, want 2", len(entries))
	}
}

func TestTracker_MarkDocumented(t *testing.T) {
	tracker := patterns.NewTracker(t.TempDir())
	if _, err := tracker.TrackPattern(lesson); err != nil {
		t.Fatalf("TrackPattern: %v", err)
	}

	ok, err := tracker.MarkDocumented(lesson)
	if err != nil {
		t.Fatalf("MarkDocumented: %v", err)
	}
	if !ok {
		t.Fatal("MarkDocumented should report true for a tracked pattern")
	}

	documented, err := tracker.Documented(lesson)
	if err != nil {
		t.Fatalf("Documented: %v", err)
	}
	if !documented {
		t.Error("documented flag should persist")
	}
}

func TestTracker_MarkDocumentedUnknownPattern(t *testing.T) {
	tracker := patterns.NewTracker(t.TempDir())
	ok, err := tracker.MarkDocumented("never seen before")
	if err != nil {
		t.Fatalf("unknown pattern must not error: %v", err)
	}
	if ok {
		t.Error("unknown pattern should report false")
	}
}
