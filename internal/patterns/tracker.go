package patterns

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aiknowsys/aiknowsys/internal/knowledge"
)

// HistoryFile is the tracker's ledger filename.
const HistoryFile = "pattern-history.json"

// HistoryEntry records how often a lesson has been seen and whether a
// skill file has already been generated for it.
type HistoryEntry struct {
	Error      string `json:"error"`
	Frequency  int    `json:"frequency"`
	Documented bool   `json:"documented"`
	LastSeen   string `json:"lastSeen"`
}

// Tracker persists per-pattern frequency and documented state in
// pattern-history.json under its directory. It is constructed with an
// explicit directory rather than living as module state, so concurrent
// tests can each use an isolated ledger.
type Tracker struct {
	dir string
}

// NewTracker creates a tracker rooted at dir.
func NewTracker(dir string) *Tracker {
	return &Tracker{dir: dir}
}

func (t *Tracker) path() string {
	return filepath.Join(t.dir, HistoryFile)
}

// Load reads the ledger. A missing file yields an empty ledger; a
// corrupt file is an error since silently resetting would lose
// documented flags and cause duplicate skill generation.
func (t *Tracker) Load() ([]HistoryEntry, error) {
	data, err := os.ReadFile(t.path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading pattern history: %w", err)
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing pattern history: %w", err)
	}
	return entries, nil
}

func (t *Tracker) save(entries []HistoryEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling pattern history: %w", err)
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("creating tracker directory: %w", err)
	}
	if err := os.WriteFile(t.path(), data, 0o644); err != nil {
		return fmt.Errorf("writing pattern history: %w", err)
	}
	return nil
}

// TrackPattern increments the frequency for an exact-text match or
// appends a new entry, and returns the updated entry.
func (t *Tracker) TrackPattern(text string) (*HistoryEntry, error) {
	entries, err := t.Load()
	if err != nil {
		return nil, err
	}

	today := time.Now().Format(knowledge.DateLayout)
	for i := range entries {
		if entries[i].Error == text {
			entries[i].Frequency++
			entries[i].LastSeen = today
			if err := t.save(entries); err != nil {
				return nil, err
			}
			return &entries[i], nil
		}
	}

	entry := HistoryEntry{Error: text, Frequency: 1, LastSeen: today}
	entries = append(entries, entry)
	if err := t.save(entries); err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkDocumented flips the documented flag for an exact-text match so
// later runs skip regeneration. Returns false (not an error) when the
// pattern was never tracked.
func (t *Tracker) MarkDocumented(text string) (bool, error) {
	entries, err := t.Load()
	if err != nil {
		return false, err
	}
	for i := range entries {
		if entries[i].Error == text {
			entries[i].Documented = true
			if err := t.save(entries); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// Documented reports whether a skill has already been generated for
// the exact pattern text.
func (t *Tracker) Documented(text string) (bool, error) {
	entries, err := t.Load()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Error == text {
			return e.Documented, nil
		}
	}
	return false, nil
}
