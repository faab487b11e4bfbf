package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aiknowsys/aiknowsys/internal/knowledge"
)

// IndexFile is the JSON backend's on-disk cache filename.
const IndexFile = "context-index.json"

// snippetRadius bounds the context window extracted around a match.
const snippetRadius = 80

// indexData is the persisted shape of context-index.json. Content is
// deliberately absent: the index is metadata-only and Search re-reads
// the markdown files it points at.
type indexData struct {
	Plans    []knowledge.Plan           `json:"plans"`
	Sessions []knowledge.Session        `json:"sessions"`
	Learned  []knowledge.LearnedPattern `json:"learned"`
}

// JSONIndex is the flat-file backend: a rebuildable metadata cache in
// context-index.json next to the markdown sources.
//
// It performs no locking. Two processes racing on the same index file
// is last-writer-wins, acceptable for the single-developer,
// single-process usage this backend targets.
type JSONIndex struct {
	dir   string
	path  string
	index indexData
}

var _ Adapter = (*JSONIndex)(nil)
var _ StatsReader = (*JSONIndex)(nil)

// NewJSONIndex creates an uninitialized JSON backend.
func NewJSONIndex() *JSONIndex {
	return &JSONIndex{}
}

// Init loads context-index.json from targetDir, creating an empty
// index file if none exists. A corrupt index is reset to empty rather
// than failing: the cache is always reproducible by RebuildIndex.
func (j *JSONIndex) Init(targetDir string) error {
	dir, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving target dir: %w", err)
	}
	j.dir = dir
	j.path = filepath.Join(dir, IndexFile)

	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		j.index = emptyIndex()
		return j.persist()
	}
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}

	if err := json.Unmarshal(data, &j.index); err != nil {
		log.Printf("WARNING: corrupt index %s, starting empty: %v", j.path, err)
		j.index = emptyIndex()
	}
	return nil
}

func emptyIndex() indexData {
	return indexData{
		Plans:    []knowledge.Plan{},
		Sessions: []knowledge.Session{},
		Learned:  []knowledge.LearnedPattern{},
	}
}

// RebuildIndex rescans the markdown source layer and persists the
// whole index back to disk. Per-file failures are collected, never
// fatal.
func (j *JSONIndex) RebuildIndex() (*RebuildResult, error) {
	plans, planWarns := knowledge.ScanPlans(j.dir)
	sessions, sessWarns := knowledge.ScanSessions(j.dir)
	learned, learnWarns := knowledge.ScanLearned(j.dir)

	// Plan ids are unique within a backend. The relational backend
	// enforces this with a UNIQUE constraint; here the first file wins
	// and later collisions are reported and dropped.
	seen := make(map[string]string, len(plans))
	unique := plans[:0]
	for _, p := range plans {
		if prev, ok := seen[p.ID]; ok {
			planWarns = append(planWarns, fmt.Sprintf("%s: duplicate plan id %q (already defined by %s)", p.File, p.ID, prev))
			continue
		}
		seen[p.ID] = p.File
		unique = append(unique, p)
	}
	plans = unique

	// Metadata cache only: drop bodies before persisting.
	for i := range plans {
		plans[i].Content = ""
	}
	for i := range sessions {
		sessions[i].Content = ""
	}
	for i := range learned {
		learned[i].Content = ""
	}

	j.index = indexData{Plans: plans, Sessions: sessions, Learned: learned}
	if j.index.Plans == nil {
		j.index.Plans = []knowledge.Plan{}
	}
	if j.index.Sessions == nil {
		j.index.Sessions = []knowledge.Session{}
	}
	if j.index.Learned == nil {
		j.index.Learned = []knowledge.LearnedPattern{}
	}

	if err := j.persist(); err != nil {
		return nil, err
	}

	result := &RebuildResult{
		Plans:    len(plans),
		Sessions: len(sessions),
		Learned:  len(learned),
	}
	result.Errors = append(result.Errors, planWarns...)
	result.Errors = append(result.Errors, sessWarns...)
	result.Errors = append(result.Errors, learnWarns...)
	return result, nil
}

func (j *JSONIndex) persist() error {
	data, err := json.MarshalIndent(j.index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0o644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}

// QueryPlans filters the in-memory index with AND semantics.
func (j *JSONIndex) QueryPlans(f PlanFilters) ([]knowledge.Plan, error) {
	var out []knowledge.Plan
	for _, p := range j.index.Plans {
		if f.matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// QuerySessions filters the in-memory index with AND semantics.
func (j *JSONIndex) QuerySessions(f SessionFilters) ([]knowledge.Session, error) {
	var out []knowledge.Session
	for _, s := range j.index.Sessions {
		if f.matches(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Search re-reads the markdown content files the index points at (not
// the index itself) for a case-insensitive literal match. Relevance is
// the match count; results come back sorted by relevance descending.
// Unreadable files are skipped.
func (j *JSONIndex) Search(query string, scope knowledge.SearchScope) ([]knowledge.SearchResult, error) {
	needle := strings.ToLower(query)
	var results []knowledge.SearchResult

	scan := func(file, typ string) {
		if !scope.Includes(typ) {
			return
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return
		}
		if r, ok := matchContent(string(content), needle); ok {
			r.File = file
			r.Type = typ
			results = append(results, *r)
		}
	}

	for _, p := range j.index.Plans {
		scan(p.File, "plan")
	}
	for _, s := range j.index.Sessions {
		scan(s.File, "session")
	}
	for _, l := range j.index.Learned {
		scan(l.File, "learned")
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Relevance > results[b].Relevance
	})
	return results, nil
}

// matchContent finds the first case-insensitive occurrence of needle
// and extracts a bounded context window around it.
func matchContent(content, needle string) (*knowledge.SearchResult, bool) {
	lower := strings.ToLower(content)
	idx := strings.Index(lower, needle)
	if idx < 0 {
		return nil, false
	}

	start := idx - snippetRadius
	if start < 0 {
		start = 0
	}
	end := idx + len(needle) + snippetRadius
	if end > len(content) {
		end = len(content)
	}

	return &knowledge.SearchResult{
		Line:      1 + strings.Count(content[:idx], "\n"),
		Context:   strings.TrimSpace(content[start:end]),
		Relevance: float64(strings.Count(lower, needle)),
	}, true
}

// GetStats reports index entry counts and the index file size.
func (j *JSONIndex) GetStats() (*Stats, error) {
	stats := &Stats{
		Plans:    len(j.index.Plans),
		Sessions: len(j.index.Sessions),
		Learned:  len(j.index.Learned),
		Path:     j.path,
	}
	if fi, err := os.Stat(j.path); err == nil {
		stats.FileSize = fi.Size()
	}
	return stats, nil
}

// Close is a no-op for the flat-file backend.
func (j *JSONIndex) Close() error {
	return nil
}
