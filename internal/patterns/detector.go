// Package patterns detects recurring lessons across session history
// and turns them into documented learned-pattern files.
//
// Detection is deliberately ML-free: candidates are clustered by
// Jaccard similarity over lowercase word sets, and a cluster only
// surfaces once it recurs often enough to be worth documenting.
package patterns

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aiknowsys/aiknowsys/internal/knowledge"
)

const (
	// DefaultWindowDays is the trailing window of session history
	// examined by DetectPatterns.
	DefaultWindowDays = 30
	// DefaultMinFrequency is how often a lesson must recur before it
	// surfaces as a pattern.
	DefaultMinFrequency = 3
	// DefaultSimilarity is the Jaccard threshold at which two
	// observations are considered the same lesson.
	DefaultSimilarity = 0.4
)

// Observation is one annotated lesson pulled from a session file.
type Observation struct {
	Text string `json:"text"`
	Date string `json:"date"`
	File string `json:"file"`
}

// Pattern is a cluster of near-duplicate observations. Text is the
// chronologically first member, which keeps output deterministic.
type Pattern struct {
	Text      string   `json:"text"`
	Frequency int      `json:"frequency"`
	LastSeen  string   `json:"last_seen"`
	Keywords  []string `json:"keywords,omitempty"`
}

// DetectOptions tunes the detection pass. Zero values select the
// package defaults.
type DetectOptions struct {
	WindowDays   int
	MinFrequency int
	Similarity   float64
}

// observationLine matches lines explicitly annotated as lessons, e.g.
// "Key Learning: always pin the chalk version" or "- Gotcha: ...".
var observationLine = regexp.MustCompile(
	`(?im)^\s*(?:[-*]\s*)?(?:\*\*)?(?:key\s+learnings?|learned|gotcha)(?:\*\*)?\s*:\s*(.+)$`,
)

// SessionEntry is a session file inside the detection window.
type SessionEntry struct {
	Date    string
	File    string
	Content string
}

var sessionNamePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-session\.md$`)

// LoadRecentSessions returns session files whose filename date falls
// within the trailing windowDays. A missing sessions directory yields
// an empty slice. Unreadable files are skipped.
func LoadRecentSessions(dir string, windowDays int) ([]SessionEntry, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	cutoff := time.Now().AddDate(0, 0, -windowDays).Format(knowledge.DateLayout)

	sessionsDir := filepath.Join(dir, knowledge.SessionsDir)
	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading sessions directory: %w", err)
	}

	var out []SessionEntry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := sessionNamePattern.FindStringSubmatch(e.Name())
		if m == nil || m[1] < cutoff {
			continue
		}
		path := filepath.Join(sessionsDir, e.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		out = append(out, SessionEntry{Date: m[1], File: path, Content: string(content)})
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Date < out[b].Date })
	return out, nil
}

// ExtractObservations pulls annotated lesson lines from session text,
// stripping basic markdown formatting.
func ExtractObservations(content string) []string {
	var out []string
	for _, m := range observationLine.FindAllStringSubmatch(content, -1) {
		if cleaned := cleanMarkdown(m[1]); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

// cleanMarkdown strips basic markdown formatting.
func cleanMarkdown(text string) string {
	text = regexp.MustCompile(`\*\*([^*]+)\*\*`).ReplaceAllString(text, "$1") // bold
	text = regexp.MustCompile("`([^`]+)`").ReplaceAllString(text, "$1")       // inline code
	text = regexp.MustCompile(`\*([^*]+)\*`).ReplaceAllString(text, "$1")     // italic
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// DetectPatterns loads the recent session window, extracts annotated
// observations, clusters near-duplicates, and returns clusters whose
// frequency meets the minimum, most frequent first.
func DetectPatterns(dir string, opts DetectOptions) ([]Pattern, error) {
	if opts.MinFrequency <= 0 {
		opts.MinFrequency = DefaultMinFrequency
	}
	if opts.Similarity <= 0 {
		opts.Similarity = DefaultSimilarity
	}

	sessions, err := LoadRecentSessions(dir, opts.WindowDays)
	if err != nil {
		return nil, err
	}

	// Chronological order makes "first member" a deterministic
	// representative.
	var candidates []Observation
	for _, sess := range sessions {
		for _, text := range ExtractObservations(sess.Content) {
			candidates = append(candidates, Observation{Text: text, Date: sess.Date, File: sess.File})
		}
	}

	clusters := clusterObservations(candidates, opts.Similarity)

	var patterns []Pattern
	for _, members := range clusters {
		if len(members) < opts.MinFrequency {
			continue
		}
		first := members[0]
		lastSeen := first.Date
		for _, m := range members[1:] {
			if m.Date > lastSeen {
				lastSeen = m.Date
			}
		}
		patterns = append(patterns, Pattern{
			Text:      first.Text,
			Frequency: len(members),
			LastSeen:  lastSeen,
			Keywords:  Keywords(first.Text),
		})
	}

	sort.SliceStable(patterns, func(a, b int) bool {
		if patterns[a].Frequency != patterns[b].Frequency {
			return patterns[a].Frequency > patterns[b].Frequency
		}
		return patterns[a].Text < patterns[b].Text
	})
	return patterns, nil
}

// clusterObservations groups candidates via union-find: any pair with
// Jaccard similarity at or above threshold lands in the same cluster.
// Member order within a cluster follows input (chronological) order.
func clusterObservations(candidates []Observation, threshold float64) [][]Observation {
	n := len(candidates)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	sets := make([]map[string]struct{}, n)
	for i, c := range candidates {
		sets[i] = wordSet(c.Text)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if Jaccard(sets[i], sets[j]) >= threshold {
				union(i, j)
			}
		}
	}

	grouped := make(map[int][]Observation)
	var roots []int
	for i, c := range candidates {
		r := find(i)
		if _, seen := grouped[r]; !seen {
			roots = append(roots, r)
		}
		grouped[r] = append(grouped[r], c)
	}

	out := make([][]Observation, 0, len(roots))
	for _, r := range roots {
		out = append(out, grouped[r])
	}
	return out
}

// Jaccard returns intersection-over-union of two word sets. Identical
// sets score 1.0; disjoint sets score 0. Two empty sets score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// Keywords derives a small keyword set from observation text: words of
// four or more characters, deduplicated, capped at eight.
func Keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]{}\"'`")
		if len(w) < 4 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == 8 {
			break
		}
	}
	return out
}
