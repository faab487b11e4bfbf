package patterns

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aiknowsys/aiknowsys/internal/knowledge"
)

// SkillPattern is the input for materializing a detected pattern into
// a learned-pattern markdown file.
type SkillPattern struct {
	Error      string   `json:"error"`
	Frequency  int      `json:"frequency"`
	Keywords   []string `json:"keywords,omitempty"`
	Resolution string   `json:"resolution,omitempty"`
	Examples   []string `json:"examples,omitempty"`
}

// SkillResult reports whether a skill file was created or already
// existed. Existed means the file was left byte-for-byte untouched.
type SkillResult struct {
	Created bool   `json:"created"`
	Existed bool   `json:"existed"`
	Path    string `json:"path"`
}

// CreateLearnedSkill writes learned/<slug>.md for the pattern. The
// operation is idempotent: an existing file with the same slug is
// never overwritten.
func CreateLearnedSkill(dir string, p SkillPattern) (*SkillResult, error) {
	if strings.TrimSpace(p.Error) == "" {
		return nil, knowledge.Invalidf("error", "pattern text must not be empty")
	}

	slug := Slugify(p.Error)
	learnedDir := filepath.Join(dir, knowledge.LearnedDir)
	path := filepath.Join(learnedDir, slug+".md")

	if _, err := os.Stat(path); err == nil {
		return &SkillResult{Existed: true, Path: path}, nil
	}

	if err := os.MkdirAll(learnedDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating learned directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(renderSkill(p)), 0o644); err != nil {
		return nil, fmt.Errorf("writing skill file: %w", err)
	}
	return &SkillResult{Created: true, Path: path}, nil
}

// renderSkill produces the fixed learned-pattern template.
func renderSkill(p SkillPattern) string {
	var b strings.Builder

	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %s\n", yamlEscape(p.Error))
	b.WriteString("category: learned\n")
	if len(p.Keywords) > 0 {
		fmt.Fprintf(&b, "keywords: [%s]\n", strings.Join(p.Keywords, ", "))
	}
	fmt.Fprintf(&b, "created: %s\n", time.Now().Format(knowledge.DateLayout))
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# %s\n\n", p.Error)
	fmt.Fprintf(&b, "Observed %d times across recent sessions.\n\n", p.Frequency)

	b.WriteString("## Trigger words\n\n")
	if len(p.Keywords) > 0 {
		for _, k := range p.Keywords {
			fmt.Fprintf(&b, "- %s\n", k)
		}
	} else {
		b.WriteString("- (none recorded)\n")
	}
	b.WriteString("\n")

	b.WriteString("## Resolution\n\n")
	if p.Resolution != "" {
		b.WriteString(p.Resolution + "\n")
	} else {
		b.WriteString("Document the fix here.\n")
	}
	b.WriteString("\n")

	b.WriteString("## Examples\n\n")
	if len(p.Examples) > 0 {
		for _, ex := range p.Examples {
			fmt.Fprintf(&b, "- %s\n", ex)
		}
	} else {
		b.WriteString("- (add worked examples)\n")
	}

	return b.String()
}

// yamlEscape quotes a scalar when it contains characters that would
// change its YAML meaning.
func yamlEscape(s string) string {
	if strings.ContainsAny(s, ":#{}[]&*!|>'\"%@`") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify renders text as a lowercase, hyphenated, filesystem-safe
// name, capped at 60 characters.
func Slugify(text string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(text), "-")
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = s[:60]
		s = strings.Trim(s, "-")
	}
	if s == "" {
		s = "pattern"
	}
	return s
}
