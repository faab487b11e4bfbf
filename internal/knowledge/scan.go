package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Directory and filename conventions for the markdown source layer.
const (
	PlansDir    = "plans"
	SessionsDir = "sessions"
	LearnedDir  = "learned"
	PlanPrefix  = "PLAN_"
)

// sessionFilePattern matches sessions/YYYY-MM-DD-session.md and captures
// the date.
var sessionFilePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-session\.md$`)

// PlanIDFromFile derives a plan's ID from its filename:
// PLAN_auth-refactor.md → auth-refactor, plans/active-kim.md → active-kim.
func PlanIDFromFile(name string) string {
	id := strings.TrimSuffix(filepath.Base(name), ".md")
	return strings.TrimPrefix(id, PlanPrefix)
}

type planFrontmatter struct {
	Title   string     `yaml:"title"`
	Status  PlanStatus `yaml:"status"`
	Author  string     `yaml:"author"`
	Created string     `yaml:"created"`
	Updated string     `yaml:"updated"`
	Topics  stringList `yaml:"topics"`
}

type sessionFrontmatter struct {
	Topic  string     `yaml:"topic"`
	Plan   string     `yaml:"plan"`
	Phases stringList `yaml:"phases"`
	Topics stringList `yaml:"topics"`
}

type learnedFrontmatter struct {
	Category string     `yaml:"category"`
	Title    string     `yaml:"title"`
	Keywords stringList `yaml:"keywords"`
	Created  string     `yaml:"created"`
}

// ScanPlans walks root for PLAN_*.md files and root/plans/ for pointer
// files, parsing each into a Plan. Per-file parse failures are skipped
// and reported as warnings; a bad file never aborts the scan.
func ScanPlans(root string) ([]Plan, []string) {
	var plans []Plan
	var warnings []string

	var candidates []string
	if entries, err := os.ReadDir(root); err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.HasPrefix(e.Name(), PlanPrefix) && strings.HasSuffix(e.Name(), ".md") {
				candidates = append(candidates, filepath.Join(root, e.Name()))
			}
		}
	}
	if entries, err := os.ReadDir(filepath.Join(root, PlansDir)); err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
				candidates = append(candidates, filepath.Join(root, PlansDir, e.Name()))
			}
		}
	}

	for _, path := range candidates {
		plan, err := parsePlanFile(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		plans = append(plans, *plan)
	}
	return plans, warnings
}

func parsePlanFile(path string) (*Plan, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fm planFrontmatter
	body, err := DecodeFrontmatter(content, &fm)
	if err != nil {
		return nil, err
	}
	if !fm.Status.Valid() {
		return nil, Invalidf("status", "unknown plan status %q", fm.Status)
	}

	plan := &Plan{
		ID:      PlanIDFromFile(path),
		Title:   fm.Title,
		Status:  fm.Status,
		Author:  fm.Author,
		Created: fm.Created,
		Updated: fm.Updated,
		Topics:  fm.Topics,
		File:    path,
		Content: body,
	}
	if plan.Title == "" {
		plan.Title = plan.ID
	}
	return plan, nil
}

// ScanSessions walks root/sessions/ for YYYY-MM-DD-session.md files.
// The filename date is authoritative; frontmatter adds topic, plan
// reference, phases, and topics.
func ScanSessions(root string) ([]Session, []string) {
	var sessions []Session
	var warnings []string

	dir := filepath.Join(root, SessionsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil // no sessions directory is legal
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := sessionFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		path := filepath.Join(dir, e.Name())
		sess, err := parseSessionFile(path, m[1])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		sessions = append(sessions, *sess)
	}
	return sessions, warnings
}

func parseSessionFile(path, date string) (*Session, error) {
	if !ValidDate(date) {
		return nil, Invalidf("date", "filename date %q is not a calendar date", date)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fm sessionFrontmatter
	body, err := DecodeFrontmatter(content, &fm)
	if err != nil {
		return nil, err
	}

	return &Session{
		Date:    date,
		Topic:   fm.Topic,
		Plan:    fm.Plan,
		Phases:  fm.Phases,
		Topics:  fm.Topics,
		File:    path,
		Content: body,
	}, nil
}

// ScanLearned walks root/learned/ for <slug>.md files.
func ScanLearned(root string) ([]LearnedPattern, []string) {
	var learned []LearnedPattern
	var warnings []string

	dir := filepath.Join(root, LearnedDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		lp, err := parseLearnedFile(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		learned = append(learned, *lp)
	}
	return learned, warnings
}

func parseLearnedFile(path string) (*LearnedPattern, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fm learnedFrontmatter
	body, err := DecodeFrontmatter(content, &fm)
	if err != nil {
		return nil, err
	}

	lp := &LearnedPattern{
		ID:       strings.TrimSuffix(filepath.Base(path), ".md"),
		Category: fm.Category,
		Title:    fm.Title,
		Content:  body,
		Keywords: fm.Keywords,
		Created:  fm.Created,
		File:     path,
	}
	if lp.Title == "" {
		lp.Title = lp.ID
	}
	return lp, nil
}
