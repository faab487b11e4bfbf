package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/aiknowsys/aiknowsys/internal/knowledge"
	"github.com/aiknowsys/aiknowsys/internal/locate"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Snippet bounds around the first match in SQLite search results.
const (
	snippetBefore = 50
	snippetAfter  = 100
)

// sqliteSchema creates the base tables, the FTS5 virtual tables, and
// the triggers that keep each FTS table synchronized with its base
// table. FTS tables are never written directly, only via triggers.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		path       TEXT NOT NULL,
		tech_stack TEXT,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS plans (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_id    TEXT NOT NULL,
		project_id TEXT NOT NULL,
		title      TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'PLANNED',
		author     TEXT,
		created    TEXT,
		updated    TEXT,
		topics     TEXT,
		file       TEXT,
		content    TEXT,
		UNIQUE (plan_id, project_id),
		FOREIGN KEY (project_id) REFERENCES projects(id)
	);

	CREATE INDEX IF NOT EXISTS idx_plans_status  ON plans(status);
	CREATE INDEX IF NOT EXISTS idx_plans_project ON plans(project_id);

	CREATE TABLE IF NOT EXISTS sessions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		date       TEXT NOT NULL,
		project_id TEXT NOT NULL,
		topic      TEXT,
		plan_id    TEXT,
		phases     TEXT,
		topics     TEXT,
		file       TEXT,
		content    TEXT,
		UNIQUE (date, project_id),
		FOREIGN KEY (project_id) REFERENCES projects(id)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_date    ON sessions(date DESC);
	CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id);

	CREATE TABLE IF NOT EXISTS patterns (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		slug       TEXT NOT NULL,
		project_id TEXT NOT NULL,
		category   TEXT,
		title      TEXT NOT NULL,
		content    TEXT,
		keywords   TEXT,
		created    TEXT,
		file       TEXT,
		UNIQUE (slug, project_id),
		FOREIGN KEY (project_id) REFERENCES projects(id)
	);

	CREATE INDEX IF NOT EXISTS idx_patterns_project ON patterns(project_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS plans_fts USING fts5(
		title, content, topics,
		content='plans',
		content_rowid='id'
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS sessions_fts USING fts5(
		topic, content, topics,
		content='sessions',
		content_rowid='id'
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS patterns_fts USING fts5(
		title, content, keywords,
		content='patterns',
		content_rowid='id'
	);

	CREATE TRIGGER IF NOT EXISTS plans_fts_insert AFTER INSERT ON plans BEGIN
		INSERT INTO plans_fts(rowid, title, content, topics)
		VALUES (new.id, new.title, new.content, new.topics);
	END;

	CREATE TRIGGER IF NOT EXISTS plans_fts_delete AFTER DELETE ON plans BEGIN
		INSERT INTO plans_fts(plans_fts, rowid, title, content, topics)
		VALUES ('delete', old.id, old.title, old.content, old.topics);
	END;

	CREATE TRIGGER IF NOT EXISTS plans_fts_update AFTER UPDATE ON plans BEGIN
		INSERT INTO plans_fts(plans_fts, rowid, title, content, topics)
		VALUES ('delete', old.id, old.title, old.content, old.topics);
		INSERT INTO plans_fts(rowid, title, content, topics)
		VALUES (new.id, new.title, new.content, new.topics);
	END;

	CREATE TRIGGER IF NOT EXISTS sessions_fts_insert AFTER INSERT ON sessions BEGIN
		INSERT INTO sessions_fts(rowid, topic, content, topics)
		VALUES (new.id, new.topic, new.content, new.topics);
	END;

	CREATE TRIGGER IF NOT EXISTS sessions_fts_delete AFTER DELETE ON sessions BEGIN
		INSERT INTO sessions_fts(sessions_fts, rowid, topic, content, topics)
		VALUES ('delete', old.id, old.topic, old.content, old.topics);
	END;

	CREATE TRIGGER IF NOT EXISTS sessions_fts_update AFTER UPDATE ON sessions BEGIN
		INSERT INTO sessions_fts(sessions_fts, rowid, topic, content, topics)
		VALUES ('delete', old.id, old.topic, old.content, old.topics);
		INSERT INTO sessions_fts(rowid, topic, content, topics)
		VALUES (new.id, new.topic, new.content, new.topics);
	END;

	CREATE TRIGGER IF NOT EXISTS patterns_fts_insert AFTER INSERT ON patterns BEGIN
		INSERT INTO patterns_fts(rowid, title, content, keywords)
		VALUES (new.id, new.title, new.content, new.keywords);
	END;

	CREATE TRIGGER IF NOT EXISTS patterns_fts_delete AFTER DELETE ON patterns BEGIN
		INSERT INTO patterns_fts(patterns_fts, rowid, title, content, keywords)
		VALUES ('delete', old.id, old.title, old.content, old.keywords);
	END;

	CREATE TRIGGER IF NOT EXISTS patterns_fts_update AFTER UPDATE ON patterns BEGIN
		INSERT INTO patterns_fts(patterns_fts, rowid, title, content, keywords)
		VALUES ('delete', old.id, old.title, old.content, old.keywords);
		INSERT INTO patterns_fts(rowid, title, content, keywords)
		VALUES (new.id, new.title, new.content, new.keywords);
	END;
`

// SQLite is the relational backend. Rows are scoped to a project so
// one database can serve several repositories. It relies on SQLite's
// native file locking; no extra coordination is added here.
type SQLite struct {
	db        *sql.DB
	path      string
	dir       string
	projectID string
}

var _ Adapter = (*SQLite)(nil)
var _ StatsReader = (*SQLite)(nil)

// NewSQLite creates an uninitialized SQLite backend for the database
// at dbPath.
func NewSQLite(dbPath string) *SQLite {
	return &SQLite{path: dbPath}
}

// Init opens or creates the database, applies pragmas and the schema
// (tables, FTS5 virtual tables, sync triggers), and registers the
// target directory's project.
func (s *SQLite) Init(targetDir string) error {
	dir, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving target dir: %w", err)
	}
	s.dir = dir
	s.projectID = locate.ProjectID(dir)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating database dir: %w", err)
	}

	db, err := openDB("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	name := s.projectID
	if cfg := locate.LoadConfig(dir); cfg.ProjectName != "" {
		name = cfg.ProjectName
	}
	return s.InsertProject(s.projectID, name, dir, nil)
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertProject upserts a project row. techStack is stored as JSON.
func (s *SQLite) InsertProject(id, name, path string, techStack map[string]string) error {
	stack, err := marshalNullable(techStack)
	if err != nil {
		return fmt.Errorf("marshaling tech stack: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO projects (id, name, path, tech_stack) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   path = excluded.path,
		   tech_stack = COALESCE(excluded.tech_stack, projects.tech_stack),
		   updated_at = datetime('now')`,
		id, name, path, stack,
	)
	if err != nil {
		return fmt.Errorf("upserting project %q: %w", id, err)
	}
	return nil
}

// InsertPlan upserts a plan row keyed on (plan_id, project_id). Used
// by migration and bulk-load paths, not the normal query flow.
func (s *SQLite) InsertPlan(p knowledge.Plan) error {
	topics, err := marshalNullable(p.Topics)
	if err != nil {
		return fmt.Errorf("marshaling topics: %w", err)
	}
	status := p.Status
	if status == "" {
		status = knowledge.StatusPlanned
	}
	if !status.Valid() {
		return knowledge.Invalidf("status", "unknown plan status %q", status)
	}

	_, err = s.db.Exec(
		`INSERT INTO plans (plan_id, project_id, title, status, author, created, updated, topics, file, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(plan_id, project_id) DO UPDATE SET
		   title = excluded.title,
		   status = excluded.status,
		   author = excluded.author,
		   created = excluded.created,
		   updated = excluded.updated,
		   topics = excluded.topics,
		   file = excluded.file,
		   content = excluded.content`,
		p.ID, s.projectID, p.Title, string(status),
		nullable(p.Author), nullable(p.Created), nullable(p.Updated),
		topics, nullable(p.File), nullable(p.Content),
	)
	if err != nil {
		return fmt.Errorf("upserting plan %q: %w", p.ID, err)
	}
	return nil
}

// InsertSession upserts a session row keyed on (date, project_id).
func (s *SQLite) InsertSession(sess knowledge.Session) error {
	if !knowledge.ValidDate(sess.Date) {
		return knowledge.Invalidf("date", "%q is not YYYY-MM-DD", sess.Date)
	}
	phases, err := marshalNullable(sess.Phases)
	if err != nil {
		return fmt.Errorf("marshaling phases: %w", err)
	}
	topics, err := marshalNullable(sess.Topics)
	if err != nil {
		return fmt.Errorf("marshaling topics: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO sessions (date, project_id, topic, plan_id, phases, topics, file, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date, project_id) DO UPDATE SET
		   topic = excluded.topic,
		   plan_id = excluded.plan_id,
		   phases = excluded.phases,
		   topics = excluded.topics,
		   file = excluded.file,
		   content = excluded.content`,
		sess.Date, s.projectID,
		nullable(sess.Topic), nullable(sess.Plan),
		phases, topics, nullable(sess.File), nullable(sess.Content),
	)
	if err != nil {
		return fmt.Errorf("upserting session %s: %w", sess.Date, err)
	}
	return nil
}

// InsertPattern upserts a learned pattern keyed on (slug, project_id).
func (s *SQLite) InsertPattern(lp knowledge.LearnedPattern) error {
	keywords, err := marshalNullable(lp.Keywords)
	if err != nil {
		return fmt.Errorf("marshaling keywords: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO patterns (slug, project_id, category, title, content, keywords, created, file)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(slug, project_id) DO UPDATE SET
		   category = excluded.category,
		   title = excluded.title,
		   content = excluded.content,
		   keywords = excluded.keywords,
		   created = excluded.created,
		   file = excluded.file`,
		lp.ID, s.projectID,
		nullable(lp.Category), lp.Title, nullable(lp.Content),
		keywords, nullable(lp.Created), nullable(lp.File),
	)
	if err != nil {
		return fmt.Errorf("upserting pattern %q: %w", lp.ID, err)
	}
	return nil
}

// QueryPlans returns plans for this project matching all filters.
// The metadata-only mode (default) never reads the content column.
func (s *SQLite) QueryPlans(f PlanFilters) ([]knowledge.Plan, error) {
	cols := "plan_id, title, status, author, created, updated, topics, file"
	if f.IncludeContent {
		cols += ", content"
	}

	query := "SELECT " + cols + " FROM plans WHERE project_id = ?"
	args := []any{s.projectID}

	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.Author != "" {
		query += " AND author = ?"
		args = append(args, f.Author)
	}
	query += " ORDER BY plan_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rows.Close()

	var out []knowledge.Plan
	for rows.Next() {
		var p knowledge.Plan
		var author, created, updated, topics, file, content sql.NullString
		dest := []any{&p.ID, &p.Title, &p.Status, &author, &created, &updated, &topics, &file}
		if f.IncludeContent {
			dest = append(dest, &content)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		p.Author = author.String
		p.Created = created.String
		p.Updated = updated.String
		p.File = file.String
		p.Content = content.String
		p.Topics = unmarshalList(topics)

		// Topic matching shares the JSON backend's substring+fuzzy
		// semantics, so it stays in Go rather than SQL LIKE.
		if f.Topic != "" && !topicMatches(f.Topic, p.Topics, p.Title) {
			continue
		}
		if !dateInRange(p.Created, f.DateAfter, f.DateBefore) {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// QuerySessions returns sessions for this project matching all filters.
func (s *SQLite) QuerySessions(f SessionFilters) ([]knowledge.Session, error) {
	cols := "date, topic, plan_id, phases, topics, file"
	if f.IncludeContent {
		cols += ", content"
	}

	query := "SELECT " + cols + " FROM sessions WHERE project_id = ?"
	args := []any{s.projectID}

	if f.Plan != "" {
		query += " AND plan_id = ?"
		args = append(args, f.Plan)
	}
	if f.DateAfter != "" {
		query += " AND date > ?"
		args = append(args, f.DateAfter)
	}
	if f.DateBefore != "" {
		query += " AND date < ?"
		args = append(args, f.DateBefore)
	}
	query += " ORDER BY date DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []knowledge.Session
	for rows.Next() {
		var sess knowledge.Session
		var topic, plan, phases, topics, file, content sql.NullString
		dest := []any{&sess.Date, &topic, &plan, &phases, &topics, &file}
		if f.IncludeContent {
			dest = append(dest, &content)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		sess.Topic = topic.String
		sess.Plan = plan.String
		sess.File = file.String
		sess.Content = content.String
		sess.Phases = unmarshalList(phases)
		sess.Topics = unmarshalList(topics)

		if f.Topic != "" && !topicMatches(f.Topic, sess.Topics, sess.Topic) {
			continue
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Search scans stored content for a case-insensitive substring match
// and extracts a snippet around the first occurrence. The relevance
// score is a fixed constant: the FTS5 tables exist in the schema but
// their ranking is not wired into search output.
func (s *SQLite) Search(query string, scope knowledge.SearchScope) ([]knowledge.SearchResult, error) {
	needle := strings.ToLower(query)
	var results []knowledge.SearchResult

	scan := func(sqlStr, typ string) error {
		if !scope.Includes(typ) {
			return nil
		}
		rows, err := s.db.Query(sqlStr, s.projectID)
		if err != nil {
			return fmt.Errorf("search %s: %w", typ, err)
		}
		defer rows.Close()

		for rows.Next() {
			var file, content sql.NullString
			if err := rows.Scan(&file, &content); err != nil {
				return err
			}
			if r, ok := sqliteMatch(content.String, needle); ok {
				r.File = file.String
				r.Type = typ
				results = append(results, *r)
			}
		}
		return rows.Err()
	}

	if err := scan("SELECT file, content FROM plans WHERE project_id = ? AND content IS NOT NULL", "plan"); err != nil {
		return nil, err
	}
	if err := scan("SELECT file, content FROM sessions WHERE project_id = ? AND content IS NOT NULL", "session"); err != nil {
		return nil, err
	}
	if err := scan("SELECT file, content FROM patterns WHERE project_id = ? AND content IS NOT NULL", "learned"); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Relevance > results[b].Relevance
	})
	return results, nil
}

func sqliteMatch(content, needle string) (*knowledge.SearchResult, bool) {
	lower := strings.ToLower(content)
	idx := strings.Index(lower, needle)
	if idx < 0 {
		return nil, false
	}

	start := idx - snippetBefore
	if start < 0 {
		start = 0
	}
	end := idx + len(needle) + snippetAfter
	if end > len(content) {
		end = len(content)
	}

	return &knowledge.SearchResult{
		Line:      1 + strings.Count(content[:idx], "\n"),
		Context:   strings.TrimSpace(content[start:end]),
		Relevance: 1.0,
	}, true
}

// RebuildIndex rescans the markdown source layer and replaces this
// project's rows inside one transaction. FTS tables follow via
// triggers. Removal of rows whose backing file disappeared happens
// implicitly: the delete-and-reinsert omits them.
func (s *SQLite) RebuildIndex() (*RebuildResult, error) {
	plans, planWarns := knowledge.ScanPlans(s.dir)
	sessions, sessWarns := knowledge.ScanSessions(s.dir)
	learned, learnWarns := knowledge.ScanLearned(s.dir)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("rebuild: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"plans", "sessions", "patterns"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE project_id = ?", s.projectID); err != nil {
			return nil, fmt.Errorf("rebuild: clearing %s: %w", table, err)
		}
	}

	result := &RebuildResult{}
	result.Errors = append(result.Errors, planWarns...)
	result.Errors = append(result.Errors, sessWarns...)
	result.Errors = append(result.Errors, learnWarns...)

	for _, p := range plans {
		if err := insertPlanTx(tx, s.projectID, p); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", p.File, err))
			continue
		}
		result.Plans++
	}
	for _, sess := range sessions {
		if err := insertSessionTx(tx, s.projectID, sess); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sess.File, err))
			continue
		}
		result.Sessions++
	}
	for _, lp := range learned {
		if err := insertPatternTx(tx, s.projectID, lp); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", lp.File, err))
			continue
		}
		result.Learned++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("rebuild: commit: %w", err)
	}
	return result, nil
}

func insertPlanTx(tx *sql.Tx, projectID string, p knowledge.Plan) error {
	topics, err := marshalNullable(p.Topics)
	if err != nil {
		return err
	}
	status := p.Status
	if status == "" {
		status = knowledge.StatusPlanned
	}
	_, err = tx.Exec(
		`INSERT INTO plans (plan_id, project_id, title, status, author, created, updated, topics, file, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, projectID, p.Title, string(status),
		nullable(p.Author), nullable(p.Created), nullable(p.Updated),
		topics, nullable(p.File), nullable(p.Content),
	)
	return err
}

func insertSessionTx(tx *sql.Tx, projectID string, sess knowledge.Session) error {
	phases, err := marshalNullable(sess.Phases)
	if err != nil {
		return err
	}
	topics, err := marshalNullable(sess.Topics)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO sessions (date, project_id, topic, plan_id, phases, topics, file, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.Date, projectID,
		nullable(sess.Topic), nullable(sess.Plan),
		phases, topics, nullable(sess.File), nullable(sess.Content),
	)
	return err
}

func insertPatternTx(tx *sql.Tx, projectID string, lp knowledge.LearnedPattern) error {
	keywords, err := marshalNullable(lp.Keywords)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO patterns (slug, project_id, category, title, content, keywords, created, file)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lp.ID, projectID,
		nullable(lp.Category), lp.Title, nullable(lp.Content),
		keywords, nullable(lp.Created), nullable(lp.File),
	)
	return err
}

// GetStats reports row counts per table and the database file size.
func (s *SQLite) GetStats() (*Stats, error) {
	stats := &Stats{Path: s.path}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM plans WHERE project_id = ?", &stats.Plans},
		{"SELECT COUNT(*) FROM sessions WHERE project_id = ?", &stats.Sessions},
		{"SELECT COUNT(*) FROM patterns WHERE project_id = ?", &stats.Learned},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query, s.projectID).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM projects").Scan(&stats.Projects); err != nil {
		return nil, fmt.Errorf("counting projects: %w", err)
	}

	if fi, err := os.Stat(s.path); err == nil {
		stats.FileSize = fi.Size()
	}
	return stats, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// marshalNullable encodes a value as JSON, or NULL for empty values.
func marshalNullable(v any) (*string, error) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(t) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	str := string(data)
	return &str, nil
}

func unmarshalList(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}
