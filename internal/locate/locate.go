// Package locate resolves where the knowledge database lives and what
// project identity scopes its rows.
//
// Resolution never fails: malformed config files and missing git
// metadata degrade to defaults so callers can always open a store.
package locate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	git "github.com/go-git/go-git/v5"
)

const (
	// EnvDBPath overrides all other database location logic.
	EnvDBPath = "AIKNOWSYS_DB_PATH"
	// ConfigFile is the per-project JSON config at the target root.
	ConfigFile = ".aiknowsys.config"
	// DefaultDataDir is the home subdirectory holding the default database.
	DefaultDataDir = ".aiknowsys"
	// DefaultDBName is the default database filename.
	DefaultDBName = "knowledge.db"
)

// Config mirrors the optional .aiknowsys.config file.
type Config struct {
	DatabasePath string `json:"databasePath,omitempty"`
	ProjectID    string `json:"projectId,omitempty"`
	ProjectName  string `json:"projectName,omitempty"`
}

// LoadConfig reads .aiknowsys.config from targetDir. A missing or
// malformed file yields the zero Config, never an error.
func LoadConfig(targetDir string) Config {
	var cfg Config
	data, err := os.ReadFile(filepath.Join(targetDir, ConfigFile))
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// DatabasePath resolves the database location for targetDir.
// Priority: AIKNOWSYS_DB_PATH env var, then the config file's
// databasePath (resolved against targetDir if relative), then
// ~/.aiknowsys/knowledge.db. The parent directory of the result is
// created as a side effect so a subsequent open can succeed.
func DatabasePath(targetDir string) string {
	path := os.Getenv(EnvDBPath)

	if path == "" {
		if cfg := LoadConfig(targetDir); cfg.DatabasePath != "" {
			path = cfg.DatabasePath
			if !filepath.IsAbs(path) {
				path = filepath.Join(targetDir, path)
			}
		}
	}

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		path = filepath.Join(home, DefaultDataDir, DefaultDBName)
	}

	_ = os.MkdirAll(filepath.Dir(path), 0o755) // open reports the real error
	return path
}

// ProjectID derives a stable project identity for targetDir: the
// owner/repo of the git "origin" remote when available, otherwise the
// sanitized directory basename. Never fails on missing or corrupt git
// metadata.
func ProjectID(targetDir string) string {
	if cfg := LoadConfig(targetDir); cfg.ProjectID != "" {
		return cfg.ProjectID
	}

	if id := originOwnerRepo(targetDir); id != "" {
		return id
	}

	abs, err := filepath.Abs(targetDir)
	if err != nil {
		abs = targetDir
	}
	return SanitizeName(filepath.Base(abs))
}

// originOwnerRepo reads the origin remote URL via go-git and extracts
// owner/repo. Returns "" on any failure.
func originOwnerRepo(targetDir string) string {
	repo, err := git.PlainOpenWithOptions(targetDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return ""
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return OwnerRepoFromURL(urls[0])
}

// OwnerRepoFromURL extracts "owner/repo" from common git remote URL
// forms: https://host/owner/repo.git, git@host:owner/repo.git,
// ssh://git@host/owner/repo. Returns "" if the URL has no owner/repo
// shape.
func OwnerRepoFromURL(url string) string {
	u := strings.TrimSuffix(strings.TrimSpace(url), "/")
	u = strings.TrimSuffix(u, ".git")

	// scp-like form: git@host:owner/repo
	if i := strings.Index(u, "://"); i < 0 {
		if j := strings.Index(u, ":"); j >= 0 {
			u = u[j+1:]
		}
	} else {
		u = u[i+3:]
		if j := strings.Index(u, "/"); j >= 0 {
			u = u[j+1:] // drop host
		}
	}

	parts := strings.Split(u, "/")
	if len(parts) < 2 {
		return ""
	}
	owner := parts[len(parts)-2]
	repo := parts[len(parts)-1]
	if owner == "" || repo == "" {
		return ""
	}
	return owner + "/" + repo
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeName lowercases s and collapses non-alphanumeric runs to
// single hyphens: "My Project!" → "my-project".
func SanitizeName(s string) string {
	v := nonAlnum.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(v, "-")
}
