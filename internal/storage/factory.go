package storage

import (
	"fmt"
	"os"

	"github.com/aiknowsys/aiknowsys/internal/locate"
)

// Backend names accepted by Options.Backend.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Options controls which backend the factory opens.
type Options struct {
	// Backend forces a concrete backend; empty selects automatically.
	Backend string
	// DatabasePath overrides the locator's database resolution for the
	// SQLite backend.
	DatabasePath string
}

// Open constructs and initializes the right adapter for targetDir.
// Selection is keyed on an explicit Backend option, the AIKNOWSYS_DB_PATH
// env override, an explicit databasePath in .aiknowsys.config, or the
// presence of the resolved database file. Callers never branch on
// concrete types themselves.
func Open(targetDir string, opts Options) (Adapter, error) {
	backend := opts.Backend
	if backend == "" {
		backend = autodetect(targetDir)
	}

	var a Adapter
	switch backend {
	case BackendJSON:
		a = NewJSONIndex()
	case BackendSQLite:
		dbPath := opts.DatabasePath
		if dbPath == "" {
			dbPath = locate.DatabasePath(targetDir)
		}
		a = NewSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}

	if err := a.Init(targetDir); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func autodetect(targetDir string) string {
	// An explicitly configured database location, via the env override
	// or the config file, selects SQLite even before the file exists.
	if os.Getenv(locate.EnvDBPath) != "" {
		return BackendSQLite
	}
	if cfg := locate.LoadConfig(targetDir); cfg.DatabasePath != "" {
		return BackendSQLite
	}
	if _, err := os.Stat(locate.DatabasePath(targetDir)); err == nil {
		return BackendSQLite
	}
	return BackendJSON
}
