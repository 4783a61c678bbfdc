package store

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the directory holding the affinity database and its
// backups. Defaults to ./data/favour relative to the working directory, the
// same layout the legacy flat-file plugin used.
func DefaultDataDir() string {
	if env := os.Getenv("FAVOUR_DATA_DIR"); env != "" {
		return env
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, "data", "favour")
}

// DBPath returns the full path to the affinity database file inside dataDir.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "favour.db")
}
