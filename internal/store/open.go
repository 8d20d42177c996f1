package store

import (
	"fmt"
	"path/filepath"
)

// Open returns the checkpoint store named by backend rooted at dataDir.
// The SQLite backend keeps its database at <dataDir>/checkpoints.db.
func Open(backend, dataDir string) (Store, error) {
	switch backend {
	case "", BackendFS:
		return NewFSStore(dataDir)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dataDir, "checkpoints.db"))
	default:
		return nil, fmt.Errorf("unknown store backend %q (want %s or %s)", backend, BackendFS, BackendSQLite)
	}
}
