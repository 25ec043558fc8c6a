package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"blockmarch.dev/internal/persistence/indexdb"
)

// openRuntimeIndex returns nil when indexing is disabled by flag or by
// BM_INDEX_BACKEND=none.
func openRuntimeIndex(worldDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("BM_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported BM_INDEX_BACKEND: %s", backend)
	}
}
