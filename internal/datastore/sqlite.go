package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"

	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
)

// OpenSQLiteMirror opens or creates the SQLite database at path.
func OpenSQLiteMirror(path string) (*SQLMirror, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
	}

	m, err := openMirror(sqlite.Open(path), "sqlite", map[string]any{"path": path})
	if err != nil {
		return nil, err
	}
	GetLogger().Info("sqlite mirror opened", logger.String("path", path))
	return m, nil
}
