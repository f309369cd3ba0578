// Package index stores the mapping from tracked file path to history line.
package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/savify/savify/pkg/config"
	"github.com/savify/savify/pkg/model"
)

// ErrNotFound is returned by lookups that match no entry.
var ErrNotFound = errors.New("index: entry not found")

// Store is the durable path → line mapping. Each call is individually
// durable; there are no multi-call transactions.
type Store interface {
	// Find returns the entry for path or ErrNotFound.
	Find(ctx context.Context, path string) (*model.TrackedFile, error)
	// FindByLine returns the entry owning lineID or ErrNotFound.
	FindByLine(ctx context.Context, lineID string) (*model.TrackedFile, error)
	// Insert adds an entry. It fails with errclass.ErrDuplicateEntry if the
	// path or the line is already present.
	Insert(ctx context.Context, tf model.TrackedFile) error
	// Remove deletes the entry for path. Removing an absent path is not an error.
	Remove(ctx context.Context, path string) error
	// All returns every entry ordered by path.
	All(ctx context.Context) ([]model.TrackedFile, error)
	Close() error
}

// File names inside the state directory.
const (
	SQLiteFile = "index.db"
	JSONFile   = "savify_db.json"
)

// Open opens the store selected by driver inside stateDir.
func Open(stateDir, driver string) (Store, error) {
	switch driver {
	case config.IndexDriverSQLite, "":
		return OpenSQLite(filepath.Join(stateDir, SQLiteFile))
	case config.IndexDriverJSON:
		return OpenJSON(filepath.Join(stateDir, JSONFile))
	default:
		return nil, fmt.Errorf("unknown index driver %q", driver)
	}
}
