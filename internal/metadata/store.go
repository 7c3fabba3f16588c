// Package metadata implements the Metadata Store (MS) contract of
// spec §3/§4.2/§4.3: a relational table keyed by note title with a
// unique file path and the last known commit identifier per note.
//
// Grounded on jra3-linear-fuse/internal/db/store.go (sql.Open("sqlite",
// ...), //go:embed schema.sql, WAL pragma) and
// steveyegge-beads/internal/storage/sqlite (connection-string pragma
// construction, wrap-sql.ErrNoRows idiom).
package metadata

import (
	"context"
	_ "embed"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/noteforge/noteforge/internal/types"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store is the MS contract consumed by the Note Coordinator and the
// Reconciler.
type Store interface {
	// GetByTitle returns the USABLE row for title, or a wrapped
	// types.ErrNotFound.
	GetByTitle(ctx context.Context, title string) (types.Note, error)

	// GetByFilePath returns the USABLE row for file path, or a wrapped
	// types.ErrNotFound.
	GetByFilePath(ctx context.Context, filePath string) (types.Note, error)

	// Insert adds a new USABLE row.
	Insert(ctx context.Context, note types.Note) error

	// Update overwrites an existing row's mutable fields, keyed by id.
	Update(ctx context.Context, note types.Note) error

	// List returns USABLE rows ordered by updated_at descending, with
	// offset/limit pagination, and the total USABLE row count.
	List(ctx context.Context, offset, limit int) ([]types.Note, int, error)

	// SearchTitleOrSet returns USABLE rows whose title contains
	// keyword (case-insensitive) OR whose title is a member of
	// extraTitles, ordered by updated_at descending, paginated, plus
	// the total matching count.
	SearchTitleOrSet(ctx context.Context, keyword string, extraTitles []string, offset, limit int) ([]types.Note, int, error)

	// ScanUsable returns every USABLE row, for the Reconciler's
	// convergence pass.
	ScanUsable(ctx context.Context) ([]types.Note, error)

	// Disable marks a row DISABLED by id.
	Disable(ctx context.Context, id string) error

	// Close releases the underlying database handle.
	Close() error
}

// SQLiteStore is the Store implementation backed by modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens or creates the single-file relational store at dbPath
// (spec §6 "Persisted state layout").
func Open(_ context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create metadata store directory: %w", err)
	}
	db, err := sql.Open("sqlite", connString(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize metadata schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ Store = (*SQLiteStore)(nil)
