// Package searchindex implements the Search Index (SI) contract of
// spec §4.7: an inverted index over analyzed note bodies, supporting
// upsert-by-title, delete-by-title, and top-K keyword search.
//
// Grounded on original_source/app/service/lang_analyzer/search_manager.py
// (the Whoosh-backed NoteSearchManager this package reimplements
// behaviorally) and on jra3-linear-fuse/internal/db/store.go for the
// modernc.org/sqlite wiring idiom shared with internal/metadata — the
// retrieved pack carries no dedicated Go full-text search library, so
// SQLite's FTS5 virtual table stands in for Whoosh's inverted index.
package searchindex

import (
	"context"
	_ "embed"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Index is the SI contract consumed by the Note Coordinator, the
// Indexworker, and the Reconciler.
type Index interface {
	// UpdateDocument upserts title's analyzed content, replacing any
	// prior document for the same title.
	UpdateDocument(ctx context.Context, title, content string) error

	// DeleteByTitle removes title's document, if present. Not finding
	// one is not an error.
	DeleteByTitle(ctx context.Context, title string) error

	// Search returns the titles of the top-limit documents whose
	// analyzed content matches keyword, ranked by relevance.
	Search(ctx context.Context, keyword string, limit int) ([]string, error)

	// Close releases the underlying database handle.
	Close() error
}

// FTSIndex is the Index implementation backed by SQLite FTS5.
type FTSIndex struct {
	db       *sql.DB
	analyzer *analyzer
}

// Open opens or creates the engine-native index files at dir (spec §6
// "Persisted state layout", `<data>/index/`), analyzing documents and
// queries with syn.
func Open(_ context.Context, dir string, syn Synonyms) (*FTSIndex, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create search index directory: %w", err)
	}
	dbPath := filepath.Join(dir, "fts.db")
	db, err := sql.Open("sqlite", "file:"+strings.ReplaceAll(dbPath, " ", "%20")+"?_pragma=busy_timeout(30000)")
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize search index schema: %w", err)
	}
	return &FTSIndex{db: db, analyzer: newAnalyzer(syn)}, nil
}

func (i *FTSIndex) Close() error { return i.db.Close() }

// UpdateDocument mirrors search_manager.py's update_index: delete any
// existing row for title, then insert the freshly analyzed content.
// FTS5 has no upsert; the two statements run inside one transaction so
// a concurrent search never observes title duplicated or missing.
func (i *FTSIndex) UpdateDocument(ctx context.Context, title, content string) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE title = ?`, title); err != nil {
		return fmt.Errorf("delete prior document: %w", err)
	}
	analyzed := strings.Join(i.analyzer.tokens(content), " ")
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents (title, content) VALUES (?, ?)`, title, analyzed); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index update: %w", err)
	}
	return nil
}

func (i *FTSIndex) DeleteByTitle(ctx context.Context, title string) error {
	if _, err := i.db.ExecContext(ctx, `DELETE FROM documents WHERE title = ?`, title); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Search analyzes keyword with the same pipeline used at index time
// (tokenize, lowercase, synonym-expand) and ORs the resulting tokens
// together as an FTS5 MATCH query, ranked by bm25.
func (i *FTSIndex) Search(ctx context.Context, keyword string, limit int) ([]string, error) {
	tokens := i.analyzer.tokens(keyword)
	if len(tokens) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(tokens))
	for idx, t := range tokens {
		quoted[idx] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	matchQuery := strings.Join(quoted, " OR ")

	rows, err := i.db.QueryContext(ctx, `
		SELECT title FROM documents
		WHERE documents MATCH ?
		ORDER BY bm25(documents)
		LIMIT ?`, matchQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}
	return titles, nil
}

var _ Index = (*FTSIndex)(nil)
