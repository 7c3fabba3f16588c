package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/noteforge/noteforge/internal/types"
)

const selectColumns = `id, title, file_path, last_commit_hash, last_modified_by, created_at, updated_at, use_status`

func scanNote(row interface{ Scan(dest ...any) error }) (types.Note, error) {
	var n types.Note
	var status string
	err := row.Scan(&n.ID, &n.Title, &n.FilePath, &n.LastCommitHash, &n.LastModifiedBy, &n.CreatedAt, &n.UpdatedAt, &status)
	n.UseStatus = types.UseStatus(status)
	return n, err
}

func (s *SQLiteStore) GetByTitle(ctx context.Context, title string) (types.Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM notes WHERE title = ? AND use_status = 'USABLE'`, title)
	n, err := scanNote(row)
	if err != nil {
		return types.Note{}, wrapDBError("get note by title", err)
	}
	return n, nil
}

func (s *SQLiteStore) GetByFilePath(ctx context.Context, filePath string) (types.Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM notes WHERE file_path = ? AND use_status = 'USABLE'`, filePath)
	n, err := scanNote(row)
	if err != nil {
		return types.Note{}, wrapDBError("get note by file path", err)
	}
	return n, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, note types.Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, title, file_path, last_commit_hash, last_modified_by, created_at, updated_at, use_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.Title, note.FilePath, note.LastCommitHash, note.LastModifiedBy,
		note.CreatedAt, note.UpdatedAt, string(note.UseStatus),
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, note types.Note) error {
	// TODO: the known optimistic-concurrency race (spec §9) would close
	// here by adding `AND last_commit_hash = ?` (the pre-update value)
	// to this WHERE clause and treating RowsAffected()==0 as a conflict
	// instead of a not-found. Left as read-then-commit-then-write per
	// the documented race (see DESIGN.md's Open Question decision).
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes
		SET title = ?, file_path = ?, last_commit_hash = ?, last_modified_by = ?, updated_at = ?, use_status = ?
		WHERE id = ?`,
		note.Title, note.FilePath, note.LastCommitHash, note.LastModifiedBy, note.UpdatedAt, string(note.UseStatus),
		note.ID,
	)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update note %s: %w", note.ID, types.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, offset, limit int) ([]types.Note, int, error) {
	total, err := s.countUsable(ctx)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM notes
		WHERE use_status = 'USABLE'
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes, err := collectNotes(rows)
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func (s *SQLiteStore) SearchTitleOrSet(ctx context.Context, keyword string, extraTitles []string, offset, limit int) ([]types.Note, int, error) {
	keyword = strings.TrimSpace(keyword)
	like := "%" + strings.ReplaceAll(strings.ReplaceAll(keyword, "%", `\%`), "_", `\_`) + "%"

	args := []any{like}
	placeholders := make([]string, len(extraTitles))
	for i, t := range extraTitles {
		placeholders[i] = "?"
		args = append(args, t)
	}
	inClause := "0"
	if len(placeholders) > 0 {
		inClause = "title IN (" + strings.Join(placeholders, ", ") + ")"
	}
	where := fmt.Sprintf(`use_status = 'USABLE' AND (title LIKE ? ESCAPE '\' COLLATE NOCASE OR %s)`, inClause)

	var total int
	countArgs := append([]any{}, args...)
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE `+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	queryArgs := append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM notes
		WHERE `+where+`
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?`, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("search notes: %w", err)
	}
	defer rows.Close()

	notes, err := collectNotes(rows)
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func (s *SQLiteStore) ScanUsable(ctx context.Context) ([]types.Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM notes WHERE use_status = 'USABLE'`)
	if err != nil {
		return nil, fmt.Errorf("scan notes: %w", err)
	}
	defer rows.Close()
	return collectNotes(rows)
}

func (s *SQLiteStore) Disable(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notes SET use_status = 'DISABLED' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("disable note: %w", err)
	}
	return nil
}

func (s *SQLiteStore) countUsable(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE use_status = 'USABLE'`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count usable notes: %w", err)
	}
	return total, nil
}

func collectNotes(rows *sql.Rows) ([]types.Note, error) {
	var notes []types.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note row: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note rows: %w", err)
	}
	return notes, nil
}
