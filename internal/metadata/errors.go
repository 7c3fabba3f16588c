package metadata

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/noteforge/noteforge/internal/types"
)

// wrapDBError mirrors steveyegge-beads/internal/storage/sqlite/errors.go's
// wrap-sql.ErrNoRows idiom, translating directly to the shared
// types.ErrNotFound sentinel so callers never need a second translation
// step.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, types.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
