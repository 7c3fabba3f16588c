package metadata_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteforge/noteforge/internal/metadata"
	"github.com/noteforge/noteforge/internal/types"
)

func openStore(t *testing.T) *metadata.SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "notes.db")
	store, err := metadata.Open(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleNote(title, path string) types.Note {
	now := time.Now().UTC().Truncate(time.Second)
	return types.Note{
		ID:             title + "-id",
		Title:          title,
		FilePath:       path,
		LastCommitHash: "abc123",
		LastModifiedBy: "alice",
		CreatedAt:      now,
		UpdatedAt:      now,
		UseStatus:      types.StatusUsable,
	}
}

func TestInsertAndGetByTitle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	note := sampleNote("Meeting", "Meeting.md")
	require.NoError(t, store.Insert(ctx, note))

	got, err := store.GetByTitle(ctx, "Meeting")
	require.NoError(t, err)
	assert.Equal(t, note.FilePath, got.FilePath)
	assert.Equal(t, note.LastCommitHash, got.LastCommitHash)
}

func TestGetByTitleNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.GetByTitle(context.Background(), "Nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdateChangesMutableFields(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	note := sampleNote("Meeting", "Meeting.md")
	require.NoError(t, store.Insert(ctx, note))

	note.LastCommitHash = "def456"
	note.LastModifiedBy = "bob"
	require.NoError(t, store.Update(ctx, note))

	got, err := store.GetByTitle(ctx, "Meeting")
	require.NoError(t, err)
	assert.Equal(t, "def456", got.LastCommitHash)
	assert.Equal(t, "bob", got.LastModifiedBy)
}

func TestListOrdersByUpdatedAtDescendingAndPaginates(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 25; i++ {
		n := sampleNote(titleFor(i), titleFor(i)+".md")
		n.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Insert(ctx, n))
	}

	items, total, err := store.List(ctx, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, items, 10)
	assert.Equal(t, titleFor(14), items[0].Title)
}

func TestSearchTitleOrSetMatchesSubstringAndSet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleNote("Phone Notes", "Phone Notes.md")))
	require.NoError(t, store.Insert(ctx, sampleNote("Grocery List", "Grocery List.md")))

	items, total, err := store.SearchTitleOrSet(ctx, "phone", nil, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Phone Notes", items[0].Title)

	items, total, err = store.SearchTitleOrSet(ctx, "nomatch", []string{"Grocery List"}, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Grocery List", items[0].Title)
}

func TestDisableExcludesFromScanUsable(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	note := sampleNote("Meeting", "Meeting.md")
	require.NoError(t, store.Insert(ctx, note))
	require.NoError(t, store.Disable(ctx, note.ID))

	rows, err := store.ScanUsable(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func titleFor(i int) string {
	return "Note" + string(rune('A'+i))
}
