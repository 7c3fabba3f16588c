package contentstore_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteforge/noteforge/internal/contentstore"
	"github.com/noteforge/noteforge/internal/types"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func TestOpenInitializesRepository(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()

	store, err := contentstore.Open(context.Background(), dir)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, ".git"))
	assert.Equal(t, dir, store.Root())
}

func TestWriteAndCommitThenReadCurrentContent(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	store, err := contentstore.Open(ctx, t.TempDir())
	require.NoError(t, err)

	hash, err := store.WriteAndCommit(ctx, "Meeting.md", "hello", "alice", "Save/Update note: Meeting")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	content, err := store.ReadCurrentContent(ctx, "Meeting.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	last, err := store.LastCommitHash(ctx, "Meeting.md")
	require.NoError(t, err)
	assert.Equal(t, hash, last)
}

func TestReadCurrentContentMissingFileReturnsEmpty(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	store, err := contentstore.Open(ctx, t.TempDir())
	require.NoError(t, err)

	content, err := store.ReadCurrentContent(ctx, "Nope.md")
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestFileHistoryOrderedNewestFirstWithInitialCommitSentinel(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	store, err := contentstore.Open(ctx, t.TempDir())
	require.NoError(t, err)

	_, err = store.WriteAndCommit(ctx, "Meeting.md", "hello", "alice", "Save/Update note: Meeting")
	require.NoError(t, err)
	second, err := store.WriteAndCommit(ctx, "Meeting.md", "hi", "alice", "Save/Update note: Meeting")
	require.NoError(t, err)

	commits, err := store.FileHistory(ctx, "Meeting.md")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, second, commits[0].Hash)

	oldestDiff, err := store.Diff(ctx, commits[len(commits)-1].Hash, "Meeting.md")
	require.NoError(t, err)
	assert.Equal(t, types.InitialCommitDiff, oldestDiff)
}

func TestEnumerateFilesSkipsHiddenAndPycache(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	store, err := contentstore.Open(ctx, t.TempDir())
	require.NoError(t, err)

	_, err = store.WriteAndCommit(ctx, "a.md", "a", "bob", "Save/Update note: a")
	require.NoError(t, err)
	_, err = store.WriteAndCommit(ctx, "sub/b.md", "b", "bob", "Save/Update note: b")
	require.NoError(t, err)
	for _, p := range []string{".hidden/c.md", "__pycache__/d.md"} {
		full := filepath.Join(store.Root(), filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}

	files, err := store.EnumerateFiles(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.md", "sub/b.md"}, files)
}

func TestMergeThreeWayCleanMerge(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	store, err := contentstore.Open(ctx, t.TempDir())
	require.NoError(t, err)

	base := "line1\nline2\nline3\n"
	local := "line1 edited\nline2\nline3\n"
	remote := "line1\nline2\nline3 edited\n"

	conflict, merged, err := store.MergeThreeWay(ctx, base, local, remote)
	require.NoError(t, err)
	assert.False(t, conflict)
	assert.Contains(t, merged, "line1 edited")
	assert.Contains(t, merged, "line3 edited")
}

func TestMergeThreeWayConflict(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	store, err := contentstore.Open(ctx, t.TempDir())
	require.NoError(t, err)

	base := "line1\n"
	local := "local change\n"
	remote := "remote change\n"

	conflict, merged, err := store.MergeThreeWay(ctx, base, local, remote)
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.Contains(t, merged, "<<<<<<<")
}
