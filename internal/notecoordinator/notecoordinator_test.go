package notecoordinator_test

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteforge/noteforge/internal/contentstore"
	"github.com/noteforge/noteforge/internal/indexworker"
	"github.com/noteforge/noteforge/internal/metadata"
	"github.com/noteforge/noteforge/internal/notecoordinator"
	"github.com/noteforge/noteforge/internal/searchindex"
	"github.com/noteforge/noteforge/internal/types"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func newCoordinator(t *testing.T, mode notecoordinator.MergeMode) *notecoordinator.Coordinator {
	t.Helper()
	ctx := context.Background()

	cs, err := contentstore.Open(ctx, t.TempDir())
	require.NoError(t, err)
	ms, err := metadata.Open(ctx, filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	si, err := searchindex.Open(ctx, t.TempDir(), searchindex.DefaultSynonyms())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ms.Close()
		_ = si.Close()
	})

	idx := indexworker.New(si, 16, nil)
	workerCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go idx.Run(workerCtx)

	return notecoordinator.New(cs, ms, si, idx, notecoordinator.WithMergeMode(mode))
}

func TestSaveCreatesThenUpdatesNote(t *testing.T) {
	requireGit(t)
	nc := newCoordinator(t, notecoordinator.MergeDisabled)
	ctx := context.Background()

	result, err := nc.Save(ctx, "Meeting", "first draft", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, types.ActionCreated, result.Action)
	assert.Equal(t, "Meeting.md", result.FileName)

	result2, err := nc.Save(ctx, "Meeting", "second draft", "alice", result.CommitHash)
	require.NoError(t, err)
	assert.Equal(t, types.ActionUpdated, result2.Action)
	assert.NotEqual(t, result.CommitHash, result2.CommitHash)
}

func TestSaveDetectsConflictWhenLastHashStale(t *testing.T) {
	requireGit(t)
	nc := newCoordinator(t, notecoordinator.MergeDisabled)
	ctx := context.Background()

	first, err := nc.Save(ctx, "Meeting", "first draft", "alice", "")
	require.NoError(t, err)

	_, err = nc.Save(ctx, "Meeting", "bob's edit", "bob", first.CommitHash)
	require.NoError(t, err)

	_, err = nc.Save(ctx, "Meeting", "alice's stale edit", "alice", first.CommitHash)
	require.Error(t, err)
	detail, ok := types.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, "bob's edit", detail.ServerContent)
}

func TestSaveSkipsConflictCheckWhenLastHashOmitted(t *testing.T) {
	requireGit(t)
	nc := newCoordinator(t, notecoordinator.MergeDisabled)
	ctx := context.Background()

	first, err := nc.Save(ctx, "Meeting", "first draft", "alice", "")
	require.NoError(t, err)
	_, err = nc.Save(ctx, "Meeting", "bob's edit", "bob", first.CommitHash)
	require.NoError(t, err)

	result, err := nc.Save(ctx, "Meeting", "overwrite without base", "carol", "")
	require.NoError(t, err)
	assert.Equal(t, types.ActionUpdated, result.Action)
}

func TestSaveRejectsTitleWithPathSeparator(t *testing.T) {
	requireGit(t)
	nc := newCoordinator(t, notecoordinator.MergeDisabled)
	_, err := nc.Save(context.Background(), "a/b", "x", "alice", "")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestSaveAttemptsMergeWhenModeEnabled(t *testing.T) {
	requireGit(t)
	nc := newCoordinator(t, notecoordinator.MergeAttempt)
	ctx := context.Background()

	base := "line1\nline2\nline3\n"
	first, err := nc.Save(ctx, "Doc", base, "alice", "")
	require.NoError(t, err)

	remote := "line1\nline2\nline3 edited by bob\n"
	_, err = nc.Save(ctx, "Doc", remote, "bob", first.CommitHash)
	require.NoError(t, err)

	local := "line1 edited by alice\nline2\nline3\n"
	result, err := nc.Save(ctx, "Doc", local, "alice", first.CommitHash)
	require.NoError(t, err)
	assert.Equal(t, types.ActionUpdated, result.Action)
}

func TestListAndSearchReturnSavedNotes(t *testing.T) {
	requireGit(t)
	nc := newCoordinator(t, notecoordinator.MergeDisabled)
	ctx := context.Background()

	_, err := nc.Save(ctx, "Phone", "스마트폰 사용법", "alice", "")
	require.NoError(t, err)
	_, err = nc.Save(ctx, "Groceries", "milk and eggs", "alice", "")
	require.NoError(t, err)

	items, total, err := nc.List(ctx, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	require.Eventually(t, func() bool {
		items, total, err := nc.Search(ctx, "휴대폰", 1, 20)
		return err == nil && total == 1 && len(items) == 1 && items[0].Title == "Phone"
	}, 2*time.Second, 10*time.Millisecond, "expected synonym search to find the indexed note once the background worker catches up")
}

func TestGetHistoryOrdersCommitsNewestFirst(t *testing.T) {
	requireGit(t)
	nc := newCoordinator(t, notecoordinator.MergeDisabled)
	ctx := context.Background()

	first, err := nc.Save(ctx, "Meeting", "v1", "alice", "")
	require.NoError(t, err)
	second, err := nc.Save(ctx, "Meeting", "v2", "alice", first.CommitHash)
	require.NoError(t, err)

	history, err := nc.GetHistory(ctx, "Meeting")
	require.NoError(t, err)
	require.Len(t, history.GitHistory, 2)
	assert.Equal(t, second.CommitHash, history.GitHistory[0].Hash)
	assert.Equal(t, types.InitialCommitDiff, history.GitHistory[1].Diff)
}

func TestGetHistoryUnknownTitleReturnsNotFound(t *testing.T) {
	requireGit(t)
	nc := newCoordinator(t, notecoordinator.MergeDisabled)
	_, err := nc.GetHistory(context.Background(), "Nope")
	assert.True(t, types.IsNotFound(err))
}

func TestGetTreeSortsNotesAlphabetically(t *testing.T) {
	requireGit(t)
	nc := newCoordinator(t, notecoordinator.MergeDisabled)
	ctx := context.Background()

	_, err := nc.Save(ctx, "Zebra", "z", "alice", "")
	require.NoError(t, err)
	_, err = nc.Save(ctx, "Apple", "a", "alice", "")
	require.NoError(t, err)

	nodes, err := nc.GetTree(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Apple", nodes[0].Name)
	assert.Equal(t, "Zebra", nodes[1].Name)
	assert.Equal(t, types.NodeNote, nodes[0].Type)
}
