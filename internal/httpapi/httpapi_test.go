package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteforge/noteforge/internal/httpapi"
	"github.com/noteforge/noteforge/internal/types"
)

// fakeCoordinator is a hand-written stub satisfying httpapi.Coordinator,
// letting these tests exercise routing and response shape without
// standing up a real content/metadata/search stack.
type fakeCoordinator struct {
	saveResult   types.SaveResult
	saveErr      error
	listItems    []types.Note
	listTotal    int
	listErr      error
	searchItems  []types.Note
	searchTotal  int
	searchErr    error
	history      types.History
	historyErr   error
	tree         []types.TreeNode
	treeErr      error
	lastKeyword  string
}

func (f *fakeCoordinator) Save(ctx context.Context, title, content, userName, lastHash string) (types.SaveResult, error) {
	return f.saveResult, f.saveErr
}

func (f *fakeCoordinator) List(ctx context.Context, page, size int) ([]types.Note, int, error) {
	return f.listItems, f.listTotal, f.listErr
}

func (f *fakeCoordinator) Search(ctx context.Context, keyword string, page, size int) ([]types.Note, int, error) {
	f.lastKeyword = keyword
	return f.searchItems, f.searchTotal, f.searchErr
}

func (f *fakeCoordinator) GetHistory(ctx context.Context, title string) (types.History, error) {
	return f.history, f.historyErr
}

func (f *fakeCoordinator) GetTree(ctx context.Context) ([]types.TreeNode, error) {
	return f.tree, f.treeErr
}

func TestListOrSearchReturnsPaginationMetadata(t *testing.T) {
	fc := &fakeCoordinator{
		listItems: []types.Note{{Title: "A"}, {Title: "B"}},
		listTotal: 25,
	}
	srv := httptest.NewServer(httpapi.NewRouter(fc, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/notes/?page=2&size=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "success", body["status"])
	meta := body["metadata"].(map[string]any)
	assert.Equal(t, float64(25), meta["total_count"])
	assert.Equal(t, float64(3), meta["total_pages"])
	assert.Equal(t, float64(2), meta["current_page"])
	assert.NotNil(t, meta["next_link"])
	assert.NotNil(t, meta["prev_link"])
}

func TestListOrSearchDispatchesToSearchWhenKeywordPresent(t *testing.T) {
	fc := &fakeCoordinator{searchItems: []types.Note{{Title: "Phone"}}, searchTotal: 1}
	srv := httptest.NewServer(httpapi.NewRouter(fc, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/notes/?keyword=휴대폰")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "휴대폰", fc.lastKeyword)
}

func TestListOrSearchRejectsInvalidPage(t *testing.T) {
	fc := &fakeCoordinator{}
	srv := httptest.NewServer(httpapi.NewRouter(fc, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/notes/?page=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaveReturnsConflictStatusOnConflictError(t *testing.T) {
	fc := &fakeCoordinator{
		saveErr: types.NewConflictError(types.ConflictDetail{
			ServerLastHash: "abc123",
			ServerContent:  "someone else's edit",
			ModifiedBy:     "bob",
			UpdatedAt:      time.Now().UTC(),
		}),
	}
	srv := httptest.NewServer(httpapi.NewRouter(fc, nil))
	defer srv.Close()

	payload, _ := json.Marshal(map[string]string{
		"title": "Meeting", "content": "x", "user_name": "alice", "last_hash": "stale",
	})
	resp, err := http.Post(srv.URL+"/notes/save", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NOTE_CONFLICT", body["error_code"])
}

func TestSaveReturnsSuccessShapeOnCreate(t *testing.T) {
	fc := &fakeCoordinator{
		saveResult: types.SaveResult{
			Action: types.ActionCreated, CommitHash: "deadbeef", FileName: "Meeting.md", AuthorName: "alice",
		},
	}
	srv := httptest.NewServer(httpapi.NewRouter(fc, nil))
	defer srv.Close()

	payload, _ := json.Marshal(map[string]string{
		"title": "Meeting", "content": "hello", "user_name": "alice",
	})
	resp, err := http.Post(srv.URL+"/notes/save", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "created", body["action"])
	assert.Equal(t, "Meeting.md", body["file_name"])
}

func TestHistoryReturnsNotFoundForUnknownTitle(t *testing.T) {
	fc := &fakeCoordinator{historyErr: types.ErrNotFound}
	srv := httptest.NewServer(httpapi.NewRouter(fc, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/notes/Nope/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFolderTreeReturnsSuccessEnvelope(t *testing.T) {
	fc := &fakeCoordinator{tree: []types.TreeNode{{ID: "a", Name: "A", Type: types.NodeNote}}}
	srv := httptest.NewServer(httpapi.NewRouter(fc, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/notes/folder-tree")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
}
