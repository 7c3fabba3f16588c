// Package httpapi implements the HTTP surface of spec §6: the four
// public routes the Note Coordinator is exposed through.
//
// Grounded on marmos91-dittofs/pkg/controlplane/api/router.go for the
// chi.NewRouter + middleware stack shape and on
// marmos91-dittofs/internal/controlplane/api/handlers/response.go and
// health.go for the JSON envelope and writeJSON helper idiom.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/noteforge/noteforge/internal/types"
)

// Coordinator is the subset of notecoordinator.Coordinator the HTTP
// layer depends on, narrowed to a local interface so this package
// never imports the coordinator's OTel/backoff/errgroup dependency
// surface just to route requests.
type Coordinator interface {
	Save(ctx context.Context, title, content, userName, lastHash string) (types.SaveResult, error)
	List(ctx context.Context, page, size int) ([]types.Note, int, error)
	Search(ctx context.Context, keyword string, page, size int) ([]types.Note, int, error)
	GetHistory(ctx context.Context, title string) (types.History, error)
	GetTree(ctx context.Context) ([]types.TreeNode, error)
}

// NewRouter builds the chi router for spec §6's surface.
func NewRouter(nc Coordinator, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &handler{nc: nc, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.listOrSearch)
		r.Get("/folder-tree", h.folderTree)
		r.Post("/save", h.save)
		r.Get("/{title}/history", h.history)
	})

	return r
}

type handler struct {
	nc  Coordinator
	log *slog.Logger
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request completed",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start).String(),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error kinds of spec §7 onto the status codes of
// spec §6.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if detail, ok := types.AsConflict(err); ok {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error_code":   "NOTE_CONFLICT",
			"message":      err.Error(),
			"conflict_data": detail,
		})
		return
	}
	if errors.Is(err, types.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": err.Error()})
		return
	}
	if errors.Is(err, types.ErrValidation) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	h.log.Error("http: unclassified failure", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": err.Error()})
}

func parsePageSize(r *http.Request) (page, size int, err error) {
	page, size = 1, 20
	if v := r.URL.Query().Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, types.WrapValidation("page must be a positive integer")
		}
	}
	if v := r.URL.Query().Get("size"); v != "" {
		size, err = strconv.Atoi(v)
		if err != nil || size < 1 {
			return 0, 0, types.WrapValidation("size must be a positive integer")
		}
	}
	return page, size, nil
}

// listOrSearch handles GET /notes: spec §4.3 dispatches on whether
// keyword is present.
func (h *handler) listOrSearch(w http.ResponseWriter, r *http.Request) {
	page, size, err := parsePageSize(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	keyword := r.URL.Query().Get("keyword")

	var items []types.Note
	var total int
	if keyword == "" {
		items, total, err = h.nc.List(r.Context(), page, size)
	} else {
		items, total, err = h.nc.Search(r.Context(), keyword, page, size)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []types.Note{}
	}

	totalPages := (total + size - 1) / size
	if totalPages == 0 {
		totalPages = 1
	}

	var nextLink, prevLink *string
	if page < totalPages {
		v := paginationLink(page+1, size, keyword)
		nextLink = &v
	}
	if page > 1 {
		v := paginationLink(page-1, size, keyword)
		prevLink = &v
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"metadata": map[string]any{
			"total_count":   total,
			"total_pages":   totalPages,
			"current_page":  page,
			"size":          size,
			"next_link":     nextLink,
			"prev_link":     prevLink,
		},
		"items": items,
	})
}

func paginationLink(page, size int, keyword string) string {
	link := fmt.Sprintf("/notes?page=%d&size=%d", page, size)
	if keyword != "" {
		link += "&keyword=" + keyword
	}
	return link
}

func (h *handler) folderTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.nc.GetTree(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"data":    nil,
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    tree,
		"message": "",
	})
}

type saveRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	UserName string `json:"user_name"`
	LastHash string `json:"last_hash"`
}

func (h *handler) save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, types.WrapValidation("malformed request body"))
		return
	}

	result, err := h.nc.Save(r.Context(), req.Title, req.Content, req.UserName, req.LastHash)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"action":      result.Action,
		"commit_hash": result.CommitHash,
		"file_name":   result.FileName,
		"author_name": result.AuthorName,
	})
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	history, err := h.nc.GetHistory(r.Context(), title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
