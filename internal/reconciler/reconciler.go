// Package reconciler implements the Reconciler (RC) of spec §4.2: a
// startup-and-on-demand procedure that walks the Content Store, reads
// the Metadata Store, and converges both (plus the Search Index) to a
// consistent state with CS as ground truth.
//
// Grounded on original_source/app/service/note_service.py's
// reconcile-on-boot pass and on steveyegge-beads/cmd/bd/show_display.go's
// watchIssue for the fsnotify debounce idiom reused by the on-demand
// trigger in watch.go.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noteforge/noteforge/internal/contentstore"
	"github.com/noteforge/noteforge/internal/metadata"
	"github.com/noteforge/noteforge/internal/searchindex"
	"github.com/noteforge/noteforge/internal/types"
)

// Reconciler owns one pass of the convergence algorithm. It holds no
// state across runs: every Run call re-derives its working set from
// CS and MS.
type Reconciler struct {
	cs  contentstore.Store
	ms  metadata.Store
	si  searchindex.Index
	log *slog.Logger
}

func New(cs contentstore.Store, ms metadata.Store, si searchindex.Index, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{cs: cs, ms: ms, si: si, log: log}
}

// Result summarizes one Run, for logging and for the idempotence
// property tests of spec §8.5.
type Result struct {
	Inserted  int
	Moved     int
	Refreshed int
	Disabled  int
	Duplicates []string
	Reindexed int
	IndexErrors int
}

// Run executes the full algorithm of spec §4.2. It is safe to call
// repeatedly; a second call against an already-converged store
// reports zero Inserted, Moved, Refreshed and Disabled (spec §8
// property 5). Reindexed still counts every file, since the Search
// Index is rebuilt on every pass, and Duplicates lists the same paths
// again.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	var res Result

	files, err := r.cs.EnumerateFiles(ctx)
	if err != nil {
		return res, fmt.Errorf("enumerate content store: %w", err)
	}
	files, dupes := dedupeByTitle(files)
	res.Duplicates = dupes
	for _, d := range dupes {
		r.log.Warn("reconciler: duplicate title skipped", "path", d)
	}

	rows, err := r.ms.ScanUsable(ctx)
	if err != nil {
		return res, fmt.Errorf("scan metadata store: %w", err)
	}
	byPath := make(map[string]types.Note, len(rows))
	byTitle := make(map[string]types.Note, len(rows))
	for _, row := range rows {
		byPath[row.FilePath] = row
		byTitle[row.Title] = row
	}

	seenPaths := make(map[string]bool, len(files))
	movedIDs := make(map[string]bool)
	now := time.Now().UTC()

	for _, relPath := range files {
		seenPaths[relPath] = true
		title := titleFromPath(relPath)
		hash, err := r.cs.LastCommitHash(ctx, relPath)
		if err != nil {
			return res, fmt.Errorf("last commit hash for %s: %w", relPath, err)
		}

		switch {
		case byPath[relPath].ID != "":
			existing := byPath[relPath]
			if existing.LastCommitHash != hash || existing.UseStatus != types.StatusUsable {
				existing.LastCommitHash = hash
				existing.UseStatus = types.StatusUsable
				existing.UpdatedAt = now
				if err := r.ms.Update(ctx, existing); err != nil {
					return res, fmt.Errorf("refresh %s: %w", relPath, err)
				}
				res.Refreshed++
			}
		case byTitle[title].ID != "":
			moved := byTitle[title]
			delete(byPath, moved.FilePath)
			moved.FilePath = relPath
			moved.LastCommitHash = hash
			moved.UseStatus = types.StatusUsable
			moved.UpdatedAt = now
			if err := r.ms.Update(ctx, moved); err != nil {
				return res, fmt.Errorf("move %s: %w", relPath, err)
			}
			movedIDs[moved.ID] = true
			res.Moved++
		default:
			row := types.Note{
				ID:             uuid.NewString(),
				Title:          title,
				FilePath:       relPath,
				LastCommitHash: hash,
				LastModifiedBy: types.SystemUser,
				CreatedAt:      now,
				UpdatedAt:      now,
				UseStatus:      types.StatusUsable,
			}
			if err := r.ms.Insert(ctx, row); err != nil {
				return res, fmt.Errorf("insert %s: %w", relPath, err)
			}
			res.Inserted++
		}
	}

	for _, row := range rows {
		if seenPaths[row.FilePath] || movedIDs[row.ID] {
			continue
		}
		if err := r.ms.Disable(ctx, row.ID); err != nil {
			return res, fmt.Errorf("disable %s: %w", row.FilePath, err)
		}
		if err := r.si.DeleteByTitle(ctx, row.Title); err != nil {
			r.log.Warn("reconciler: search index delete-by-title failed", "title", row.Title, "error", err)
		}
		res.Disabled++
	}

	for _, relPath := range files {
		content, err := r.cs.ReadCurrentContent(ctx, relPath)
		if err != nil {
			r.log.Warn("reconciler: read content store failed during reindex", "path", relPath, "error", err)
			res.IndexErrors++
			continue
		}
		title := titleFromPath(relPath)
		if err := r.si.UpdateDocument(ctx, title, content); err != nil {
			r.log.Warn("reconciler: search index update failed", "title", title, "error", err)
			res.IndexErrors++
			continue
		}
		res.Reindexed++
	}

	return res, nil
}

func titleFromPath(relPath string) string {
	base := path.Base(relPath)
	return strings.TrimSuffix(base, ".md")
}

// dedupeByTitle applies the tie-break rule of spec §4.2: when two
// files share a title, only the lexicographically smallest path is
// kept for registration; the rest are returned as duplicates.
func dedupeByTitle(files []string) (kept []string, duplicates []string) {
	byTitle := make(map[string][]string)
	for _, f := range files {
		t := titleFromPath(f)
		byTitle[t] = append(byTitle[t], f)
	}
	titles := make([]string, 0, len(byTitle))
	for t := range byTitle {
		titles = append(titles, t)
	}
	sort.Strings(titles)

	for _, t := range titles {
		paths := byTitle[t]
		sort.Strings(paths)
		kept = append(kept, paths[0])
		duplicates = append(duplicates, paths[1:]...)
	}
	sort.Strings(kept)
	return kept, duplicates
}
