// Package notecoordinator implements the Note Coordinator (NC) of spec
// §4.1/§4.3/§4.4/§4.5: the public contract — save, list, search,
// get_history, get_tree — orchestrating the Content Store, Metadata
// Store, and Search Index contracts under the concurrency discipline
// of spec §5.
//
// Grounded on original_source/app/service/note_service.py (the pipeline
// this package reimplements) and on steveyegge-beads/internal/storage/
// dolt/store.go for the otel span-per-operation idiom (a package-level
// Tracer, trace.WithSpanKind(trace.SpanKindInternal), and an endSpan
// helper that records errors onto the span before ending it).
package notecoordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"

	"github.com/noteforge/noteforge/internal/contentstore"
	"github.com/noteforge/noteforge/internal/indexworker"
	"github.com/noteforge/noteforge/internal/metadata"
	"github.com/noteforge/noteforge/internal/searchindex"
	"github.com/noteforge/noteforge/internal/types"
)

var tracer = otel.Tracer("github.com/noteforge/noteforge/notecoordinator")

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// MergeMode selects whether Save attempts a three-way merge before
// surfacing a conflict (spec §4.1 step 3, "the choice must be
// documented at the deployment level" — see DESIGN.md's Open Question
// decision).
type MergeMode int

const (
	// MergeDisabled always surfaces a conflict without attempting a
	// merge: the minimum-conformance implementation.
	MergeDisabled MergeMode = iota
	// MergeAttempt attempts CS's three-way merge first and only
	// surfaces a conflict if the merge itself reports conflict markers.
	MergeAttempt
)

// defaultFTSLimit is the fallback for ftsLimit when the caller does not
// override it via WithFTSLimit (spec §4.3 step 2: "ask SI for up to 100
// matching titles").
const defaultFTSLimit = 100

// Coordinator is the NC implementation.
type Coordinator struct {
	cs       contentstore.Store
	ms       metadata.Store
	si       searchindex.Index
	idx      *indexworker.Worker
	log      *slog.Logger
	mode     MergeMode
	ftsLimit int
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithMergeMode overrides the default MergeDisabled behavior.
func WithMergeMode(mode MergeMode) Option {
	return func(c *Coordinator) { c.mode = mode }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithFTSLimit overrides defaultFTSLimit, sourced from
// config.Config.FTSLimit ("search.fts_limit") in production.
func WithFTSLimit(limit int) Option {
	return func(c *Coordinator) {
		if limit > 0 {
			c.ftsLimit = limit
		}
	}
}

func New(cs contentstore.Store, ms metadata.Store, si searchindex.Index, idx *indexworker.Worker, opts ...Option) *Coordinator {
	c := &Coordinator{cs: cs, ms: ms, si: si, idx: idx, log: slog.Default(), mode: MergeDisabled, ftsLimit: defaultFTSLimit}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fileName maps a title to its CS path (spec §4.1 step 1: "title must
// not include path separators").
func fileName(title string) string {
	return title + ".md"
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return types.WrapValidation("title must not be empty")
	}
	if strings.ContainsAny(title, "/\\") {
		return types.WrapValidation("title must not contain path separators")
	}
	return nil
}

// Save implements spec §4.1's full pipeline.
func (c *Coordinator) Save(ctx context.Context, title, content, userName, lastHash string) (types.SaveResult, error) {
	ctx, span := tracer.Start(ctx, "notecoordinator.save",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("note.title", title)),
	)
	var err error
	defer func() { endSpan(span, err) }()

	if err = validateTitle(title); err != nil {
		return types.SaveResult{}, err
	}

	file := fileName(title)
	existing, lookupErr := c.ms.GetByTitle(ctx, title)
	exists := lookupErr == nil
	if lookupErr != nil && !isNotFound(lookupErr) {
		err = types.WrapIO("save: lookup existing note", lookupErr)
		return types.SaveResult{}, err
	}

	// Conflict check (step 2) and optional merge opportunity (step 3).
	if exists && lastHash != "" && existing.LastCommitHash != lastHash {
		resolved, resolveErr := c.resolveConflict(ctx, existing, content, lastHash)
		if resolveErr != nil {
			err = resolveErr
			return types.SaveResult{}, err
		}
		content = resolved
	}

	message := fmt.Sprintf("Save/Update note: %s", title)
	newHash, commitErr := c.cs.WriteAndCommit(ctx, file, content, userName, message)
	if commitErr != nil {
		err = types.WrapIO("save: content store commit", commitErr)
		return types.SaveResult{}, err
	}

	now := time.Now().UTC()
	action := types.ActionUpdated
	if exists {
		existing.LastCommitHash = newHash
		existing.LastModifiedBy = userName
		existing.UpdatedAt = now
		if updErr := c.ms.Update(ctx, existing); updErr != nil {
			c.log.Error("save: metadata update failed after content store commit; reconciler will fix", "title", title, "error", updErr)
			err = types.WrapIO("save: metadata update", updErr)
			return types.SaveResult{}, err
		}
	} else {
		action = types.ActionCreated
		row := types.Note{
			ID:             uuid.NewString(),
			Title:          title,
			FilePath:       file,
			LastCommitHash: newHash,
			LastModifiedBy: userName,
			CreatedAt:      now,
			UpdatedAt:      now,
			UseStatus:      types.StatusUsable,
		}
		if insErr := c.ms.Insert(ctx, row); insErr != nil {
			c.log.Error("save: metadata insert failed after content store commit; reconciler will fix", "title", title, "error", insErr)
			err = types.WrapIO("save: metadata insert", insErr)
			return types.SaveResult{}, err
		}
	}

	// Step 6: background indexing, never on the request path.
	if c.idx != nil {
		c.idx.EnqueueUpdate(title, content)
	}

	return types.SaveResult{
		Action:     action,
		CommitHash: newHash,
		FileName:   file,
		AuthorName: userName,
	}, nil
}

// resolveConflict implements spec §4.1 step 3. In MergeDisabled mode it
// always returns a *types.ConflictError. In MergeAttempt mode it first
// tries CS's three-way merge (ancestor = content at lastHash, local =
// the client's new content, remote = the server's current content) and
// proceeds with the merged text only if CS reports no conflict
// markers; otherwise it falls through to the same conflict signal.
func (c *Coordinator) resolveConflict(ctx context.Context, existing types.Note, localContent, lastHash string) (string, error) {
	serverContent, err := c.cs.ReadCurrentContent(ctx, existing.FilePath)
	if err != nil {
		return "", types.WrapIO("save: read current content for conflict detail", err)
	}

	if c.mode == MergeAttempt {
		ancestor, ancErr := c.cs.ReadAtCommit(ctx, lastHash, existing.FilePath)
		if ancErr == nil {
			conflict, merged, mergeErr := c.cs.MergeThreeWay(ctx, ancestor, localContent, serverContent)
			if mergeErr == nil && !conflict {
				return merged, nil
			}
		}
	}

	return "", types.NewConflictError(types.ConflictDetail{
		ServerLastHash: existing.LastCommitHash,
		ServerContent:  serverContent,
		ModifiedBy:     existing.LastModifiedBy,
		UpdatedAt:      existing.UpdatedAt,
	})
}

func isNotFound(err error) bool {
	return types.IsNotFound(err)
}
