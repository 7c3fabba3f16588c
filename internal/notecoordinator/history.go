package notecoordinator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noteforge/noteforge/internal/types"
)

// GetHistory implements spec §4.4: MS lookup for the current path,
// then CS.file-history, with per-commit diff extraction fanned out
// concurrently (grounded on the errgroup.Group shape in
// other_examples/5f507ace_msolo-git-mg__cmd-git-sync-sync.go.go, which
// joins two independent blocking scans the same way).
func (c *Coordinator) GetHistory(ctx context.Context, title string) (types.History, error) {
	ctx, span := tracer.Start(ctx, "notecoordinator.get_history",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("note.title", title)),
	)
	var err error
	defer func() { endSpan(span, err) }()

	note, lookupErr := c.ms.GetByTitle(ctx, title)
	if lookupErr != nil {
		err = lookupErr
		return types.History{}, err
	}

	commits, histErr := c.cs.FileHistory(ctx, note.FilePath)
	if histErr != nil {
		err = types.WrapIO("get_history: content store file history", histErr)
		return types.History{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range commits {
		i := i
		g.Go(func() error {
			diff, diffErr := c.cs.Diff(gctx, commits[i].Hash, note.FilePath)
			if diffErr != nil {
				// Per-commit diff failure does not abort the whole
				// response (spec §4.4): it becomes a payload, not a
				// propagated error.
				commits[i].Diff = fmt.Sprintf("Diff extraction failed: %s", diffErr)
				return nil
			}
			commits[i].Diff = diff
			return nil
		})
	}
	if waitErr := g.Wait(); waitErr != nil {
		err = types.WrapInternal("get_history: diff fan-out", waitErr)
		return types.History{}, err
	}

	return types.History{Metadata: note, GitHistory: commits}, nil
}
