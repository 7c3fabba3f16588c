package notecoordinator

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noteforge/noteforge/internal/types"
)

// List implements spec §4.3 step 1: keyword-empty listing.
func (c *Coordinator) List(ctx context.Context, page, size int) ([]types.Note, int, error) {
	ctx, span := tracer.Start(ctx, "notecoordinator.list", trace.WithSpanKind(trace.SpanKindInternal))
	var err error
	defer func() { endSpan(span, err) }()

	page, size, err = normalizePageSize(page, size)
	if err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * size

	notes, total, listErr := c.ms.List(ctx, offset, size)
	if listErr != nil {
		err = types.WrapIO("list: metadata store", listErr)
		return nil, 0, err
	}
	return notes, total, nil
}

// Search implements spec §4.3's hybrid search: SI supplies body hits,
// MS supplies the title substring match and the final ordered page.
func (c *Coordinator) Search(ctx context.Context, keyword string, page, size int) ([]types.Note, int, error) {
	ctx, span := tracer.Start(ctx, "notecoordinator.search",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("note.keyword", keyword)),
	)
	var err error
	defer func() { endSpan(span, err) }()

	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return c.List(ctx, page, size)
	}

	page, size, err = normalizePageSize(page, size)
	if err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * size

	bodyTitles, siErr := c.si.Search(ctx, keyword, c.ftsLimit)
	if siErr != nil {
		c.log.Warn("search: search index query failed, falling back to title-only match", "keyword", keyword, "error", siErr)
		bodyTitles = nil
	}

	notes, total, msErr := c.ms.SearchTitleOrSet(ctx, keyword, bodyTitles, offset, size)
	if msErr != nil {
		err = types.WrapIO("search: metadata store", msErr)
		return nil, 0, err
	}
	return notes, total, nil
}

func normalizePageSize(page, size int) (int, int, error) {
	if page < 1 {
		return 0, 0, types.WrapValidation("page must be >= 1")
	}
	if size < 1 {
		return 0, 0, types.WrapValidation("size must be >= 1")
	}
	return page, size, nil
}
