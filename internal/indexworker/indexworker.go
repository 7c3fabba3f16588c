// Package indexworker implements the background indexing task of spec
// §4.1 step 6 and §9 "Background indexing": the Note Coordinator
// enqueues a message and returns; a single worker owns the Search
// Index writer lock and applies updates off the request path.
//
// Grounded on steveyegge-beads/internal/storage/dolt/store.go's
// newServerRetryBackoff (exponential backoff via cenkalti/backoff/v4
// bounded by a max elapsed time) for the retry policy, generalized
// from a SQL reconnect loop to a search-index upsert loop.
package indexworker

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/noteforge/noteforge/internal/searchindex"
)

// task is a single queued update; delete tasks carry an empty content
// and are distinguished by delete=true so the worker knows not to
// re-analyze an empty body as real content.
type task struct {
	title   string
	content string
	delete  bool
}

// maxRetryElapsed bounds how long the worker retries a single SI
// operation before giving up and logging the failure for the
// Reconciler to fix later.
const maxRetryElapsed = 10 * time.Second

// Worker is the single background consumer of indexing tasks. Its
// queue is bounded: a full queue means the request-handling goroutine
// must not block on Enqueue, so Enqueue drops (and logs) the new task
// rather than stalling the caller.
type Worker struct {
	si    searchindex.Index
	log   *slog.Logger
	tasks chan task
	done  chan struct{}
}

// New returns a worker with the given queue depth. Call Run in its own
// goroutine to begin draining the queue; cancel Run's context to shut
// it down, then call Stop to wait for Run to return.
func New(si searchindex.Index, queueDepth int, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Worker{
		si:    si,
		log:   log,
		tasks: make(chan task, queueDepth),
		done:  make(chan struct{}),
	}
}

// EnqueueUpdate schedules SI.update-document(title, content). It never
// blocks the caller: if the queue is full, the task is dropped and
// logged — the spec tolerates eventual consistency here (the next
// successful save, or the Reconciler, fixes it).
func (w *Worker) EnqueueUpdate(title, content string) {
	select {
	case w.tasks <- task{title: title, content: content}:
	default:
		w.log.Warn("indexworker: queue full, dropping update", "title", title)
	}
}

// EnqueueDelete schedules SI.delete-by-title(title), with the same
// non-blocking semantics as EnqueueUpdate.
func (w *Worker) EnqueueDelete(title string) {
	select {
	case w.tasks <- task{title: title, delete: true}:
	default:
		w.log.Warn("indexworker: queue full, dropping delete", "title", title)
	}
}

// Run drains the queue until ctx is canceled. Tasks still queued at
// that point are not applied.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.tasks:
			w.apply(ctx, t)
		}
	}
}

// Stop waits for Run to observe ctx cancellation and return. It does
// not cancel Run itself and blocks until Run's context is canceled.
func (w *Worker) Stop() {
	<-w.done
}

func (w *Worker) apply(ctx context.Context, t task) {
	op := func() error {
		if t.delete {
			return w.si.DeleteByTitle(ctx, t.title)
		}
		return w.si.UpdateDocument(ctx, t.title, t.content)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxRetryElapsed

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		w.log.Warn("indexworker: task failed, deferring to reconciler", "title", t.title, "delete", t.delete, "error", err)
	}
}
