package reconciler

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch triggers Run whenever CS's working directory changes
// out-of-band (spec §4.2 "on demand"). Rapid bursts of filesystem
// events are debounced into a single reconciliation pass. Only root
// itself is watched, not its subdirectories, so a change inside a
// subfolder does not trigger a run.
//
// Grounded on steveyegge-beads/cmd/bd/show_display.go's watchIssue,
// which uses the same fsnotify-plus-debounce-timer shape to avoid
// reacting to every individual write in a burst.
func (r *Reconciler) Watch(ctx context.Context, root string, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		return err
	}

	var timer *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Warn("reconciler: watcher error", "error", err)
		case <-trigger:
			if _, err := r.Run(ctx); err != nil {
				r.log.Error("reconciler: on-demand run failed", "error", err)
			} else {
				r.log.Info("reconciler: on-demand run complete")
			}
		}
	}
}
