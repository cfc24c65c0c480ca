package health

import (
	"context"
	"fmt"

	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/queue"
	"mercator-hq/strata/pkg/store"
)

// Names of the checks registered by the run command.
const (
	CheckStore         = "store"
	CheckQueue         = "queue"
	CheckArchiveConfig = "archive_config"
)

// pinger is implemented by stores backed by a database connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// StoreCheck reports whether the active store answers. Stores with a
// connection are pinged; others must serve a read.
func StoreCheck(s store.Store) CheckFunc {
	return func(ctx context.Context) error {
		if p, ok := s.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("store unreachable: %w", err)
			}
			return nil
		}
		return s.View(ctx, func(r store.Reader) error {
			_, err := r.Catalogs(ctx, "")
			return err
		})
	}
}

// QueueCheck reports whether the task queue accepts tasks. Archive passes
// fall back to synchronous sweeps while it does not, so an unavailable
// queue is a warning.
func QueueCheck(q queue.Queue) CheckFunc {
	return func(ctx context.Context) error {
		if q == nil {
			return Warning("task queue disabled: archive passes run synchronously")
		}
		if !q.Ready(ctx) {
			return Warning("task queue unavailable: archive passes run synchronously")
		}
		return nil
	}
}

// ArchiveConfigCheck surfaces the archive configuration warning. An
// inactive archive does not make the process unready.
func ArchiveConfigCheck(status func() config.ArchiveStatus) CheckFunc {
	return func(ctx context.Context) error {
		if s := status(); !s.Active {
			return Warning(s.Warning)
		}
		return nil
	}
}
