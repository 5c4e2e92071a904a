package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type Pruner interface {
	Prune(ctx context.Context, collection string, maxSize int) (int, error)
}

// PruneTask applies the seen-set size policy to one collection outside a relay run.
// MaxSize 0 clears the collection unconditionally.
type PruneTask struct {
	Task
	MaxSize int
	store   Pruner

	Removed int
}

func NewPruneTask(collection string, maxSize int, store Pruner) *PruneTask {
	return &PruneTask{
		Task:    NewTask(TaskTypePruneCollection, collection),
		MaxSize: maxSize,
		store:   store,
	}
}

func (t *PruneTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	removed, err := t.store.Prune(ctx, t.Target, t.MaxSize)
	if err != nil {
		return fmt.Errorf("failed to prune %s: %w", t.Target, err)
	}
	t.Removed = removed

	slog.Info("Task completed",
		"type", t.GetType(),
		"subreddit", t.Target,
		"duration", t.GetDuration(),
		"max_size", t.MaxSize,
		"removed", removed)

	return nil
}
