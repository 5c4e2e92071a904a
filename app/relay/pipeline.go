package relay

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lysyi3m/subrelay/app/reddit"
)

const DefaultPruneThreshold = 100

// SeenStore is the part of database.SeenStore the pipeline depends on.
type SeenStore interface {
	Exists(ctx context.Context, id, collection string) (bool, error)
	Insert(ctx context.Context, id, collection string) error
	Prune(ctx context.Context, collection string, maxSize int) (int, error)
}

type Pipeline struct {
	store     SeenStore
	threshold int
	location  *time.Location
	now       func() time.Time
}

// NewPipeline falls back to DefaultPruneThreshold when threshold is not positive.
func NewPipeline(store SeenStore, threshold int, location *time.Location) *Pipeline {
	if threshold <= 0 {
		threshold = DefaultPruneThreshold
	}
	if location == nil {
		location = time.UTC
	}

	return &Pipeline{
		store:     store,
		threshold: threshold,
		location:  location,
		now:       time.Now,
	}
}

// WithClock replaces the wall clock used for elapsed descriptions.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Apply gates candidates by flair and by the seen-set of collection, commits the
// survivors and returns them in input order. An empty allowList accepts every flair.
func (p *Pipeline) Apply(ctx context.Context, candidates []reddit.Post, collection string, allowList []string) ([]AcceptedPost, error) {
	removed, err := p.store.Prune(ctx, collection, p.threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to prune collection %s: %w", collection, err)
	}
	if removed > 0 {
		slog.Info("Seen-set pruned", "subreddit", collection, "removed", removed, "threshold", p.threshold)
	}

	accepted := make([]AcceptedPost, 0, len(candidates))
	for _, post := range candidates {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}

		if len(allowList) > 0 && !slices.Contains(allowList, post.Flair) {
			slog.Debug("Post rejected by flair", "subreddit", collection, "id", post.ID, "flair", post.Flair)
			continue
		}

		seen, err := p.store.Exists(ctx, post.ID, collection)
		if err != nil {
			return accepted, fmt.Errorf("failed to check post %s in %s: %w", post.ID, collection, err)
		}
		if seen {
			continue
		}

		item := AcceptedPost{Post: post}
		if post.HasCreatedAt() {
			item.ElapsedDescription = DescribeElapsed(post.CreatedAt, p.now(), p.location)
		}

		if err := p.store.Insert(ctx, post.ID, collection); err != nil {
			return accepted, fmt.Errorf("failed to record post %s in %s: %w", post.ID, collection, err)
		}

		accepted = append(accepted, item)
	}

	return accepted, nil
}
