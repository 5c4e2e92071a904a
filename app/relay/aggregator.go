package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/subrelay/app/reddit"
)

type Aggregator struct {
	pipeline  *Pipeline
	fetchers  map[string]Fetcher
	extractor *ContentExtractor
}

// NewAggregator maps source types to fetchers, e.g. {"api": client, "rss": rssSource}.
func NewAggregator(pipeline *Pipeline, fetchers map[string]Fetcher) *Aggregator {
	return &Aggregator{
		pipeline: pipeline,
		fetchers: fetchers,
	}
}

// WithContentExtractor enables body extraction for sources with ExtractContent set.
func (a *Aggregator) WithContentExtractor(extractor *ContentExtractor) *Aggregator {
	a.extractor = extractor
	return a
}

// GetAll runs every enabled source in order and returns one batch per source.
// Fetch failures yield an empty batch. A store failure stops the run and the batches
// collected so far are returned alongside the error.
func (a *Aggregator) GetAll(ctx context.Context, sources []SourceConfig) ([][]AcceptedPost, error) {
	batches := make([][]AcceptedPost, 0, len(sources))

	for _, source := range sources {
		if !source.Enabled {
			slog.Debug("Source disabled, skipping", "subreddit", source.Name)
			batches = append(batches, []AcceptedPost{})
			continue
		}

		if err := ctx.Err(); err != nil {
			return batches, err
		}

		candidates, err := a.fetch(ctx, source)
		if err != nil {
			if errors.Is(err, reddit.ErrSourceUnavailable) {
				slog.Warn("Source unavailable", "subreddit", source.Name, "error", err)
			} else {
				slog.Error("Failed to fetch source", "subreddit", source.Name, "error", err)
			}
			batches = append(batches, []AcceptedPost{})
			continue
		}

		if len(candidates) == 0 {
			slog.Debug("No candidates", "subreddit", source.Name)
			batches = append(batches, []AcceptedPost{})
			continue
		}

		accepted, err := a.pipeline.Apply(ctx, candidates, source.Name, source.Flairs)
		if err != nil {
			slog.Error("Filter pipeline failed", "subreddit", source.Name, "accepted", len(accepted), "error", err)
			batches = append(batches, a.enrich(ctx, source, accepted))
			return batches, fmt.Errorf("failed to filter r/%s: %w", source.Name, err)
		}

		slog.Info("Source processed",
			"subreddit", source.Name,
			"type", source.Type,
			"candidates", len(candidates),
			"accepted", len(accepted))

		batches = append(batches, a.enrich(ctx, source, accepted))
	}

	return batches, nil
}

func (a *Aggregator) fetch(ctx context.Context, source SourceConfig) ([]reddit.Post, error) {
	sourceType := source.Type
	if sourceType == "" {
		sourceType = SourceTypeAPI
	}

	fetcher, ok := a.fetchers[sourceType]
	if !ok {
		return nil, fmt.Errorf("unknown source type %q", sourceType)
	}

	return fetcher.FetchNew(ctx, source.Name, source.Limit)
}

func (a *Aggregator) enrich(ctx context.Context, source SourceConfig, posts []AcceptedPost) []AcceptedPost {
	if a.extractor == nil || !source.ExtractContent {
		return posts
	}

	for i := range posts {
		if posts[i].Body != "" || posts[i].URL == "" || posts[i].URL == posts[i].Permalink {
			continue
		}

		body, err := a.extractor.ExtractURL(ctx, posts[i].URL)
		if err != nil {
			slog.Warn("Content extraction failed", "subreddit", source.Name, "id", posts[i].ID, "url", posts[i].URL, "error", err)
			continue
		}
		posts[i].Body = body
	}

	return posts
}
