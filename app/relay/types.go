package relay

import (
	"context"

	"github.com/lysyi3m/subrelay/app/reddit"
)

const (
	SourceTypeAPI = "api"
	SourceTypeRSS = "rss"
)

// AcceptedPost is a post that passed both gates and was committed to the seen-set.
type AcceptedPost struct {
	reddit.Post
	ElapsedDescription string // empty when the post had no creation time
}

// SourceConfig describes one subreddit to poll.
type SourceConfig struct {
	Name           string   `yaml:"-"`
	Type           string   `yaml:"type"`
	Flairs         []string `yaml:"flairs"`
	Limit          int      `yaml:"limit"`
	Enabled        bool     `yaml:"enabled"`
	ExtractContent bool     `yaml:"extract_content"`
}

// Fetcher is implemented by reddit.Client and reddit.RSSSource.
type Fetcher interface {
	FetchNew(ctx context.Context, subreddit string, limit int) ([]reddit.Post, error)
}
