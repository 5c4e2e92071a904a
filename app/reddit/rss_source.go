package reddit

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

// RSSSource reads the public Atom listing of a subreddit. The feed does not carry
// link flair, so every post it returns is uncategorised.
type RSSSource struct {
	parser  *gofeed.Parser
	baseURL string
	timeout time.Duration
}

func NewRSSSource(userAgent, baseURL string, timeout time.Duration) *RSSSource {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RSSSource{
		parser:  parser,
		baseURL: strings.TrimRight(cmp.Or(baseURL, DefaultBaseURL), "/"),
		timeout: timeout,
	}
}

func (s *RSSSource) FetchNew(ctx context.Context, subreddit string, limit int) ([]Post, error) {
	limit = clampLimit(limit)

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	feedURL := fmt.Sprintf("%s/r/%s/new/.rss?limit=%d", s.baseURL, url.PathEscape(subreddit), limit)

	feed, err := s.parser.ParseURLWithContext(feedURL, reqCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch r/%s feed: %w: %w", subreddit, ErrSourceUnavailable, err)
	}

	posts := make([]Post, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		posts = append(posts, s.normalizeItem(item, subreddit))
		if len(posts) == limit {
			break
		}
	}

	return posts, nil
}

func (s *RSSSource) normalizeItem(item *gofeed.Item, subreddit string) Post {
	post := Post{
		ID:        strings.TrimPrefix(cmp.Or(item.GUID, item.Link), "t3_"),
		Title:     item.Title,
		Body:      htmlToText(cmp.Or(item.Content, item.Description)),
		URL:       item.Link,
		Permalink: item.Link,
		Subreddit: subreddit,
	}

	if item.Author != nil {
		post.Author = strings.TrimPrefix(item.Author.Name, "/u/")
	}

	if item.PublishedParsed != nil {
		post.CreatedAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		post.CreatedAt = item.UpdatedParsed.UTC()
	}

	return post
}

// htmlToText flattens an HTML fragment to its text, one line per block.
func htmlToText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))

	var b strings.Builder
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseLines(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "blockquote", "pre":
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li", "tr", "blockquote", "pre":
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

func collapseLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
