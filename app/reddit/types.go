package reddit

import (
	"errors"
	"time"
)

// ErrSourceUnavailable marks network, auth and decoding failures of a post source.
var ErrSourceUnavailable = errors.New("post source unavailable")

// Post is one candidate fetched from a subreddit.
type Post struct {
	ID        string
	Title     string
	Body      string
	URL       string
	Permalink string
	Author    string
	Subreddit string
	CreatedAt time.Time // zero when the source did not report it
	Flair     string    // empty when the post has no flair
}

func (p Post) HasFlair() bool {
	return p.Flair != ""
}

func (p Post) HasCreatedAt() bool {
	return !p.CreatedAt.IsZero()
}
