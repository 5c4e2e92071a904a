package sink

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/lysyi3m/subrelay/app/relay"
)

const (
	noFlair        = "No Flair"
	unknownElapsed = "Unknown"
	ellipsis       = "..."
)

// Message is the sink-neutral rendering of an accepted post.
type Message struct {
	Subreddit string
	Flair     string
	Title     string
	Elapsed   string
	URL       string
	Body      string
}

func (m Message) Header() string {
	return fmt.Sprintf("r/%s [%s]", m.Subreddit, m.Flair)
}

// NewMessage normalises post text to NFC and fills in display defaults.
func NewMessage(post relay.AcceptedPost) Message {
	flair := post.Flair
	if !post.HasFlair() {
		flair = noFlair
	}

	elapsed := post.ElapsedDescription
	if elapsed == "" {
		elapsed = unknownElapsed
	}

	link := post.URL
	if link == "" {
		link = post.Permalink
	}

	return Message{
		Subreddit: post.Subreddit,
		Flair:     norm.NFC.String(flair),
		Title:     norm.NFC.String(post.Title),
		Elapsed:   elapsed,
		URL:       link,
		Body:      norm.NFC.String(strings.TrimSpace(post.Body)),
	}
}

// truncate keeps the first keep runes of s and appends "..." once s exceeds limit runes.
func truncate(s string, limit, keep int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)
	return string(runes[:min(keep, len(runes))]) + ellipsis
}
