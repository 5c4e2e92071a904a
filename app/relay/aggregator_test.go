package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lysyi3m/subrelay/app/database"
	"github.com/lysyi3m/subrelay/app/reddit"
)

type fakeFetcher struct {
	posts map[string][]reddit.Post
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) FetchNew(ctx context.Context, subreddit string, limit int) ([]reddit.Post, error) {
	f.calls = append(f.calls, subreddit)
	if err := f.errs[subreddit]; err != nil {
		return nil, err
	}
	return f.posts[subreddit], nil
}

func TestAggregatorGetAll(t *testing.T) {
	fetcher := &fakeFetcher{
		posts: map[string][]reddit.Post{
			"india":  {post("i1", "Policy"), post("i2", "Meme")},
			"golang": {post("g1", "")},
			"empty":  nil,
		},
		errs: map[string]error{
			"down": fmt.Errorf("HTTP 503: %w", reddit.ErrSourceUnavailable),
		},
	}

	aggregator := NewAggregator(newTestPipeline(database.NewMemorySeenStore()), map[string]Fetcher{SourceTypeAPI: fetcher})

	sources := []SourceConfig{
		{Name: "india", Type: SourceTypeAPI, Flairs: []string{"Policy"}, Enabled: true},
		{Name: "down", Enabled: true},
		{Name: "skipped", Type: SourceTypeAPI, Enabled: false},
		{Name: "empty", Type: SourceTypeAPI, Enabled: true},
		{Name: "golang", Type: SourceTypeAPI, Enabled: true},
	}

	batches, err := aggregator.GetAll(context.Background(), sources)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if len(batches) != len(sources) {
		t.Fatalf("expected one batch per source, got %d", len(batches))
	}
	if got := ids(batches[0]); len(got) != 1 || got[0] != "i1" {
		t.Errorf("expected india batch [i1], got %v", got)
	}
	if len(batches[1]) != 0 || len(batches[2]) != 0 || len(batches[3]) != 0 {
		t.Errorf("expected empty batches for failing, disabled and empty sources")
	}
	if got := ids(batches[4]); len(got) != 1 || got[0] != "g1" {
		t.Errorf("expected golang batch [g1], got %v", got)
	}

	want := "india,down,empty,golang"
	if got := strings.Join(fetcher.calls, ","); got != want {
		t.Errorf("expected sequential fetch order %s, got %s", want, got)
	}
}

func TestAggregatorUnknownSourceType(t *testing.T) {
	aggregator := NewAggregator(newTestPipeline(database.NewMemorySeenStore()), map[string]Fetcher{SourceTypeAPI: &fakeFetcher{}})

	batches, err := aggregator.GetAll(context.Background(), []SourceConfig{{Name: "india", Type: SourceTypeRSS, Enabled: true}})
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || len(batches[0]) != 0 {
		t.Errorf("expected one empty batch, got %v", batches)
	}
}

func TestAggregatorStoreFailureReturnsPartialResults(t *testing.T) {
	fetcher := &fakeFetcher{
		posts: map[string][]reddit.Post{
			"first":  {post("a1", "")},
			"second": {post("b1", "")},
			"third":  {post("c1", "")},
		},
	}
	store := &failingStore{MemorySeenStore: database.NewMemorySeenStore(), failExists: true, failAfter: 1}

	aggregator := NewAggregator(newTestPipeline(store), map[string]Fetcher{SourceTypeAPI: fetcher})

	batches, err := aggregator.GetAll(context.Background(), []SourceConfig{
		{Name: "first", Enabled: true},
		{Name: "second", Enabled: true},
		{Name: "third", Enabled: true},
	})
	if !errors.Is(err, database.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected batches for the completed and failing sources, got %d", len(batches))
	}
	if got := ids(batches[0]); len(got) != 1 || got[0] != "a1" {
		t.Errorf("expected first batch [a1], got %v", got)
	}
	if len(batches[1]) != 0 {
		t.Errorf("expected failing source to have no committed posts, got %v", ids(batches[1]))
	}
	if strings.Contains(strings.Join(fetcher.calls, ","), "third") {
		t.Error("run continued after store failure")
	}
}

func TestAggregatorExtractsLinkContent(t *testing.T) {
	page := `<html><head><title>Article</title></head><body><article>
		<h1>Headline</h1>
		<p>This is the main content of the linked article. It is long enough for the readability algorithm to treat it as the main body of the page.</p>
		<p>A second paragraph adds more text so the extracted content passes the character thresholds used when scoring candidates.</p>
		<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information that would be valuable to readers.</p>
	</article></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	defer server.Close()

	link := post("l1", "")
	link.URL = server.URL + "/article"
	self := post("s1", "")
	self.Body = "already has text"
	self.URL = server.URL + "/other"

	fetcher := &fakeFetcher{posts: map[string][]reddit.Post{"news": {link, self}}}

	aggregator := NewAggregator(newTestPipeline(database.NewMemorySeenStore()), map[string]Fetcher{SourceTypeAPI: fetcher}).
		WithContentExtractor(NewContentExtractor(server.Client(), "subrelay-test", 0))

	batches, err := aggregator.GetAll(context.Background(), []SourceConfig{{Name: "news", Enabled: true, ExtractContent: true}})
	if err != nil {
		t.Fatal(err)
	}

	posts := batches[0]
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if !strings.Contains(posts[0].Body, "main content of the linked article") {
		t.Errorf("expected extracted body, got %q", posts[0].Body)
	}
	if posts[1].Body != "already has text" {
		t.Errorf("expected existing body kept, got %q", posts[1].Body)
	}
}
