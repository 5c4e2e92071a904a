package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const listingJSON = `{
  "kind": "Listing",
  "data": {
    "children": [
      {"kind": "t3", "data": {
        "id": "abc123", "title": "Visa rules changed", "selftext": "Details inside",
        "url": "https://example.com/visa", "permalink": "/r/india/comments/abc123/visa/",
        "author": "someone", "subreddit": "india", "created_utc": 1740830400.5,
        "link_flair_text": " Policy "
      }},
      {"kind": "t1", "data": {"id": "comment"}},
      {"kind": "t3", "data": {
        "id": "def456", "title": "No flair here", "selftext": "",
        "url": "https://example.com/x", "permalink": "/r/india/comments/def456/x/",
        "author": "other", "subreddit": "india", "created_utc": 0,
        "link_flair_text": null
      }}
    ]
  }
}`

func TestClientFetchNewAnonymous(t *testing.T) {
	var gotPath, gotQuery, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingJSON))
	}))
	defer server.Close()

	client := NewClient(ClientOptions{UserAgent: "subrelay-test/1.0", BaseURL: server.URL})

	posts, err := client.FetchNew(context.Background(), "india", 20)
	if err != nil {
		t.Fatalf("FetchNew failed: %v", err)
	}

	if gotPath != "/r/india/new.json" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotQuery != "limit=20&raw_json=1" {
		t.Errorf("unexpected query %s", gotQuery)
	}
	if gotAgent != "subrelay-test/1.0" {
		t.Errorf("unexpected User-Agent %q", gotAgent)
	}

	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}

	first := posts[0]
	if first.ID != "abc123" || first.Title != "Visa rules changed" || first.Body != "Details inside" {
		t.Errorf("unexpected first post: %+v", first)
	}
	if first.Flair != "Policy" {
		t.Errorf("expected trimmed flair Policy, got %q", first.Flair)
	}
	if first.Permalink != "https://www.reddit.com/r/india/comments/abc123/visa/" {
		t.Errorf("unexpected permalink %s", first.Permalink)
	}
	want := time.Date(2025, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	if !first.CreatedAt.Equal(want) {
		t.Errorf("expected CreatedAt %v, got %v", want, first.CreatedAt)
	}

	second := posts[1]
	if second.HasFlair() {
		t.Errorf("expected null flair to map to no flair, got %q", second.Flair)
	}
	if second.HasCreatedAt() {
		t.Errorf("expected missing timestamp, got %v", second.CreatedAt)
	}
}

func TestClientFetchNewRespectsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingJSON))
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL})

	posts, err := client.FetchNew(context.Background(), "india", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Errorf("expected 1 post, got %d", len(posts))
	}
}

func TestClientFetchNewOAuth(t *testing.T) {
	var tokenRequests int
	var listingAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/r/india/new", func(w http.ResponseWriter, r *http.Request) {
		listingAuth = r.Header.Get("Authorization")
		w.Write([]byte(listingJSON))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(ClientOptions{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "subrelay-test/1.0",
		OAuthBaseURL: server.URL,
		TokenURL:     server.URL + "/api/v1/access_token",
	})

	for i := 0; i < 2; i++ {
		if _, err := client.FetchNew(context.Background(), "india", 20); err != nil {
			t.Fatalf("FetchNew failed: %v", err)
		}
	}

	if tokenRequests != 1 {
		t.Errorf("expected token to be fetched once, got %d", tokenRequests)
	}
	if listingAuth != "Bearer tok" {
		t.Errorf("expected bearer token on listing request, got %q", listingAuth)
	}
}

func TestClientFetchNewStalledTokenEndpoint(t *testing.T) {
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})

	server := httptest.NewServer(mux)
	defer server.Close()
	defer close(release)

	client := NewClient(ClientOptions{
		ClientID:     "id",
		ClientSecret: "secret",
		Timeout:      200 * time.Millisecond,
		OAuthBaseURL: server.URL,
		TokenURL:     server.URL + "/api/v1/access_token",
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := client.FetchNew(context.Background(), "india", 20)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSourceUnavailable) {
			t.Errorf("expected ErrSourceUnavailable, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("FetchNew did not return after the token endpoint stalled")
	}
}

func TestClientFetchNewErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>not json</html>"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(ClientOptions{BaseURL: server.URL})

			_, err := client.FetchNew(context.Background(), "india", 20)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrSourceUnavailable) {
				t.Errorf("expected ErrSourceUnavailable, got %v", err)
			}
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 20},
		{-5, 20},
		{25, 25},
		{500, 100},
	}

	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
