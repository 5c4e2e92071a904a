package reddit

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultBaseURL      = "https://www.reddit.com"
	DefaultOAuthBaseURL = "https://oauth.reddit.com"
	DefaultTokenURL     = "https://www.reddit.com/api/v1/access_token"

	maxListingLimit = 100
)

type ClientOptions struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Timeout      time.Duration

	// Endpoint overrides, used by tests.
	BaseURL      string
	OAuthBaseURL string
	TokenURL     string
}

// Client reads subreddit listings from the Reddit JSON API. With credentials it
// authenticates with the client-credentials grant, otherwise it reads the public listing.
type Client struct {
	httpClient *http.Client
	baseURL    string
	jsonSuffix string
	timeout    time.Duration
}

func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// The token endpoint is reached through base with a background context, so the
	// client timeout is the only bound on a stalled token fetch.
	base := &http.Client{
		Transport: &userAgentTransport{base: http.DefaultTransport, userAgent: opts.UserAgent},
		Timeout:   timeout,
	}

	if opts.ClientID == "" {
		return &Client{
			httpClient: base,
			baseURL:    strings.TrimRight(cmp.Or(opts.BaseURL, DefaultBaseURL), "/"),
			jsonSuffix: ".json",
			timeout:    timeout,
		}
	}

	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     cmp.Or(opts.TokenURL, DefaultTokenURL),
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &Client{
		httpClient: cc.Client(tokenCtx),
		baseURL:    strings.TrimRight(cmp.Or(opts.OAuthBaseURL, DefaultOAuthBaseURL), "/"),
		timeout:    timeout,
	}
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Kind string   `json:"kind"`
			Data postData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postData struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	URL           string  `json:"url"`
	Permalink     string  `json:"permalink"`
	Author        string  `json:"author"`
	Subreddit     string  `json:"subreddit"`
	CreatedUTC    float64 `json:"created_utc"`
	LinkFlairText *string `json:"link_flair_text"`
}

// FetchNew returns up to limit of the newest posts of subreddit, newest first.
func (c *Client) FetchNew(ctx context.Context, subreddit string, limit int) ([]Post, error) {
	limit = clampLimit(limit)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/r/%s/new%s?limit=%d&raw_json=1", c.baseURL, url.PathEscape(subreddit), c.jsonSuffix, limit)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch r/%s: %w: %w", subreddit, ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to fetch r/%s: %w: HTTP %d %s", subreddit, ErrSourceUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode r/%s listing: %w: %w", subreddit, ErrSourceUnavailable, err)
	}

	posts := make([]Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != "" && child.Kind != "t3" {
			continue
		}
		posts = append(posts, c.normalizePost(child.Data, subreddit))
		if len(posts) == limit {
			break
		}
	}

	return posts, nil
}

func (c *Client) normalizePost(data postData, subreddit string) Post {
	post := Post{
		ID:        data.ID,
		Title:     data.Title,
		Body:      data.Selftext,
		URL:       data.URL,
		Author:    data.Author,
		Subreddit: cmp.Or(data.Subreddit, subreddit),
	}

	if data.Permalink != "" {
		post.Permalink = DefaultBaseURL + data.Permalink
	}

	if data.CreatedUTC > 0 {
		sec := int64(data.CreatedUTC)
		nsec := int64((data.CreatedUTC - float64(sec)) * float64(time.Second))
		post.CreatedAt = time.Unix(sec, nsec).UTC()
	}

	if data.LinkFlairText != nil {
		post.Flair = strings.TrimSpace(*data.LinkFlairText)
	}

	return post
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > maxListingLimit:
		return maxListingLimit
	default:
		return limit
	}
}

