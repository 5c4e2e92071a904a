package sink

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/subrelay/app/relay"
)

const (
	DefaultTelegramAPIURL = "https://api.telegram.org"
	telegramBodyLimit     = 3000
)

var _ Sink = (*Telegram)(nil)

// Characters that open an entity in legacy Markdown.
var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// Telegram posts messages to one chat through the Bot API.
type Telegram struct {
	httpClient *http.Client
	apiURL     string
	token      string
	chatID     string
}

func NewTelegram(httpClient *http.Client, apiURL, token, chatID string) *Telegram {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Telegram{
		httpClient: httpClient,
		apiURL:     strings.TrimRight(cmp.Or(apiURL, DefaultTelegramAPIURL), "/"),
		token:      token,
		chatID:     chatID,
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

type telegramRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, post relay.AcceptedPost) error {
	payload, err := json.Marshal(telegramRequest{
		ChatID:    t.chatID,
		Text:      FormatTelegram(NewMessage(post)),
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("failed to encode telegram message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// The request URL carries the bot token.
		return fmt.Errorf("failed to call telegram: %w: %s", ErrDeliveryFailed, redact(err.Error(), t.token))
	}
	defer resp.Body.Close()

	var result telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode telegram response (HTTP %d): %w: %w", resp.StatusCode, ErrDeliveryFailed, err)
	}

	if resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("telegram rejected message: %w: %d %s", ErrDeliveryFailed, cmp.Or(result.ErrorCode, resp.StatusCode), result.Description)
	}

	return nil
}

// FormatTelegram renders a message in Telegram legacy Markdown.
func FormatTelegram(m Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*New Post from r/%s* [%s]\n", escapeMarkdown(m.Subreddit), escapeMarkdown(m.Flair))
	fmt.Fprintf(&b, "*Title:* %s\n", escapeMarkdown(m.Title))
	fmt.Fprintf(&b, "*Posted:* %s\n", m.Elapsed)
	fmt.Fprintf(&b, "*URL:* %s\n", escapeMarkdown(m.URL))

	if m.Body != "" {
		b.WriteString("\n")
		b.WriteString(escapeMarkdown(truncate(m.Body, telegramBodyLimit, telegramBodyLimit)))
	}

	return b.String()
}

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "[redacted]")
}
