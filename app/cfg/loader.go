package cfg

import (
	"cmp"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath        string `long:"db-path" env:"DB_PATH" default:"./data/subrelay.db" description:"SQLite database file"`
	SeenBackend   string `long:"seen-backend" env:"SEEN_BACKEND" default:"sqlite" choice:"sqlite" choice:"mongo" choice:"redis" choice:"memory" description:"Backend for the seen-post store"`
	MongoURI      string `long:"mongo-uri" env:"MONGO_URI" description:"MongoDB connection URI (mongo backend)"`
	MongoDBName   string `long:"mongo-db" env:"MONGO_DB_NAME" default:"subrelay" description:"MongoDB database name (mongo backend)"`
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address (redis backend)"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password (redis backend)"`
	RedisDB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number (redis backend)"`

	// Source configuration
	Subreddits     []string `long:"sub" env:"SUB_NAMES" env-delim:"," description:"Subreddits to poll (repeatable)"`
	ValidFlairs    []string `long:"flair" env:"VALID_FLAIRS" env-delim:"," description:"Flair allow-list; empty accepts every flair (repeatable)"`
	SourcesDir     string   `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory with per-subreddit YAML overrides"`
	SourceType     string   `long:"source-type" env:"SOURCE_TYPE" default:"api" choice:"api" choice:"rss" description:"Default post source for subreddits"`
	FetchLimit     int      `long:"fetch-limit" env:"FETCH_LIMIT" default:"20" description:"Number of newest posts fetched per subreddit"`
	PruneThreshold int      `long:"prune-threshold" env:"PRUNE_THRESHOLD" default:"100" description:"Seen ids kept per subreddit before the collection is wiped"`

	// Reddit configuration
	RedditClientID     string `long:"reddit-client-id" env:"REDDIT_CLIENT_ID" description:"Reddit app client id (optional, enables OAuth)"`
	RedditClientSecret string `long:"reddit-client-secret" env:"REDDIT_CLIENT_SECRET" description:"Reddit app client secret"`
	UserAgent          string `long:"user-agent" env:"USER_AGENT" default:"subrelay/1.0" description:"User agent string for HTTP requests"`

	// Sink configuration
	TelegramToken     string        `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"Telegram bot token"`
	TelegramChatID    string        `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat id"`
	DiscordWebhookURL string        `long:"discord-webhook-url" env:"DISCORD_WEBHOOK_URL" description:"Discord webhook URL"`
	MessageDelay      time.Duration `long:"message-delay" env:"MESSAGE_DELAY" default:"1s" description:"Delay between successive messages of one sink"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Scheduler interval in seconds"`
	Timezone          string `long:"timezone" env:"TZ" default:"Asia/Kolkata" description:"Timezone used when describing post age"`
	Debug             bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses args and the environment. It returns nil, nil when help was requested.
func Load(args []string) (*Cfg, error) {
	cfg, _, err := Parse(args)
	return cfg, err
}

// Parse is Load that also returns the positional arguments left after the flags.
func Parse(args []string) (*Cfg, []string, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	rest, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil, nil
			}
		}
		return nil, nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		SeenBackend:        raw.SeenBackend,
		MongoURI:           raw.MongoURI,
		MongoDBName:        raw.MongoDBName,
		RedisAddr:          raw.RedisAddr,
		RedisPassword:      raw.RedisPassword,
		RedisDB:            raw.RedisDB,
		Subreddits:         cleanList(raw.Subreddits),
		ValidFlairs:        cleanList(raw.ValidFlairs),
		SourcesDir:         raw.SourcesDir,
		SourceType:         raw.SourceType,
		FetchLimit:         raw.FetchLimit,
		PruneThreshold:     raw.PruneThreshold,
		RedditClientID:     raw.RedditClientID,
		RedditClientSecret: raw.RedditClientSecret,
		UserAgent:          raw.UserAgent,
		TelegramToken:      raw.TelegramToken,
		TelegramChatID:     raw.TelegramChatID,
		DiscordWebhookURL:  raw.DiscordWebhookURL,
		MessageDelay:       raw.MessageDelay,
		Port:               raw.Port,
		APIAccessKey:       raw.APIAccessKey,
		SchedulerInterval:  raw.SchedulerInterval,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid timezone '%s': %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, rest, nil
}

func (c *Cfg) Validate() error {
	nonNegativeFields := map[string]int{
		"fetch limit":        c.FetchLimit,
		"prune threshold":    c.PruneThreshold,
		"scheduler interval": c.SchedulerInterval,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if c.PruneThreshold == 0 {
		return fmt.Errorf("prune threshold must be positive")
	}

	if c.MessageDelay < 0 {
		return fmt.Errorf("message delay must be non-negative")
	}

	switch c.SeenBackend {
	case SeenBackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo seen backend")
		}
	case SeenBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis seen backend")
		}
	}

	if (c.RedditClientID == "") != (c.RedditClientSecret == "") {
		return fmt.Errorf("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET must be set together")
	}

	if (c.TelegramToken == "") != (c.TelegramChatID == "") {
		return fmt.Errorf("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	return nil
}

// Masked returns the configuration as printable key/value pairs with secrets hidden.
func (c *Cfg) Masked() [][2]string {
	return [][2]string{
		{"SEEN_BACKEND", c.SeenBackend},
		{"DB_PATH", c.DBPath},
		{"MONGO_URI", mask(c.MongoURI)},
		{"MONGO_DB_NAME", c.MongoDBName},
		{"REDIS_ADDR", c.RedisAddr},
		{"REDIS_PASSWORD", mask(c.RedisPassword)},
		{"SUB_NAMES", strings.Join(c.Subreddits, ",")},
		{"VALID_FLAIRS", strings.Join(c.ValidFlairs, ",")},
		{"SOURCES_DIR", c.SourcesDir},
		{"SOURCE_TYPE", c.SourceType},
		{"FETCH_LIMIT", fmt.Sprint(c.FetchLimit)},
		{"PRUNE_THRESHOLD", fmt.Sprint(c.PruneThreshold)},
		{"REDDIT_CLIENT_ID", c.RedditClientID},
		{"REDDIT_CLIENT_SECRET", mask(c.RedditClientSecret)},
		{"USER_AGENT", c.UserAgent},
		{"TELEGRAM_TOKEN", mask(c.TelegramToken)},
		{"TELEGRAM_CHAT_ID", c.TelegramChatID},
		{"DISCORD_WEBHOOK_URL", mask(c.DiscordWebhookURL)},
		{"MESSAGE_DELAY", c.MessageDelay.String()},
		{"PORT", c.Port},
		{"API_ACCESS_KEY", mask(c.APIAccessKey)},
		{"SCHEDULER_INTERVAL", fmt.Sprint(c.SchedulerInterval)},
		{"TZ", c.Timezone},
	}
}

func cleanList(values []string) []string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	return cleaned
}

func mask(value string) string {
	switch {
	case value == "":
		return "[NOT SET]"
	case len(value) > 10:
		return value[:3] + "..." + value[len(value)-3:]
	default:
		return "[set]"
	}
}
