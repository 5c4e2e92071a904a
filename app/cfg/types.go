package cfg

import (
	"time"
)

type Cfg struct {
	// Storage
	DBPath        string
	SeenBackend   string
	MongoURI      string
	MongoDBName   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Sources
	Subreddits     []string
	ValidFlairs    []string
	SourcesDir     string
	SourceType     string
	FetchLimit     int
	PruneThreshold int

	// Reddit
	RedditClientID     string
	RedditClientSecret string
	UserAgent          string

	// Sinks
	TelegramToken     string
	TelegramChatID    string
	DiscordWebhookURL string
	MessageDelay      time.Duration

	// Application
	Port              string
	APIAccessKey      string
	SchedulerInterval int
	Timezone          string
	Location          *time.Location
	Debug             bool
	Version           string
}

const (
	SeenBackendSQLite = "sqlite"
	SeenBackendMongo  = "mongo"
	SeenBackendRedis  = "redis"
	SeenBackendMemory = "memory"
)
