package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/subrelay/app/cfg"
	"github.com/lysyi3m/subrelay/app/database"
	"github.com/lysyi3m/subrelay/app/reddit"
	"github.com/lysyi3m/subrelay/app/relay"
	"github.com/lysyi3m/subrelay/app/sink"
	"github.com/lysyi3m/subrelay/app/tasks"
)

const httpTimeout = 30 * time.Second

// app holds the components shared by the subcommands.
type app struct {
	db         *database.DB
	seenStore  database.SeenStore
	deliveries *database.DeliveryLog
	sources    *relay.ConfigCache
	aggregator *relay.Aggregator
	dispatcher *sink.Dispatcher
}

func newApp(ctx context.Context, appCfg *cfg.Cfg) (*app, error) {
	db, err := openDatabase(appCfg.DBPath)
	if err != nil {
		return nil, err
	}

	seenStore, err := openSeenStore(ctx, appCfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	sources := relay.NewConfigCache(appCfg.SourcesDir, relay.Defaults{
		Subreddits: appCfg.Subreddits,
		Flairs:     appCfg.ValidFlairs,
		Type:       appCfg.SourceType,
		Limit:      appCfg.FetchLimit,
	})
	if err := sources.Run(); err != nil {
		seenStore.Close()
		db.Close()
		return nil, fmt.Errorf("failed to load source configurations: %w", err)
	}
	slog.Info("Source configurations loaded", "count", sources.GetConfigCount(), "dir", appCfg.SourcesDir)

	httpClient := &http.Client{Timeout: httpTimeout}

	apiClient := reddit.NewClient(reddit.ClientOptions{
		ClientID:     appCfg.RedditClientID,
		ClientSecret: appCfg.RedditClientSecret,
		UserAgent:    appCfg.UserAgent,
		Timeout:      httpTimeout,
	})
	rssSource := reddit.NewRSSSource(appCfg.UserAgent, "", httpTimeout)

	pipeline := relay.NewPipeline(seenStore, appCfg.PruneThreshold, appCfg.Location)
	aggregator := relay.NewAggregator(pipeline, map[string]relay.Fetcher{
		relay.SourceTypeAPI: apiClient,
		relay.SourceTypeRSS: rssSource,
	}).WithContentExtractor(relay.NewContentExtractor(httpClient, appCfg.UserAgent, httpTimeout))

	deliveries := database.NewDeliveryLog(db)
	dispatcher := sink.NewDispatcher(appCfg.MessageDelay, buildSinks(appCfg, httpClient)...).WithRecorder(deliveries)

	if dispatcher.SinkCount() == 0 {
		slog.Warn("No sinks configured, accepted posts will not be delivered")
	}

	return &app{
		db:         db,
		seenStore:  seenStore,
		deliveries: deliveries,
		sources:    sources,
		aggregator: aggregator,
		dispatcher: dispatcher,
	}, nil
}

func (a *app) newRunTask() tasks.TaskInterface {
	return tasks.NewRelayTask(a.sources, a.aggregator, a.dispatcher)
}

func (a *app) Close() {
	if err := a.seenStore.Close(); err != nil {
		slog.Warn("Failed to close seen store", "error", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func openDatabase(path string) (*database.DB, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Database ready", "path", path, "version", version, "dirty", dirty)

	return db, nil
}

func openSeenStore(ctx context.Context, appCfg *cfg.Cfg, db *database.DB) (database.SeenStore, error) {
	switch appCfg.SeenBackend {
	case cfg.SeenBackendMongo:
		store, err := database.NewMongoSeenStore(ctx, appCfg.MongoURI, appCfg.MongoDBName)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		return store, nil
	case cfg.SeenBackendRedis:
		store, err := database.NewRedisSeenStore(ctx, appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return store, nil
	case cfg.SeenBackendMemory:
		slog.Warn("Using in-memory seen store, seen posts are forgotten on exit")
		return database.NewMemorySeenStore(), nil
	default:
		return database.NewSeenRepository(db), nil
	}
}

func buildSinks(appCfg *cfg.Cfg, httpClient *http.Client) []sink.Sink {
	var sinks []sink.Sink

	if appCfg.TelegramToken != "" {
		sinks = append(sinks, sink.NewTelegram(httpClient, "", appCfg.TelegramToken, appCfg.TelegramChatID))
	}
	if appCfg.DiscordWebhookURL != "" {
		sinks = append(sinks, sink.NewDiscord(httpClient, appCfg.DiscordWebhookURL))
	}

	return sinks
}
