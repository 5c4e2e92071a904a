package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/subrelay/app/database"
	"github.com/lysyi3m/subrelay/app/relay"
	"github.com/lysyi3m/subrelay/app/tasks"
)

const recentDeliveriesLimit = 10

type HandlerOptions struct {
	Sources     SourceCatalog
	SeenStore   SeenCounter
	Deliveries  database.DeliveryRepository
	Scheduler   tasks.TaskSchedulerInterface
	NewRunTask  func() tasks.TaskInterface
	SeenBackend string
	Version     string
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{
		sources:     opts.Sources,
		seenStore:   opts.SeenStore,
		deliveries:  opts.Deliveries,
		scheduler:   opts.Scheduler,
		newRunTask:  opts.NewRunTask,
		seenBackend: opts.SeenBackend,
		version:     opts.Version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                "ok",
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"version":               h.version,
		"seen_backend":          h.seenBackend,
		"loaded_configurations": h.sources.GetConfigCount(),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	configs := h.sources.GetConfigs()
	sources := make([]map[string]interface{}, 0, len(configs))

	enabled := 0
	for _, sourceConfig := range configs {
		if sourceConfig.Enabled {
			enabled++
		}
		sources = append(sources, h.sourceSummary(c, sourceConfig))
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(configs),
		"enabled": enabled,
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.sources.GetConfigs()

	sources := make([]map[string]interface{}, 0, len(configs))
	for _, sourceConfig := range configs {
		info := h.sourceSummary(c, sourceConfig)
		info["type"] = sourceConfig.Type
		info["limit"] = sourceConfig.Limit
		info["flairs"] = sourceConfig.Flairs
		info["extract_content"] = sourceConfig.ExtractContent
		sources = append(sources, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIGetSourceDetails(c *gin.Context) {
	name := c.Param("name")

	sourceConfig, err := h.sources.GetConfig(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	details := h.sourceSummary(c, *sourceConfig)
	details["type"] = sourceConfig.Type
	details["limit"] = sourceConfig.Limit
	details["flairs"] = sourceConfig.Flairs
	details["extract_content"] = sourceConfig.ExtractContent

	if h.deliveries != nil {
		recent, err := h.deliveries.GetRecentDeliveries(c.Request.Context(), name, recentDeliveriesLimit)
		if err != nil {
			slog.Error("Database error", "operation", "get_recent_deliveries", "subreddit", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}

		items := make([]map[string]interface{}, 0, len(recent))
		for _, d := range recent {
			items = append(items, map[string]interface{}{
				"post_id":      d.PostID,
				"sink":         d.Sink,
				"status":       d.Status,
				"error":        d.Error,
				"delivered_at": d.DeliveredAt,
			})
		}
		details["recent_deliveries"] = items
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	if h.scheduler == nil || h.newRunTask == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not available"})
		return
	}

	task := h.newRunTask()
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue task", "type", string(task.GetType()), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue run", "message": err.Error()})
		return
	}

	slog.Info("Relay run triggered via API", "id", task.GetID())

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": task.GetID(),
		"type":    task.GetType(),
	})
}

// APIPruneSource queues a prune of the seen-set of one source. Without max_size
// the collection is cleared.
func (h *Handler) APIPruneSource(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.sources.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	maxSize := 0
	if raw := c.Query("max_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_size must be a non-negative integer"})
			return
		}
		maxSize = parsed
	}

	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler not available"})
		return
	}

	task := tasks.NewPruneTask(name, maxSize, h.seenStore)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue task", "type", string(task.GetType()), "subreddit", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue prune", "message": err.Error()})
		return
	}

	slog.Info("Prune triggered via API", "subreddit", name, "max_size", maxSize, "id", task.GetID())

	c.JSON(http.StatusAccepted, gin.H{
		"task_id":  task.GetID(),
		"type":     task.GetType(),
		"source":   name,
		"max_size": maxSize,
	})
}

func (h *Handler) sourceSummary(c *gin.Context, sourceConfig relay.SourceConfig) map[string]interface{} {
	ctx := c.Request.Context()
	info := map[string]interface{}{
		"name":    sourceConfig.Name,
		"enabled": sourceConfig.Enabled,
	}

	if h.seenStore != nil {
		if count, err := h.seenStore.Count(ctx, sourceConfig.Name); err == nil {
			info["seen"] = count
		} else {
			slog.Warn("Failed to count seen posts", "subreddit", sourceConfig.Name, "error", err)
		}
	}

	if h.deliveries != nil {
		if stats, err := h.deliveries.GetDeliveryStats(ctx, sourceConfig.Name); err == nil {
			info["deliveries"] = map[string]interface{}{
				"total":   stats.Total,
				"sent":    stats.Sent,
				"failed":  stats.Failed,
				"last_at": stats.LastAt,
			}
		} else {
			slog.Warn("Failed to load delivery stats", "subreddit", sourceConfig.Name, "error", err)
		}
	}

	return info
}
