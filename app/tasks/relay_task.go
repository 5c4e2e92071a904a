package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/subrelay/app/relay"
	"github.com/lysyi3m/subrelay/app/sink"
)

type SourceProvider interface {
	GetConfigs() []relay.SourceConfig
}

type Collector interface {
	GetAll(ctx context.Context, sources []relay.SourceConfig) ([][]relay.AcceptedPost, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, batches [][]relay.AcceptedPost) sink.Report
}

// RelayTask collects new posts from every source and hands them to the sinks.
type RelayTask struct {
	Task
	sources    SourceProvider
	collector  Collector
	dispatcher Deliverer

	// LastReport is the delivery report of the most recent attempt.
	LastReport sink.Report
}

func NewRelayTask(sources SourceProvider, collector Collector, dispatcher Deliverer) *RelayTask {
	return &RelayTask{
		Task:       NewTask(TaskTypeRelayRun, ""),
		sources:    sources,
		collector:  collector,
		dispatcher: dispatcher,
	}
}

// Execute delivers whatever was committed before returning a collection error, so
// posts recorded as seen are never silently dropped.
func (t *RelayTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	sources := t.sources.GetConfigs()
	if len(sources) == 0 {
		slog.Info("No sources configured")
		return nil
	}

	batches, collectErr := t.collector.GetAll(ctx, sources)

	accepted := 0
	for _, batch := range batches {
		accepted += len(batch)
	}

	if accepted > 0 {
		t.LastReport = t.dispatcher.Deliver(ctx, batches)
	} else {
		t.LastReport = sink.Report{}
		slog.Info("No new posts to send")
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"id", t.GetID(),
		"duration", t.GetDuration(),
		"sources", len(sources),
		"accepted", accepted,
		"sent", t.LastReport.Sent,
		"failed", t.LastReport.Failed)

	if collectErr != nil {
		return fmt.Errorf("failed to collect posts: %w", collectErr)
	}

	return nil
}
