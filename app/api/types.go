package api

import (
	"context"

	"github.com/lysyi3m/subrelay/app/database"
	"github.com/lysyi3m/subrelay/app/relay"
	"github.com/lysyi3m/subrelay/app/tasks"
)

type SourceCatalog interface {
	GetConfigs() []relay.SourceConfig
	GetConfig(name string) (*relay.SourceConfig, error)
	GetConfigCount() int
}

var _ SourceCatalog = (*relay.ConfigCache)(nil)

// SeenCounter is the read and prune side of database.SeenStore.
type SeenCounter interface {
	Count(ctx context.Context, collection string) (int, error)
	Prune(ctx context.Context, collection string, maxSize int) (int, error)
}

type Handler struct {
	sources     SourceCatalog
	seenStore   SeenCounter
	deliveries  database.DeliveryRepository
	scheduler   tasks.TaskSchedulerInterface
	newRunTask  func() tasks.TaskInterface
	seenBackend string
	version     string
}
