package database

import (
	"context"
	"errors"
)

// ErrStoreUnavailable marks failures of the backing seen store. Dedup cannot be
// trusted without the store, so callers must not recover from it.
var ErrStoreUnavailable = errors.New("seen store unavailable")

// SeenStore persists ids of posts already relayed, one collection per subreddit.
type SeenStore interface {
	Exists(ctx context.Context, id, collection string) (bool, error)
	Insert(ctx context.Context, id, collection string) error
	// Prune deletes every record of collection once it holds more than maxSize
	// records and reports how many were removed.
	Prune(ctx context.Context, collection string, maxSize int) (int, error)
	Count(ctx context.Context, collection string) (int, error)
	Close() error
}

type DeliveryRepository interface {
	RecordDelivery(ctx context.Context, delivery Delivery) error
	GetDeliveryStats(ctx context.Context, subreddit string) (DeliveryStats, error)
	GetRecentDeliveries(ctx context.Context, subreddit string, limit int) ([]Delivery, error)
}
