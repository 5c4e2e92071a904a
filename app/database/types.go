package database

import (
	"time"
)

const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

type Delivery struct {
	ID          int64
	Subreddit   string
	PostID      string
	Sink        string
	Status      string // sent, failed
	Error       string
	DeliveredAt time.Time
}

type DeliveryStats struct {
	Total  int
	Sent   int
	Failed int
	LastAt *time.Time
}
