package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ DeliveryRepository = (*DeliveryLog)(nil)

// DeliveryLog records the outcome of every outbound message.
type DeliveryLog struct {
	db *DB
}

func NewDeliveryLog(db *DB) *DeliveryLog {
	return &DeliveryLog{db: db}
}

func (r *DeliveryLog) RecordDelivery(ctx context.Context, delivery Delivery) error {
	if delivery.DeliveredAt.IsZero() {
		delivery.DeliveredAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deliveries (subreddit, post_id, sink, status, error, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, delivery.Subreddit, delivery.PostID, delivery.Sink, delivery.Status, delivery.Error, delivery.DeliveredAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}

	return nil
}

func (r *DeliveryLog) GetDeliveryStats(ctx context.Context, subreddit string) (DeliveryStats, error) {
	var stats DeliveryStats
	var lastAt sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			MAX(delivered_at)
		FROM deliveries
		WHERE subreddit = ?
	`, subreddit).Scan(&stats.Total, &stats.Sent, &stats.Failed, &lastAt)
	if err != nil {
		return DeliveryStats{}, fmt.Errorf("failed to get delivery stats: %w", err)
	}

	if lastAt.Valid {
		if t, err := parseTimestamp(lastAt.String); err == nil {
			stats.LastAt = &t
		}
	}

	return stats, nil
}

func (r *DeliveryLog) GetRecentDeliveries(ctx context.Context, subreddit string, limit int) ([]Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subreddit, post_id, sink, status, error, delivered_at
		FROM deliveries
		WHERE subreddit = ?
		ORDER BY delivered_at DESC, id DESC
		LIMIT ?
	`, subreddit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.Subreddit, &d.PostID, &d.Sink, &d.Status, &d.Error, &d.DeliveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery row: %w", err)
		}
		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery rows: %w", err)
	}

	return deliveries, nil
}

// MAX() drops the column type, so modernc hands the timestamp back as text.
func parseTimestamp(value string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
