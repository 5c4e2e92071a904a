package sink

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/lysyi3m/subrelay/app/database"
	"github.com/lysyi3m/subrelay/app/relay"
)

const DefaultMessageDelay = time.Second

// DeliveryRecorder stores the outcome of every send. database.DeliveryLog implements it.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, delivery database.Delivery) error
}

type Report struct {
	Posts  int
	Sent   int
	Failed int
}

type pacedSink struct {
	sink    Sink
	limiter *rate.Limiter
}

// Dispatcher sends accepted posts to every sink in order, spacing the messages of
// each sink by a fixed delay.
type Dispatcher struct {
	sinks    []pacedSink
	recorder DeliveryRecorder
	now      func() time.Time
}

func NewDispatcher(delay time.Duration, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{now: time.Now}
	for _, s := range sinks {
		limit := rate.Inf
		if delay > 0 {
			limit = rate.Every(delay)
		}
		d.sinks = append(d.sinks, pacedSink{sink: s, limiter: rate.NewLimiter(limit, 1)})
	}
	return d
}

func (d *Dispatcher) WithRecorder(recorder DeliveryRecorder) *Dispatcher {
	d.recorder = recorder
	return d
}

func (d *Dispatcher) SinkCount() int {
	return len(d.sinks)
}

// Deliver blocks until every post has been offered to every sink or ctx is done.
// Send failures are counted and logged; they never stop the batch.
func (d *Dispatcher) Deliver(ctx context.Context, batches [][]relay.AcceptedPost) Report {
	var report Report

	for _, batch := range batches {
		for _, post := range batch {
			report.Posts++

			for _, ps := range d.sinks {
				if err := ps.limiter.Wait(ctx); err != nil {
					slog.Warn("Delivery interrupted", "subreddit", post.Subreddit, "id", post.ID, "sink", ps.sink.Name(), "error", err)
					return report
				}

				err := ps.sink.Send(ctx, post)
				if err != nil {
					report.Failed++
					slog.Error("Failed to deliver post", "subreddit", post.Subreddit, "id", post.ID, "sink", ps.sink.Name(), "error", err)
				} else {
					report.Sent++
					slog.Info("Post delivered", "subreddit", post.Subreddit, "id", post.ID, "sink", ps.sink.Name(), "title", post.Title)
				}

				d.record(ctx, post, ps.sink.Name(), err)
			}
		}
	}

	return report
}

func (d *Dispatcher) record(ctx context.Context, post relay.AcceptedPost, sinkName string, sendErr error) {
	if d.recorder == nil {
		return
	}

	delivery := database.Delivery{
		Subreddit:   post.Subreddit,
		PostID:      post.ID,
		Sink:        sinkName,
		Status:      database.DeliveryStatusSent,
		DeliveredAt: d.now().UTC(),
	}
	if sendErr != nil {
		delivery.Status = database.DeliveryStatusFailed
		delivery.Error = sendErr.Error()
	}

	if err := d.recorder.RecordDelivery(ctx, delivery); err != nil {
		slog.Warn("Failed to record delivery", "subreddit", post.Subreddit, "id", post.ID, "sink", sinkName, "error", err)
	}
}
