package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/subrelay/app/database"
	"github.com/lysyi3m/subrelay/app/reddit"
	"github.com/lysyi3m/subrelay/app/relay"
	"github.com/lysyi3m/subrelay/app/sink"
)

type staticSources []relay.SourceConfig

func (s staticSources) GetConfigs() []relay.SourceConfig { return s }

type fakeCollector struct {
	batches [][]relay.AcceptedPost
	err     error
}

func (c *fakeCollector) GetAll(ctx context.Context, sources []relay.SourceConfig) ([][]relay.AcceptedPost, error) {
	return c.batches, c.err
}

type fakeDeliverer struct {
	delivered [][]relay.AcceptedPost
}

func (d *fakeDeliverer) Deliver(ctx context.Context, batches [][]relay.AcceptedPost) sink.Report {
	d.delivered = batches
	report := sink.Report{}
	for _, b := range batches {
		report.Posts += len(b)
		report.Sent += len(b)
	}
	return report
}

func accepted(id string) relay.AcceptedPost {
	return relay.AcceptedPost{Post: reddit.Post{ID: id, Subreddit: "india"}}
}

func TestNewTask(t *testing.T) {
	a := NewTask(TaskTypeRelayRun, "")
	b := NewTask(TaskTypePruneCollection, "india")

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected unique ids, got %q and %q", a.ID, b.ID)
	}
	if b.GetTarget() != "india" || b.GetType() != TaskTypePruneCollection {
		t.Errorf("unexpected task %+v", b)
	}
	if a.GetMaxRetries() != DefaultMaxRetries || !a.CanRetry() {
		t.Errorf("unexpected retry settings %+v", a)
	}
	if a.GetDuration() != 0 {
		t.Error("expected zero duration before start")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		a.IncrementRetryCount()
	}
	if a.CanRetry() {
		t.Error("expected retries exhausted")
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := retryDelay(tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRelayTaskDelivers(t *testing.T) {
	collector := &fakeCollector{batches: [][]relay.AcceptedPost{{accepted("a")}, {}, {accepted("b")}}}
	deliverer := &fakeDeliverer{}

	task := NewRelayTask(staticSources{{Name: "india", Enabled: true}}, collector, deliverer)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(deliverer.delivered) != 3 {
		t.Errorf("expected batches handed over unchanged, got %d", len(deliverer.delivered))
	}
	if task.LastReport.Sent != 2 {
		t.Errorf("unexpected report %+v", task.LastReport)
	}
}

func TestRelayTaskDeliversPartialResultsOnStoreFailure(t *testing.T) {
	storeErr := fmt.Errorf("exists: %w", database.ErrStoreUnavailable)
	collector := &fakeCollector{batches: [][]relay.AcceptedPost{{accepted("a")}}, err: storeErr}
	deliverer := &fakeDeliverer{}

	task := NewRelayTask(staticSources{{Name: "india", Enabled: true}}, collector, deliverer)

	err := task.Execute(context.Background())
	if !errors.Is(err, database.ErrStoreUnavailable) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(deliverer.delivered) != 1 {
		t.Error("expected committed posts to be delivered before failing")
	}
}

func TestRelayTaskNothingToSend(t *testing.T) {
	deliverer := &fakeDeliverer{}
	task := NewRelayTask(staticSources{{Name: "india"}}, &fakeCollector{batches: [][]relay.AcceptedPost{{}}}, deliverer)

	if err := task.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if deliverer.delivered != nil {
		t.Error("expected dispatcher not to be called")
	}
}

func TestRelayTaskCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := NewRelayTask(staticSources{{Name: "india"}}, &fakeCollector{}, &fakeDeliverer{})
	if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPruneTask(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemorySeenStore()
	for i := 0; i < 5; i++ {
		store.Insert(ctx, fmt.Sprintf("p%d", i), "india")
	}

	keep := NewPruneTask("india", 10, store)
	if err := keep.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if keep.Removed != 0 {
		t.Errorf("expected nothing removed under threshold, got %d", keep.Removed)
	}

	wipe := NewPruneTask("india", 0, store)
	if err := wipe.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if wipe.Removed != 5 {
		t.Errorf("expected 5 removed, got %d", wipe.Removed)
	}
}

// countingTask fails until it has run failures+1 times.
type countingTask struct {
	Task
	mu       sync.Mutex
	runs     int
	failures int
	done     chan struct{}
}

func (c *countingTask) Execute(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runs++
	if c.runs <= c.failures {
		return errors.New("transient")
	}
	close(c.done)
	return nil
}

func TestSchedulerRunsStartupTaskAndRetries(t *testing.T) {
	task := &countingTask{Task: NewTask(TaskTypeRelayRun, ""), failures: 1, done: make(chan struct{})}

	var once sync.Once
	scheduler := NewScheduler(time.Hour, func() TaskInterface {
		var next TaskInterface = &countingTask{Task: NewTask(TaskTypeRelayRun, ""), done: make(chan struct{})}
		once.Do(func() { next = task })
		return next
	})
	scheduler.Start()
	defer scheduler.Stop()

	select {
	case <-task.done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not succeed after retry")
	}

	task.mu.Lock()
	defer task.mu.Unlock()
	if task.runs != 2 {
		t.Errorf("expected 2 runs, got %d", task.runs)
	}
	if task.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", task.RetryCount)
	}
}

func TestSchedulerRejectsAfterStop(t *testing.T) {
	scheduler := NewScheduler(time.Hour, nil)
	scheduler.Start()
	scheduler.Stop()

	if err := scheduler.EnqueueTask(NewPruneTask("india", 0, database.NewMemorySeenStore())); err == nil {
		t.Error("expected enqueue to fail after stop")
	}
}
