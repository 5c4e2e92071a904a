package tasks

// TaskSchedulerInterface is what the CLI and the HTTP API use to drive background work.
//
//	scheduler := NewScheduler(interval, func() TaskInterface { return NewRelayTask(...) })
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewPruneTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
