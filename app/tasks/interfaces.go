package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the HTTP server to request runs outside the cron schedule.
type TaskSchedulerInterface interface {
	Start() error
	Stop()
	EnqueueTask(task TaskInterface) error
	RequestRun() error
}
