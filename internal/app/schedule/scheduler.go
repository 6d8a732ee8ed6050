package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Job is a periodic maintenance task.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Runner drives jobs on a UTC gocron scheduler. A job never overlaps with its
// own previous run.
type Runner struct {
	Logger  *slog.Logger
	Jobs    []Job
	Timeout time.Duration
}

var ErrNoJobs = errors.New("schedule: no jobs configured")

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.Jobs) == 0 {
		return ErrNoJobs
	}
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	for _, job := range r.Jobs {
		if job.Every <= 0 || job.Run == nil {
			return errors.New("schedule: job " + job.Name + " needs an interval and a func")
		}
		job := job
		if _, err := scheduler.Every(job.Every).Tag(job.Name).Do(func() { r.runJob(ctx, job) }); err != nil {
			return err
		}
	}
	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()
	if r.Logger != nil {
		r.Logger.Info("scheduler stopped")
	}
	return nil
}

func (r *Runner) runJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = job.Every
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	err := job.Run(runCtx)
	if r.Logger == nil {
		return
	}
	if err != nil {
		r.Logger.Error("scheduled job failed", "job", job.Name, "err", err)
		return
	}
	r.Logger.Debug("scheduled job done", "job", job.Name, "took", time.Since(start))
}
