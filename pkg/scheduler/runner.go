package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Locker interface {
	Run(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) (bool, error)
}

// Job runs Fn every Interval on at most one instance at a time.
type Job struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error
}

type Runner struct {
	log     *slog.Logger
	locker  Locker
	lockTTL time.Duration
	jobs    []Job
}

func NewRunner(log *slog.Logger, locker Locker, lockTTL time.Duration, jobs ...Job) *Runner {
	return &Runner{log: log, locker: locker, lockTTL: lockTTL, jobs: jobs}
}

// Run blocks until ctx is cancelled and every job goroutine has returned.
func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, job := range r.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			r.loop(ctx, job)
		}(job)
	}
	wg.Wait()
	return nil
}

func (r *Runner) loop(ctx context.Context, job Job) {
	t := time.NewTicker(job.Interval)
	defer t.Stop()

	r.log.Info("job scheduled", "job", job.Name, "interval", job.Interval.String())
	for {
		select {
		case <-ctx.Done():
			r.log.Info("job stopping", "job", job.Name)
			return
		case <-t.C:
			r.runOnce(ctx, job)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("job panicked", "job", job.Name, "panic", p)
		}
	}()

	start := time.Now()
	ran, err := r.locker.Run(ctx, job.Name, r.lockTTL, job.Fn)
	if err != nil {
		r.log.Error("job failed", "job", job.Name, "err", err)
		return
	}
	if ran {
		r.log.Debug("job finished", "job", job.Name, "took", time.Since(start).String())
	}
}
