package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/logging"
)

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	deny bool
}

func (l *fakeLocker) Run(ctx context.Context, name string, _ time.Duration, fn func(context.Context) error) (bool, error) {
	l.mu.Lock()
	if l.deny || l.held[name] {
		l.mu.Unlock()
		return false, nil
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	l.held[name] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}()
	return true, fn(ctx)
}

func TestRunnerRunsJobsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	job := Job{Name: "count", Interval: 5 * time.Millisecond, Fn: func(context.Context) error {
		calls.Add(1)
		return nil
	}}
	r := NewRunner(logging.Discard(), &fakeLocker{}, time.Second, job)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunnerSkipsWhenLockHeld(t *testing.T) {
	var calls atomic.Int32
	job := Job{Name: "skip", Interval: time.Millisecond, Fn: func(context.Context) error {
		calls.Add(1)
		return nil
	}}
	r := NewRunner(logging.Discard(), &fakeLocker{deny: true}, time.Second, job)

	r.runOnce(context.Background(), job)
	r.runOnce(context.Background(), job)

	assert.Zero(t, calls.Load())
}

func TestRunnerSurvivesErrorsAndPanics(t *testing.T) {
	r := NewRunner(logging.Discard(), &fakeLocker{}, time.Second)

	assert.NotPanics(t, func() {
		r.runOnce(context.Background(), Job{Name: "boom", Fn: func(context.Context) error { panic("boom") }})
		r.runOnce(context.Background(), Job{Name: "err", Fn: func(context.Context) error { return errors.New("db down") }})
	})
}
