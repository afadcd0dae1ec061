package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/domain"
)

var ErrQueueFull = errors.New("compensation queue is full")

// MalformedEntry is a queued payload that could not be decoded into a task.
type MalformedEntry struct {
	Payload string
	Err     string
}

// MalformedTasksError is returned by Drain next to the tasks that did decode.
// The malformed entries are already removed from the queue.
type MalformedTasksError struct {
	Entries []MalformedEntry
}

func (e *MalformedTasksError) Error() string {
	return fmt.Sprintf("%d malformed compensation task(s), first: %s", len(e.Entries), e.Entries[0].Err)
}

// Queue is a bounded FIFO of pending compensation tasks.
type Queue interface {
	Enqueue(ctx context.Context, task domain.CompensationTask) error
	// Drain removes and returns every queued task in FIFO order.
	// Entries that fail to decode are reported through *MalformedTasksError alongside the valid tasks.
	Drain(ctx context.Context) ([]domain.CompensationTask, error)
	Len(ctx context.Context) (int, error)
}

// MemoryQueue keeps tasks in process memory. Tasks are lost on restart.
type MemoryQueue struct {
	mu       sync.Mutex
	tasks    []domain.CompensationTask
	capacity int
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{capacity: capacity}
}

func (q *MemoryQueue) Enqueue(_ context.Context, task domain.CompensationTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) >= q.capacity {
		return ErrQueueFull
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *MemoryQueue) Drain(_ context.Context) ([]domain.CompensationTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tasks
	q.tasks = nil
	return out, nil
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks), nil
}
