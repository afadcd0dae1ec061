package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/application"
	"github.com/dmehra2102/Reservation-Pricing-Service/internal/inventory/domain"
)

const DefaultKey = "inventory:compensation:queue"

// enqueueScript appends only while the list is below capacity.
var enqueueScript = redis.NewScript(`
if redis.call("LLEN", KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call("RPUSH", KEYS[1], ARGV[1])
return 1
`)

// Queue keeps compensation tasks in a Redis list so they survive restarts and are shared by all instances.
type Queue struct {
	rdb      *redis.Client
	key      string
	capacity int
}

func NewQueue(rdb *redis.Client, key string, capacity int) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{rdb: rdb, key: key, capacity: capacity}
}

func (q *Queue) Enqueue(ctx context.Context, task domain.CompensationTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode compensation task: %w", err)
	}
	added, err := enqueueScript.Run(ctx, q.rdb, []string{q.key}, payload, q.capacity).Int()
	if err != nil {
		return fmt.Errorf("enqueue compensation task: %w", err)
	}
	if added == 0 {
		return application.ErrQueueFull
	}
	return nil
}

// Drain reads and deletes the list in one MULTI so two sweepers never get the same task.
func (q *Queue) Drain(ctx context.Context) ([]domain.CompensationTask, error) {
	var items *redis.StringSliceCmd
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, q.key, 0, -1)
		pipe.Del(ctx, q.key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain compensation queue: %w", err)
	}

	return decodeTasks(items.Val())
}

// decodeTasks keeps every entry that decodes. Broken entries are collected, never dropped silently.
func decodeTasks(raw []string) ([]domain.CompensationTask, error) {
	tasks := make([]domain.CompensationTask, 0, len(raw))
	var malformed []application.MalformedEntry
	for _, r := range raw {
		var t domain.CompensationTask
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			malformed = append(malformed, application.MalformedEntry{Payload: r, Err: err.Error()})
			continue
		}
		tasks = append(tasks, t)
	}
	if len(malformed) > 0 {
		return tasks, &application.MalformedTasksError{Entries: malformed}
	}
	return tasks, nil
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("compensation queue length: %w", err)
	}
	return int(n), nil
}
