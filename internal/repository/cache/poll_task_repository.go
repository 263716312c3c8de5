package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-mediagen-be/pkg/polling"

	"github.com/redis/go-redis/v9"
)

const (
	pollTaskKeyPrefix  = "poll_task:"
	DefaultPollTaskTTL = 2 * time.Hour
)

// PollTaskRepository keeps PollTasks in Redis so progress survives restarts and is
// visible to every instance.
type PollTaskRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ polling.TaskStore = &PollTaskRepository{}

func NewPollTaskRepository(rdb *redis.Client, ttl time.Duration) *PollTaskRepository {
	if ttl <= 0 {
		ttl = DefaultPollTaskTTL
	}
	return &PollTaskRepository{rdb: rdb, ttl: ttl}
}

func key(taskID string) string {
	return pollTaskKeyPrefix + taskID
}

func (r *PollTaskRepository) Save(ctx context.Context, task *polling.PollTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal poll task: %w", err)
	}
	return r.rdb.Set(ctx, key(task.TaskID), payload, r.ttl).Err()
}

func (r *PollTaskRepository) Get(ctx context.Context, taskID string) (*polling.PollTask, error) {
	payload, err := r.rdb.Get(ctx, key(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var task polling.PollTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, fmt.Errorf("unmarshal poll task: %w", err)
	}
	return &task, nil
}

func (r *PollTaskRepository) Delete(ctx context.Context, taskID string) error {
	return r.rdb.Del(ctx, key(taskID)).Err()
}
