package memory

import (
	"context"
	"time"

	"ai-mediagen-be/pkg/polling"

	"github.com/patrickmn/go-cache"
)

// PollTaskRepository is the process-local PollTask store used when Redis is unavailable.
type PollTaskRepository struct {
	cache *cache.Cache
}

var _ polling.TaskStore = &PollTaskRepository{}

func NewPollTaskRepository(ttl time.Duration) *PollTaskRepository {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	// Expired items are purged every 10 minutes.
	c := cache.New(ttl, 10*time.Minute)
	return &PollTaskRepository{
		cache: c,
	}
}

func (r *PollTaskRepository) Save(ctx context.Context, task *polling.PollTask) error {
	copied := *task
	r.cache.Set(task.TaskID, &copied, cache.DefaultExpiration)
	return nil
}

func (r *PollTaskRepository) Get(ctx context.Context, taskID string) (*polling.PollTask, error) {
	if x, found := r.cache.Get(taskID); found {
		copied := *x.(*polling.PollTask)
		return &copied, nil
	}
	return nil, nil
}

func (r *PollTaskRepository) Delete(ctx context.Context, taskID string) error {
	r.cache.Delete(taskID)
	return nil
}
