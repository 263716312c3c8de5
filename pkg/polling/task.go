package polling

import (
	"context"
	"time"

	"ai-mediagen-be/pkg/provider"
)

// PollTask is the live view of an asynchronous provider job while it is being polled.
type PollTask struct {
	TaskID       string         `json:"task_id"`
	Provider     string         `json:"provider"`
	GenerationID string         `json:"generation_id,omitempty"`
	Status       provider.State `json:"status"`
	RawStatus    string         `json:"raw_status,omitempty"`
	Progress     int            `json:"progress"`
	Attempts     int            `json:"attempts"`
	Message      string         `json:"message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TaskStore keeps PollTasks keyed by task id. Implementations expire entries on their own.
type TaskStore interface {
	Save(ctx context.Context, task *PollTask) error
	Get(ctx context.Context, taskID string) (*PollTask, error)
	Delete(ctx context.Context, taskID string) error
}
