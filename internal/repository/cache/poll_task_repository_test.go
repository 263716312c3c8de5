package cache

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"ai-mediagen-be/pkg/polling"
	"ai-mediagen-be/pkg/provider"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openRedis connects to REDIS_URL and skips when it is unset or unreachable.
func openRedis(t *testing.T) *redis.Client {
	t.Helper()
	if err := godotenv.Load("../../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping redis test: REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)

	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("Skipping redis test: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNewPollTaskRepository_DefaultTTL(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{name: "zero", ttl: 0, want: DefaultPollTaskTTL},
		{name: "negative", ttl: -time.Minute, want: DefaultPollTaskTTL},
		{name: "explicit", ttl: 10 * time.Minute, want: 10 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPollTaskRepository(nil, tt.ttl).ttl)
		})
	}
	assert.Equal(t, "poll_task:abc", key("abc"))
}

func TestPollTaskRepository_Redis(t *testing.T) {
	rdb := openRedis(t)
	ctx := context.Background()
	repo := NewPollTaskRepository(rdb, 5*time.Minute)

	taskID := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = rdb.Del(context.Background(), key(taskID)).Err() })

	task := &polling.PollTask{
		TaskID:    taskID,
		Provider:  "runway",
		Status:    provider.StateProcessing,
		RawStatus: "rendering",
		Progress:  65,
		Attempts:  4,
	}
	require.NoError(t, repo.Save(ctx, task))

	got, err := repo.Get(ctx, taskID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.Provider, got.Provider)
	assert.Equal(t, task.Status, got.Status)
	assert.Equal(t, task.RawStatus, got.RawStatus)
	assert.Equal(t, task.Progress, got.Progress)
	assert.Equal(t, task.Attempts, got.Attempts)

	ttl, err := rdb.TTL(ctx, key(taskID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 4*time.Minute)
	assert.LessOrEqual(t, ttl, 5*time.Minute)

	// Saving again refreshes the expiry.
	require.NoError(t, rdb.Expire(ctx, key(taskID), time.Minute).Err())
	task.Attempts = 5
	require.NoError(t, repo.Save(ctx, task))
	ttl, err = rdb.TTL(ctx, key(taskID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 4*time.Minute)

	require.NoError(t, repo.Delete(ctx, taskID))
	got, err = repo.Get(ctx, taskID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPollTaskRepository_RedisMissAndCorruptPayload(t *testing.T) {
	rdb := openRedis(t)
	ctx := context.Background()
	repo := NewPollTaskRepository(rdb, time.Minute)

	got, err := repo.Get(ctx, "missing-"+uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)

	corrupt := "corrupt-" + uuid.NewString()
	t.Cleanup(func() { _ = rdb.Del(context.Background(), key(corrupt)).Err() })
	require.NoError(t, rdb.Set(ctx, key(corrupt), "{not json", time.Minute).Err())

	_, err = repo.Get(ctx, corrupt)
	assert.Error(t, err)
}
