package polling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-mediagen-be/pkg/apperror"
	"ai-mediagen-be/pkg/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	mu      sync.Mutex
	script  []func() (*provider.Status, error)
	queries int
}

func (p *scriptedProvider) Name() string        { return "scripted" }
func (p *scriptedProvider) Mode() provider.Mode { return provider.ModeAsync }
func (p *scriptedProvider) Submit(ctx context.Context, req provider.Request) (*provider.Submission, error) {
	return nil, errors.New("not used")
}

func (p *scriptedProvider) GetStatus(ctx context.Context, taskID string) (*provider.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.queries
	p.queries++
	if i < len(p.script) {
		return p.script[i]()
	}
	return &provider.Status{State: provider.StateProcessing, RawState: "running"}, nil
}

func processing() (*provider.Status, error) {
	return &provider.Status{State: provider.StateProcessing, RawState: "running", Progress: 20}, nil
}

type memStore struct {
	mu    sync.Mutex
	tasks map[string]PollTask
	saves int
}

func newMemStore() *memStore { return &memStore{tasks: map[string]PollTask{}} }

func (s *memStore) Save(ctx context.Context, task *PollTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.TaskID] = *task
	s.saves++
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*PollTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

// newTestEngine records requested waits instead of sleeping.
func newTestEngine(maxAttempts int, store TaskStore) (*Engine, *[]time.Duration) {
	e := NewEngine(Config{MaxAttempts: maxAttempts, BaseInterval: time.Second}, store, nil)
	var waits []time.Duration
	e.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return e, &waits
}

func TestIntervalFor(t *testing.T) {
	base := 2 * time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{5, 2 * time.Second},
		{6, 3 * time.Second},
		{15, 3 * time.Second},
		{16, 4 * time.Second},
		{60, 4 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IntervalFor(base, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantAttempts int
		wantInterval time.Duration
	}{
		{name: "zero config", cfg: Config{}, wantAttempts: DefaultMaxAttempts, wantInterval: DefaultBaseInterval},
		{name: "negative interval", cfg: Config{BaseInterval: -1}, wantAttempts: DefaultMaxAttempts, wantInterval: DefaultBaseInterval},
		{name: "zero interval", cfg: Config{MaxAttempts: 5, BaseInterval: 0}, wantAttempts: 5, wantInterval: DefaultBaseInterval},
		{name: "explicit", cfg: Config{MaxAttempts: 5, BaseInterval: time.Second}, wantAttempts: 5, wantInterval: time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.cfg, nil, nil)
			assert.Equal(t, tt.wantAttempts, e.cfg.MaxAttempts)
			assert.Equal(t, tt.wantInterval, e.cfg.BaseInterval)
		})
	}
}

func TestEngine_Poll_ZeroIntervalStillWaits(t *testing.T) {
	e := NewEngine(Config{MaxAttempts: 2, BaseInterval: 0}, nil, nil)
	var waits []time.Duration
	e.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	p := &scriptedProvider{script: []func() (*provider.Status, error){processing, processing}}
	_, err := e.Poll(context.Background(), Job{Provider: p, TaskID: "t"})
	require.Error(t, err)

	require.Len(t, waits, 2)
	for _, d := range waits {
		assert.Equal(t, DefaultBaseInterval, d)
	}
}

func TestEngine_Poll_CompletesOnNPlusOneQueries(t *testing.T) {
	const n = 4
	script := make([]func() (*provider.Status, error), 0, n+1)
	for i := 0; i < n; i++ {
		script = append(script, processing)
	}
	script = append(script, func() (*provider.Status, error) {
		return &provider.Status{State: provider.StateCompleted, RawState: "Ready", Progress: 100, ArtifactURLs: []string{"https://x/1.png"}}, nil
	})
	p := &scriptedProvider{script: script}
	store := newMemStore()
	e, waits := newTestEngine(60, store)

	status, err := e.Poll(context.Background(), Job{Provider: p, TaskID: "t1", GenerationID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, provider.StateCompleted, status.State)
	assert.Equal(t, []string{"https://x/1.png"}, status.ArtifactURLs)
	assert.Equal(t, n+1, p.queries)
	assert.Len(t, *waits, n+1)

	saved, _ := store.Get(context.Background(), "t1")
	require.NotNil(t, saved)
	assert.Equal(t, provider.StateCompleted, saved.Status)
	assert.Equal(t, 100, saved.Progress)
	assert.Equal(t, n+1, saved.Attempts)
	assert.Equal(t, "g1", saved.GenerationID)
}

func TestEngine_Poll_AdaptiveIntervals(t *testing.T) {
	p := &scriptedProvider{}
	e, waits := newTestEngine(17, nil)

	_, err := e.Poll(context.Background(), Job{Provider: p, TaskID: "t"})
	require.Error(t, err)

	require.Len(t, *waits, 17)
	assert.Equal(t, time.Second, (*waits)[0])
	assert.Equal(t, time.Second, (*waits)[4])
	assert.Equal(t, 1500*time.Millisecond, (*waits)[5])
	assert.Equal(t, 1500*time.Millisecond, (*waits)[14])
	assert.Equal(t, 2*time.Second, (*waits)[15])
}

func TestEngine_Poll_Timeout(t *testing.T) {
	p := &scriptedProvider{}
	store := newMemStore()
	e, _ := newTestEngine(5, store)

	status, err := e.Poll(context.Background(), Job{Provider: p, TaskID: "slow"})
	assert.Nil(t, status)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeProviderPollTimeout))
	assert.Equal(t, 5, p.queries)

	saved, _ := store.Get(context.Background(), "slow")
	require.NotNil(t, saved)
	assert.Equal(t, provider.StateFailed, saved.Status)
}

func TestEngine_Poll_TerminalFailure(t *testing.T) {
	p := &scriptedProvider{script: []func() (*provider.Status, error){
		processing,
		func() (*provider.Status, error) {
			return &provider.Status{State: provider.StateFailed, RawState: "Content Moderated", ErrorMessage: "moderated"}, nil
		},
	}}
	e, _ := newTestEngine(60, nil)

	status, err := e.Poll(context.Background(), Job{Provider: p, TaskID: "bad"})
	require.Error(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "Content Moderated", status.RawState)

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeProviderTerminal, appErr.Code)
	assert.Equal(t, "moderated", appErr.Message)
	assert.Equal(t, 2, p.queries)
}

func TestEngine_Poll_TransientErrorsCountAsAttempts(t *testing.T) {
	flaky := func() (*provider.Status, error) { return nil, errors.New("connection reset") }
	p := &scriptedProvider{script: []func() (*provider.Status, error){
		flaky, flaky,
		func() (*provider.Status, error) {
			return &provider.Status{State: provider.StateCompleted, ArtifactURLs: []string{"u"}}, nil
		},
	}}
	e, _ := newTestEngine(60, nil)

	status, err := e.Poll(context.Background(), Job{Provider: p, TaskID: "flaky"})
	require.NoError(t, err)
	assert.Equal(t, provider.StateCompleted, status.State)
	assert.Equal(t, 3, p.queries)

	// With every query failing the engine gives up after MaxAttempts.
	always := &scriptedProvider{script: []func() (*provider.Status, error){flaky, flaky, flaky}}
	e2, _ := newTestEngine(3, nil)
	_, err = e2.Poll(context.Background(), Job{Provider: always, TaskID: "dead"})
	assert.True(t, apperror.Is(err, apperror.CodeProviderPollTimeout))
}

func TestEngine_Poll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &scriptedProvider{script: []func() (*provider.Status, error){
		func() (*provider.Status, error) {
			cancel()
			return &provider.Status{State: provider.StateProcessing}, nil
		},
	}}
	store := newMemStore()
	e, _ := newTestEngine(60, store)

	status, err := e.Poll(ctx, Job{Provider: p, TaskID: "cancel-me"})
	assert.Nil(t, status)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, p.queries)

	saved, _ := store.Get(context.Background(), "cancel-me")
	require.NotNil(t, saved)
	assert.Equal(t, "polling cancelled", saved.Message)
}

func TestEngine_Poll_RealSleepHonoursContext(t *testing.T) {
	p := &scriptedProvider{}
	e := NewEngine(Config{MaxAttempts: 3, BaseInterval: time.Hour}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Poll(ctx, Job{Provider: p, TaskID: "t"})
	assert.True(t, apperror.Is(err, apperror.CodeCancelled))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 0, p.queries)
}
