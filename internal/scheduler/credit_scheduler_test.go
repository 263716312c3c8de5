package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-mediagen-be/internal/dto"
	"ai-mediagen-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResetter struct {
	triggers []string
	reset    int
	err      error
}

func (f *fakeResetter) ResetStaleFreeTier(ctx context.Context, trigger string) (int, error) {
	f.triggers = append(f.triggers, trigger)
	return f.reset, f.err
}

type fakeCleaner struct {
	calls     int
	olderThan time.Duration
}

func (f *fakeCleaner) CleanupStale(ctx context.Context, olderThan time.Duration) (*dto.CleanupStaleResponse, error) {
	f.calls++
	f.olderThan = olderThan
	return &dto.CleanupStaleResponse{Failed: 2, Refunded: 2}, nil
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, opts Options) (*CreditScheduler, *fakeResetter, *fakeCleaner) {
	t.Helper()
	resetter := &fakeResetter{reset: 3}
	cleaner := &fakeCleaner{}
	s, err := New(resetter, cleaner, logger.NewNopLogger(), opts)
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s, resetter, cleaner
}

func TestCreditScheduler_RunNow(t *testing.T) {
	s, resetter, cleaner := newTestScheduler(t, Options{Enabled: true, StaleAfter: 12 * time.Hour})

	res, err := s.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.UsersReset)
	assert.Equal(t, 2, res.StaleGenerationsFailed)
	assert.Equal(t, fixedNow, res.RanAt)
	assert.Equal(t, []string{"manual"}, resetter.triggers)
	assert.Equal(t, 1, cleaner.calls)
	assert.Equal(t, 12*time.Hour, cleaner.olderThan)

	info := s.Info()
	require.NotNil(t, info.LastRun)
	assert.Equal(t, fixedNow, *info.LastRun)
}

func TestCreditScheduler_JobsShareTheResetPath(t *testing.T) {
	s, resetter, cleaner := newTestScheduler(t, Options{Enabled: true})

	s.runJob("daily", false)
	s.runJob("sweep", true)

	assert.Equal(t, []string{"daily", "sweep"}, resetter.triggers)
	assert.Equal(t, 1, cleaner.calls, "only the sweep cleans up generations")
}

func TestCreditScheduler_ResetFailure(t *testing.T) {
	s, resetter, cleaner := newTestScheduler(t, Options{Enabled: true})
	resetter.err = errors.New("db down")

	_, err := s.RunNow(context.Background())
	assert.Error(t, err)
	assert.Zero(t, cleaner.calls)
	assert.Nil(t, s.Info().LastRun)
}

func TestCreditScheduler_Info(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		nextDaily *time.Time
		nextSweep *time.Time
	}{
		{
			name:      "defaults",
			opts:      Options{Enabled: true},
			nextDaily: ptr(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)),
			nextSweep: ptr(time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)),
		},
		{
			name:      "custom specs",
			opts:      Options{Enabled: true, DailySpec: "30 2 * * *", SweepSpec: "*/15 * * * *"},
			nextDaily: ptr(time.Date(2025, 3, 11, 2, 30, 0, 0, time.UTC)),
			nextSweep: ptr(time.Date(2025, 3, 10, 12, 15, 0, 0, time.UTC)),
		},
		{
			name: "disabled",
			opts: Options{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestScheduler(t, tt.opts)
			info := s.Info()
			assert.Equal(t, tt.opts.Enabled, info.Enabled)
			assert.Equal(t, "UTC", info.Timezone)
			assert.Equal(t, tt.nextDaily, info.NextDaily)
			assert.Equal(t, tt.nextSweep, info.NextSweep)
		})
	}
}

func TestNew_RejectsInvalidSpec(t *testing.T) {
	_, err := New(&fakeResetter{}, nil, logger.NewNopLogger(), Options{DailySpec: "every day"})
	assert.Error(t, err)
}

func ptr(t time.Time) *time.Time { return &t }
