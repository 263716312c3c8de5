// Package scheduler runs the recurring ledger jobs: the daily free tier reset and the
// sweep that catches missed resets and stuck generations.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-mediagen-be/internal/dto"
	"ai-mediagen-be/internal/pkg/logger"

	"github.com/robfig/cron/v3"
)

const (
	DefaultDailySpec = "0 0 * * *"
	DefaultSweepSpec = "0 */6 * * *"

	jobTimeout = 10 * time.Minute
)

type CreditResetter interface {
	ResetStaleFreeTier(ctx context.Context, trigger string) (int, error)
}

type StaleCleaner interface {
	CleanupStale(ctx context.Context, olderThan time.Duration) (*dto.CleanupStaleResponse, error)
}

type Options struct {
	Enabled    bool
	DailySpec  string
	SweepSpec  string
	StaleAfter time.Duration
}

type CreditScheduler struct {
	cron        *cron.Cron
	credits     CreditResetter
	generations StaleCleaner
	logger      logger.ILogger
	opts        Options

	daily cron.Schedule
	sweep cron.Schedule

	mu      sync.Mutex
	lastRun *time.Time
	now     func() time.Time
}

// New parses both schedules up front so a bad spec fails at startup.
func New(credits CreditResetter, generations StaleCleaner, log logger.ILogger, opts Options) (*CreditScheduler, error) {
	if opts.DailySpec == "" {
		opts.DailySpec = DefaultDailySpec
	}
	if opts.SweepSpec == "" {
		opts.SweepSpec = DefaultSweepSpec
	}

	daily, err := cron.ParseStandard(opts.DailySpec)
	if err != nil {
		return nil, fmt.Errorf("invalid daily schedule %q: %w", opts.DailySpec, err)
	}
	sweep, err := cron.ParseStandard(opts.SweepSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", opts.SweepSpec, err)
	}

	s := &CreditScheduler{
		cron:        cron.New(cron.WithLocation(time.UTC)),
		credits:     credits,
		generations: generations,
		logger:      log,
		opts:        opts,
		daily:       daily,
		sweep:       sweep,
		now:         func() time.Time { return time.Now().UTC() },
	}
	s.cron.Schedule(daily, cron.FuncJob(func() { s.runJob("daily", false) }))
	s.cron.Schedule(sweep, cron.FuncJob(func() { s.runJob("sweep", true) }))
	return s, nil
}

func (s *CreditScheduler) Start() {
	if !s.opts.Enabled {
		s.logger.Info("SCHEDULER", "Credit scheduler disabled", nil)
		return
	}
	s.cron.Start()
	s.logger.Info("SCHEDULER", "Credit scheduler started", map[string]interface{}{
		"daily": s.opts.DailySpec,
		"sweep": s.opts.SweepSpec,
	})
}

// Stop halts the cron and returns a context that is done once running jobs finish.
func (s *CreditScheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *CreditScheduler) runJob(trigger string, cleanup bool) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.run(ctx, trigger, cleanup); err != nil {
		s.logger.Error("SCHEDULER", "Scheduled job failed", map[string]interface{}{
			"trigger": trigger,
			"error":   err.Error(),
		})
	}
}

// RunNow performs a manual sweep: the stale reset followed by the stuck generation cleanup.
func (s *CreditScheduler) RunNow(ctx context.Context) (*dto.SchedulerRunResponse, error) {
	return s.run(ctx, "manual", true)
}

func (s *CreditScheduler) run(ctx context.Context, trigger string, cleanup bool) (*dto.SchedulerRunResponse, error) {
	ranAt := s.now()
	res := &dto.SchedulerRunResponse{RanAt: ranAt}

	reset, err := s.credits.ResetStaleFreeTier(ctx, trigger)
	if err != nil {
		return nil, err
	}
	res.UsersReset = reset

	if cleanup && s.generations != nil {
		cleaned, err := s.generations.CleanupStale(ctx, s.opts.StaleAfter)
		if err != nil {
			return nil, err
		}
		res.StaleGenerationsFailed = cleaned.Failed
	}

	s.mu.Lock()
	s.lastRun = &ranAt
	s.mu.Unlock()

	s.logger.Info("SCHEDULER", "Credit job finished", map[string]interface{}{
		"trigger":                  trigger,
		"users_reset":              res.UsersReset,
		"stale_generations_failed": res.StaleGenerationsFailed,
	})
	return res, nil
}

func (s *CreditScheduler) Info() dto.CronInfoResponse {
	s.mu.Lock()
	lastRun := s.lastRun
	s.mu.Unlock()

	info := dto.CronInfoResponse{
		Enabled:   s.opts.Enabled,
		DailySpec: s.opts.DailySpec,
		SweepSpec: s.opts.SweepSpec,
		LastRun:   lastRun,
		Timezone:  time.UTC.String(),
	}
	if s.opts.Enabled {
		now := s.now()
		nextDaily := s.daily.Next(now)
		nextSweep := s.sweep.Next(now)
		info.NextDaily = &nextDaily
		info.NextSweep = &nextSweep
	}
	return info
}
