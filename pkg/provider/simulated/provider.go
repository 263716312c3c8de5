// Package simulated provides a fake asynchronous provider for local development and demos.
// It fabricates completed jobs from elapsed time and must never be registered in production.
package simulated

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-mediagen-be/pkg/provider"

	"github.com/google/uuid"
)

const (
	ProviderName     = "simulated"
	DefaultSampleURL = "https://storage.googleapis.com/gtv-videos-bucket/sample/images/BigBuckBunny.jpg"

	// Tasks nobody polls to completion (cancelled or timed-out polls) are
	// dropped this long after they would have finished.
	abandonedTaskTTL = time.Hour
)

type SimulatedProvider struct {
	Duration  time.Duration
	SampleURL string

	mu    sync.Mutex
	tasks map[string]time.Time
	now   func() time.Time
}

var _ provider.AsyncProvider = &SimulatedProvider{}

func NewSimulatedProvider(duration time.Duration, sampleURL string) *SimulatedProvider {
	if sampleURL == "" {
		sampleURL = DefaultSampleURL
	}
	return &SimulatedProvider{
		Duration:  duration,
		SampleURL: sampleURL,
		tasks:     make(map[string]time.Time),
		now:       time.Now,
	}
}

func (p *SimulatedProvider) Name() string        { return ProviderName }
func (p *SimulatedProvider) Mode() provider.Mode { return provider.ModeAsync }

func (p *SimulatedProvider) Submit(ctx context.Context, req provider.Request) (*provider.Submission, error) {
	taskID := "sim-" + uuid.NewString()
	now := p.now()
	p.mu.Lock()
	p.pruneLocked(now)
	p.tasks[taskID] = now
	p.mu.Unlock()

	return &provider.Submission{
		Handle: &provider.Handle{Provider: ProviderName, TaskID: taskID},
	}, nil
}

func (p *SimulatedProvider) GetStatus(ctx context.Context, taskID string) (*provider.Status, error) {
	p.mu.Lock()
	startedAt, ok := p.tasks[taskID]
	p.mu.Unlock()

	if !ok {
		return &provider.Status{
			State:        provider.StateFailed,
			RawState:     "not_found",
			ErrorMessage: "Task not found. Please try generating again.",
		}, nil
	}

	elapsed := p.now().Sub(startedAt)
	if elapsed < p.Duration {
		progress := int(float64(elapsed) / float64(p.Duration) * 95)
		return &provider.Status{
			State:    provider.StateProcessing,
			RawState: "processing",
			Progress: progress,
		}, nil
	}

	p.mu.Lock()
	delete(p.tasks, taskID)
	p.mu.Unlock()

	return &provider.Status{
		State:        provider.StateCompleted,
		RawState:     "completed",
		Progress:     100,
		ArtifactURLs: []string{fmt.Sprintf("%s?task=%s", p.SampleURL, taskID)},
	}, nil
}

func (p *SimulatedProvider) pruneLocked(now time.Time) {
	cutoff := now.Add(-(p.Duration + abandonedTaskTTL))
	for id, startedAt := range p.tasks {
		if startedAt.Before(cutoff) {
			delete(p.tasks, id)
		}
	}
}

func (p *SimulatedProvider) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}
