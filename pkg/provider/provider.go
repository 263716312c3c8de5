package provider

import (
	"context"
)

// Mode tells the orchestrator whether Submit returns artifacts or a handle to poll.
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

type ArtifactKind string

const (
	ArtifactImage ArtifactKind = "image"
	ArtifactVideo ArtifactKind = "video"
)

// Request is the provider-agnostic generation input.
type Request struct {
	ModelID        string
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	Width          int
	Height         int
	BatchSize      int
	Seed           *int64
	Style          string
	InputImage     string // remote url or data uri, image-to-image models only

	// Video only
	Duration int
	Quality  string
}

// Artifact is one produced media item. Either URL or Data is set.
type Artifact struct {
	Kind     ArtifactKind
	URL      string
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

type Result struct {
	Artifacts []Artifact
}

// Handle identifies a job accepted by an asynchronous provider.
type Handle struct {
	Provider string
	TaskID   string
}

// Submission is what Submit returns: a direct Result for sync providers, a Handle for async ones.
type Submission struct {
	Result *Result
	Handle *Handle
}

type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Status is a provider job status already mapped onto the internal vocabulary.
type Status struct {
	State        State
	Progress     int
	ArtifactURLs []string
	ErrorMessage string
	RawState     string
}

// Provider is implemented by every generation backend.
type Provider interface {
	Name() string
	Mode() Mode
	Submit(ctx context.Context, req Request) (*Submission, error)
}

// AsyncProvider is a Provider whose jobs must be polled to completion.
type AsyncProvider interface {
	Provider
	GetStatus(ctx context.Context, taskID string) (*Status, error)
}
