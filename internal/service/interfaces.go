// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/assembly-verify/internal/model"
)

// FrameSource yields sampled frames in non-decreasing timestamp order.
type FrameSource interface {
	// Next returns the next frame, or io.EOF once the source is exhausted.
	Next(ctx context.Context) (model.Frame, error)
	Close() error
}

// Detector labels the objects visible in a single frame.
// Implementations filter by confidence before returning.
type Detector interface {
	Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error)
}

// Narrator produces a free-text description of a frame for the given prompt.
type Narrator interface {
	Describe(ctx context.Context, frame model.Frame, prompt string) (string, error)
}

// RunStore persists verification runs keyed by their identity.
type RunStore interface {
	Load(ctx context.Context, key string) (*model.VerificationRun, error)
	Save(ctx context.Context, run *model.VerificationRun) error
	List(ctx context.Context) ([]model.RunSummary, error)
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// ReportWriter exports a persisted run to an external report destination.
type ReportWriter interface {
	// Write exports the run and returns an identifier of the written report.
	Write(ctx context.Context, run *model.VerificationRun) (string, error)
}
