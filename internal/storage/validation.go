// Package storage persists verification runs and indexes them for reuse.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidRun   = errors.New("invalid verification run")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRun checks that a run can be persisted and found again.
func validateRun(run *model.VerificationRun) error {
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRun)
	}
	if strings.TrimSpace(run.OutputDir) == "" {
		return fmt.Errorf("%w: missing output directory", ErrInvalidRun)
	}
	if len(run.Steps) != len(run.Checklist) {
		return fmt.Errorf("%w: %d steps for %d checklist entries", ErrInvalidRun, len(run.Steps), len(run.Checklist))
	}

	for i, step := range run.Steps {
		if !step.Status.Valid() {
			return fmt.Errorf("%w: step %d has status %q", ErrInvalidRun, step.Index, step.Status)
		}
		if step.Index != run.Checklist[i].Index {
			return fmt.Errorf("%w: step at position %d has index %d, checklist has %d",
				ErrInvalidRun, i, step.Index, run.Checklist[i].Index)
		}
	}
	return nil
}
