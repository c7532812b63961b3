// Package model defines the core data structures for assembly verification.
package model

import (
	"fmt"
	"strings"
)

// GoldenStep is one item of the reference checklist.
type GoldenStep struct {
	Description string `json:"description" yaml:"description"`
	Index       int    `json:"index" yaml:"index"`
}

// Checklist is the ordered list of golden steps. Index order is the required order.
type Checklist []GoldenStep

// Validate checks that the checklist is non-empty and indexed 1..N without gaps.
func (c Checklist) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("checklist has no steps")
	}
	for i, step := range c {
		if step.Index != i+1 {
			return fmt.Errorf("step at position %d has index %d, want %d", i+1, step.Index, i+1)
		}
		if strings.TrimSpace(step.Description) == "" {
			return fmt.Errorf("step %d has no description", step.Index)
		}
	}
	return nil
}

// Step returns the golden step with the given index.
func (c Checklist) Step(index int) (GoldenStep, bool) {
	for _, s := range c {
		if s.Index == index {
			return s, true
		}
	}
	return GoldenStep{}, false
}

// Descriptions returns the step texts in order.
func (c Checklist) Descriptions() []string {
	out := make([]string, len(c))
	for i, s := range c {
		out[i] = s.Description
	}
	return out
}

// NewChecklist numbers the given descriptions from 1.
func NewChecklist(descriptions ...string) Checklist {
	steps := make(Checklist, len(descriptions))
	for i, d := range descriptions {
		steps[i] = GoldenStep{Index: i + 1, Description: d}
	}
	return steps
}
