// Package pattern provides the per-step predicates that decide when a checklist step is complete.
package pattern

import (
	"sort"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/model"
)

// Predicate decides whether a single step is satisfied by the evidence available at one frame.
type Predicate interface {
	// Evaluate reports whether the step holds given this frame and everything seen so far.
	Evaluate(frame FrameEvidence, cumulative Evidence) Result
}

// Result is the outcome of evaluating a predicate.
type Result struct {
	Reason  string
	Score   float64
	Matched bool
}

// FrameEvidence is the per-frame input to predicates.
type FrameEvidence struct {
	Labels    map[string]float64 // label -> best confidence in this frame
	FrameID   string
	Text      string // lower-cased narrative
	Timestamp float64
}

// NewFrameEvidence extracts predicate inputs from an observation.
func NewFrameEvidence(obs model.FrameObservation) FrameEvidence {
	labels := make(map[string]float64, len(obs.Detections))
	for _, d := range obs.Detections {
		if d.Label == "" {
			continue
		}
		if conf, ok := labels[d.Label]; !ok || d.Confidence > conf {
			labels[d.Label] = d.Confidence
		}
	}
	return FrameEvidence{
		FrameID:   obs.ID,
		Timestamp: obs.Timestamp,
		Labels:    labels,
		Text:      strings.ToLower(obs.Narrative),
	}
}

// Evidence is the cumulative set of labels seen during a run, with the best confidence for each.
type Evidence map[string]float64

// Add unions labels into the evidence. Adding an already-seen label only raises its confidence.
func (e Evidence) Add(labels map[string]float64) {
	for label, conf := range labels {
		if prev, ok := e[label]; !ok || conf > prev {
			e[label] = conf
		}
	}
}

// Has reports whether label has been seen.
func (e Evidence) Has(label string) bool {
	_, ok := e[label]
	return ok
}

// Labels returns the seen labels in sorted order.
func (e Evidence) Labels() []string {
	out := make([]string, 0, len(e))
	for label := range e {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
