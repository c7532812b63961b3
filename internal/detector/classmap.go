// Package detector adapts object-detection backends to checklist item labels.
package detector

import (
	"context"
	"sort"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/service"
)

// DefaultThreshold is the minimum confidence a remapped detection needs to be reported.
const DefaultThreshold = 0.25

// RawDetection is one detection in the backend's own vocabulary.
type RawDetection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// ClassMap remaps backend classes to checklist labels and drops weak or unmapped ones.
type ClassMap struct {
	classes   map[string]string
	threshold float64
}

// NewClassMap builds a class map. Class names are matched case-insensitively.
func NewClassMap(classes map[string]string, threshold float64) ClassMap {
	m := make(map[string]string, len(classes))
	for class, label := range classes {
		m[strings.ToLower(strings.TrimSpace(class))] = label
	}
	return ClassMap{classes: m, threshold: threshold}
}

// DefaultClassMap maps COCO classes onto the earbud charging case checklist.
// No COCO class matches the items exactly, so close look-alikes stand in for them.
func DefaultClassMap() ClassMap {
	return NewClassMap(map[string]string{
		"cell phone": model.LabelCase,
		"mouse":      model.LabelCase,
		"laptop":     model.LabelCase,
		"remote":     model.LabelLeftEarbud,
		"earphone":   model.LabelRightEarbud,
		"tv":         model.LabelCable,
		"keyboard":   model.LabelCable,
	}, DefaultThreshold)
}

// Threshold returns the minimum accepted confidence.
func (c ClassMap) Threshold() float64 {
	return c.threshold
}

// WithThreshold returns a copy of the map using a different confidence threshold.
func (c ClassMap) WithThreshold(threshold float64) ClassMap {
	return ClassMap{classes: c.classes, threshold: threshold}
}

// Labels returns the distinct labels the map can produce, sorted.
func (c ClassMap) Labels() []string {
	seen := make(map[string]struct{}, len(c.classes))
	for _, label := range c.classes {
		seen[label] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for label := range seen {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Apply converts raw detections into checklist detections.
func (c ClassMap) Apply(raw []RawDetection) []model.Detection {
	out := make([]model.Detection, 0, len(raw))
	for _, r := range raw {
		label, ok := c.classes[strings.ToLower(strings.TrimSpace(r.Class))]
		if !ok || r.Confidence < c.threshold {
			continue
		}
		out = append(out, model.Detection{Label: label, Confidence: r.Confidence})
	}
	return out
}

// Noop reports no detections. The narrator alone then drives the run.
type Noop struct{}

var _ service.Detector = Noop{}

// Detect implements service.Detector.
func (Noop) Detect(context.Context, model.Frame) ([]model.Detection, error) {
	return nil, nil
}
