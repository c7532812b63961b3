package testutil

import (
	"fmt"

	"github.com/Veraticus/assembly-verify/internal/model"
)

// DefaultConfidence is the detection confidence used by Observation.
const DefaultConfidence = 0.9

// Observation builds a frame observation whose detections carry DefaultConfidence.
func Observation(index int, timestamp float64, narrative string, labels ...string) model.FrameObservation {
	detections := make([]model.Detection, 0, len(labels))
	for _, l := range labels {
		detections = append(detections, model.Detection{Label: l, Confidence: DefaultConfidence})
	}
	return model.FrameObservation{
		Frame: model.Frame{
			ID:        FrameID(index),
			Index:     index,
			Timestamp: timestamp,
		},
		Detections: detections,
		Narrative:  narrative,
	}
}

// FrameID formats a frame identifier the way the frame sources do.
func FrameID(index int) string {
	return fmt.Sprintf("frame_%04d", index)
}

// AssemblySequence is a complete, in-order session of the default checklist:
// items laid out, case opened, both earbuds inserted, case closed, cable connected.
func AssemblySequence() []model.FrameObservation {
	return []model.FrameObservation{
		Observation(0, 0.0, "Items laid out on the table.", model.LabelCase, model.LabelLeftEarbud, model.LabelRightEarbud),
		Observation(1, 0.5, "The charging case is open.", model.LabelCase),
		Observation(2, 1.0, "Left earbud placed in slot.", model.LabelLeftEarbud),
		Observation(3, 1.5, "Right earbud placed in slot.", model.LabelRightEarbud),
		Observation(4, 2.0, "Case closed and LED appears on.", model.LabelCase),
		Observation(5, 2.5, "Cable plugged in; LED lit.", model.LabelCable),
	}
}
