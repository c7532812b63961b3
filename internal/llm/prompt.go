package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/model"
)

// UncertainText is recorded in place of a narration when the narrator fails.
const UncertainText = "Uncertain: no narration available for this frame."

// BuildPrompt creates the narrator prompt for one frame. It embeds the full checklist and
// a summary of what the detector found in the frame.
func BuildPrompt(checklist model.Checklist, detections []model.Detection) string {
	var steps strings.Builder
	for _, step := range checklist {
		fmt.Fprintf(&steps, "%d. %s\n", step.Index, step.Description)
	}

	return fmt.Sprintf(`You are checking a recording of a manual assembly against its reference checklist.

Reference steps:
%s
Objects detected in this frame: %s

Describe what is happening in this frame. Say which items are visible, whether the case
is open or closed, and which step appears to be in progress or finished. If an item is
not visible, say so plainly.`,
		steps.String(),
		summarizeDetections(detections))
}

// summarizeDetections lists the best confidence per label, strongest first.
func summarizeDetections(detections []model.Detection) string {
	best := make(map[string]float64, len(detections))
	for _, d := range detections {
		if d.Label == "" {
			continue
		}
		if c, ok := best[d.Label]; !ok || d.Confidence > c {
			best[d.Label] = d.Confidence
		}
	}
	if len(best) == 0 {
		return "none"
	}

	labels := make([]string, 0, len(best))
	for l := range best {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if best[labels[i]] != best[labels[j]] {
			return best[labels[i]] > best[labels[j]]
		}
		return labels[i] < labels[j]
	})

	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", l, best[l]))
	}
	return strings.Join(parts, ", ")
}
