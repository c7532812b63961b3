package model

import "time"

// Status is the completion classification of a single step.
type Status string

// Step status constants.
const (
	StatusMissing    Status = "missing"
	StatusDone       Status = "done"
	StatusOutOfOrder Status = "out_of_order"
	StatusUncertain  Status = "uncertain"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusMissing, StatusDone, StatusOutOfOrder, StatusUncertain:
		return true
	}
	return false
}

// Promoted reports whether the step was observed as performed.
func (s Status) Promoted() bool {
	return s == StatusDone || s == StatusOutOfOrder
}

// StepStatus is the verification state of one golden step.
type StepStatus struct {
	Timestamp      *float64 `json:"timestamp,omitempty"`
	Expected       string   `json:"expected"`
	Status         Status   `json:"status"`
	EvidenceFrame  string   `json:"evidence_frame,omitempty"`
	Note           string   `json:"note,omitempty"`
	AnnotatedFrame string   `json:"annotated_frame,omitempty"`
	Index          int      `json:"index"`
	Score          float64  `json:"score,omitempty"`
}

// PreparationPolicy selects how the preparation step gathers its required items.
type PreparationPolicy string

// Preparation policies.
const (
	// PolicyFrame requires every item to be visible within a single frame.
	PolicyFrame PreparationPolicy = "frame"
	// PolicyCumulative requires every item to have been seen at some point in the session.
	PolicyCumulative PreparationPolicy = "cumulative"
)

// Valid reports whether p is a known policy.
func (p PreparationPolicy) Valid() bool {
	return p == PolicyFrame || p == PolicyCumulative
}

// VerificationRun is the complete, persisted result of verifying one video.
type VerificationRun struct {
	CreatedAt          time.Time          `json:"created_at"`
	ID                 string             `json:"id"`
	Video              string             `json:"video"`
	OutputDir          string             `json:"output_dir"`
	PreparationPolicy  PreparationPolicy  `json:"preparation_policy,omitempty"`
	GoldenPath         string             `json:"golden,omitempty"`
	Checklist          Checklist          `json:"checklist"`
	Frames             []FrameObservation `json:"frames"`
	Steps              []StepStatus       `json:"steps"`
	CumulativeEvidence []string           `json:"cumulative_evidence"`
	Comparison         []ComparisonRecord `json:"comparison,omitempty"`
}

// Step returns the status recorded for the given step index.
func (r *VerificationRun) Step(index int) (StepStatus, bool) {
	if r == nil {
		return StepStatus{}, false
	}
	for _, s := range r.Steps {
		if s.Index == index {
			return s, true
		}
	}
	return StepStatus{}, false
}

// Narratives maps frame references, as recorded in StepStatus.EvidenceFrame, to the
// narrator text of that frame.
func (r *VerificationRun) Narratives() map[string]string {
	out := make(map[string]string, len(r.Frames))
	for _, f := range r.Frames {
		out[f.Ref()] = f.Narrative
	}
	return out
}

// RunSummary is the index entry of a persisted run.
type RunSummary struct {
	CreatedAt  time.Time
	Key        string
	Video      string
	OutputDir  string
	ResultPath string
	Checksum   string
	FrameCount int
}
