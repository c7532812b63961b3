// Package compare diffs a verification run against a golden reference run.
package compare

import (
	"fmt"
	"sort"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
)

// Compare returns one record per step of the golden run, in golden order. Expected text
// and the reference frame come from the golden run; status, note, timestamp and evidence
// come from the test run, defaulting to missing. Steps only the test run knows are dropped.
// A nil golden run yields nil.
func Compare(test, golden *model.VerificationRun) []model.ComparisonRecord {
	if golden == nil {
		return nil
	}

	steps := goldenSteps(golden)
	records := make([]model.ComparisonRecord, 0, len(steps))
	for _, g := range steps {
		rec := model.ComparisonRecord{
			Index:          g.Index,
			Expected:       g.Expected,
			Status:         model.StatusMissing,
			ReferenceFrame: g.EvidenceFrame,
		}

		if s, ok := test.Step(g.Index); ok {
			rec.Status = s.Status
			rec.Note = s.Note
			rec.EvidenceFrame = s.EvidenceFrame
			if s.Timestamp != nil {
				ts := *s.Timestamp
				rec.Timestamp = &ts
			}
		}
		records = append(records, rec)
	}
	return records
}

// goldenSteps enumerates the golden run's steps. Runs persisted without a step table fall
// back to their checklist, which carries no reference frames.
func goldenSteps(golden *model.VerificationRun) []model.StepStatus {
	if len(golden.Steps) > 0 {
		return golden.Steps
	}
	steps := make([]model.StepStatus, 0, len(golden.Checklist))
	for _, c := range golden.Checklist {
		steps = append(steps, model.StepStatus{Index: c.Index, Expected: c.Description})
	}
	return steps
}

// CheckCompatible reports ErrChecklistMismatch when a step index shared by both runs has
// different wording. Differing lengths are allowed: the golden run decides enumeration.
func CheckCompatible(test, golden *model.VerificationRun) error {
	if test == nil || golden == nil {
		return nil
	}
	for _, g := range goldenSteps(golden) {
		s, ok := test.Step(g.Index)
		if !ok {
			continue
		}
		if s.Expected != g.Expected {
			return fmt.Errorf("%w: step %d is %q in the run but %q in the reference",
				common.ErrChecklistMismatch, g.Index, s.Expected, g.Expected)
		}
	}
	return nil
}

// Summary counts comparison records per status.
type Summary struct {
	Counts map[model.Status]int
	Total  int
}

// Summarize counts records per status.
func Summarize(records []model.ComparisonRecord) Summary {
	sum := Summary{Counts: make(map[model.Status]int)}
	for _, r := range records {
		sum.Counts[r.Status]++
		sum.Total++
	}
	return sum
}

// Passed reports whether every golden step was performed in order.
func (s Summary) Passed() bool {
	return s.Total > 0 && s.Counts[model.StatusDone] == s.Total
}

// Statuses returns the statuses present, sorted by name.
func (s Summary) Statuses() []model.Status {
	out := make([]model.Status, 0, len(s.Counts))
	for st := range s.Counts {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
