package sheets

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/assembly-verify/internal/model"
)

const (
	reportColumns = 7
	statusColumn  = 2
)

type statusCell struct {
	status model.Status
	row    int
}

// report is the row layout of one exported run.
type report struct {
	values      [][]any
	headerRows  []int
	statusCells []statusCell
}

// Rows returns the cell values written for a run: a summary block, the step table and,
// when the run was compared, the comparison table.
func Rows(run *model.VerificationRun) [][]any {
	return buildReport(run).values
}

func buildReport(run *model.VerificationRun) report {
	var r report

	performed := 0
	for _, s := range run.Steps {
		if s.Status.Promoted() {
			performed++
		}
	}

	r.values = append(r.values,
		[]any{"Assembly Verification", run.Video},
		[]any{},
		[]any{"Run", run.ID},
		[]any{"Created", run.CreatedAt.UTC().Format(time.RFC3339)},
		[]any{"Output directory", run.OutputDir},
		[]any{"Preparation policy", string(run.PreparationPolicy)},
		[]any{"Frames observed", len(run.Frames)},
		[]any{"Steps performed", fmt.Sprintf("%d/%d", performed, len(run.Steps))},
		[]any{"Evidence seen", strings.Join(run.CumulativeEvidence, ", ")},
		[]any{},
	)

	r.header("Step", "Expected", "Status", "Time (s)", "Evidence frame", "Annotated frame", "Note")
	for _, s := range run.Steps {
		r.statusRow(s.Status, []any{
			s.Index,
			s.Expected,
			string(s.Status),
			seconds(s.Timestamp),
			baseName(s.EvidenceFrame),
			baseName(s.AnnotatedFrame),
			s.Note,
		})
	}

	if len(run.Comparison) == 0 {
		return r
	}

	r.values = append(r.values,
		[]any{},
		[]any{"Golden", run.GoldenPath},
	)
	r.header("Step", "Expected", "Status", "Time (s)", "Test frame", "Reference frame", "Note")
	for _, c := range run.Comparison {
		r.statusRow(c.Status, []any{
			c.Index,
			c.Expected,
			string(c.Status),
			seconds(c.Timestamp),
			baseName(c.EvidenceFrame),
			baseName(c.ReferenceFrame),
			c.Note,
		})
	}

	return r
}

func (r *report) header(cols ...any) {
	r.headerRows = append(r.headerRows, len(r.values))
	r.values = append(r.values, cols)
}

func (r *report) statusRow(status model.Status, row []any) {
	r.statusCells = append(r.statusCells, statusCell{row: len(r.values), status: status})
	r.values = append(r.values, row)
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
