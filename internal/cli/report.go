package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Veraticus/assembly-verify/internal/compare"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/charmbracelet/lipgloss"
)

const maxCellWidth = 48

// RenderSteps writes the step table of a run followed by a one-line summary.
func RenderSteps(w io.Writer, run *model.VerificationRun) error {
	rows := make([][]string, 0, len(run.Steps))
	counts := make(map[model.Status]int)
	for _, s := range run.Steps {
		counts[s.Status]++
		rows = append(rows, []string{
			fmt.Sprint(s.Index),
			truncate(s.Expected),
			FormatStatus(s.Status),
			formatTimestamp(s.Timestamp),
			frameName(s.EvidenceFrame),
			truncate(s.Note),
		})
	}

	var b strings.Builder
	b.WriteString(FormatTitle(fmt.Sprintf("Verification of %s", filepath.Base(run.Video))))
	b.WriteString("\n")
	b.WriteString(renderTable([]string{"#", "Step", "Status", "Time", "Evidence", "Note"}, rows))
	b.WriteString("\n")

	summary := fmt.Sprintf("%d/%d steps done", counts[model.StatusDone], len(run.Steps))
	if counts[model.StatusDone] == len(run.Steps) && len(run.Steps) > 0 {
		b.WriteString(FormatSuccess(summary))
	} else {
		b.WriteString(FormatWarning(summary + statusBreakdown(counts)))
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderComparison writes a golden comparison table and its verdict.
func RenderComparison(w io.Writer, goldenPath string, records []model.ComparisonRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			fmt.Sprint(r.Index),
			truncate(r.Expected),
			FormatStatus(r.Status),
			formatTimestamp(r.Timestamp),
			frameName(r.EvidenceFrame),
			frameName(r.ReferenceFrame),
		})
	}

	var b strings.Builder
	b.WriteString(FormatTitle(fmt.Sprintf("Comparison against %s", goldenPath)))
	b.WriteString("\n")
	b.WriteString(renderTable([]string{"#", "Expected", "Status", "Time", "Evidence", "Reference"}, rows))
	b.WriteString("\n")

	summary := compare.Summarize(records)
	if summary.Passed() {
		b.WriteString(FormatSuccess(fmt.Sprintf("PASS: all %d golden steps done", summary.Total)))
	} else {
		b.WriteString(FormatError(fmt.Sprintf("FAIL: %d/%d golden steps done%s",
			summary.Counts[model.StatusDone], summary.Total, statusBreakdown(summary.Counts))))
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderNarratives writes, for every step with evidence, what the narrator said about the
// evidence frame.
func RenderNarratives(w io.Writer, run *model.VerificationRun) error {
	narratives := run.Narratives()

	var b strings.Builder
	b.WriteString(FormatTitle("Narration at evidence frames"))
	b.WriteString("\n")
	shown := 0
	for _, s := range run.Steps {
		if s.EvidenceFrame == "" {
			continue
		}
		text, ok := narratives[s.EvidenceFrame]
		if !ok || text == "" {
			text = "(no narration recorded)"
		}
		fmt.Fprintf(&b, "%s %d %s: %s\n",
			StatusIcon(s.Status), s.Index, frameName(s.EvidenceFrame), text)
		shown++
	}
	if shown == 0 {
		b.WriteString(SubtleStyle.Render("No step has evidence"))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderRuns writes the indexed runs, newest first as given.
func RenderRuns(w io.Writer, runs []model.RunSummary) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No runs recorded yet"))
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortKey(r.Key),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprint(r.FrameCount),
			r.Video,
			r.OutputDir,
		})
	}

	var b strings.Builder
	b.WriteString(renderTable([]string{"Key", "Created", "Frames", "Video", "Output"}, rows))
	b.WriteString("\n")
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d runs", len(runs))))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// renderTable lays out rows under headers with columns sized to their widest cell.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	header := make([]string, len(headers))
	for i, h := range headers {
		header[i] = TableHeaderStyle.Width(widths[i] + 2).Render(h)
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = TableCellStyle.Width(widths[i] + 2).Render(cell)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(lines, "\n")
}

func statusBreakdown(counts map[model.Status]int) string {
	var parts []string
	for _, s := range []model.Status{model.StatusOutOfOrder, model.StatusUncertain, model.StatusMissing} {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func formatTimestamp(ts *float64) string {
	if ts == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fs", *ts)
}

func frameName(ref string) string {
	if ref == "" {
		return "-"
	}
	return filepath.Base(ref)
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxCellWidth {
		return s
	}
	r := []rune(s)
	return string(r[:maxCellWidth-1]) + "…"
}
