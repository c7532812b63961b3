package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(v float64) *float64 { return &v }

func TestRenderSteps(t *testing.T) {
	run := &model.VerificationRun{
		Video: "/videos/session.mp4",
		Steps: []model.StepStatus{
			{Index: 1, Expected: "Open the charging case fully", Status: model.StatusDone, Timestamp: ts(1.3), EvidenceFrame: "/out/frames/frame_0003.jpg", Note: "case detected, narrative mentions open"},
			{Index: 2, Expected: "Insert left earbud into left slot", Status: model.StatusOutOfOrder, Timestamp: ts(0.5), EvidenceFrame: "frame_0001"},
			{Index: 3, Expected: "Connect charging cable; LED should light", Status: model.StatusMissing},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderSteps(&buf, run))
	out := buf.String()

	assert.Contains(t, out, "Verification of session.mp4")
	assert.Contains(t, out, "Open the charging case fully")
	assert.Contains(t, out, "frame_0003.jpg")
	assert.NotContains(t, out, "/out/frames")
	assert.Contains(t, out, "1.3s")
	assert.Contains(t, out, "out_of_order")
	assert.Contains(t, out, "1/3 steps done (1 out_of_order, 1 missing)")
}

func TestRenderSteps_AllDone(t *testing.T) {
	run := &model.VerificationRun{
		Video: "a.mp4",
		Steps: []model.StepStatus{{Index: 1, Expected: "x", Status: model.StatusDone}},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderSteps(&buf, run))
	assert.Contains(t, buf.String(), SuccessIcon+" 1/1 steps done")
}

func TestRenderNarratives(t *testing.T) {
	run := &model.VerificationRun{
		Frames: []model.FrameObservation{
			{Frame: model.Frame{ID: "frame_0001", Path: "/out/frames/frame_0001.jpg"}, Narrative: "The charging case is open."},
			{Frame: model.Frame{ID: "frame_0004"}, Narrative: ""},
		},
		Steps: []model.StepStatus{
			{Index: 1, Status: model.StatusDone, EvidenceFrame: "/out/frames/frame_0001.jpg"},
			{Index: 2, Status: model.StatusOutOfOrder, EvidenceFrame: "frame_0004"},
			{Index: 3, Status: model.StatusMissing},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderNarratives(&buf, run))
	out := buf.String()

	assert.Contains(t, out, "1 frame_0001.jpg: The charging case is open.")
	assert.Contains(t, out, "2 frame_0004: (no narration recorded)")
	assert.NotContains(t, out, "3 -:")

	buf.Reset()
	require.NoError(t, RenderNarratives(&buf, &model.VerificationRun{Steps: run.Steps[2:]}))
	assert.Contains(t, buf.String(), "No step has evidence")
}

func TestRenderComparison(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		records []model.ComparisonRecord
	}{
		{
			name: "pass",
			records: []model.ComparisonRecord{
				{Index: 1, Expected: "Open case", Status: model.StatusDone, ReferenceFrame: "golden/frame_0002.jpg"},
				{Index: 2, Expected: "Close case", Status: model.StatusDone},
			},
			want: "PASS: all 2 golden steps done",
		},
		{
			name: "fail",
			records: []model.ComparisonRecord{
				{Index: 1, Expected: "Open case", Status: model.StatusDone},
				{Index: 2, Expected: "Connect cable", Status: model.StatusMissing},
			},
			want: "FAIL: 1/2 golden steps done (1 missing)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderComparison(&buf, "golden.json", tt.records))
			out := buf.String()
			assert.Contains(t, out, "Comparison against golden.json")
			assert.Contains(t, out, tt.want)
			for _, r := range tt.records {
				assert.Contains(t, out, r.Expected)
			}
		})
	}
}

func TestRenderRuns(t *testing.T) {
	var empty bytes.Buffer
	require.NoError(t, RenderRuns(&empty, nil))
	assert.Contains(t, empty.String(), "No runs recorded yet")

	var buf bytes.Buffer
	require.NoError(t, RenderRuns(&buf, []model.RunSummary{
		{
			Key:        "6f1c2a3b-0000-5000-8000-000000000000",
			Video:      "/videos/session.mp4",
			OutputDir:  "/runs/out_session",
			FrameCount: 42,
			CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}))
	out := buf.String()
	assert.Contains(t, out, "6f1c2a3b")
	assert.NotContains(t, out, "6f1c2a3b-0000")
	assert.Contains(t, out, "/videos/session.mp4")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "1 runs")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))

	long := strings.Repeat("ab", maxCellWidth)
	got := truncate(long)
	assert.Equal(t, maxCellWidth, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestFormatStatus(t *testing.T) {
	for _, s := range []model.Status{model.StatusDone, model.StatusOutOfOrder, model.StatusUncertain, model.StatusMissing} {
		got := FormatStatus(s)
		assert.Contains(t, got, string(s))
		assert.Contains(t, got, StatusIcon(s))
	}
}

func TestFrameProgress(t *testing.T) {
	var buf syncBuffer
	p := NewFrameProgress(&buf)
	p.Frame(1, 3, false)
	p.Frame(2, 3, true)
	p.Frame(3, 3, false)
	p.Finish()

	assert.Equal(t, 1, p.Degraded())
	assert.Contains(t, buf.String(), "Observing frames")
}
