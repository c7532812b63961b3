package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/pattern"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boxChecklist = `
name: shipping box
steps:
  - description: Lay out box and manual
    items: [box, manual]
  - description: Put the manual in the box
    labels: [manual]
    keywords:
      - [inside, in]
      - [box]
`

func TestParseChecklist(t *testing.T) {
	file, err := ParseChecklist([]byte(boxChecklist))
	require.NoError(t, err)
	assert.Equal(t, "shipping box", file.Name)

	checklist, rules, err := file.Checklist()
	require.NoError(t, err)
	assert.Equal(t, model.NewChecklist("Lay out box and manual", "Put the manual in the box"), checklist)

	want := []pattern.RuleSpec{
		{Items: []string{"box", "manual"}},
		{Labels: []string{"manual"}, Keywords: [][]string{{"inside", "in"}, {"box"}}},
	}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}

	_, err = pattern.BuildRegistry(checklist, rules, model.PolicyCumulative)
	require.NoError(t, err)
}

func TestParseChecklist_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "unknown key", data: "steps:\n  - description: a\n    label: [case]\n"},
		{name: "not yaml", data: "steps: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChecklist([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrConfig)
		})
	}
}

func TestChecklistFile_Invalid(t *testing.T) {
	_, _, err := ChecklistFile{Name: "empty"}.Checklist()
	assert.ErrorIs(t, err, common.ErrConfig)

	_, _, err = ChecklistFile{Steps: []ChecklistStep{{Description: "  "}}}.Checklist()
	assert.ErrorIs(t, err, common.ErrConfig)
}

func TestLoadChecklist(t *testing.T) {
	t.Run("built-in", func(t *testing.T) {
		checklist, rules, err := LoadChecklist("")
		require.NoError(t, err)
		assert.Equal(t, pattern.DefaultChecklist(), checklist)
		assert.Equal(t, pattern.DefaultRules(), rules)
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "box.yaml")
		require.NoError(t, os.WriteFile(path, []byte(boxChecklist), 0600))

		checklist, rules, err := LoadChecklist(path)
		require.NoError(t, err)
		assert.Len(t, checklist, 2)
		assert.Len(t, rules, 2)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := LoadChecklist(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestDefaultChecklistFile_RoundTrip(t *testing.T) {
	data, err := MarshalChecklist(DefaultChecklistFile())
	require.NoError(t, err)

	file, err := ParseChecklist(data)
	require.NoError(t, err)

	checklist, rules, err := file.Checklist()
	require.NoError(t, err)
	assert.Equal(t, pattern.DefaultChecklist(), checklist)
	if diff := cmp.Diff(pattern.DefaultRules(), rules); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("VERIFY_TEST_DIR", "/data/runs")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/runs.db", want: filepath.Join(home, "runs.db")},
		{in: "$VERIFY_TEST_DIR/index.db", want: "/data/runs/index.db"},
		{in: "/abs/path", want: "/abs/path"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}
