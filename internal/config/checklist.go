package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/pattern"
	"gopkg.in/yaml.v3"
)

// ChecklistFile is the YAML form of a checklist together with the rule deciding each step.
//
// Example:
//
//	name: earbud case
//	steps:
//	  - description: Open the charging case fully
//	    labels: [case]
//	    keywords: [[open, opened]]
type ChecklistFile struct {
	Name  string          `yaml:"name,omitempty"`
	Steps []ChecklistStep `yaml:"steps"`
}

// ChecklistStep is one step of a checklist file. Steps are numbered in file order.
type ChecklistStep struct {
	Description      string `yaml:"description"`
	pattern.RuleSpec `yaml:",inline"`
}

// DefaultChecklistFile returns the built-in earbud checklist in file form.
func DefaultChecklistFile() ChecklistFile {
	checklist := pattern.DefaultChecklist()
	rules := pattern.DefaultRules()

	file := ChecklistFile{Name: "earbud charging case", Steps: make([]ChecklistStep, len(checklist))}
	for i, step := range checklist {
		file.Steps[i] = ChecklistStep{Description: step.Description, RuleSpec: rules[i]}
	}
	return file
}

// Checklist returns the numbered checklist and its rules in step order.
func (f ChecklistFile) Checklist() (model.Checklist, []pattern.RuleSpec, error) {
	if len(f.Steps) == 0 {
		return nil, nil, common.NewConfigError("checklist %q has no steps", f.Name)
	}

	descriptions := make([]string, len(f.Steps))
	rules := make([]pattern.RuleSpec, len(f.Steps))
	for i, step := range f.Steps {
		descriptions[i] = strings.TrimSpace(step.Description)
		rules[i] = step.RuleSpec
	}

	checklist := model.NewChecklist(descriptions...)
	if err := checklist.Validate(); err != nil {
		return nil, nil, common.NewConfigError("%v", err)
	}
	return checklist, rules, nil
}

// ParseChecklist decodes a checklist file. Unknown keys are rejected so that typos in
// rule names do not silently weaken a step.
func ParseChecklist(data []byte) (ChecklistFile, error) {
	var file ChecklistFile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return file, common.NewConfigError("checklist file is empty")
		}
		return file, common.NewConfigError("invalid checklist file: %v", err)
	}
	return file, nil
}

// LoadChecklist reads a checklist file. An empty path selects the built-in checklist.
func LoadChecklist(path string) (model.Checklist, []pattern.RuleSpec, error) {
	if path == "" {
		return pattern.DefaultChecklist(), pattern.DefaultRules(), nil
	}

	path = ExpandPath(path)
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied checklist path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read checklist %s: %w", path, err)
	}

	file, err := ParseChecklist(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return file.Checklist()
}

// MarshalChecklist encodes a checklist file as YAML.
func MarshalChecklist(file ChecklistFile) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return nil, fmt.Errorf("failed to encode checklist: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode checklist: %w", err)
	}
	return buf.Bytes(), nil
}
