package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/Veraticus/assembly-verify/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name      string
		str       string
		paramName string
		wantErr   bool
	}{
		{
			name:      "valid string",
			str:       "test",
			paramName: "param",
			wantErr:   false,
		},
		{
			name:      "empty string",
			str:       "",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "whitespace only",
			str:       "   ",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "string with spaces",
			str:       "  test  ",
			paramName: "param",
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, tt.paramName)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.paramName) {
				t.Errorf("validateString() error should contain param name %s, got %v", tt.paramName, err)
			}
		})
	}
}


func TestValidateRun(t *testing.T) {
	valid := func() *model.VerificationRun {
		checklist := model.NewChecklist("first", "second")
		return &model.VerificationRun{
			ID:        "run-1",
			OutputDir: "/tmp/out",
			Checklist: checklist,
			Steps: []model.StepStatus{
				{Index: 1, Expected: "first", Status: model.StatusDone},
				{Index: 2, Expected: "second", Status: model.StatusMissing},
			},
		}
	}

	tests := []struct {
		mutate  func(*model.VerificationRun) *model.VerificationRun
		name    string
		wantErr bool
	}{
		{
			name:    "valid run",
			mutate:  func(r *model.VerificationRun) *model.VerificationRun { return r },
			wantErr: false,
		},
		{
			name:    "nil run",
			mutate:  func(_ *model.VerificationRun) *model.VerificationRun { return nil },
			wantErr: true,
		},
		{
			name: "missing ID",
			mutate: func(r *model.VerificationRun) *model.VerificationRun {
				r.ID = " "
				return r
			},
			wantErr: true,
		},
		{
			name: "missing output directory",
			mutate: func(r *model.VerificationRun) *model.VerificationRun {
				r.OutputDir = ""
				return r
			},
			wantErr: true,
		},
		{
			name: "unknown status",
			mutate: func(r *model.VerificationRun) *model.VerificationRun {
				r.Steps[1].Status = "skipped"
				return r
			},
			wantErr: true,
		},
		{
			name: "step count differs from checklist",
			mutate: func(r *model.VerificationRun) *model.VerificationRun {
				r.Steps = r.Steps[:1]
				return r
			},
			wantErr: true,
		},
		{
			name: "steps out of checklist order",
			mutate: func(r *model.VerificationRun) *model.VerificationRun {
				r.Steps[0], r.Steps[1] = r.Steps[1], r.Steps[0]
				return r
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRun(tt.mutate(valid()))
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRun() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
