package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
)

// claudeCodeBackend implements Backend using the Claude Code CLI, which reads the frame
// image itself from disk.
type claudeCodeBackend struct {
	model    string
	cliPath  string
	maxTurns int
}

// newClaudeCodeBackend creates a new Claude Code CLI backend.
func newClaudeCodeBackend(cfg Config) (Backend, error) {
	cliPath := cfg.ClaudeCodePath
	if cliPath == "" {
		cliPath = "claude"
	}

	if _, err := exec.LookPath(cliPath); err != nil {
		return nil, fmt.Errorf("claude CLI not found at %s: ensure @anthropic-ai/claude-code is installed", cliPath)
	}

	model := cfg.Model
	if model == "" {
		model = "sonnet"
	}

	return &claudeCodeBackend{
		model:    model,
		cliPath:  cliPath,
		maxTurns: 2, // one turn to read the image, one to answer
	}, nil
}

// Describe asks Claude Code to read the frame and answer the prompt.
func (c *claudeCodeBackend) Describe(ctx context.Context, frame model.Frame, prompt string) (string, error) {
	if frame.Path == "" {
		return "", &common.RetryableError{Err: fmt.Errorf("frame %s has no image path", frame.ID), Retryable: false}
	}

	imagePath, err := filepath.Abs(frame.Path)
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("failed to resolve frame path: %w", err), Retryable: false}
	}

	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, c.cliPath, c.args(imagePath, prompt)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", &common.RetryableError{Err: fmt.Errorf("claude code error: %s", strings.TrimSpace(stderr.String())), Retryable: true}
		}
		return "", &common.RetryableError{Err: fmt.Errorf("failed to execute claude: %w", err), Retryable: true}
	}

	return parseClaudeCodeOutput(stdout.Bytes())
}

// args builds the CLI invocation. The frame's directory is granted read access so the
// CLI can open the image.
func (c *claudeCodeBackend) args(imagePath, prompt string) []string {
	fullPrompt := fmt.Sprintf("%s\n\nThe frame image is stored at: %s\nRead this image before answering.\n\n%s",
		systemPrompt, imagePath, prompt)

	return []string{
		"-p", fullPrompt,
		"--output-format", "json",
		"--model", c.model,
		"--max-turns", fmt.Sprint(c.maxTurns),
		"--allowedTools", "Read",
		"--add-dir", filepath.Dir(imagePath),
	}
}

// claudeCodeResponse represents the JSON output of the CLI.
type claudeCodeResponse struct {
	Result    string  `json:"result"`
	Type      string  `json:"type"`
	SessionID string  `json:"session_id"`
	IsError   bool    `json:"is_error"`
	TotalCost float64 `json:"total_cost_usd"`
}

// parseClaudeCodeOutput extracts the answer. Output that is not JSON is taken as plain text.
func parseClaudeCodeOutput(out []byte) (string, error) {
	var response claudeCodeResponse
	if err := json.Unmarshal(out, &response); err != nil {
		text := strings.TrimSpace(string(out))
		if text == "" {
			return "", &common.RetryableError{Err: fmt.Errorf("empty response from claude code"), Retryable: true}
		}
		return text, nil
	}

	if response.IsError {
		return "", &common.RetryableError{Err: fmt.Errorf("claude code error in response: %s", response.Result), Retryable: true}
	}
	if response.Result == "" {
		return "", &common.RetryableError{Err: fmt.Errorf("empty response from claude code"), Retryable: true}
	}
	return response.Result, nil
}
