package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
)

// ResultFileName is the name of the persisted run inside its output directory.
const ResultFileName = "verification_result.json"

// ResultPath returns where the run for an output directory is persisted.
func ResultPath(outputDir string) string {
	return filepath.Join(outputDir, ResultFileName)
}

// LoadResult reads a persisted run for use as a golden reference. The path may name the
// result file or the output directory holding it.
func LoadResult(path string) (*model.VerificationRun, error) {
	if err := validateString(path, "path"); err != nil {
		return nil, err
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = ResultPath(path)
	}

	run, _, err := readResult(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("result %s: %w", path, common.ErrNotFound)
		}
		return nil, err
	}
	return run, nil
}

// readResult parses a result file and returns it with the checksum of its bytes.
func readResult(path string) (*model.VerificationRun, string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the index or the caller
	if err != nil {
		return nil, "", err
	}

	var run model.VerificationRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, "", &common.CacheCorruptionError{Path: path, Err: err}
	}
	return &run, checksum(data), nil
}

// writeResult persists the run atomically and returns the checksum of what was written.
func writeResult(path string, run *model.VerificationRun) (string, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode run: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".verification_result-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write result: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to sync result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close result: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to move result into place: %w", err)
	}

	return checksum(data), nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
