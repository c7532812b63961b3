package frames

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/common"
)

// FramesDir is the directory under the output directory that receives sampled frames.
const FramesDir = "frames"

// NewVideoSource samples every Stride-th frame of the video with ffmpeg into
// outDir/frames, replacing whatever that directory held, and returns a source over the
// extracted images.
func NewVideoSource(ctx context.Context, video, outDir string, opts Options) (*DirSource, error) {
	opts = opts.withDefaults()

	if _, err := os.Stat(video); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceUnavailable, err)
	}

	ffmpeg, err := exec.LookPath(opts.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found at %s", common.ErrSourceUnavailable, opts.FFmpegPath)
	}

	dir := filepath.Join(outDir, FramesDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	// Frames go to a fresh directory that replaces dir only once ffmpeg succeeds.
	tmp, err := os.MkdirTemp(outDir, "."+FramesDir+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create frames directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	args := extractArgs(video, tmp, opts.Stride)
	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Info("Extracting frames", "video", video, "stride", opts.Stride, "dir", dir)
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: ffmpeg failed for %s: %s", common.ErrSourceUnavailable, video, msg)
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear stale frames: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return nil, fmt.Errorf("failed to move extracted frames: %w", err)
	}

	return NewDirSource(dir, opts)
}

// extractArgs builds the ffmpeg invocation that keeps every stride-th frame as
// frame_0000.jpg, frame_0001.jpg, ...
func extractArgs(video, dir string, stride int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", video,
		"-vf", fmt.Sprintf(`select=not(mod(n\,%d))`, stride),
		"-vsync", "vfr",
		"-q:v", "2",
		"-start_number", "0",
		filepath.Join(dir, "frame_%04d.jpg"),
	}
}
