package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
)

// FrameProgress shows how many frames of a run have been observed.
type FrameProgress struct {
	writer   io.Writer
	bar      *progressbar.ProgressBar
	degraded int
}

// NewFrameProgress creates a progress bar. The frame count may be unknown until the first
// frame is reported.
func NewFrameProgress(writer io.Writer) *FrameProgress {
	if writer == nil {
		writer = os.Stderr
	}
	p := &FrameProgress{writer: writer}
	p.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Observing frames...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Frame records that processed of total frames are done. A total of 0 means unknown.
func (p *FrameProgress) Frame(processed, total int, degraded bool) {
	if total > 0 && p.bar.GetMax() != total {
		p.bar.ChangeMax(total)
	}
	if degraded {
		p.degraded++
		p.bar.Describe(fmt.Sprintf("[cyan][bold]Observing frames...[reset] [yellow]%d degraded[reset]", p.degraded))
	}
	if err := p.bar.Set(processed); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Degraded returns how many reported frames were degraded.
func (p *FrameProgress) Degraded() int {
	return p.degraded
}

// Finish completes the bar.
func (p *FrameProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}
