// Package annotate renders the evidence frame of each performed step with a step marker.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png" // evidence frames may be PNG when read from a frame directory
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/assembly-verify/internal/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Dir is the subdirectory of the output directory holding annotated frames.
const Dir = "annotated"

const (
	borderWidth  = 6
	labelPadding = 4
	jpegQuality  = 90
)

var (
	colorDone       = color.RGBA{R: 40, G: 200, B: 80, A: 255}
	colorOutOfOrder = color.RGBA{R: 240, G: 150, B: 20, A: 255}
	colorLabelBack  = color.RGBA{A: 200}
)

// Annotator writes annotated evidence frames under an output directory.
type Annotator struct {
	logger *slog.Logger
	dir    string
}

// New creates an annotator writing to <outputDir>/annotated.
func New(outputDir string, logger *slog.Logger) *Annotator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotator{
		dir:    filepath.Join(outputDir, Dir),
		logger: logger,
	}
}

// FileName returns the annotated frame name of a step.
func FileName(index int) string {
	return fmt.Sprintf("step_%02d.jpg", index)
}

// Steps annotates the evidence frame of every performed step and records the written path
// in the step's AnnotatedFrame. Frames that cannot be read or decoded are skipped with a
// warning. It returns the number of frames written.
func (a *Annotator) Steps(steps []model.StepStatus) (int, error) {
	written := 0
	for i := range steps {
		step := &steps[i]
		if !step.Status.Promoted() || step.EvidenceFrame == "" {
			continue
		}

		img, err := decode(step.EvidenceFrame)
		if err != nil {
			a.logger.Warn("Skipping annotation for step",
				"step", step.Index,
				"frame", step.EvidenceFrame,
				"error", err)
			continue
		}

		if written == 0 {
			if err := os.MkdirAll(a.dir, 0750); err != nil {
				return written, fmt.Errorf("failed to create annotation directory: %w", err)
			}
		}

		out := filepath.Join(a.dir, FileName(step.Index))
		if err := writeJPEG(out, Render(img, *step)); err != nil {
			return written, err
		}
		step.AnnotatedFrame = out
		written++
		a.logger.Debug("Annotated evidence frame", "step", step.Index, "path", out)
	}
	return written, nil
}

// Render draws the step border and marker label onto a copy of img.
func Render(img image.Image, step model.StepStatus) *image.RGBA {
	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	border := image.NewUniform(statusColor(step.Status))
	w := borderWidth
	if half := min(bounds.Dx(), bounds.Dy()) / 2; w > half {
		w = half
	}
	draw.Draw(canvas, image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+w), border, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(bounds.Min.X, bounds.Max.Y-w, bounds.Max.X, bounds.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+w, bounds.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(bounds.Max.X-w, bounds.Min.Y, bounds.Max.X, bounds.Max.Y), border, image.Point{}, draw.Src)

	drawLabel(canvas, Label(step), image.Pt(bounds.Min.X+w+labelPadding, bounds.Min.Y+w+labelPadding), statusColor(step.Status))
	return canvas
}

// Label returns the marker text of a step, such as "STEP 3  t=12.3s".
func Label(step model.StepStatus) string {
	if step.Timestamp == nil {
		return fmt.Sprintf("STEP %d", step.Index)
	}
	return fmt.Sprintf("STEP %d  t=%.1fs", step.Index, *step.Timestamp)
}

func drawLabel(dst *image.RGBA, text string, at image.Point, fg color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: face,
	}

	width := d.MeasureString(text).Ceil()
	height := face.Metrics().Height.Ceil()
	back := image.Rect(at.X, at.Y, at.X+width+2*labelPadding, at.Y+height+2*labelPadding).Intersect(dst.Bounds())
	draw.Draw(dst, back, image.NewUniform(colorLabelBack), image.Point{}, draw.Over)

	d.Dot = fixed.P(at.X+labelPadding, at.Y+labelPadding+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}

func statusColor(s model.Status) color.RGBA {
	if s == model.StatusOutOfOrder {
		return colorOutOfOrder
	}
	return colorDone
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // evidence frames are paths produced by the frame source
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path) //nolint:gosec // path is built from the output directory
	if err != nil {
		return fmt.Errorf("failed to create annotated frame: %w", err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode annotated frame: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close annotated frame: %w", err)
	}
	return nil
}
