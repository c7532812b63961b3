// Package pipeline runs a frame source through the observers and the aggregation engine
// to produce a verification run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Veraticus/assembly-verify/internal/annotate"
	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/compare"
	"github.com/Veraticus/assembly-verify/internal/detector"
	"github.com/Veraticus/assembly-verify/internal/engine"
	"github.com/Veraticus/assembly-verify/internal/llm"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/pattern"
	"github.com/Veraticus/assembly-verify/internal/service"
	"github.com/Veraticus/assembly-verify/internal/storage"
)

// DefaultObserverTimeout bounds a single detector or narrator call.
const DefaultObserverTimeout = 60 * time.Second

// Progress is reported after each ingested frame.
type Progress struct {
	Observation model.FrameObservation
	Processed   int
	// Total is the number of frames the source will yield, or 0 when unknown.
	Total int
}

// Config holds the pipeline settings.
type Config struct {
	Logger          *slog.Logger
	OnFrame         func(Progress)
	Policy          model.PreparationPolicy
	Checklist       model.Checklist
	Rules           []pattern.RuleSpec
	ObserverTimeout time.Duration
	OrderCheck      bool
	Annotate        bool
}

// DefaultConfig returns the configuration for the built-in earbud checklist.
func DefaultConfig() Config {
	return Config{
		Checklist:       pattern.DefaultChecklist(),
		Rules:           pattern.DefaultRules(),
		Policy:          model.PolicyCumulative,
		ObserverTimeout: DefaultObserverTimeout,
		OrderCheck:      true,
		Annotate:        true,
	}
}

// SourceOpener opens the frame source of a run. It is only called when a run is computed.
type SourceOpener func(ctx context.Context) (service.FrameSource, error)

// Request describes a single run.
type Request struct {
	Open       SourceOpener
	Video      string
	OutputDir  string
	GoldenPath string
}

// Pipeline turns frames into a verification run. It holds no per-run state, so one
// pipeline can serve any number of runs.
type Pipeline struct {
	detector service.Detector
	narrator service.Narrator
	registry *pattern.Registry
	logger   *slog.Logger
	cfg      Config
}

// New creates a pipeline. A nil detector reports no detections for every frame.
func New(det service.Detector, narrator service.Narrator, cfg Config) (*Pipeline, error) {
	if narrator == nil {
		return nil, common.NewConfigError("narrator is required")
	}
	if det == nil {
		det = detector.Noop{}
	}
	if cfg.Policy == "" {
		cfg.Policy = model.PolicyCumulative
	}
	if !cfg.Policy.Valid() {
		return nil, common.NewConfigError("unknown preparation policy %q", cfg.Policy)
	}
	if err := cfg.Checklist.Validate(); err != nil {
		return nil, common.NewConfigError("%v", err)
	}

	registry, err := pattern.BuildRegistry(cfg.Checklist, cfg.Rules, cfg.Policy)
	if err != nil {
		return nil, common.NewConfigError("%v", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		detector: det,
		narrator: narrator,
		registry: registry,
		logger:   logger,
		cfg:      cfg,
	}, nil
}

// Checklist returns the checklist runs are verified against.
func (p *Pipeline) Checklist() model.Checklist {
	return p.cfg.Checklist
}

// RunFunc adapts the pipeline to the run store, stamping the run with the store key.
func (p *Pipeline) RunFunc(req Request) storage.RunFunc {
	return func(ctx context.Context, key string) (*model.VerificationRun, error) {
		run, err := p.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		run.ID = key
		return run, nil
	}
}

// Run processes every frame of the request's source. Observer failures degrade single
// frames and never abort the run; an unopenable source does.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.VerificationRun, error) {
	if req.Open == nil {
		return nil, fmt.Errorf("%w: no frame source", common.ErrSourceUnavailable)
	}

	agg, err := engine.NewWithConfig(p.cfg.Checklist, p.registry, engine.Config{
		Logger:     p.logger,
		OrderCheck: p.cfg.OrderCheck,
	})
	if err != nil {
		return nil, err
	}

	src, err := req.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			p.logger.Warn("Failed to close frame source", "error", err)
		}
	}()

	total := 0
	if sized, ok := src.(interface{ Len() int }); ok {
		total = sized.Len()
	}

	start := time.Now()
	observations := []model.FrameObservation{}
	degraded := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %d: %w", len(observations), err)
		}

		obs := p.observe(ctx, frame)
		if obs.Degraded {
			degraded++
		}
		if err := agg.Ingest(obs); err != nil {
			return nil, err
		}
		observations = append(observations, obs)

		if p.cfg.OnFrame != nil {
			p.cfg.OnFrame(Progress{Observation: obs, Processed: len(observations), Total: total})
		}
	}

	result := agg.Finalize()
	p.logger.Info("Frames aggregated",
		"video", req.Video,
		"frames", result.FramesIngested,
		"degraded", degraded,
		"duration", time.Since(start).Round(time.Millisecond))

	run := &model.VerificationRun{
		Video:              req.Video,
		OutputDir:          req.OutputDir,
		PreparationPolicy:  p.cfg.Policy,
		Checklist:          p.cfg.Checklist,
		Frames:             observations,
		Steps:              result.Steps,
		CumulativeEvidence: result.CumulativeEvidence,
	}

	if p.cfg.Annotate && req.OutputDir != "" {
		if _, err := annotate.New(req.OutputDir, p.logger).Steps(run.Steps); err != nil {
			return nil, err
		}
	}

	AttachGolden(run, req.GoldenPath, p.logger)
	return run, nil
}

// observe collects the detector and narrator signals of one frame. A failed observer is
// replaced by its no-signal value and the observation is marked degraded.
func (p *Pipeline) observe(ctx context.Context, frame model.Frame) model.FrameObservation {
	obs := model.FrameObservation{Frame: frame, Detections: []model.Detection{}}

	detections, err := p.detect(ctx, frame)
	if err != nil {
		p.logger.Warn("Detector failed, using no detections",
			"frame", frame.ID,
			"error", err)
		obs.Degraded = true
	} else if detections != nil {
		obs.Detections = detections
	}

	prompt := llm.BuildPrompt(p.cfg.Checklist, obs.Detections)
	text, err := p.describe(ctx, frame, prompt)
	if err != nil {
		p.logger.Warn("Narrator failed, using uncertain text",
			"frame", frame.ID,
			"error", err)
		text = llm.UncertainText
		obs.Degraded = true
	}
	obs.Narrative = text

	return obs
}

func (p *Pipeline) detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	callCtx, cancel := p.observerContext(ctx)
	defer cancel()
	return p.detector.Detect(callCtx, frame)
}

func (p *Pipeline) describe(ctx context.Context, frame model.Frame, prompt string) (string, error) {
	callCtx, cancel := p.observerContext(ctx)
	defer cancel()
	return p.narrator.Describe(callCtx, frame, prompt)
}

func (p *Pipeline) observerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.ObserverTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.ObserverTimeout)
	}
	return context.WithCancel(ctx)
}

// AttachGolden compares run against the golden run stored at goldenPath. A missing,
// unreadable or incompatible golden run leaves run uncompared and is only logged.
// It reports whether a comparison was attached.
func AttachGolden(run *model.VerificationRun, goldenPath string, logger *slog.Logger) bool {
	if goldenPath == "" || run == nil {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}

	golden, err := storage.LoadResult(goldenPath)
	if err != nil {
		logger.Warn("Skipping golden comparison", "golden", goldenPath, "error", err)
		return false
	}
	if err := compare.CheckCompatible(run, golden); err != nil {
		logger.Warn("Skipping golden comparison", "golden", goldenPath, "error", err)
		return false
	}

	run.GoldenPath = goldenPath
	run.Comparison = compare.Compare(run, golden)
	return true
}
