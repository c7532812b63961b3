// Package engine aggregates per-frame observations into a per-step completion record.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/pattern"
)

// Config holds configuration options for the aggregation engine.
type Config struct {
	Logger *slog.Logger
	// OrderCheck marks steps completed ahead of an earlier, still-open step as out_of_order
	// until they are observed again after all earlier steps are performed.
	OrderCheck bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		OrderCheck: true,
	}
}

// Aggregator accumulates evidence across the frames of a single run.
// Frames must be ingested in non-decreasing timestamp order.
type Aggregator struct {
	registry   *pattern.Registry
	logger     *slog.Logger
	cumulative pattern.Evidence
	checklist  model.Checklist
	steps      []model.StepStatus
	lastTime   float64
	ingested   int
	orderCheck bool
	mu         sync.Mutex
}

// Result is the finalized outcome of aggregation.
type Result struct {
	Steps              []model.StepStatus
	CumulativeEvidence []string
	FramesIngested     int
}

// New creates a fresh aggregator for the checklist with the default configuration.
func New(checklist model.Checklist, registry *pattern.Registry) (*Aggregator, error) {
	return NewWithConfig(checklist, registry, DefaultConfig())
}

// NewWithConfig creates a fresh aggregator where every step starts missing.
func NewWithConfig(checklist model.Checklist, registry *pattern.Registry, cfg Config) (*Aggregator, error) {
	if len(checklist) == 0 {
		return nil, common.NewConfigError("golden checklist has no steps")
	}
	if err := checklist.Validate(); err != nil {
		return nil, common.NewConfigError("%v", err)
	}
	if registry == nil {
		return nil, common.NewConfigError("no step predicates registered")
	}

	steps := make([]model.StepStatus, len(checklist))
	for i, golden := range checklist {
		if _, ok := registry.Get(golden.Index); !ok {
			return nil, common.NewConfigError("step %d has no predicate", golden.Index)
		}
		steps[i] = model.StepStatus{
			Index:    golden.Index,
			Expected: golden.Description,
			Status:   model.StatusMissing,
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		checklist:  checklist,
		registry:   registry,
		logger:     logger,
		cumulative: make(pattern.Evidence),
		steps:      steps,
		orderCheck: cfg.OrderCheck,
	}, nil
}

// Ingest folds one frame into the run. Frames with no detections and no narrative are
// valid no-signal frames. A frame earlier than the previous one is rejected.
func (a *Aggregator) Ingest(obs model.FrameObservation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ingested > 0 && obs.Timestamp < a.lastTime {
		return fmt.Errorf("%w: frame %s at %.3fs follows %.3fs", common.ErrFrameOrder, obs.ID, obs.Timestamp, a.lastTime)
	}
	a.lastTime = obs.Timestamp
	a.ingested++

	frame := pattern.NewFrameEvidence(obs)
	a.cumulative.Add(frame.Labels)

	for i := range a.steps {
		step := &a.steps[i]
		predicate, _ := a.registry.Get(step.Index)

		res := predicate.Evaluate(frame, a.cumulative)
		if !res.Matched {
			continue
		}

		if step.Status.Promoted() {
			// A step first seen ahead of an open predecessor is confirmed once it
			// holds again with every earlier step performed.
			if step.Status == model.StatusOutOfOrder && a.firstPendingBefore(i) == 0 {
				step.Status = model.StatusDone
				a.record(step, obs, res.Reason, res.Score)
				a.logger.Info("step confirmed in order",
					"step", step.Index,
					"frame", obs.ID,
					"timestamp", obs.Timestamp)
				continue
			}
			if res.Score > step.Score {
				a.record(step, obs, res.Reason, res.Score)
				a.logger.Debug("refined step evidence",
					"step", step.Index,
					"frame", obs.ID,
					"score", res.Score)
			}
			continue
		}

		status := model.StatusDone
		note := res.Reason
		if a.orderCheck {
			if pending := a.firstPendingBefore(i); pending > 0 {
				status = model.StatusOutOfOrder
				note = fmt.Sprintf("%s (before step %d)", res.Reason, pending)
			}
		}

		step.Status = status
		a.record(step, obs, note, res.Score)
		a.logger.Info("step promoted",
			"step", step.Index,
			"status", status,
			"frame", obs.ID,
			"timestamp", obs.Timestamp,
			"reason", res.Reason)
	}

	if obs.Degraded {
		for i := range a.steps {
			step := &a.steps[i]
			if step.Status != model.StatusMissing {
				continue
			}
			step.Status = model.StatusUncertain
			step.Note = fmt.Sprintf("no observer signal at frame %s", obs.ID)
		}
	}

	return nil
}

// record stores evidence on a step without touching its status.
func (a *Aggregator) record(step *model.StepStatus, obs model.FrameObservation, note string, score float64) {
	ts := obs.Timestamp
	step.EvidenceFrame = obs.Ref()
	step.Timestamp = &ts
	step.Note = note
	step.Score = score
}

// firstPendingBefore returns the index of the earliest step before position i that has
// not been performed, or 0 if all of them have.
func (a *Aggregator) firstPendingBefore(i int) int {
	for j := 0; j < i; j++ {
		if !a.steps[j].Status.Promoted() {
			return a.steps[j].Index
		}
	}
	return 0
}

// Status returns the current status of a step. While the run is in progress a step that
// is still unsupported after a degraded frame reads uncertain.
func (a *Aggregator) Status(index int) (model.StepStatus, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range a.steps {
		if s.Index == index {
			return copyStep(s), true
		}
	}
	return model.StepStatus{}, false
}

// Finalize returns the step table and the cumulative evidence. Steps left uncertain by
// degraded frames are reported missing and keep their note. It may be called repeatedly
// and always returns independent copies.
func (a *Aggregator) Finalize() Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	steps := make([]model.StepStatus, len(a.steps))
	for i, s := range a.steps {
		steps[i] = copyStep(s)
		// A step nothing ever supported is missing, degraded frames or not.
		if steps[i].Status == model.StatusUncertain {
			steps[i].Status = model.StatusMissing
		}
	}

	return Result{
		Steps:              steps,
		CumulativeEvidence: a.cumulative.Labels(),
		FramesIngested:     a.ingested,
	}
}

func copyStep(s model.StepStatus) model.StepStatus {
	if s.Timestamp != nil {
		ts := *s.Timestamp
		s.Timestamp = &ts
	}
	return s
}
