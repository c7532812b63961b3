package pattern

import (
	"fmt"
	"sort"

	"github.com/Veraticus/assembly-verify/internal/model"
)

// Registry maps step indices to the predicate that decides each step.
type Registry struct {
	predicates map[int]Predicate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{predicates: make(map[int]Predicate)}
}

// Register binds a predicate to a step index.
func (r *Registry) Register(index int, p Predicate) error {
	if index < 1 {
		return fmt.Errorf("step index must be positive, got %d", index)
	}
	if p == nil {
		return fmt.Errorf("step %d: predicate is nil", index)
	}
	if _, exists := r.predicates[index]; exists {
		return fmt.Errorf("step %d: predicate already registered", index)
	}
	r.predicates[index] = p
	return nil
}

// Get returns the predicate for a step.
func (r *Registry) Get(index int) (Predicate, bool) {
	p, ok := r.predicates[index]
	return p, ok
}

// Indices returns the registered step indices in ascending order.
func (r *Registry) Indices() []int {
	out := make([]int, 0, len(r.predicates))
	for i := range r.predicates {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of registered predicates.
func (r *Registry) Len() int {
	return len(r.predicates)
}

// RuleSpec is the declarative form of a step predicate, as written in checklist files.
// All configured parts must hold together.
type RuleSpec struct {
	// Labels must each be detected in the current frame.
	Labels []string `yaml:"labels,omitempty" json:"labels,omitempty"`
	// Items must all be observed under the run's preparation policy.
	Items []string `yaml:"items,omitempty" json:"items,omitempty"`
	// Keywords lists word groups; the narrative must mention one word of every group.
	Keywords [][]string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

// Build turns a rule spec into a predicate.
func (s RuleSpec) Build(policy model.PreparationPolicy) (Predicate, error) {
	var parts All

	if len(s.Items) > 0 {
		items, err := NewAllLabels(policy, s.Items...)
		if err != nil {
			return nil, err
		}
		parts = append(parts, items)
	}
	for _, label := range s.Labels {
		parts = append(parts, LabelPresent{Label: label})
	}
	if len(s.Keywords) > 0 {
		kw, err := NewKeywords(s.Keywords...)
		if err != nil {
			return nil, err
		}
		parts = append(parts, kw)
	}

	switch len(parts) {
	case 0:
		return nil, fmt.Errorf("rule has no labels, items, or keywords")
	case 1:
		return parts[0], nil
	default:
		return parts, nil
	}
}

// BuildRegistry builds a registry with one rule per checklist step, in checklist order.
func BuildRegistry(checklist model.Checklist, specs []RuleSpec, policy model.PreparationPolicy) (*Registry, error) {
	if len(specs) != len(checklist) {
		return nil, fmt.Errorf("checklist has %d steps but %d rules", len(checklist), len(specs))
	}
	reg := NewRegistry()
	for i, step := range checklist {
		p, err := specs[i].Build(policy)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step.Index, err)
		}
		if err := reg.Register(step.Index, p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
