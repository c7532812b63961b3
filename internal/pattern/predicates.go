package pattern

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/model"
)

// textScore is the strength assigned to narrative-only matches. Detector matches carry
// their own confidence and outrank free-text heuristics when they are confident.
const textScore = 0.5

var wordRe = regexp.MustCompile(`[a-z0-9']+`)

var negations = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "isn't": {}, "without": {}, "nor": {}, "absent": {},
}

// LabelPresent holds when the label is detected in the current frame.
type LabelPresent struct {
	Label string
}

// Evaluate implements Predicate.
func (p LabelPresent) Evaluate(frame FrameEvidence, _ Evidence) Result {
	conf, ok := frame.Labels[p.Label]
	if !ok {
		return Result{}
	}
	return Result{
		Matched: true,
		Reason:  fmt.Sprintf("detected %s (%.2f)", p.Label, conf),
		Score:   conf,
	}
}

// AllLabels holds when every required label is observed under a single policy:
// within the current frame, or cumulatively across the session.
type AllLabels struct {
	Policy model.PreparationPolicy
	Labels []string
}

// NewAllLabels validates the policy and label list.
func NewAllLabels(policy model.PreparationPolicy, labels ...string) (AllLabels, error) {
	if !policy.Valid() {
		return AllLabels{}, fmt.Errorf("unknown preparation policy %q", policy)
	}
	if len(labels) == 0 {
		return AllLabels{}, fmt.Errorf("all-labels rule needs at least one label")
	}
	return AllLabels{Policy: policy, Labels: labels}, nil
}

// Evaluate implements Predicate.
func (p AllLabels) Evaluate(frame FrameEvidence, cumulative Evidence) Result {
	if len(p.Labels) == 0 {
		return Result{}
	}

	source := map[string]float64(cumulative)
	where := "observed in session"
	switch p.Policy {
	case model.PolicyFrame:
		source = frame.Labels
		where = "visible in frame"
	case model.PolicyCumulative:
	default:
		return Result{}
	}

	score := math.Inf(1)
	for _, label := range p.Labels {
		conf, ok := source[label]
		if !ok {
			return Result{}
		}
		score = math.Min(score, conf)
	}

	return Result{
		Matched: true,
		Reason:  fmt.Sprintf("all items %s: %s", where, strings.Join(p.Labels, ", ")),
		Score:   score,
	}
}

// Keywords holds when the narrative mentions at least one word from every group.
// A word directly preceded (within two words) by a negation does not count.
type Keywords struct {
	groups []map[string]struct{}
}

// NewKeywords builds a keyword predicate from word groups.
func NewKeywords(groups ...[]string) (*Keywords, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("keyword rule needs at least one group")
	}
	k := &Keywords{}
	for i, group := range groups {
		if len(group) == 0 {
			return nil, fmt.Errorf("keyword group %d is empty", i+1)
		}
		set := make(map[string]struct{}, len(group))
		for _, word := range group {
			set[strings.ToLower(strings.TrimSpace(word))] = struct{}{}
		}
		k.groups = append(k.groups, set)
	}
	return k, nil
}

// Evaluate implements Predicate.
func (k *Keywords) Evaluate(frame FrameEvidence, _ Evidence) Result {
	if frame.Text == "" {
		return Result{}
	}
	words := wordRe.FindAllString(frame.Text, -1)

	hits := make([]string, 0, len(k.groups))
	for _, group := range k.groups {
		hit := ""
		for i, w := range words {
			if _, ok := group[w]; ok && !negated(words, i) {
				hit = w
				break
			}
		}
		if hit == "" {
			return Result{}
		}
		hits = append(hits, fmt.Sprintf("%q", hit))
	}

	return Result{
		Matched: true,
		Reason:  "narrative mentions " + strings.Join(hits, " + "),
		Score:   textScore,
	}
}

func negated(words []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-2; j-- {
		if _, ok := negations[words[j]]; ok {
			return true
		}
	}
	return false
}

// All holds when every child predicate holds. Its score is the weakest child's.
type All []Predicate

// Evaluate implements Predicate.
func (a All) Evaluate(frame FrameEvidence, cumulative Evidence) Result {
	if len(a) == 0 {
		return Result{}
	}
	reasons := make([]string, 0, len(a))
	score := math.Inf(1)
	for _, p := range a {
		r := p.Evaluate(frame, cumulative)
		if !r.Matched {
			return Result{}
		}
		reasons = append(reasons, r.Reason)
		score = math.Min(score, r.Score)
	}
	return Result{
		Matched: true,
		Reason:  strings.Join(reasons, "; "),
		Score:   score,
	}
}
