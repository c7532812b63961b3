package pattern

import "github.com/Veraticus/assembly-verify/internal/model"

// DefaultChecklist is the electronics-assembly checklist for an earbud charging case.
func DefaultChecklist() model.Checklist {
	return model.NewChecklist(
		"Preparation – place all items on table",
		"Open the charging case fully",
		"Insert left earbud into left slot",
		"Insert right earbud into right slot",
		"Close the charging case completely",
		"Connect charging cable; LED should light",
	)
}

// DefaultRules returns the rules for DefaultChecklist, in step order.
func DefaultRules() []RuleSpec {
	return []RuleSpec{
		{Items: []string{model.LabelCase, model.LabelLeftEarbud, model.LabelRightEarbud}},
		{
			Labels:   []string{model.LabelCase},
			Keywords: [][]string{{"open", "opened", "opening"}},
		},
		{Labels: []string{model.LabelLeftEarbud}},
		{Labels: []string{model.LabelRightEarbud}},
		{Keywords: [][]string{{"closed", "close", "closing", "shut"}, {"case", "lid"}}},
		{Labels: []string{model.LabelCable}},
	}
}

// DefaultRegistry builds the registry for DefaultChecklist under the given policy.
func DefaultRegistry(policy model.PreparationPolicy) (*Registry, error) {
	return BuildRegistry(DefaultChecklist(), DefaultRules(), policy)
}
