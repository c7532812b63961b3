package pattern

import (
	"testing"

	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(2, LabelPresent{Label: "b"}))
	require.NoError(t, reg.Register(1, LabelPresent{Label: "a"}))

	assert.Error(t, reg.Register(0, LabelPresent{Label: "x"}))
	assert.Error(t, reg.Register(3, nil))
	assert.Error(t, reg.Register(1, LabelPresent{Label: "dup"}))

	assert.Equal(t, []int{1, 2}, reg.Indices())
	assert.Equal(t, 2, reg.Len())

	p, ok := reg.Get(1)
	require.True(t, ok)
	assert.Equal(t, LabelPresent{Label: "a"}, p)
}

func TestRuleSpec_Build(t *testing.T) {
	t.Run("single part is returned unwrapped", func(t *testing.T) {
		p, err := RuleSpec{Labels: []string{model.LabelCable}}.Build(model.PolicyCumulative)
		require.NoError(t, err)
		assert.Equal(t, LabelPresent{Label: model.LabelCable}, p)
	})

	t.Run("combined parts form a conjunction", func(t *testing.T) {
		p, err := RuleSpec{
			Labels:   []string{model.LabelCase},
			Keywords: [][]string{{"open"}},
		}.Build(model.PolicyCumulative)
		require.NoError(t, err)
		all, ok := p.(All)
		require.True(t, ok)
		assert.Len(t, all, 2)
	})

	t.Run("empty spec is rejected", func(t *testing.T) {
		_, err := RuleSpec{}.Build(model.PolicyCumulative)
		assert.Error(t, err)
	})

	t.Run("items need a valid policy", func(t *testing.T) {
		_, err := RuleSpec{Items: []string{"a"}}.Build("")
		assert.Error(t, err)
	})
}

func TestBuildRegistry_CountMismatch(t *testing.T) {
	_, err := BuildRegistry(model.NewChecklist("one", "two"), []RuleSpec{{Labels: []string{"a"}}}, model.PolicyFrame)
	assert.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	for _, policy := range []model.PreparationPolicy{model.PolicyFrame, model.PolicyCumulative} {
		reg, err := DefaultRegistry(policy)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, reg.Indices())
	}

	reg, err := DefaultRegistry(model.PolicyCumulative)
	require.NoError(t, err)

	closeStep, _ := reg.Get(5)
	res := closeStep.Evaluate(frameWith("case closed and led appears on. charging likely started.", nil), Evidence{})
	assert.True(t, res.Matched)

	openStep, _ := reg.Get(2)
	res = openStep.Evaluate(frameWith("the charging case is opened", map[string]float64{model.LabelCase: 0.6}), Evidence{})
	assert.True(t, res.Matched)
	assert.InDelta(t, textScore, res.Score, 1e-9)
}
