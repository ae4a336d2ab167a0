package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dmforge/dungeonmaster/internal/game/dice"
)

// scriptedSource returns a fixed sequence of values, cycling when exhausted.
type scriptedSource struct {
	values []int
	next   int
}

func (s *scriptedSource) Intn(n int) int {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v % n
}

// tableResolver resolves modifier tokens from a fixed table.
type tableResolver struct {
	mods    map[string]int
	sources map[string]string
}

func (r *tableResolver) ResolveModifier(token string) (int, string, bool) {
	mod, ok := r.mods[token]
	if !ok {
		return 0, "", false
	}
	return mod, r.sources[token], true
}

func TestEvaluate_FixedModifier(t *testing.T) {
	src := &scriptedSource{values: []int{3, 4}} // d6 rolls of 4 and 5
	result, err := dice.EvaluateExpr("2d6+3", nil, src)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, result.Rolls)
	assert.Equal(t, 3, result.Modifier)
	assert.Equal(t, "fixed", result.ModifierSource)
	assert.Equal(t, 12, result.Total())
}

func TestEvaluate_NegativeFixedModifier(t *testing.T) {
	src := &scriptedSource{values: []int{5}}
	result, err := dice.EvaluateExpr("1d8-2", nil, src)
	require.NoError(t, err)
	assert.Equal(t, -2, result.Modifier)
	assert.Equal(t, "fixed", result.ModifierSource)
	assert.Equal(t, 4, result.Total())
}

func TestEvaluate_NamedModifier(t *testing.T) {
	src := &scriptedSource{values: []int{9}}
	resolver := &tableResolver{
		mods:    map[string]int{"STR": 3},
		sources: map[string]string{"STR": "STR stat"},
	}
	result, err := dice.EvaluateExpr("1d20+STR", resolver, src)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Modifier)
	assert.Equal(t, "STR stat", result.ModifierSource)
	assert.Equal(t, 13, result.Total())
}

func TestEvaluate_UnknownTokenIsZero(t *testing.T) {
	src := &scriptedSource{values: []int{9}}
	result, err := dice.EvaluateExpr("1d20+luck", nil, src)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Modifier)
	assert.Empty(t, result.ModifierSource)
	assert.Equal(t, 10, result.Total())
}

func TestEvaluate_NoModifierClause(t *testing.T) {
	src := &scriptedSource{values: []int{0}}
	result, err := dice.EvaluateExpr("1d20", nil, src)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Modifier)
	assert.Empty(t, result.ModifierSource)
	assert.Equal(t, 1, result.Total())
}

func TestEvaluateExpr_Malformed(t *testing.T) {
	src := &scriptedSource{values: []int{0}}
	_, err := dice.EvaluateExpr("twenty-sided die", nil, src)
	assert.ErrorIs(t, err, dice.ErrMalformedExpression)
}

func TestLoggedRoller_Evaluate(t *testing.T) {
	logger := zaptest.NewLogger(t)
	roller := dice.NewLoggedRoller(&scriptedSource{values: []int{3, 4}}, logger)

	result, err := roller.EvaluateExpr("2d6+3", nil)
	require.NoError(t, err)
	assert.Equal(t, 12, result.Total())

	_, err = roller.EvaluateExpr("bogus", nil)
	assert.ErrorIs(t, err, dice.ErrMalformedExpression)
}
