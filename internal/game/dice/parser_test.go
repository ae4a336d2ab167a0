package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmforge/dungeonmaster/internal/game/dice"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		expr string
		want dice.Expression
	}{
		{"1d20", dice.Expression{Raw: "1d20", Count: 1, Sides: 20}},
		{"2d6+3", dice.Expression{Raw: "2d6+3", Count: 2, Sides: 6, Operator: '+', Literal: 3}},
		{"4d8-2", dice.Expression{Raw: "4d8-2", Count: 4, Sides: 8, Operator: '-', Literal: 2}},
		{"1d20+STR", dice.Expression{Raw: "1d20+STR", Count: 1, Sides: 20, Operator: '+', Token: "STR"}},
		{"1d20 + DEX", dice.Expression{Raw: "1d20 + DEX", Count: 1, Sides: 20, Operator: '+', Token: "DEX"}},
		{"1d20+stealth", dice.Expression{Raw: "1d20+stealth", Count: 1, Sides: 20, Operator: '+', Token: "stealth"}},
		{"3d1", dice.Expression{Raw: "3d1", Count: 3, Sides: 1}},
		{"1d8+weapon_bonus", dice.Expression{Raw: "1d8+weapon_bonus", Count: 1, Sides: 8, Operator: '+', Token: "weapon_bonus"}},
	}
	for _, tc := range tests {
		got, err := dice.Parse(tc.expr)
		require.NoError(t, err, "expression %q", tc.expr)
		assert.Equal(t, tc.want, got, "expression %q", tc.expr)
	}
}

func TestParse_Malformed(t *testing.T) {
	exprs := []string{
		"",
		"d20",      // count is required by the grammar
		"2x6",      // missing 'd'
		"2d",       // missing sides
		"2d6+",     // dangling operator
		"2d6*3",    // unsupported operator
		"2d6+3+4",  // trailing garbage
		"abc",      //
		"0d6",      // count below 1
		"2d0",      // sides below 1
		" 1d20",    // leading whitespace is not part of the grammar
		"1d20+ST R",
	}
	for _, expr := range exprs {
		_, err := dice.Parse(expr)
		assert.ErrorIs(t, err, dice.ErrMalformedExpression, "expression %q must be rejected", expr)
	}
}

func TestMustParse_PanicsOnMalformed(t *testing.T) {
	assert.Panics(t, func() { dice.MustParse("not dice") })
	assert.NotPanics(t, func() { dice.MustParse("1d6") })
}
