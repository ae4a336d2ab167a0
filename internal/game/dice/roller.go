package dice

import "fmt"

// Roll produces count independent uniform draws from [1, sides].
//
// Precondition: src must be non-nil.
// Postcondition: Returns exactly count values, each in [1, sides], or an
// error wrapping ErrInvalidArgument when count < 1 or sides < 1.
func Roll(count, sides int, src Source) ([]int, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be >= 1, got %d", ErrInvalidArgument, count)
	}
	if sides < 1 {
		return nil, fmt.Errorf("%w: sides must be >= 1, got %d", ErrInvalidArgument, sides)
	}
	rolls := make([]int, count)
	for i := range rolls {
		rolls[i] = src.Intn(sides) + 1
	}
	return rolls, nil
}

// Evaluate rolls expr and resolves its modifier clause.
//
// Resolution order for a named token: resolver (stat before skill, which the
// resolver itself guarantees); an unknown token or nil resolver yields
// modifier 0 with no source. A literal modifier takes its sign from the
// expression's operator; named modifiers contribute their own sign.
//
// Precondition: expr must come from Parse; src must be non-nil.
// Postcondition: result.Total() == result.BaseTotal() + result.Modifier.
func Evaluate(expr Expression, resolver ModifierResolver, src Source) (RollResult, error) {
	rolls, err := Roll(expr.Count, expr.Sides, src)
	if err != nil {
		return RollResult{}, err
	}

	result := RollResult{Expression: expr.Raw, Rolls: rolls}
	switch {
	case expr.Operator == 0:
		// no modifier clause
	case expr.Token == "":
		result.Modifier = expr.Literal
		if expr.Operator == '-' {
			result.Modifier = -result.Modifier
		}
		result.ModifierSource = "fixed"
	default:
		if resolver != nil {
			if mod, source, ok := resolver.ResolveModifier(expr.Token); ok {
				result.Modifier = mod
				result.ModifierSource = source
			}
		}
	}
	return result, nil
}

// EvaluateExpr parses expr and evaluates it in a single call.
//
// Precondition: src must be non-nil.
// Postcondition: Returns a RollResult, or an error wrapping
// ErrMalformedExpression / ErrInvalidArgument.
func EvaluateExpr(expr string, resolver ModifierResolver, src Source) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return Evaluate(e, resolver, src)
}
