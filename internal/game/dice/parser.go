package dice

import (
	"fmt"
	"strconv"
)

// Expression represents a parsed dice expression ready to be evaluated.
//
// Invariant after a successful Parse: Count >= 1, Sides >= 1, and Operator is
// '+', '-', or 0 (no modifier clause). Exactly one of Literal/Token carries
// the modifier when Operator is non-zero: Token == "" means a literal value.
type Expression struct {
	Raw      string // original input string
	Count    int    // number of dice
	Sides    int    // faces per die
	Operator byte   // '+' or '-'; 0 when the expression has no modifier
	Literal  int    // unsigned literal modifier value (sign comes from Operator)
	Token    string // stat or skill identifier; empty for literal modifiers
}

// Parse parses a dice expression matching the grammar
//
//	<count>d<sides>[(+|-)<modifier>]
//
// where <modifier> is a non-negative integer literal or an identifier naming
// a stat or skill. Whitespace is permitted around the +/- operator only.
//
// Precondition: expr must be a non-empty string.
// Postcondition: Returns a valid Expression, or an error wrapping
// ErrMalformedExpression.
func Parse(expr string) (Expression, error) {
	s := expr
	pos := 0

	countStr := takeDigits(s, &pos)
	if countStr == "" {
		return Expression{}, fmt.Errorf("%w: missing die count in %q", ErrMalformedExpression, expr)
	}
	if pos >= len(s) || s[pos] != 'd' {
		return Expression{}, fmt.Errorf("%w: missing 'd' in %q", ErrMalformedExpression, expr)
	}
	pos++

	sidesStr := takeDigits(s, &pos)
	if sidesStr == "" {
		return Expression{}, fmt.Errorf("%w: missing die sides in %q", ErrMalformedExpression, expr)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil || count < 1 {
		return Expression{}, fmt.Errorf("%w: die count must be >= 1 in %q", ErrMalformedExpression, expr)
	}
	sides, err := strconv.Atoi(sidesStr)
	if err != nil || sides < 1 {
		return Expression{}, fmt.Errorf("%w: die sides must be >= 1 in %q", ErrMalformedExpression, expr)
	}

	out := Expression{Raw: expr, Count: count, Sides: sides}
	if pos == len(s) {
		return out, nil
	}

	skipSpaces(s, &pos)
	if pos >= len(s) || (s[pos] != '+' && s[pos] != '-') {
		return Expression{}, fmt.Errorf("%w: expected '+' or '-' at %q in %q", ErrMalformedExpression, s[pos:], expr)
	}
	out.Operator = s[pos]
	pos++
	skipSpaces(s, &pos)

	token := takeWord(s, &pos)
	if token == "" || pos != len(s) {
		return Expression{}, fmt.Errorf("%w: invalid modifier in %q", ErrMalformedExpression, expr)
	}

	if lit, err := strconv.Atoi(token); err == nil {
		out.Literal = lit
	} else {
		out.Token = token
	}
	return out, nil
}

// MustParse parses expr and panics on error. Useful for package-level defaults.
//
// Precondition: expr must be a valid dice expression.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return e
}

func takeDigits(s string, pos *int) string {
	start := *pos
	for *pos < len(s) && s[*pos] >= '0' && s[*pos] <= '9' {
		*pos++
	}
	return s[start:*pos]
}

func takeWord(s string, pos *int) string {
	start := *pos
	for *pos < len(s) && isWordChar(s[*pos]) {
		*pos++
	}
	return s[start:*pos]
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func skipSpaces(s string, pos *int) {
	for *pos < len(s) && s[*pos] == ' ' {
		*pos++
	}
}
