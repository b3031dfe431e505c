// Package tags compiles include/exclude tag expressions and filters scenario
// units with them.
//
// An expression is a list of terms that must all hold. A term is one or more
// comma-separated alternatives, any of which may hold. An alternative is a
// tag name, optionally prefixed with '@', and optionally negated with '~':
//
//	@smoke            unit carries smoke
//	~@skipme          unit does not carry skipme
//	@api,@ui          unit carries api or ui
//	"@api ~@slow"     unit carries api and does not carry slow
//
// Expressions are compiled once per run; matching never re-parses strings.
package tags

import (
	"fmt"
	"strings"

	"scenctl/internal/scenario"
)

type alternative struct {
	tag     string
	negated bool
}

func (a alternative) match(set map[string]struct{}) bool {
	_, ok := set[a.tag]
	return ok != a.negated
}

func (a alternative) String() string {
	if a.negated {
		return "~@" + a.tag
	}
	return "@" + a.tag
}

type term []alternative

func (t term) match(set map[string]struct{}) bool {
	for _, alt := range t {
		if alt.match(set) {
			return true
		}
	}
	return false
}

// Expression is a compiled tag predicate. The zero value matches every unit.
type Expression struct {
	terms []term
}

// Compile parses the given terms. Each argument may itself hold several
// whitespace-separated terms, so both repeated --tags flags and a single
// quoted expression are accepted.
func Compile(exprs ...string) (Expression, error) {
	var compiled Expression
	for _, expr := range exprs {
		for _, raw := range strings.Fields(expr) {
			t, err := parseTerm(raw)
			if err != nil {
				return Expression{}, err
			}
			compiled.terms = append(compiled.terms, t)
		}
	}
	return compiled, nil
}

// MustCompile is like Compile but panics on invalid input
func MustCompile(exprs ...string) Expression {
	e, err := Compile(exprs...)
	if err != nil {
		panic(err)
	}
	return e
}

func parseTerm(raw string) (term, error) {
	var t term
	for _, part := range strings.Split(raw, ",") {
		alt := alternative{}
		name := strings.TrimSpace(part)
		if strings.HasPrefix(name, "~") {
			alt.negated = true
			name = name[1:]
		}
		name = Normalize(name)
		if name == "" {
			return nil, fmt.Errorf("invalid tag term %q: empty tag name", raw)
		}
		if strings.ContainsAny(name, "~@") {
			return nil, fmt.Errorf("invalid tag term %q: unexpected '~' or '@' inside tag %q", raw, name)
		}
		alt.tag = name
		t = append(t, alt)
	}
	return t, nil
}

// Normalize strips a single leading '@' so that "@smoke" and "smoke" refer to
// the same tag.
func Normalize(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "@")
}

// IsEmpty reports whether the expression has no terms
func (e Expression) IsEmpty() bool {
	return len(e.terms) == 0
}

// Match reports whether a tag set satisfies every term
func (e Expression) Match(unitTags []string) bool {
	if len(e.terms) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(unitTags))
	for _, tag := range unitTags {
		set[Normalize(tag)] = struct{}{}
	}
	for _, t := range e.terms {
		if !t.match(set) {
			return false
		}
	}
	return true
}

// String renders the expression in canonical form
func (e Expression) String() string {
	parts := make([]string, 0, len(e.terms))
	for _, t := range e.terms {
		alts := make([]string, 0, len(t))
		for _, alt := range t {
			alts = append(alts, alt.String())
		}
		parts = append(parts, strings.Join(alts, ","))
	}
	return strings.Join(parts, " ")
}

// Select returns the units matching expr, preserving input order
func Select(units []*scenario.Unit, expr Expression) []*scenario.Unit {
	selected := make([]*scenario.Unit, 0, len(units))
	for _, u := range units {
		if expr.Match(u.Tags) {
			selected = append(selected, u)
		}
	}
	return selected
}
