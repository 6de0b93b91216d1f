package tuple

import "strings"

// PatternField is a template element: either a literal that must compare
// equal, or a wildcard matching any value.
type PatternField struct {
	Wildcard bool  `json:"any,omitempty"`
	Field    Field `json:"field,omitempty"`
}

func Any() PatternField               { return PatternField{Wildcard: true} }
func Lit(f Field) PatternField        { return PatternField{Field: f} }
func LitString(s string) PatternField { return PatternField{Field: String(s)} }
func LitBinary(b []byte) PatternField { return PatternField{Field: Binary(b)} }
func LitAtom(a string) PatternField   { return PatternField{Field: Atom(a)} }

// Pattern is a tuple template. Matching is structural: arity must be
// identical and every non-wildcard field must be equal.
type Pattern []PatternField

func NewPattern(fields ...PatternField) Pattern { return Pattern(fields) }

func (p Pattern) Arity() int { return len(p) }

// Matches reports whether t satisfies the template. No partial-field or
// regex matching; equality only.
func (p Pattern) Matches(t Tuple) bool {
	if len(p) != len(t) {
		return false
	}
	for i, pf := range p {
		if pf.Wildcard {
			continue
		}
		if !pf.Field.Equal(t[i]) {
			return false
		}
	}
	return true
}

func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, pf := range p {
		if pf.Wildcard {
			parts[i] = "_"
		} else {
			parts[i] = pf.Field.String()
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
