package constraint

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/AndreyAkinshin/conform/internal/diag"
)

type mergeKey struct {
	qname    string
	hasQName bool
	pattern  string
	severity diag.Severity
}

func keyOf(c Constraint) mergeKey {
	k := mergeKey{pattern: c.Pattern, severity: c.Severity.OrDefault()}
	if c.QName != nil {
		k.qname = c.QName.Clark()
		k.hasQName = true
	}
	return k
}

// Normalize merges constraints that share qualified name, pattern and
// severity. Counts are summed; when either side is a range, the minimums are
// summed with a missing minimum adding nothing, and the maximums are summed
// unless either side is unbounded. The result keeps the order in which each
// key was first seen.
func Normalize(constraints []Constraint) []Constraint {
	var out []Constraint
	index := make(map[mergeKey]int)
	for _, c := range constraints {
		c.Severity = c.Severity.OrDefault()
		k := keyOf(c)
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, copyBounds(c))
			continue
		}
		out[i] = merge(out[i], c)
	}
	return out
}

func merge(a, b Constraint) Constraint {
	if !a.IsRange() && !b.IsRange() {
		a.Count += b.Count
		return a
	}
	aMin, aMax := bounds(a)
	bMin, bMax := bounds(b)
	a.Count = 0
	a.Min = addBound(aMin, bMin)
	a.Max = addMax(aMax, bMax)
	return a
}

// bounds expresses a fixed count as an exact range.
func bounds(c Constraint) (*int, *int) {
	if c.IsRange() {
		return c.Min, c.Max
	}
	lo, hi := c.Count, c.Count
	return &lo, &hi
}

func addBound(a, b *int) *int {
	if a == nil && b == nil {
		return nil
	}
	sum := 0
	if a != nil {
		sum += *a
	}
	if b != nil {
		sum += *b
	}
	return &sum
}

// addMax sums two maximums. A nil maximum is unbounded and absorbs the other.
func addMax(a, b *int) *int {
	if a == nil || b == nil {
		return nil
	}
	sum := *a + *b
	return &sum
}

func copyBounds(c Constraint) Constraint {
	if c.Min != nil {
		v := *c.Min
		c.Min = &v
	}
	if c.Max != nil {
		v := *c.Max
		c.Max = &v
	}
	return c
}

// Additional is a suite-wide list of constraints for variations whose full
// ID ends with Suffix. Suffix may contain glob metacharacters.
type Additional struct {
	Suffix      string       `json:"suffix" msgpack:"suffix"`
	Constraints []Constraint `json:"constraints" msgpack:"constraints"`
}

// Applies reports whether a applies to the variation with the given full ID.
func (a Additional) Applies(fullID string) bool {
	if a.Suffix == "" {
		return false
	}
	if strings.HasSuffix(fullID, a.Suffix) {
		return true
	}
	ok, err := doublestar.Match("**/"+strings.TrimPrefix(a.Suffix, "/"), fullID)
	return err == nil && ok
}

// Apply returns set with every applicable additional constraint appended and
// the result normalized.
func Apply(set Set, fullID string, additional []Additional) Set {
	applied := make([]Constraint, 0, len(set.Constraints))
	applied = append(applied, set.Constraints...)
	for _, a := range additional {
		if a.Applies(fullID) {
			applied = append(applied, a.Constraints...)
		}
	}
	return Set{
		Constraints: Normalize(applied),
		MatchAll:    set.MatchAll,
	}
}
