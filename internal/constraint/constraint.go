// Package constraint models expected diagnostics: single constraints with
// counts or ranges, constraint sets with a pass policy, and the merging of
// suite-wide constraints into a variation's own.
package constraint

import (
	"fmt"
	"strings"

	"github.com/AndreyAkinshin/conform/internal/diag"
)

// AnyIdentity labels a constraint that matches any diagnostic.
const AnyIdentity = "(any)"

// Wildcard is the pattern that matches every diagnostic code.
const Wildcard = "*"

// Constraint expects some class of diagnostics to occur a number of times.
// Count applies unless Min or Max is set, in which case the constraint is
// satisfied by any match count inside the range.
type Constraint struct {
	QName    *diag.QName   `json:"qname,omitempty" msgpack:"qname"`
	Pattern  string        `json:"pattern,omitempty" msgpack:"pattern"`
	Count    int           `json:"count" msgpack:"count"`
	Min      *int          `json:"min,omitempty" msgpack:"min"`
	Max      *int          `json:"max,omitempty" msgpack:"max"`
	Severity diag.Severity `json:"severity" msgpack:"severity"`
}

// Code returns an exact-once constraint on a code pattern at error level.
func Code(pattern string) Constraint {
	return Constraint{Pattern: pattern, Count: 1, Severity: diag.Error}
}

// Named returns an exact-once constraint on a qualified name at error level.
func Named(q diag.QName) Constraint {
	return Constraint{QName: &q, Count: 1, Severity: diag.Error}
}

// Invalid returns the constraint used for "must be invalid" expectations: one
// diagnostic of any code.
func Invalid() Constraint {
	return Code(Wildcard)
}

// Identity returns the qualified name, the pattern, or AnyIdentity.
func (c Constraint) Identity() string {
	if c.QName != nil {
		return c.QName.String()
	}
	if c.Pattern != "" {
		return c.Pattern
	}
	return AnyIdentity
}

// MatchesAnything reports whether c has neither a qualified name nor a pattern.
func (c Constraint) MatchesAnything() bool {
	return c.QName == nil && c.Pattern == ""
}

// IsRange reports whether c uses Min/Max bounds instead of Count.
func (c Constraint) IsRange() bool {
	return c.Min != nil || c.Max != nil
}

// Capacity returns how many occurrences c may consume. The second result is
// false when the capacity is unbounded.
func (c Constraint) Capacity() (int, bool) {
	if c.IsRange() {
		if c.Max == nil {
			return 0, false
		}
		return *c.Max, true
	}
	return c.Count, true
}

// DiffFor returns the signed difference between matched and the expectation:
// negative when occurrences are missing, positive when there are too many.
func (c Constraint) DiffFor(matched int) int {
	if !c.IsRange() {
		return matched - c.Count
	}
	if c.Min != nil && matched < *c.Min {
		return matched - *c.Min
	}
	if c.Max != nil && matched > *c.Max {
		return matched - *c.Max
	}
	return 0
}

func (c Constraint) String() string {
	var b strings.Builder
	b.WriteString(c.Identity())
	fmt.Fprintf(&b, " [%s]", c.Severity.OrDefault())
	switch {
	case c.IsRange():
		b.WriteString(" x")
		if c.Min != nil {
			fmt.Fprintf(&b, "%d", *c.Min)
		}
		b.WriteString("..")
		if c.Max != nil {
			fmt.Fprintf(&b, "%d", *c.Max)
		}
	case c.Count != 1:
		fmt.Fprintf(&b, " x%d", c.Count)
	}
	return b.String()
}

// Set is an ordered list of constraints with a pass policy.
type Set struct {
	Constraints []Constraint `json:"constraints" msgpack:"constraints"`
	MatchAll    bool         `json:"match_all" msgpack:"match_all"`
}

// RequiresAll reports whether every diff must be zero for the set to pass.
// An empty set behaves as a conjunction: a valid document must produce no
// unexpected diagnostics.
func (s Set) RequiresAll() bool {
	return s.MatchAll || len(s.Constraints) == 0
}
