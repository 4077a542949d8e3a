// Package diff matches observed diagnostics against expected constraints and
// decides whether a variation passed.
package diff

import (
	"github.com/AndreyAkinshin/conform/internal/compare"
	"github.com/AndreyAkinshin/conform/internal/constraint"
	"github.com/AndreyAkinshin/conform/internal/diag"
)

// Entry is the signed difference recorded for a constraint or for leftover
// signals. Negative values mean missing occurrences, positive values mean
// unexpected ones.
type Entry struct {
	Identity string
	Severity diag.Severity
	Value    int
	// Leftover is set when the entry was produced by unexplained signals
	// rather than by a constraint.
	Leftover bool
}

// Key returns the key of e.
func (e Entry) Key() diag.Key {
	return diag.Key{Identity: e.Identity, Severity: e.Severity}
}

// Diff is an ordered mapping of (identity, severity) to a signed difference.
type Diff struct {
	entries []Entry
	index   map[diag.Key]int
	// Matched holds the occurrences consumed by each constraint, in
	// constraint order.
	Matched []int
}

func newDiff() *Diff {
	return &Diff{index: make(map[diag.Key]int)}
}

// set records a value. An existing key keeps its position and is
// overwritten.
func (d *Diff) set(e Entry) {
	k := e.Key()
	if i, ok := d.index[k]; ok {
		d.entries[i] = e
		return
	}
	d.index[k] = len(d.entries)
	d.entries = append(d.entries, e)
}

// Entries returns the entries in insertion order.
func (d *Diff) Entries() []Entry {
	return d.entries
}

// Get returns the value recorded for k.
func (d *Diff) Get(k diag.Key) (int, bool) {
	i, ok := d.index[k]
	if !ok {
		return 0, false
	}
	return d.entries[i].Value, true
}

// Len returns the number of entries.
func (d *Diff) Len() int {
	return len(d.entries)
}

// Compute consumes counts in constraint order. Each constraint claims
// matching occurrences of its own severity up to its capacity, decrementing
// counts in place, so an occurrence satisfies at most one constraint.
// Remaining occurrences of a non-ignorable severity are then recorded as
// unexpected.
func Compute(ctx *compare.Context, set constraint.Set, counts *diag.Counts) *Diff {
	d := newDiff()
	d.Matched = make([]int, len(set.Constraints))
	for i, c := range set.Constraints {
		severity := c.Severity.OrDefault()
		capacity, bounded := c.Capacity()
		matched := 0
		for _, e := range counts.Entries() {
			if bounded && matched >= capacity {
				break
			}
			if e.Count == 0 || e.Signal.Severity.OrDefault() != severity {
				continue
			}
			if !ctx.Compare(c, e.Signal) {
				continue
			}
			take := e.Count
			if bounded && take > capacity-matched {
				take = capacity - matched
			}
			matched += take
			e.Count -= take
		}
		d.Matched[i] = matched
		d.set(Entry{Identity: c.Identity(), Severity: severity, Value: c.DiffFor(matched)})
	}
	for _, e := range counts.Entries() {
		severity := e.Signal.Severity.OrDefault()
		if e.Count == 0 || severity.Ignorable() {
			continue
		}
		d.set(Entry{Identity: e.Signal.Identity(), Severity: severity, Value: e.Count, Leftover: true})
	}
	return d
}

// Passed applies the pass policy of set to d. A conjunctive set needs every
// value to be zero; a disjunctive set needs at least one.
func Passed(set constraint.Set, d *Diff) bool {
	if set.RequiresAll() {
		for _, e := range d.entries {
			if e.Value != 0 {
				return false
			}
		}
		return true
	}
	for _, e := range d.entries {
		if e.Value == 0 {
			return true
		}
	}
	return false
}
