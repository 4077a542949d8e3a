// Package diag models the diagnostics a target engine reports: severities,
// qualified names, observed signals and the multiset the diff engine consumes.
package diag

import "strconv"

// Signal is an observed diagnostic. Count is the number of identical
// occurrences it stands for; zero means one.
type Signal struct {
	Code     string   `json:"code,omitempty" msgpack:"code"`
	QName    *QName   `json:"qname,omitempty" msgpack:"qname"`
	Severity Severity `json:"severity" msgpack:"severity"`
	Count    int      `json:"count,omitempty" msgpack:"count,omitempty"`
}

// Occurrences returns how many occurrences s stands for.
func (s Signal) Occurrences() int {
	if s.Count < 1 {
		return 1
	}
	return s.Count
}

// Identity returns the code, or the prefixed qualified name when no code
// was reported.
func (s Signal) Identity() string {
	if s.Code != "" {
		return s.Code
	}
	if s.QName != nil {
		return s.QName.String()
	}
	return ""
}

// Key returns the multiset key of s.
func (s Signal) Key() Key {
	return Key{Identity: s.Identity(), Severity: s.Severity}
}

func (s Signal) String() string {
	str := s.Identity() + " [" + s.Severity.String() + "]"
	if s.Count > 1 {
		str += " x" + strconv.Itoa(s.Count)
	}
	return str
}

// Key identifies a class of identical signals.
type Key struct {
	Identity string
	Severity Severity
}

// Entry is one class of identical signals in a Counts multiset.
type Entry struct {
	Signal Signal
	Count  int
}

// Counts is a multiset of signals that keeps first-seen order, so that
// consumption by the diff engine is deterministic.
type Counts struct {
	entries []*Entry
	index   map[Key]int
}

// NewCounts builds a multiset from signals, honoring their multiplicity.
func NewCounts(signals []Signal) *Counts {
	c := &Counts{index: make(map[Key]int)}
	for _, s := range signals {
		c.Add(s, s.Occurrences())
	}
	return c
}

// Add records n more occurrences of s.
func (c *Counts) Add(s Signal, n int) {
	if c.index == nil {
		c.index = make(map[Key]int)
	}
	s.Count = 0
	k := s.Key()
	if i, ok := c.index[k]; ok {
		c.entries[i].Count += n
		return
	}
	c.index[k] = len(c.entries)
	c.entries = append(c.entries, &Entry{Signal: s, Count: n})
}

// Entries returns the live entries in first-seen order. Callers consuming
// occurrences decrement Entry.Count in place.
func (c *Counts) Entries() []*Entry {
	return c.entries
}

// Get returns the remaining count for k.
func (c *Counts) Get(k Key) int {
	i, ok := c.index[k]
	if !ok {
		return 0
	}
	return c.entries[i].Count
}

// Total returns the sum of all remaining counts.
func (c *Counts) Total() int {
	total := 0
	for _, e := range c.entries {
		total += e.Count
	}
	return total
}
