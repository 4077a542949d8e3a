package testcase

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/AndreyAkinshin/conform/internal/constraint"
)

// Label returns the upper-case form of s used in reports.
func (s Status) Label() string {
	return cases.Upper(language.Und).String(string(s))
}

func (c ConstraintResult) String() string {
	code := c.Code
	if code == "" {
		code = constraint.AnyIdentity
	}
	switch {
	case c.Diff < 0:
		return fmt.Sprintf("Missing %d expected %q", -c.Diff, code)
	case c.Diff > 0:
		return fmt.Sprintf("%d unexpected %q", c.Diff, code)
	default:
		return fmt.Sprintf("Matched %q", code)
	}
}

// String returns the one-line summary: short name, status and the non-zero
// differences.
func (r Result) String() string {
	var b strings.Builder
	b.WriteString(r.Variation.ShortName)
	b.WriteString(" \t")
	b.WriteString(r.Status().Label())
	if d := r.differences(); d != "" {
		b.WriteString(" ")
		b.WriteString(d)
	}
	return strings.TrimSpace(b.String())
}

// Reason explains why r did not pass: the engine error, or the non-zero
// differences.
func (r Result) Reason() string {
	if r.Error != "" {
		return r.Error
	}
	return r.differences()
}

func (r Result) differences() string {
	var parts []string
	for _, c := range r.ConstraintResults {
		if c.Diff != 0 {
			parts = append(parts, c.String())
		}
	}
	return strings.Join(parts, ", ")
}

// Report renders the multi-section report of r.
func (r Result) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", r)
	fmt.Fprintf(&b, "\tID: %s\n", r.Variation.FullID())
	fmt.Fprintf(&b, "\tStatus: %s\n", r.Status().Label())
	fmt.Fprintf(&b, "\tDuration: %.2f seconds\n", r.Duration.Seconds())
	if r.Error != "" {
		fmt.Fprintf(&b, "\tError: %s\n", r.Error)
	}

	section(&b, "Expected", len(r.Applied.Constraints), func(i int) string {
		return r.Applied.Constraints[i].String()
	})
	section(&b, "Actual", len(r.Actual), func(i int) string {
		return r.Actual[i].String()
	})
	section(&b, "Blocked", len(r.Blocked), func(i int) string {
		return fmt.Sprintf("%s: %d", r.Blocked[i].Code, r.Blocked[i].Count)
	})
	section(&b, "Results", len(r.ConstraintResults), func(i int) string {
		return r.ConstraintResults[i].String()
	})
	return strings.TrimSuffix(b.String(), "\n")
}

func section(b *strings.Builder, title string, n int, item func(int) string) {
	fmt.Fprintf(b, "\t%s:\n", title)
	if n == 0 {
		b.WriteString("\t\t None\n")
		return
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(b, "\t\t %s\n", item(i))
	}
}
