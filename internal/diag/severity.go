package diag

import (
	"fmt"
	"strings"
)

// Severity defines the level of a diagnostic.
//
// The zero value is unset; constraint and config decoding default it to
// Error.
type Severity uint8

const (
	// Satisfied is an assertion that held.
	Satisfied Severity = iota + 1
	// NotSatisfied is an assertion that did not hold.
	NotSatisfied
	// Ok is an informational diagnostic.
	Ok
	Warning
	Error
)

// Severities lists all valid severities in order.
var Severities = []Severity{Satisfied, NotSatisfied, Ok, Warning, Error}

func (s Severity) String() string {
	switch s {
	case Satisfied:
		return "satisfied"
	case NotSatisfied:
		return "not-satisfied"
	case Ok:
		return "ok"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "unknown"
}

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	return s >= Satisfied && s <= Error
}

// Ignorable reports whether a leftover diagnostic of this severity may remain
// unmatched without failing a test.
func (s Severity) Ignorable() bool {
	return s == Satisfied || s == Ok
}

// OrDefault returns s, or Error when s is unset.
func (s Severity) OrDefault() Severity {
	if s == 0 {
		return Error
	}
	return s
}

// ParseSeverity parses a severity name. Matching is case-insensitive and
// accepts '_' or '-' between words.
func ParseSeverity(name string) (Severity, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	switch norm {
	case "satisfied":
		return Satisfied, nil
	case "not-satisfied", "notsatisfied":
		return NotSatisfied, nil
	case "ok":
		return Ok, nil
	case "warning", "warn":
		return Warning, nil
	case "error", "":
		return Error, nil
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// MarshalText implements encoding.TextMarshaler. An unset severity is
// written as its default.
func (s Severity) MarshalText() ([]byte, error) {
	s = s.OrDefault()
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
