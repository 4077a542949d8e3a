package diff

import (
	"fmt"
	"regexp"

	"github.com/AndreyAkinshin/conform/internal/compare"
	"github.com/AndreyAkinshin/conform/internal/constraint"
	"github.com/AndreyAkinshin/conform/internal/diag"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
)

var escapeRe = regexp.MustCompile(`\\(.)`)

// Blocked counts the removed occurrences of one identity.
type Blocked struct {
	Code  string `json:"code" msgpack:"code"`
	Count int    `json:"count" msgpack:"count"`
}

// CompileBlockPattern compiles a blocked-code pattern. Each backslash escape
// is replaced by the escaped character first, and the result matches at the
// start of an identity.
func CompileBlockPattern(pattern string) (*regexp.Regexp, error) {
	unescaped := escapeRe.ReplaceAllString(pattern, "${1}")
	re, err := regexp.Compile("^(?:" + unescaped + ")")
	if err != nil {
		return nil, conformerrors.WrapConfig(err, fmt.Sprintf("invalid blocked code pattern %q", pattern))
	}
	return re, nil
}

// Block removes the signals whose identity matches pattern and tallies them
// by identity in first-seen order. An empty pattern blocks nothing.
func Block(signals []diag.Signal, pattern string) ([]diag.Signal, []Blocked, error) {
	if pattern == "" {
		return signals, nil, nil
	}
	re, err := CompileBlockPattern(pattern)
	if err != nil {
		return nil, nil, err
	}
	var (
		kept    []diag.Signal
		blocked []Blocked
		index   = make(map[string]int)
	)
	for _, s := range signals {
		id := s.Identity()
		if !re.MatchString(id) {
			kept = append(kept, s)
			continue
		}
		if i, ok := index[id]; ok {
			blocked[i].Count += s.Occurrences()
			continue
		}
		index[id] = len(blocked)
		blocked = append(blocked, Blocked{Code: id, Count: s.Occurrences()})
	}
	return kept, blocked, nil
}

// Outcome is the evaluation of one variation's signals.
type Outcome struct {
	Signals []diag.Signal
	Blocked []Blocked
	Diff    *Diff
	Passed  bool
}

// Evaluate filters blocked signals out of signals and diffs the survivors
// against set.
func Evaluate(ctx *compare.Context, set constraint.Set, signals []diag.Signal, blockPattern string) (Outcome, error) {
	kept, blocked, err := Block(signals, blockPattern)
	if err != nil {
		return Outcome{}, err
	}
	d := Compute(ctx, set, diag.NewCounts(kept))
	return Outcome{
		Signals: kept,
		Blocked: blocked,
		Diff:    d,
		Passed:  Passed(set, d),
	}, nil
}
