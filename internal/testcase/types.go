// Package testcase defines the runnable unit of a conformance suite and the
// record produced by running it.
package testcase

import (
	"time"

	"github.com/AndreyAkinshin/conform/internal/constraint"
	"github.com/AndreyAkinshin/conform/internal/diag"
	"github.com/AndreyAkinshin/conform/internal/diff"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
)

// Variation is one runnable test unit. It is built by a loader and not
// modified afterwards.
type Variation struct {
	ID          string `msgpack:"id"`
	Name        string `msgpack:"name"`
	Description string `msgpack:"description"`
	// Base is the path of the testcase document that declared the variation.
	Base      string   `msgpack:"base"`
	ReadFirst []string `msgpack:"read_first"` // relative to Base's directory
	ShortName string   `msgpack:"short_name"`
	Status    string   `msgpack:"status"`

	Constraints        constraint.Set  `msgpack:"constraints"`
	BlockedCodePattern string          `msgpack:"blocked_code_pattern"`
	IgnoredSeverities  []diag.Severity `msgpack:"ignored_severities"`

	CalcMode                string `msgpack:"calc_mode"`
	Parameters              string `msgpack:"parameters"`
	InlineTarget            string `msgpack:"inline_target"`
	CompareInstanceURI      string `msgpack:"compare_instance_uri"`
	CompareFormulaOutputURI string `msgpack:"compare_formula_output_uri"`
}

// FullID returns the identifier that is unique across a suite.
func (v Variation) FullID() string {
	return v.Base + ":" + v.ID
}

// Status is the outcome label of a result.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusSkip  Status = "skip"
	StatusError Status = "error"
)

// ConstraintResult is the signed difference for one constraint or one
// leftover identity.
type ConstraintResult struct {
	Code     string        `json:"code" msgpack:"code"`
	Severity diag.Severity `json:"severity" msgpack:"severity"`
	Diff     int           `json:"diff" msgpack:"diff"`
}

// Result is the record of running one variation.
type Result struct {
	Variation         Variation          `msgpack:"variation"`
	Applied           constraint.Set     `msgpack:"applied"`
	Actual            []diag.Signal      `msgpack:"actual"`
	ConstraintResults []ConstraintResult `msgpack:"constraint_results"`
	Blocked           []diff.Blocked     `msgpack:"blocked"`
	Passed            bool               `msgpack:"passed"`
	Skip              bool               `msgpack:"skip"`
	Duration          time.Duration      `msgpack:"duration"`

	// Error is set when the engine run failed. ErrorKind keeps the
	// classification across process boundaries.
	Error     string                  `msgpack:"error"`
	ErrorKind conformerrors.ErrorKind `msgpack:"error_kind"`
}

// Skipped returns the result of a variation excluded by filters.
func Skipped(v Variation, matchAll bool) Result {
	return Result{
		Variation: v,
		Applied:   constraint.Set{MatchAll: matchAll},
		Passed:    true,
		Skip:      true,
	}
}

// Failed returns the result of a variation whose engine run failed.
func Failed(v Variation, applied constraint.Set, err error, duration time.Duration) Result {
	return Result{
		Variation: v,
		Applied:   applied,
		Duration:  duration,
		Error:     err.Error(),
		ErrorKind: conformerrors.KindOf(err),
	}
}

// NewResult records an evaluated outcome.
func NewResult(v Variation, applied constraint.Set, out diff.Outcome, duration time.Duration) Result {
	r := Result{
		Variation: v,
		Applied:   applied,
		Actual:    out.Signals,
		Blocked:   out.Blocked,
		Passed:    out.Passed,
		Duration:  duration,
	}
	if out.Diff != nil {
		for _, e := range out.Diff.Entries() {
			r.ConstraintResults = append(r.ConstraintResults, ConstraintResult{
				Code:     e.Identity,
				Severity: e.Severity,
				Diff:     e.Value,
			})
		}
	}
	return r
}

// Status returns the outcome label of r.
func (r Result) Status() Status {
	switch {
	case r.Skip:
		return StatusSkip
	case r.Error != "":
		return StatusError
	case r.Passed:
		return StatusPass
	default:
		return StatusFail
	}
}
