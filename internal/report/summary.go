// Package report aggregates variation results into batch counts and timing
// and renders them for the terminal and for CI.
package report

import (
	"fmt"
	"time"

	"github.com/AndreyAkinshin/conform/internal/output"
	"github.com/AndreyAkinshin/conform/internal/testcase"
)

// Timing holds the durations of a batch.
type Timing struct {
	// Test is the sum of the per-variation durations.
	Test time.Duration
	// Real is the wall-clock time spent running variations.
	Real time.Duration
	// Total is the wall-clock time of the whole run, loading included.
	Total time.Duration
}

// Failure names a variation that did not pass and why.
type Failure struct {
	ID     string
	Status testcase.Status
	Reason string
}

// Summary is the tally of a batch.
type Summary struct {
	Passed  int
	Failed  int
	Skipped int
	Errors  int
	Total   int

	Failures         []Failure
	ExpectedFailures []string
	UnexpectedPasses []string

	Timing Timing
}

// Summarize tallies results. Variations listed in expected that fail or
// error are counted as expected failures instead of failures; listed
// variations that pass are reported as unexpected passes.
func Summarize(results []testcase.Result, expected ExpectedFailures, timing Timing) Summary {
	s := Summary{Total: len(results), Timing: timing}
	for _, r := range results {
		id := r.Variation.FullID()
		status := r.Status()
		switch {
		case status == testcase.StatusSkip:
			s.Skipped++
		case status == testcase.StatusPass:
			s.Passed++
			if expected.Match(id) {
				s.UnexpectedPasses = append(s.UnexpectedPasses, id)
			}
		case expected.Match(id):
			s.ExpectedFailures = append(s.ExpectedFailures, id)
		case status == testcase.StatusError:
			s.Errors++
			s.Failures = append(s.Failures, Failure{ID: id, Status: status, Reason: r.Reason()})
		default:
			s.Failed++
			s.Failures = append(s.Failures, Failure{ID: id, Status: status, Reason: r.Reason()})
		}
	}
	return s
}

// Ok reports whether no variation failed or errored unexpectedly.
func (s Summary) Ok() bool {
	return s.Failed == 0 && s.Errors == 0
}

// average divides d over the batch size, treating an empty batch as one.
func (s Summary) average(d time.Duration) float64 {
	n := s.Total
	if n == 0 {
		n = 1
	}
	return d.Seconds() / float64(n)
}

// Print writes the end-of-run summary.
func (s Summary) Print(w *output.Writer) {
	w.SummarySectionLabel("Duration (seconds):")
	w.SummaryItem("Test (Total)", fmt.Sprintf("%.2f (avg: %.4f)", s.Timing.Test.Seconds(), s.average(s.Timing.Test)))
	w.SummaryItem("Test (Real)", fmt.Sprintf("%.2f (avg: %.4f)", s.Timing.Real.Seconds(), s.average(s.Timing.Real)))
	w.SummaryItem("Total", fmt.Sprintf("%.2f", s.Timing.Total.Seconds()))

	w.SummarySectionLabel("Results:")
	w.SummaryPassed("Passed", fmt.Sprintf("%d", s.Passed))
	if s.Failed > 0 {
		w.SummaryFailed("Failed", fmt.Sprintf("%d", s.Failed))
	} else {
		w.SummaryItem("Failed", "0")
	}
	if s.Errors > 0 {
		w.SummaryFailed("Errors", fmt.Sprintf("%d", s.Errors))
	}
	if len(s.ExpectedFailures) > 0 {
		w.SummaryItem("Expected failures", fmt.Sprintf("%d", len(s.ExpectedFailures)))
	}
	w.SummaryItem("Skipped", fmt.Sprintf("%d", s.Skipped))
	w.SummaryItem("Total", fmt.Sprintf("%d", s.Total))

	if len(s.Failures) > 0 {
		w.Println("")
		w.SummarySectionLabel("Failed variations:")
		rows := make([][]string, len(s.Failures))
		for i, f := range s.Failures {
			rows[i] = []string{f.ID, f.Status.Label(), f.Reason}
		}
		w.Table([]string{"Variation", "Status", "Reason"}, rows)
	}
	if len(s.ExpectedFailures) > 0 {
		w.Println("")
		w.SummarySectionLabel("Expected failures:")
		w.List(s.ExpectedFailures)
	}
	if len(s.UnexpectedPasses) > 0 {
		w.Println("")
		w.SummarySectionLabel("Unexpected passes (listed as expected failures):")
		w.List(s.UnexpectedPasses)
	}

	run := s.Total - s.Skipped
	switch {
	case !s.Ok():
		w.FinalFailure("%d of %d variations failed.", s.Failed+s.Errors, run)
	case len(s.ExpectedFailures) > 0:
		w.FinalSuccess("%d passed, %d failed as expected.", s.Passed, len(s.ExpectedFailures))
	default:
		w.FinalSuccess("All %d variations passed.", run)
	}
}
