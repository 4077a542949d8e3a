// Package scheduler runs variations against an engine and evaluates their
// diagnostics.
//
// Variations run either serially in the current process or in parallel,
// where each variation gets a fresh worker process that exits after the one
// task. Engines may keep process-global state, so a worker is never reused.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AndreyAkinshin/conform/internal/compare"
	"github.com/AndreyAkinshin/conform/internal/constraint"
	"github.com/AndreyAkinshin/conform/internal/diag"
	"github.com/AndreyAkinshin/conform/internal/diff"
	"github.com/AndreyAkinshin/conform/internal/engine"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/testcase"
)

// Scheduler runs single variations in the current process.
type Scheduler struct {
	plan    Plan
	engine  engine.Engine
	compare *compare.Context
	log     *slog.Logger
}

// New validates plan and creates its engine from registry.
func New(plan Plan, registry *engine.Registry, log *slog.Logger) (*Scheduler, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	ctx, err := plan.CompareContext(log)
	if err != nil {
		return nil, err
	}
	e, err := registry.New(plan.Engine, plan.Settings)
	if err != nil {
		return nil, err
	}
	return &Scheduler{plan: plan, engine: e, compare: ctx, log: log}, nil
}

// Plan returns the plan s was built from.
func (s *Scheduler) Plan() Plan {
	return s.plan
}

// RunVariation runs v and evaluates its diagnostics. A variation excluded
// by the filters is skipped without running the engine. A failed engine run
// is recorded in the result; only configuration conflicts are returned as
// errors.
func (s *Scheduler) RunVariation(ctx context.Context, v testcase.Variation) (testcase.Result, error) {
	fullID := v.FullID()
	if !s.plan.Selected(fullID) {
		return testcase.Skipped(v, s.plan.MatchAll), nil
	}

	if v.BlockedCodePattern != "" {
		if _, err := diff.CompileBlockPattern(v.BlockedCodePattern); err != nil {
			return testcase.Result{}, variationError(fullID, "invalid blocked code pattern", err)
		}
	}
	applied := constraint.Apply(v.Constraints, fullID, s.plan.Additional)
	logFile := LogPath(s.plan.LogDirectory, v)
	opts, err := BuildOptions(v, s.plan.Options, logFile)
	if err != nil {
		return testcase.Result{}, variationError(fullID, "invalid engine options", err)
	}
	if err := writeLog(logFile, v, opts); err != nil {
		s.log.Warn("failed to write variation log", "variation", fullID, "error", err)
	}

	s.log.Debug("running variation", "variation", fullID, "engine", s.engine.Name())
	runCtx := ctx
	if s.plan.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.plan.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.engine.Run(runCtx, opts)
	duration := time.Since(start)
	if err == nil && runCtx.Err() != nil {
		err = runCtx.Err()
	}
	if err != nil {
		return s.failed(v, applied, err, duration), nil
	}

	signals, err := diag.Flatten(out.Diagnostics(), v.IgnoredSeverities)
	if err != nil {
		return s.failed(v, applied, err, duration), nil
	}
	outcome, err := diff.Evaluate(s.compare, applied, signals, v.BlockedCodePattern)
	if err != nil {
		return testcase.Result{}, variationError(fullID, "invalid blocked code pattern", err)
	}
	result := testcase.NewResult(v, applied, outcome, duration)
	s.log.Debug("variation finished", "variation", fullID, "status", string(result.Status()), "duration", duration)
	return result, nil
}

func (s *Scheduler) failed(v testcase.Variation, applied constraint.Set, err error, duration time.Duration) testcase.Result {
	if errors.Is(err, context.DeadlineExceeded) && s.plan.Timeout > 0 {
		err = fmt.Errorf("timed out after %s: %w", s.plan.Timeout, err)
	}
	wrapped := conformerrors.Engine(v.FullID(), err)
	s.log.Error("engine run failed", "variation", v.FullID(), "error", err)
	return testcase.Failed(v, applied, wrapped, duration)
}

func variationError(fullID, message string, err error) error {
	return &conformerrors.ConformError{
		Kind:      conformerrors.KindConfig,
		Variation: fullID,
		Message:   message,
		Cause:     err,
	}
}
