package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/AndreyAkinshin/conform/internal/constraint"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/testcase"
)

const (
	// ParallelEnv sets the default number of worker processes.
	ParallelEnv = "CONFORM_PARALLEL"

	minParallelWorkers = 1
	maxParallelWorkers = 256

	// workerGrace is added to the plan timeout before a worker process is
	// killed, so the worker can report its own timeout first.
	workerGrace = 5 * time.Second
)

// RunSerial runs variations one after another in the current process and
// calls emit after each one, in order. It stops at the first configuration
// error or when ctx is canceled.
func (s *Scheduler) RunSerial(ctx context.Context, variations []testcase.Variation, emit func(testcase.Result)) ([]testcase.Result, error) {
	results := make([]testcase.Result, 0, len(variations))
	for _, v := range variations {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r, err := s.RunVariation(ctx, v)
		if err != nil {
			return results, err
		}
		results = append(results, r)
		if emit != nil {
			emit(r)
		}
	}
	return results, nil
}

// RunParallel runs every selected variation in its own worker process, at
// most jobs at a time, and returns the results in input order once all of
// them have finished. Filtered variations are skipped without a process.
func (s *Scheduler) RunParallel(ctx context.Context, variations []testcase.Variation, launch Launcher, jobs int) ([]testcase.Result, error) {
	if jobs < minParallelWorkers {
		jobs = minParallelWorkers
	}
	results := make([]testcase.Result, len(variations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, v := range variations {
		if !s.plan.Selected(v.FullID()) {
			results[i] = testcase.Skipped(v, s.plan.MatchAll)
			continue
		}
		g.Go(func() error {
			r, err := s.runIsolated(gctx, launch, v)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runIsolated sends v to a fresh worker process. A worker that crashes or
// times out fails only its own variation.
func (s *Scheduler) runIsolated(ctx context.Context, launch Launcher, v testcase.Variation) (testcase.Result, error) {
	if err := ctx.Err(); err != nil {
		return testcase.Result{}, err
	}
	payload, err := msgpack.Marshal(&Task{Plan: s.plan, Variation: v})
	if err != nil {
		return testcase.Result{}, fmt.Errorf("failed to encode task %s: %w", v.FullID(), err)
	}

	workerCtx := ctx
	if s.plan.Timeout > 0 {
		var cancel context.CancelFunc
		workerCtx, cancel = context.WithTimeout(ctx, s.plan.Timeout+workerGrace)
		defer cancel()
	}
	cmd, err := launch(workerCtx)
	if err != nil {
		return testcase.Result{}, err
	}
	var stdout bytes.Buffer
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout

	s.log.Debug("spawning worker", "variation", v.FullID(), "path", cmd.Path)
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)
	if err := ctx.Err(); err != nil {
		return testcase.Result{}, err
	}

	applied := constraint.Apply(v.Constraints, v.FullID(), s.plan.Additional)
	if runErr != nil {
		if workerCtx.Err() != nil {
			runErr = fmt.Errorf("worker killed: %w", workerCtx.Err())
		}
		return s.failed(v, applied, fmt.Errorf("worker process failed: %w", runErr), elapsed), nil
	}

	var reply Reply
	if err := msgpack.Unmarshal(stdout.Bytes(), &reply); err != nil {
		return s.failed(v, applied, fmt.Errorf("invalid worker reply: %w", err), elapsed), nil
	}
	if reply.Error != "" {
		return testcase.Result{}, &conformerrors.ConformError{Kind: reply.Kind, Message: reply.Error}
	}
	return reply.Result, nil
}

// Jobs returns the number of worker processes to use. A positive requested
// value wins; otherwise CONFORM_PARALLEL is used when it holds a number in
// [1, 256], and the CPU count when it does not.
func (s *Scheduler) Jobs(requested int) int {
	if requested > 0 {
		return min(requested, maxParallelWorkers)
	}
	env := os.Getenv(ParallelEnv)
	if env == "" {
		return defaultWorkerCount()
	}
	n, err := strconv.Atoi(env)
	if err != nil {
		s.log.Warn("invalid "+ParallelEnv+" value, using default", "value", env)
		return defaultWorkerCount()
	}
	if n < minParallelWorkers || n > maxParallelWorkers {
		s.log.Warn(ParallelEnv+" out of range, using default", "value", n, "min", minParallelWorkers, "max", maxParallelWorkers)
		return defaultWorkerCount()
	}
	return n
}

func defaultWorkerCount() int {
	return max(minParallelWorkers, runtime.NumCPU())
}
