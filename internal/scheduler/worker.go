package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/AndreyAkinshin/conform/internal/engine"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/testcase"
)

// WorkerCommand is the hidden CLI subcommand that serves one task.
const WorkerCommand = "worker"

// Task is the single unit of work sent to a worker process.
type Task struct {
	Plan      Plan               `msgpack:"plan"`
	Variation testcase.Variation `msgpack:"variation"`
}

// Reply is the worker's answer. Error is set only for failures that abort
// the batch; engine failures are recorded in Result.
type Reply struct {
	Result testcase.Result         `msgpack:"result"`
	Error  string                  `msgpack:"error"`
	Kind   conformerrors.ErrorKind `msgpack:"kind"`
}

// Launcher prepares the command of a fresh worker process. The scheduler
// sets its stdin and stdout.
type Launcher func(ctx context.Context) (*exec.Cmd, error)

// SelfLauncher re-executes the current binary with the worker subcommand
// followed by args.
func SelfLauncher(args ...string) Launcher {
	return func(ctx context.Context) (*exec.Cmd, error) {
		exe, err := os.Executable()
		if err != nil {
			return nil, conformerrors.Environmentf("cannot locate conform executable: %v", err)
		}
		cmd := exec.CommandContext(ctx, exe, append([]string{WorkerCommand}, args...)...)
		cmd.Stderr = os.Stderr
		return cmd, nil
	}
}

// ServeWorker reads one task from r, runs it and writes the reply to w.
// The returned error covers protocol failures only.
func ServeWorker(ctx context.Context, registry *engine.Registry, r io.Reader, w io.Writer, log *slog.Logger) error {
	var task Task
	if err := msgpack.NewDecoder(r).Decode(&task); err != nil {
		return fmt.Errorf("failed to read task: %w", err)
	}
	log.Debug("worker started", "pid", os.Getpid(), "variation", task.Variation.FullID())

	var reply Reply
	s, err := New(task.Plan, registry, log)
	if err == nil {
		reply.Result, err = s.RunVariation(ctx, task.Variation)
	}
	if err != nil {
		reply.Error = err.Error()
		reply.Kind = conformerrors.KindOf(err)
	}

	if err := msgpack.NewEncoder(w).Encode(&reply); err != nil {
		return fmt.Errorf("failed to write reply: %w", err)
	}
	return nil
}
