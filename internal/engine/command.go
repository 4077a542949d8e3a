package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
)

// CommandEngineName is the registry name of the external command engine.
const CommandEngineName = "command"

// stderrTail bounds how much of the engine's stderr is kept in an error.
const stderrTail = 2048

type commandEngine struct {
	argv []string
	dir  string
	env  map[string]string
}

// NewCommand returns an engine that runs an external program once per
// variation. The resolved options are written to the program's stdin as
// JSON and the diagnostic JSON it prints on stdout is decoded with Decode.
func NewCommand(s Settings) (Engine, error) {
	if len(s.Command) == 0 || s.Command[0] == "" {
		return nil, conformerrors.Config("command engine requires a command")
	}
	return &commandEngine{
		argv: append([]string(nil), s.Command...),
		dir:  s.Dir,
		env:  copyEnv(s.Env),
	}, nil
}

func (e *commandEngine) Name() string { return CommandEngineName }

func (e *commandEngine) Run(ctx context.Context, opts Options) (Output, error) {
	input, err := json.Marshal(map[string]any(opts))
	if err != nil {
		return Output{}, fmt.Errorf("failed to encode engine options: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.argv[0], e.argv[1:]...)
	cmd.Dir = e.dir
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Engine-specific env overrides the inherited environment.
	cmd.Env = os.Environ()
	for k, v := range e.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return Output{}, conformerrors.Environmentf("engine executable not found: %s", e.argv[0])
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Output{}, fmt.Errorf("engine %s: %w", e.argv[0], ctxErr)
		}
		return Output{}, fmt.Errorf("engine %s: %w%s", e.argv[0], err, formatStderr(stderr.String()))
	}
	return Decode(stdout.Bytes())
}

func formatStderr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return "\n" + s
}

func copyEnv(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
