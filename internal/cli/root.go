// Package cli implements the conform command line.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/logger"
	"github.com/AndreyAkinshin/conform/internal/output"
)

// Version is set at build time.
var Version = "dev"

// errVariationsFailed ends a run whose summary already reported failures.
var errVariationsFailed = errors.New("variations failed")

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
	Quiet    bool
	NoColor  bool
}

// writer returns the output writer of cmd.
func (o *RootOptions) writer(cmd *cobra.Command) *output.Writer {
	stdout := cmd.OutOrStdout()
	w := output.NewWithWriters(stdout, cmd.ErrOrStderr(), !o.NoColor && output.IsTerminal(stdout))
	w.SetQuiet(o.Quiet)
	return w
}

// logger returns the structured logger of cmd. Logs go to the error stream.
func (o *RootOptions) logger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := logger.ParseLevel(o.LogLevel)
	if err != nil {
		return nil, err
	}
	return logger.New(cmd.ErrOrStderr(), level), nil
}

// NewRootCommand creates the root command of the conform CLI.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conform",
		Short: "Conformance suite runner for validation engines",
		Long: "conform runs the variations of a conformance suite through a validation\n" +
			"engine and compares the diagnostics it reports with the expected ones.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logger.ParseLevel(opts.LogLevel)
			return err
		},
	}
	cmd.SetVersionTemplate("conform {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return conformerrors.Config(err.Error())
	})

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "print only reports and the summary")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewWorkerCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// Run executes the CLI with the given arguments and returns an exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := NewRootCommand(&RootOptions{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return conformerrors.ExitSuccess
	case errors.Is(err, errVariationsFailed):
		return conformerrors.ExitRuntimeError
	}
	output.New().ErrorPrefix("%v", err)
	return conformerrors.GetExitCode(err)
}
